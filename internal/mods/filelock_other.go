//go:build !linux && !darwin

package mods

import "errors"

// errFlockUnavailable makes callers fall back to the in-process lock.
var errFlockUnavailable = errors.New("flock not available on this platform")

type fileLock struct{}

func acquireFileLock(path string) (*fileLock, error) {
	return nil, errFlockUnavailable
}

// Release is a no-op on this platform.
func (l *fileLock) Release() {}
