//go:build linux || darwin

package mods

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// errFlockUnavailable is never returned on this platform.
var errFlockUnavailable = errors.New("flock not available on this platform")

// fileLock is an exclusive flock shared by every process working on the
// same mod. The lock file itself is left behind; the kernel drops the lock
// when the descriptor closes, including on a crash.
type fileLock struct {
	file *os.File
}

// acquireFileLock blocks until the exclusive lock on path is held.
func acquireFileLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return &fileLock{file: f}, nil
}

// Release unlocks and closes the lock file. Later calls are no-ops.
func (l *fileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
	l.file = nil
}
