// Package mods manages the mod directory: one subdirectory per installed
// package, each holding the extracted archive and a JSON record describing
// what was installed. The record files are the source of truth for what is
// installed; nothing else tracks it.
package mods

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LulfLoot/ThunderDockerman/internal/semver"
)

// RecordFile is the name of the record written into every mod directory.
const RecordFile = ".thunderdockerman.json"

var (
	// ErrNotInstalled is returned when uninstalling a mod that is not present.
	ErrNotInstalled = errors.New("mod not installed")
	// ErrInvalidName is returned for full names that are not safe directory names.
	ErrInvalidName = errors.New("invalid mod name")
)

// Record describes one installed mod.
type Record struct {
	FullName     string         `json:"fullName"`
	Version      semver.Version `json:"version"`
	Community    string         `json:"community,omitempty"`
	InstalledAt  time.Time      `json:"installedAt"`
	Files        []string       `json:"files"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

// Install stages, reported in InstallError.
const (
	StageDownload = "download"
	StageExtract  = "extract"
	StageRecord   = "record"
	StageActivate = "activate"
)

// InstallError reports which step of an install failed.
type InstallError struct {
	FullName string
	Version  semver.Version
	Stage    string
	Err      error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to install %s@%s (%s): %v", e.FullName, e.Version, e.Stage, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// ValidateName checks that fullName can be used as a directory name inside
// the mod directory.
func ValidateName(fullName string) error {
	switch {
	case fullName == "", fullName == ".", fullName == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, fullName)
	case strings.HasPrefix(fullName, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, fullName)
	case strings.ContainsAny(fullName, `/\`), strings.Contains(fullName, ".."):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, fullName)
	}
	return nil
}
