package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LulfLoot/ThunderDockerman/internal/semver"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

var (
	// ErrCyclicDependency is the sentinel wrapped by CyclicDependencyError.
	ErrCyclicDependency = errors.New("cyclic dependency")
	// ErrUnresolvableVersion is the sentinel wrapped by UnresolvableVersionError.
	ErrUnresolvableVersion = errors.New("unresolvable version")
	// ErrVersionConflict is the sentinel wrapped by VersionConflictError.
	ErrVersionConflict = errors.New("version conflict")
)

// NotFoundError is returned when a package is absent from the community
// index. RequiredBy is empty for the requested package itself.
// It wraps thunderstore.ErrPackageNotFound for errors.Is() compatibility.
type NotFoundError struct {
	Community  string
	FullName   string
	RequiredBy string
}

func (e *NotFoundError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("package %s (required by %s) not found in %s", e.FullName, e.RequiredBy, e.Community)
	}
	return fmt.Sprintf("package %s not found in %s", e.FullName, e.Community)
}

func (e *NotFoundError) Unwrap() error { return thunderstore.ErrPackageNotFound }

// CyclicDependencyError is returned when traversal reaches a package that
// is still being expanded. Path runs from the first package on the cycle
// back to itself.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Path, " -> "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// UnresolvableVersionError is returned when no published version of a
// dependency satisfies the reference's constraint.
type UnresolvableVersionError struct {
	FullName   string
	Constraint semver.Constraint
	RequiredBy string
	Available  []semver.Version
}

func (e *UnresolvableVersionError) Error() string {
	versions := make([]semver.Version, len(e.Available))
	copy(versions, e.Available)
	semver.SortDescending(versions)

	available := make([]string, len(versions))
	for i, v := range versions {
		available[i] = v.String()
	}
	return fmt.Sprintf("no version of %s satisfies %s (required by %s; available: %s)",
		e.FullName, e.Constraint, e.RequiredBy, strings.Join(available, ", "))
}

func (e *UnresolvableVersionError) Unwrap() error { return ErrUnresolvableVersion }

// VersionConflictError is returned in strict mode when a package already
// resolved at one version is required again with a constraint that version
// does not satisfy.
type VersionConflictError struct {
	FullName   string
	Resolved   semver.Version
	Constraint semver.Constraint
	RequiredBy string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s resolved at %s but %s requires %s",
		e.FullName, e.Resolved, e.RequiredBy, e.Constraint)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }
