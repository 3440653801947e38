// Package semver parses and compares the major.minor.patch version triples
// used by Thunderstore packages, and the exact/minimum constraints that
// dependency references carry.
package semver

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when a version string is not a X.Y.Z triple.
var ErrInvalidVersion = errors.New("invalid version")

// ErrInvalidConstraint is returned when a constraint string cannot be parsed.
var ErrInvalidConstraint = errors.New("invalid version constraint")

var versionRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)$`)

// Version is a parsed semantic version triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Parse parses "1.2.3" (an optional leading "v" is accepted).
func Parse(s string) (Version, error) {
	m := versionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	var v Version
	var err error
	if v.Major, err = strconv.Atoi(m[1]); err != nil {
		return Version{}, fmt.Errorf("%w: major in %q: %v", ErrInvalidVersion, s, err)
	}
	if v.Minor, err = strconv.Atoi(m[2]); err != nil {
		return Version{}, fmt.Errorf("%w: minor in %q: %v", ErrInvalidVersion, s, err)
	}
	if v.Patch, err = strconv.Atoi(m[3]); err != nil {
		return Version{}, fmt.Errorf("%w: patch in %q: %v", ErrInvalidVersion, s, err)
	}
	return v, nil
}

// MustParse is Parse for literals known to be valid. It panics otherwise.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1 if v < other, 0 if equal, 1 if v > other.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return cmpInt(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmpInt(v.Minor, other.Minor)
	default:
		return cmpInt(v.Patch, other.Patch)
	}
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler so versions serialize as
// plain strings in JSON records.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Op is a constraint operator.
type Op string

const (
	// OpExact matches only the given version.
	OpExact Op = "="
	// OpAtLeast matches the given version or anything newer.
	OpAtLeast Op = ">="
)

// Constraint restricts which versions of a package are acceptable.
type Constraint struct {
	Op      Op
	Version Version
}

// Exact returns a constraint matching exactly v.
func Exact(v Version) Constraint {
	return Constraint{Op: OpExact, Version: v}
}

// AtLeast returns a constraint matching v or newer.
func AtLeast(v Version) Constraint {
	return Constraint{Op: OpAtLeast, Version: v}
}

// Any matches every version.
func Any() Constraint {
	return AtLeast(Version{})
}

// ParseConstraint parses "1.2.3", "=1.2.3" or ">=1.2.3".
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	op := OpExact
	switch {
	case strings.HasPrefix(s, string(OpAtLeast)):
		op = OpAtLeast
		s = strings.TrimPrefix(s, string(OpAtLeast))
	case strings.HasPrefix(s, string(OpExact)):
		s = strings.TrimPrefix(s, string(OpExact))
	}

	v, err := Parse(s)
	if err != nil {
		return Constraint{}, fmt.Errorf("%w: %v", ErrInvalidConstraint, err)
	}
	return Constraint{Op: op, Version: v}, nil
}

// Allows reports whether v satisfies the constraint.
func (c Constraint) Allows(v Version) bool {
	if c.Op == OpAtLeast {
		return v.Compare(c.Version) >= 0
	}
	return v.Compare(c.Version) == 0
}

// String renders the constraint; exact constraints render as the bare version.
func (c Constraint) String() string {
	if c.Op == OpAtLeast {
		return string(OpAtLeast) + c.Version.String()
	}
	return c.Version.String()
}

// MarshalText implements encoding.TextMarshaler.
func (c Constraint) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Constraint) UnmarshalText(text []byte) error {
	parsed, err := ParseConstraint(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Highest returns the highest version in candidates that satisfies c.
func Highest(c Constraint, candidates []Version) (Version, bool) {
	var best Version
	found := false
	for _, v := range candidates {
		if !c.Allows(v) {
			continue
		}
		if !found || best.Less(v) {
			best = v
			found = true
		}
	}
	return best, found
}

// SortDescending sorts versions newest first.
func SortDescending(versions []Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[j].Less(versions[i])
	})
}
