// Package thunderstore is the client for the Thunderstore package index.
// Remote listings are validated into typed packages at this boundary so the
// resolver and installer never handle raw JSON.
package thunderstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LulfLoot/ThunderDockerman/internal/semver"
)

var (
	// ErrPackageNotFound is returned when a full name is absent from a community.
	ErrPackageNotFound = errors.New("package not found")
	// ErrUnknownCommunity is returned for community ids that are not configured.
	ErrUnknownCommunity = errors.New("unknown community")
	// ErrInvalidDependency is returned for malformed dependency strings.
	ErrInvalidDependency = errors.New("invalid dependency string")
	// ErrInvalidSort is returned by Search for unknown sort keys.
	ErrInvalidSort = errors.New("invalid sort key")
)

// Index is the read side of a package index.
type Index interface {
	ListCommunities(ctx context.Context) ([]Community, error)
	ListPackages(ctx context.Context, community string) ([]Package, error)
	Search(ctx context.Context, community string, opts SearchOptions) ([]Package, error)
	GetByFullName(ctx context.Context, community, fullName string) (*Package, error)
}

// Community is a game title on Thunderstore.
type Community struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Package is one listing in a community, with every published version.
type Package struct {
	FullName    string           `json:"fullName"`
	Namespace   string           `json:"namespace"`
	Name        string           `json:"name"`
	Community   string           `json:"community"`
	PackageURL  string           `json:"packageUrl,omitempty"`
	Rating      int              `json:"rating"`
	Categories  []string         `json:"categories"`
	Deprecated  bool             `json:"deprecated"`
	DateCreated time.Time        `json:"dateCreated"`
	LastUpdated time.Time        `json:"lastUpdated"`
	Versions    []PackageVersion `json:"versions"` // newest first
}

// PackageVersion is a single published version of a package.
type PackageVersion struct {
	Number       semver.Version  `json:"version"`
	Description  string          `json:"description"`
	DownloadURL  string          `json:"downloadUrl"`
	Downloads    int             `json:"downloads"`
	FileSize     int64           `json:"fileSize"`
	DateCreated  time.Time       `json:"dateCreated"`
	Dependencies []DependencyRef `json:"dependencies"`
}

// DependencyRef names a required package and the versions that satisfy it.
type DependencyRef struct {
	FullName   string            `json:"fullName"`
	Constraint semver.Constraint `json:"constraint"`
}

// String renders the reference the way Thunderstore writes it
// (Namespace-Name-1.2.3), prefixed with ">=" for minimum constraints.
func (d DependencyRef) String() string {
	if d.Constraint.Op == semver.OpAtLeast {
		return d.FullName + "-" + d.Constraint.String()
	}
	return d.FullName + "-" + d.Constraint.Version.String()
}

// Release is a package pinned to one version: the unit that gets installed.
type Release struct {
	FullName     string          `json:"fullName"`
	Community    string          `json:"community"`
	Version      semver.Version  `json:"version"`
	DownloadURL  string          `json:"downloadUrl"`
	Dependencies []DependencyRef `json:"dependencies"`
}

func (r Release) String() string {
	return r.FullName + "@" + r.Version.String()
}

// Latest returns the newest version of the package.
func (p *Package) Latest() PackageVersion {
	if len(p.Versions) == 0 {
		return PackageVersion{}
	}
	return p.Versions[0]
}

// VersionNumbers lists every published version number, newest first.
func (p *Package) VersionNumbers() []semver.Version {
	out := make([]semver.Version, 0, len(p.Versions))
	for _, v := range p.Versions {
		out = append(out, v.Number)
	}
	return out
}

// Release pins the package to version v.
func (p *Package) Release(v semver.Version) (Release, bool) {
	for _, pv := range p.Versions {
		if pv.Number == v {
			return Release{
				FullName:     p.FullName,
				Community:    p.Community,
				Version:      pv.Number,
				DownloadURL:  pv.DownloadURL,
				Dependencies: pv.Dependencies,
			}, true
		}
	}
	return Release{}, false
}

// LatestRelease pins the package to its newest version.
func (p *Package) LatestRelease() Release {
	r, _ := p.Release(p.Latest().Number)
	return r
}

// TotalDownloads sums downloads across versions.
func (p *Package) TotalDownloads() int {
	total := 0
	for _, v := range p.Versions {
		total += v.Downloads
	}
	return total
}

// HasCategory reports whether the package is tagged with category,
// ignoring case.
func (p *Package) HasCategory(category string) bool {
	for _, c := range p.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// ParseDependency parses "Namespace-Name-1.2.3". Namespaces and names never
// contain hyphens, so the version is everything after the last one. With
// minimum set, the reference accepts that version or anything newer.
func ParseDependency(s string, minimum bool) (DependencyRef, error) {
	s = strings.TrimSpace(s)
	idx := strings.LastIndexByte(s, '-')
	if idx <= 0 || idx == len(s)-1 {
		return DependencyRef{}, fmt.Errorf("%w: %q", ErrInvalidDependency, s)
	}

	fullName := s[:idx]
	if !strings.Contains(fullName, "-") {
		return DependencyRef{}, fmt.Errorf("%w: %q has no namespace", ErrInvalidDependency, s)
	}

	v, err := semver.Parse(s[idx+1:])
	if err != nil {
		return DependencyRef{}, fmt.Errorf("%w: %q: %v", ErrInvalidDependency, s, err)
	}

	c := semver.Exact(v)
	if minimum {
		c = semver.AtLeast(v)
	}
	return DependencyRef{FullName: fullName, Constraint: c}, nil
}

var knownCommunities = map[string]string{
	"valheim":         "Valheim",
	"lethal-company":  "Lethal Company",
	"risk-of-rain-2":  "Risk of Rain 2",
	"content-warning": "Content Warning",
}

// communityName returns the display name for a community id.
func communityName(id string) string {
	if name, ok := knownCommunities[id]; ok {
		return name
	}
	words := strings.Split(id, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
