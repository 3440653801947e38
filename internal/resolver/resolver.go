// Package resolver turns a requested package into an ordered installation
// plan: every transitive dependency exactly once, dependencies first.
package resolver

import (
	"context"
	"fmt"

	"github.com/LulfLoot/ThunderDockerman/internal/semver"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

// Plan is an ordered list of releases to install. Every dependency precedes
// its dependents and each full name appears once.
type Plan []thunderstore.Release

// FullNames lists the plan's packages in order.
func (p Plan) FullNames() []string {
	out := make([]string, len(p))
	for i, r := range p {
		out[i] = r.FullName
	}
	return out
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrictVersions makes Resolve fail with a VersionConflictError when a
// package is required at a version other than the one already chosen.
// Without it the first resolution of a full name wins.
func WithStrictVersions() Option {
	return func(r *Resolver) { r.strict = true }
}

// Resolver computes plans against a package index.
type Resolver struct {
	index  thunderstore.Index
	strict bool
}

// New returns a Resolver reading from index.
func New(index thunderstore.Index, opts ...Option) *Resolver {
	r := &Resolver{index: index}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the plan for installing fullName from community at its
// newest version. No partial plan is returned on error.
//
// The community listing is read once per call, so every package of a plan
// comes from the same index snapshot.
func (r *Resolver) Resolve(ctx context.Context, community, fullName string) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	packages, err := r.index.ListPackages(ctx, community)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s package index: %w", community, err)
	}

	res := &resolution{
		r:         r,
		community: community,
		packages:  make(map[string]*thunderstore.Package, len(packages)),
		visiting:  make(map[string]bool),
		resolved:  make(map[string]thunderstore.Release),
	}
	for i := range packages {
		res.packages[packages[i].FullName] = &packages[i]
	}

	if err := res.visit(ctx, fullName, semver.Any(), ""); err != nil {
		return nil, err
	}
	return res.order, nil
}

// resolution holds the traversal state of one Resolve call.
//   - packages: the index snapshot, keyed by full name.
//   - visiting: packages on the current path, for cycle detection.
//   - resolved: packages whose subtree is complete, keyed by full name.
//   - order: post-order output, dependencies before dependents.
type resolution struct {
	r         *Resolver
	community string
	packages  map[string]*thunderstore.Package
	visiting  map[string]bool
	path      []string
	resolved  map[string]thunderstore.Release
	order     Plan
}

func (res *resolution) visit(ctx context.Context, fullName string, constraint semver.Constraint, requiredBy string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if existing, ok := res.resolved[fullName]; ok {
		if res.r.strict && !constraint.Allows(existing.Version) {
			return &VersionConflictError{
				FullName:   fullName,
				Resolved:   existing.Version,
				Constraint: constraint,
				RequiredBy: requiredBy,
			}
		}
		return nil
	}

	if res.visiting[fullName] {
		return &CyclicDependencyError{Path: res.cyclePath(fullName)}
	}

	release, err := res.choose(fullName, constraint, requiredBy)
	if err != nil {
		return err
	}

	res.visiting[fullName] = true
	res.path = append(res.path, fullName)
	defer func() {
		delete(res.visiting, fullName)
		res.path = res.path[:len(res.path)-1]
	}()

	for _, dep := range release.Dependencies {
		if err := res.visit(ctx, dep.FullName, dep.Constraint, fullName); err != nil {
			return err
		}
	}

	res.resolved[fullName] = release
	res.order = append(res.order, release)
	return nil
}

// choose picks the highest version of fullName allowed by constraint.
func (res *resolution) choose(fullName string, constraint semver.Constraint, requiredBy string) (thunderstore.Release, error) {
	pkg, ok := res.packages[fullName]
	if !ok {
		return thunderstore.Release{}, &NotFoundError{
			Community:  res.community,
			FullName:   fullName,
			RequiredBy: requiredBy,
		}
	}

	available := pkg.VersionNumbers()
	version, ok := semver.Highest(constraint, available)
	if !ok {
		return thunderstore.Release{}, &UnresolvableVersionError{
			FullName:   fullName,
			Constraint: constraint,
			RequiredBy: requiredBy,
			Available:  available,
		}
	}

	release, _ := pkg.Release(version)
	return release, nil
}

// cyclePath returns the current path from the first occurrence of
// fullName, closed with fullName again.
func (res *resolution) cyclePath(fullName string) []string {
	start := 0
	for i, name := range res.path {
		if name == fullName {
			start = i
			break
		}
	}
	cycle := append([]string{}, res.path[start:]...)
	return append(cycle, fullName)
}
