// Package installer applies resolution plans to the mod store. Each
// package is installed on its own: a failure is recorded in the results
// and the remaining packages are still attempted.
package installer

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/LulfLoot/ThunderDockerman/internal/mods"
	"github.com/LulfLoot/ThunderDockerman/internal/resolver"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

// ModStore installs and removes single packages. *mods.Store implements it.
type ModStore interface {
	ListInstalled() ([]*mods.Record, error)
	Get(fullName string) (*mods.Record, error)
	Install(ctx context.Context, release thunderstore.Release) (*mods.Record, error)
	Uninstall(ctx context.Context, fullName string) error
}

// Result is the outcome for one package.
type Result struct {
	FullName string `json:"fullName"`
	Version  string `json:"version,omitempty"`
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
}

// Orchestrator drives a ModStore over plans.
type Orchestrator struct {
	store  ModStore
	index  thunderstore.Index
	logger *log.Logger
}

// New returns an Orchestrator. index is only used by InstallSingle.
func New(store ModStore, index thunderstore.Index, logger *log.Logger) *Orchestrator {
	return &Orchestrator{store: store, index: index, logger: logger}
}

// ApplyPlan installs every release in plan order and reports one result
// per release, in the same order. A failed release never stops the batch,
// including when later releases depend on it.
func (o *Orchestrator) ApplyPlan(ctx context.Context, plan resolver.Plan) []Result {
	return o.ApplyPlanWithProgress(ctx, plan, nil)
}

// ProgressFunc is called after each release of a plan has been attempted.
type ProgressFunc func(done, total int, result Result)

// ApplyPlanWithProgress is ApplyPlan with a callback after every release.
// progress may be nil.
func (o *Orchestrator) ApplyPlanWithProgress(ctx context.Context, plan resolver.Plan, progress ProgressFunc) []Result {
	results := make([]Result, 0, len(plan))
	for i, release := range plan {
		r := o.installOne(ctx, release)
		results = append(results, r)
		if progress != nil {
			progress(i+1, len(plan), r)
		}
	}

	if o.logger != nil {
		failed := 0
		for _, r := range results {
			if !r.Success {
				failed++
			}
		}
		o.logger.Info("plan applied", "packages", len(results), "failed", failed)
	}
	return results
}

// InstallSingle installs the newest version of one package without its
// dependencies. Lookup failures are returned as errors; install failures
// are reported in the single result like ApplyPlan does.
func (o *Orchestrator) InstallSingle(ctx context.Context, community, fullName string) ([]Result, error) {
	pkg, err := o.index.GetByFullName(ctx, community, fullName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", fullName, err)
	}
	return o.ApplyPlan(ctx, resolver.Plan{pkg.LatestRelease()}), nil
}

// Uninstall removes one package.
func (o *Orchestrator) Uninstall(ctx context.Context, fullName string) Result {
	if err := o.store.Uninstall(ctx, fullName); err != nil {
		return Result{FullName: fullName, Success: false, Message: err.Error()}
	}
	return Result{FullName: fullName, Success: true, Message: fmt.Sprintf("Uninstalled %s", fullName)}
}

// ListInstalled returns the mod store's records.
func (o *Orchestrator) ListInstalled() ([]*mods.Record, error) {
	return o.store.ListInstalled()
}

func (o *Orchestrator) installOne(ctx context.Context, release thunderstore.Release) Result {
	result := Result{FullName: release.FullName, Version: release.Version.String()}

	prev, _ := o.store.Get(release.FullName)
	rec, err := o.store.Install(ctx, release)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("install failed", "mod", release.FullName, "version", release.Version, "err", err)
		}
		result.Message = err.Error()
		return result
	}

	result.Success = true
	result.Message = fmt.Sprintf("Installed %s %s", rec.FullName, rec.Version)
	if prev != nil && prev.Version != rec.Version {
		result.Message = fmt.Sprintf("Updated %s from %s to %s", rec.FullName, prev.Version, rec.Version)
	}
	return result
}
