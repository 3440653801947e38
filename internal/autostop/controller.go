// Package autostop stops the game server container after a sustained period
// of network inactivity.
//
// A Controller samples the container's cumulative rx/tx counters once per
// interval. A sample whose combined delta is below IdleThresholdBytes counts
// as idle; once the idle streak reaches the configured timeout the container
// is stopped. Any activity, configuration change or stopped container resets
// the streak.
package autostop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LulfLoot/ThunderDockerman/internal/container"
	"github.com/LulfLoot/ThunderDockerman/internal/logging"
)

const (
	// SampleInterval is how often the controller samples network counters.
	SampleInterval = time.Minute

	// IdleThresholdBytes is the per-interval traffic below which the server
	// counts as idle.
	IdleThresholdBytes = 5000

	// DefaultTimeoutMinutes is the idle time before the server is stopped.
	DefaultTimeoutMinutes = 15
)

// ErrInvalidTimeout is returned for a non-positive timeout.
var ErrInvalidTimeout = errors.New("auto-stop timeout must be a positive number of minutes")

// Runtime is the part of the container runtime the controller uses.
type Runtime interface {
	Inspect(ctx context.Context, name string) (container.State, error)
	Stats(ctx context.Context, name string) (container.NetworkStats, error)
	Stop(ctx context.Context, name string) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config is the user-facing auto-stop configuration.
type Config struct {
	Enabled        bool    `json:"enabled"`
	TimeoutMinutes float64 `json:"timeoutMinutes"`
}

// DefaultConfig returns auto-stop disabled with a 15 minute timeout.
func DefaultConfig() Config {
	return Config{Enabled: false, TimeoutMinutes: DefaultTimeoutMinutes}
}

// Update is a partial configuration change. Nil fields are left as they are.
type Update struct {
	Enabled        *bool    `json:"enabled"`
	TimeoutMinutes *float64 `json:"timeoutMinutes"`
}

// Status reports the configuration and the current idle streak.
type Status struct {
	Enabled        bool    `json:"enabled"`
	TimeoutMinutes float64 `json:"timeoutMinutes"`
	IdleMinutes    float64 `json:"idleMinutes"`
}

// Outcome describes what a single sample decided.
type Outcome string

const (
	OutcomeSkipped      Outcome = "skipped"
	OutcomeNotRunning   Outcome = "not-running"
	OutcomeInconclusive Outcome = "inconclusive"
	OutcomeIdle         Outcome = "idle"
	OutcomeActive       Outcome = "active"
	OutcomeStopped      Outcome = "stopped"
)

// Options configures a Controller.
type Options struct {
	Runtime       Runtime
	ContainerName string
	Config        Config
	Logger        *log.Logger
	Clock         Clock

	// Interval overrides SampleInterval for Run.
	Interval time.Duration

	// RequestTimeout bounds each runtime call. Zero means 30s.
	RequestTimeout time.Duration
}

// Controller owns the auto-stop configuration and idle state.
type Controller struct {
	runtime        Runtime
	name           string
	logger         *log.Logger
	clock          Clock
	interval       time.Duration
	requestTimeout time.Duration

	mu         sync.Mutex
	cfg        Config
	generation uint64
	prevRx     uint64
	prevTx     uint64
	idleSince  time.Time
}

// New creates a controller.
func New(opts Options) (*Controller, error) {
	if opts.Runtime == nil {
		return nil, errors.New("auto-stop controller requires a container runtime")
	}
	if opts.Config.TimeoutMinutes <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeout, opts.Config.TimeoutMinutes)
	}

	c := &Controller{
		runtime:        opts.Runtime,
		name:           opts.ContainerName,
		logger:         opts.Logger,
		clock:          opts.Clock,
		interval:       opts.Interval,
		requestTimeout: opts.RequestTimeout,
		cfg:            opts.Config,
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	c.logger = c.logger.WithPrefix("auto-stop")
	if c.clock == nil {
		c.clock = realClock{}
	}
	if c.interval <= 0 {
		c.interval = SampleInterval
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = 30 * time.Second
	}
	return c, nil
}

// Config returns the current configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Status returns the configuration and how long the server has been idle.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{Enabled: c.cfg.Enabled, TimeoutMinutes: c.cfg.TimeoutMinutes}
	if !c.idleSince.IsZero() {
		status.IdleMinutes = c.clock.Now().Sub(c.idleSince).Minutes()
	}
	return status
}

// SetConfig applies the fields present in u and always clears the idle streak.
func (c *Controller) SetConfig(u Update) (Config, error) {
	if u.TimeoutMinutes != nil && *u.TimeoutMinutes <= 0 {
		return c.Config(), fmt.Errorf("%w: %v", ErrInvalidTimeout, *u.TimeoutMinutes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if u.Enabled != nil {
		c.cfg.Enabled = *u.Enabled
	}
	if u.TimeoutMinutes != nil {
		c.cfg.TimeoutMinutes = *u.TimeoutMinutes
	}
	c.idleSince = time.Time{}
	c.generation++

	c.logger.Info("settings updated", "enabled", c.cfg.Enabled, "timeout_minutes", c.cfg.TimeoutMinutes)
	return c.cfg, nil
}

// SampleAndMaybeStop takes one sample and stops the container if it has been
// idle for the configured timeout. Runtime calls are made without holding the
// lock; if the configuration changes meanwhile, the sample is discarded.
func (c *Controller) SampleAndMaybeStop(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	cfg, gen := c.cfg, c.generation
	c.mu.Unlock()

	if !cfg.Enabled || c.name == "" {
		return OutcomeSkipped, nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	state, err := c.runtime.Inspect(rctx, c.name)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to inspect %s: %w", c.name, err)
	}
	if !state.Running {
		c.mu.Lock()
		if gen == c.generation {
			c.idleSince = time.Time{}
		}
		c.mu.Unlock()
		return OutcomeNotRunning, nil
	}

	stats, err := c.runtime.Stats(rctx, c.name)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to sample network stats for %s: %w", c.name, err)
	}
	rx, tx := stats.Totals()
	now := c.clock.Now()

	c.mu.Lock()
	delta := (int64(rx) - int64(c.prevRx)) + (int64(tx) - int64(c.prevTx))
	c.prevRx, c.prevTx = rx, tx

	if gen != c.generation {
		c.mu.Unlock()
		return OutcomeSkipped, nil
	}
	if delta < 0 {
		// Counters went backwards, usually a container restart.
		c.mu.Unlock()
		c.logger.Debug("counters reset, skipping sample", "rx", rx, "tx", tx)
		return OutcomeInconclusive, nil
	}
	if delta >= IdleThresholdBytes {
		wasIdle := !c.idleSince.IsZero()
		c.idleSince = time.Time{}
		c.mu.Unlock()
		if wasIdle {
			c.logger.Info("activity detected, idle timer reset", "delta_bytes", delta)
		}
		return OutcomeActive, nil
	}

	if c.idleSince.IsZero() {
		c.idleSince = now
	}
	idleMinutes := now.Sub(c.idleSince).Minutes()
	c.mu.Unlock()

	c.logger.Info("server idle", "minutes", fmt.Sprintf("%.1f", idleMinutes), "timeout", cfg.TimeoutMinutes, "delta_bytes", delta)
	if idleMinutes < cfg.TimeoutMinutes {
		return OutcomeIdle, nil
	}

	c.mu.Lock()
	stale := gen != c.generation
	c.mu.Unlock()
	if stale {
		return OutcomeSkipped, nil
	}

	c.logger.Warn("idle timeout reached, stopping server", "container", c.name)
	if err := c.runtime.Stop(rctx, c.name); err != nil {
		// Keep the streak so the next sample retries.
		return OutcomeIdle, fmt.Errorf("failed to stop %s: %w", c.name, err)
	}

	c.mu.Lock()
	if gen == c.generation {
		c.idleSince = time.Time{}
	}
	c.mu.Unlock()

	c.logger.Info("server stopped", "container", c.name)
	return OutcomeStopped, nil
}

// Run samples once per interval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Debug("controller started", "interval", c.interval, "container", c.name)
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("controller stopped")
			return
		case <-ticker.C:
			outcome, err := c.SampleAndMaybeStop(ctx)
			if err != nil {
				c.logger.Error("sample failed", "err", err)
				continue
			}
			c.logger.Debug("sample", "outcome", outcome)
		}
	}
}
