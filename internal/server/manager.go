// Package server manages the lifecycle of the configured game server
// container.
package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LulfLoot/ThunderDockerman/internal/container"
	"github.com/LulfLoot/ThunderDockerman/internal/logging"
)

// Manager starts, stops and inspects one named container.
type Manager struct {
	runtime container.Runtime
	name    string
	timeout time.Duration
	logger  *log.Logger
}

// NewManager returns a manager for the named container. An empty name yields
// a manager whose operations all fail with container.ErrNotConfigured.
func NewManager(runtime container.Runtime, name string, timeout time.Duration, logger *log.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		runtime: runtime,
		name:    name,
		timeout: timeout,
		logger:  logger.WithPrefix("server"),
	}
}

// Name returns the managed container name.
func (m *Manager) Name() string {
	return m.name
}

// Configured reports whether a container name and runtime are set.
func (m *Manager) Configured() bool {
	return m.name != "" && m.runtime != nil
}

// Start starts the container.
func (m *Manager) Start(ctx context.Context) error {
	return m.do(ctx, "start")
}

// Stop stops the container.
func (m *Manager) Stop(ctx context.Context) error {
	return m.do(ctx, "stop")
}

// Restart restarts the container.
func (m *Manager) Restart(ctx context.Context) error {
	return m.do(ctx, "restart")
}

func (m *Manager) do(ctx context.Context, action string) error {
	if !m.Configured() {
		return container.ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var err error
	switch action {
	case "start":
		err = m.runtime.Start(ctx, m.name)
	case "stop":
		err = m.runtime.Stop(ctx, m.name)
	default:
		err = m.runtime.Restart(ctx, m.name)
	}
	if err != nil {
		m.logger.Error(action+" failed", "container", m.name, "err", err)
		return err
	}
	m.logger.Info(action+" succeeded", "container", m.name)
	return nil
}

// Status returns the container's current state.
func (m *Manager) Status(ctx context.Context) (container.State, error) {
	if !m.Configured() {
		return container.State{}, container.ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.runtime.Inspect(ctx, m.name)
}

// Logs returns the last tail lines of the container log. A non-positive tail
// means container.DefaultLogTail.
func (m *Manager) Logs(ctx context.Context, tail int) (string, error) {
	if !m.Configured() {
		return "", container.ErrNotConfigured
	}
	if tail <= 0 {
		tail = container.DefaultLogTail
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	logs, err := m.runtime.Logs(ctx, m.name, tail)
	if err != nil {
		return "", err
	}
	return container.CleanLogs(logs), nil
}
