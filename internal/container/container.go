// Package container wraps the container engine that runs the game server.
package container

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRuntimeUnavailable is returned when the container engine cannot be reached.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")

	// ErrNotConfigured is returned when no container name has been configured.
	ErrNotConfigured = errors.New("RESTART_CONTAINER not configured")

	// ErrContainerNotFound is returned when the named container does not exist.
	ErrContainerNotFound = errors.New("container not found")
)

// DefaultLogTail is the number of log lines returned when no tail is given.
const DefaultLogTail = 200

// State is a point-in-time view of a container.
type State struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"startedAt"`
}

// InterfaceStats holds cumulative byte counters for one network interface.
type InterfaceStats struct {
	RxBytes uint64 `json:"rx_bytes"`
	TxBytes uint64 `json:"tx_bytes"`
}

// NetworkStats holds cumulative counters for every interface of a container.
type NetworkStats struct {
	Interfaces map[string]InterfaceStats
}

// Totals sums received and transmitted bytes across all interfaces.
func (n NetworkStats) Totals() (rx, tx uint64) {
	for _, iface := range n.Interfaces {
		rx += iface.RxBytes
		tx += iface.TxBytes
	}
	return rx, tx
}

// Runtime is the subset of container engine operations the manager needs.
type Runtime interface {
	Inspect(ctx context.Context, name string) (State, error)
	Stats(ctx context.Context, name string) (NetworkStats, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Logs(ctx context.Context, name string, tail int) (string, error)
}
