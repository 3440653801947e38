package container

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

// Docker implements Runtime against a Docker Engine.
type Docker struct {
	cli         *client.Client
	stopTimeout time.Duration
}

// NewDocker connects to the engine described by the DOCKER_* environment.
func NewDocker(stopTimeout time.Duration) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewDockerWithClient(cli, stopTimeout), nil
}

// NewDockerWithClient wraps an existing client.
func NewDockerWithClient(cli *client.Client, stopTimeout time.Duration) *Docker {
	return &Docker{cli: cli, stopTimeout: stopTimeout}
}

// Close releases the underlying client.
func (d *Docker) Close() error {
	return d.cli.Close()
}

// Inspect returns the container's current state.
func (d *Docker) Inspect(ctx context.Context, name string) (State, error) {
	resp, err := d.cli.ContainerInspect(ctx, name)
	if err != nil {
		return State{}, classify(err, "inspect", name)
	}
	if resp.ContainerJSONBase == nil || resp.State == nil {
		return State{Name: name}, nil
	}

	state := State{
		Name:    strings.TrimPrefix(resp.Name, "/"),
		Status:  string(resp.State.Status),
		Running: resp.State.Running,
	}
	if state.Name == "" {
		state.Name = name
	}
	if started, err := time.Parse(time.RFC3339Nano, resp.State.StartedAt); err == nil && started.Year() > 1 {
		state.StartedAt = started
	}
	return state, nil
}

// statsPayload is the part of the engine's stats document we read.
type statsPayload struct {
	Networks map[string]InterfaceStats `json:"networks"`
}

// Stats takes a single non-streaming stats sample.
func (d *Docker) Stats(ctx context.Context, name string) (NetworkStats, error) {
	resp, err := d.cli.ContainerStatsOneShot(ctx, name)
	if err != nil {
		return NetworkStats{}, classify(err, "read stats for", name)
	}
	defer resp.Body.Close()

	var payload statsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return NetworkStats{}, fmt.Errorf("failed to decode stats for %s: %w", name, err)
	}
	if payload.Networks == nil {
		payload.Networks = map[string]InterfaceStats{}
	}
	return NetworkStats{Interfaces: payload.Networks}, nil
}

// Start starts the container.
func (d *Docker) Start(ctx context.Context, name string) error {
	if err := d.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return classify(err, "start", name)
	}
	return nil
}

// Stop stops the container, waiting up to the configured stop timeout.
func (d *Docker) Stop(ctx context.Context, name string) error {
	if err := d.cli.ContainerStop(ctx, name, d.stopOptions()); err != nil {
		return classify(err, "stop", name)
	}
	return nil
}

// Restart restarts the container.
func (d *Docker) Restart(ctx context.Context, name string) error {
	if err := d.cli.ContainerRestart(ctx, name, d.stopOptions()); err != nil {
		return classify(err, "restart", name)
	}
	return nil
}

// Logs returns the last tail lines of combined stdout and stderr with
// timestamps. Blank lines are dropped.
func (d *Docker) Logs(ctx context.Context, name string, tail int) (string, error) {
	if tail <= 0 {
		tail = DefaultLogTail
	}

	// TTY containers write a raw stream without multiplexing headers.
	tty := false
	if resp, err := d.cli.ContainerInspect(ctx, name); err == nil && resp.Config != nil {
		tty = resp.Config.Tty
	}

	rc, err := d.cli.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return "", classify(err, "read logs for", name)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if tty {
		_, err = io.Copy(&buf, rc)
	} else {
		_, err = stdcopy.StdCopy(&buf, &buf, rc)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read logs for %s: %w", name, err)
	}

	return CleanLogs(buf.String()), nil
}

func (d *Docker) stopOptions() container.StopOptions {
	if d.stopTimeout <= 0 {
		return container.StopOptions{}
	}
	secs := int(d.stopTimeout.Seconds())
	return container.StopOptions{Timeout: &secs}
}

// CleanLogs drops blank lines and trailing whitespace from a log dump.
func CleanLogs(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, "\r ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func classify(err error, action, name string) error {
	switch {
	case client.IsErrConnectionFailed(err):
		return fmt.Errorf("failed to %s container %s: %w: %v", action, name, ErrRuntimeUnavailable, err)
	case errdefs.IsNotFound(err):
		return fmt.Errorf("failed to %s container %s: %w", action, name, ErrContainerNotFound)
	default:
		return fmt.Errorf("failed to %s container %s: %w", action, name, err)
	}
}
