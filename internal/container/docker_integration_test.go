//go:build integration

package container

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startFixture(t *testing.T) (*Docker, string) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:      "alpine:3.20",
		Cmd:        []string{"sh", "-c", "echo fixture-ready; echo second-line; sleep 600"},
		WaitingFor: wait.ForLog("fixture-ready").WithStartupTimeout(time.Minute),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("skipping: cannot start container: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate fixture: %v", err)
		}
	})

	d, err := NewDocker(2 * time.Second)
	if err != nil {
		t.Fatalf("NewDocker() failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	return d, c.GetContainerID()
}

func TestDocker_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	d, id := startFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	state, err := d.Inspect(ctx, id)
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}
	if !state.Running || state.Status != "running" {
		t.Fatalf("Inspect() = %+v, want running", state)
	}
	if state.StartedAt.IsZero() {
		t.Error("StartedAt should be set for a running container")
	}

	if _, err := d.Stats(ctx, id); err != nil {
		t.Errorf("Stats() failed: %v", err)
	}

	logs, err := d.Logs(ctx, id, 0)
	if err != nil {
		t.Fatalf("Logs() failed: %v", err)
	}
	lines := strings.Split(logs, "\n")
	if len(lines) != 2 {
		t.Fatalf("Logs() returned %d lines, want 2: %q", len(lines), logs)
	}
	if !strings.HasSuffix(lines[0], "fixture-ready") {
		t.Errorf("first log line = %q", lines[0])
	}

	if err := d.Stop(ctx, id); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	state, err = d.Inspect(ctx, id)
	if err != nil {
		t.Fatalf("Inspect() after stop failed: %v", err)
	}
	if state.Running {
		t.Error("container still running after Stop()")
	}

	if err := d.Start(ctx, id); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := d.Restart(ctx, id); err != nil {
		t.Fatalf("Restart() failed: %v", err)
	}
	state, err = d.Inspect(ctx, id)
	if err != nil || !state.Running {
		t.Errorf("Inspect() after restart = %+v, %v; want running", state, err)
	}
}

func TestDocker_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	d, _ := startFixture(t)
	_, err := d.Inspect(context.Background(), "thunderdockerman-does-not-exist")
	if err == nil || !strings.Contains(err.Error(), ErrContainerNotFound.Error()) {
		t.Errorf("Inspect(missing) error = %v, want container not found", err)
	}
}
