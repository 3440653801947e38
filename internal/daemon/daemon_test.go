package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestIsRunning_NoPIDFile(t *testing.T) {
	running, err := IsRunning(filepath.Join(t.TempDir(), "serve.pid"))
	if err != nil {
		t.Errorf("IsRunning() error = %v, want nil", err)
	}
	if running {
		t.Error("IsRunning() = true, want false for missing PID file")
	}
}

func TestIsRunning_CurrentProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "serve.pid")
	if err := WritePID(pidFile, os.Getpid()); err != nil {
		t.Fatalf("WritePID() failed: %v", err)
	}

	running, err := IsRunning(pidFile)
	if err != nil {
		t.Errorf("IsRunning() error = %v, want nil", err)
	}
	if !running {
		t.Error("IsRunning() = false, want true for current process")
	}
}

func TestIsRunning_StaleAndInvalid(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantRemoved bool
	}{
		{"dead process", "999999\n", true},
		{"invalid pid", "not-a-number\n", false},
		{"zero pid", "0\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pidFile := filepath.Join(t.TempDir(), "serve.pid")
			if err := os.WriteFile(pidFile, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write PID file: %v", err)
			}

			running, err := IsRunning(pidFile)
			if err != nil {
				t.Errorf("IsRunning() error = %v, want nil", err)
			}
			if running {
				t.Error("IsRunning() = true, want false")
			}

			_, statErr := os.Stat(pidFile)
			if removed := os.IsNotExist(statErr); removed != tt.wantRemoved {
				t.Errorf("PID file removed = %v, want %v", removed, tt.wantRemoved)
			}
		})
	}
}

func TestReadWritePID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "serve.pid")
	if err := WritePID(pidFile, 4242); err != nil {
		t.Fatalf("WritePID() failed: %v", err)
	}

	pid, err := ReadPID(pidFile)
	if err != nil {
		t.Fatalf("ReadPID() failed: %v", err)
	}
	if pid != 4242 {
		t.Errorf("ReadPID() = %d, want 4242", pid)
	}
}

func TestRemovePID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "serve.pid")
	if err := WritePID(pidFile, 100); err != nil {
		t.Fatalf("WritePID() failed: %v", err)
	}

	// A different daemon's PID file is kept
	if err := RemovePID(pidFile, 200); err != nil {
		t.Fatalf("RemovePID() failed: %v", err)
	}
	if _, err := os.Stat(pidFile); err != nil {
		t.Errorf("PID file for another process was removed: %v", err)
	}

	if err := RemovePID(pidFile, 100); err != nil {
		t.Fatalf("RemovePID() failed: %v", err)
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("PID file was not removed")
	}

	if err := RemovePID(pidFile, 100); err != nil {
		t.Errorf("RemovePID() on missing file = %v, want nil", err)
	}
}

func TestStop_NotRunning(t *testing.T) {
	err := Stop(filepath.Join(t.TempDir(), "serve.pid"), time.Second)
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestStop_InvalidPID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "serve.pid")
	if err := os.WriteFile(pidFile, []byte("garbage"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	if err := Stop(pidFile, time.Second); err == nil {
		t.Error("Stop() should fail for an invalid PID file")
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "serve.pid")
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	_, err := Start(pidFile, filepath.Join(dir, "serve.log"), "serve")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Start() error = %v, want ErrAlreadyRunning", err)
	}
}
