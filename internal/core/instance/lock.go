// Package instance manages the server lock file that prevents duplicate
// holdpoint server processes and lets CLI clients discover the running
// server's port.
package instance

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const lockFileName = "holdpoint.lock"

// ErrNotRunning is returned when no live server instance is recorded.
var ErrNotRunning = errors.New("no running holdpoint server")

// Info describes the running server instance.
type Info struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held instance lock. Release removes the lock file.
type Lock struct {
	path string
}

// Acquire writes the instance lock file, refusing when another live server
// holds it. A lock left behind by a dead process is replaced.
func Acquire(dataDir string, info Info) (*Lock, error) {
	path := filepath.Join(dataDir, lockFileName)

	if existing, err := readFile(path); err == nil && processAlive(existing.PID) {
		return nil, fmt.Errorf("another holdpoint server is running (pid %d, port %d)", existing.PID, existing.Port)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal lock info: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// Read returns the recorded instance if its process is still alive.
// Returns ErrNotRunning when the file is absent or the process is gone.
func Read(dataDir string) (Info, error) {
	info, err := readFile(filepath.Join(dataDir, lockFileName))
	if err != nil {
		return Info{}, ErrNotRunning
	}
	if !processAlive(info.PID) {
		return Info{}, ErrNotRunning
	}
	return info, nil
}

func readFile(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("parse lock file: %w", err)
	}
	return info, nil
}

// processAlive probes the pid with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
