// Package daemon tracks a background judge server through a PID file.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrAlreadyRunning is returned by Acquire when another live process owns the file.
var ErrAlreadyRunning = errors.New("already running")

// PIDFile manages a PID file for daemon process tracking.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write writes the current process's PID to the file.
func (p *PIDFile) Write() error {
	return p.WritePID(os.Getpid())
}

// WritePID writes the given PID to the file, creating its directory.
func (p *PIDFile) WritePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}

// Acquire claims the file for the current process. A file naming a dead
// process is overwritten; one naming this process (written by the parent
// that spawned it) is accepted.
func (p *PIDFile) Acquire() error {
	if pid, running := p.IsRunning(); running && pid != os.Getpid() {
		return fmt.Errorf("pid %d: %w", pid, ErrAlreadyRunning)
	}
	return p.Write()
}

// Release removes the file if it still names the current process.
func (p *PIDFile) Release() error {
	pid, err := p.Read()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return p.Remove()
}

// WaitExit polls until the recorded process is gone. It returns false if the
// process is still alive when timeout elapses or ctx is done.
func (p *PIDFile) WaitExit(ctx context.Context, timeout, interval time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		if _, running := p.IsRunning(); !running {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}
