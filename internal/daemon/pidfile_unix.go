//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"syscall"
)

// IsRunning reports the recorded PID and whether that process is alive.
// EPERM means the process exists but belongs to another user, which still
// counts as running.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil || pid <= 0 {
		return pid, false
	}
	err = syscall.Kill(pid, 0)
	return pid, err == nil || errors.Is(err, syscall.EPERM)
}

// Signal sends sig to the recorded process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	if pid <= 0 {
		return fmt.Errorf("invalid PID %d", pid)
	}
	return syscall.Kill(pid, sig)
}
