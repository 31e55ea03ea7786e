//go:build !windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs puts the background server in its own session so it
// outlives the shell that ran 'judge serve start'.
func setDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// shutdownSignals cancel the command context; serve drains HTTP and the worker.
func shutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// sigTERM asks a background server to shut down gracefully.
func sigTERM() syscall.Signal { return syscall.SIGTERM }

// sigKILL is the fallback once the stop timeout passes.
func sigKILL() syscall.Signal { return syscall.SIGKILL }
