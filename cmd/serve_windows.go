//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs is a no-op on Windows (no Setsid equivalent).
func setDaemonAttrs(_ *exec.Cmd) {}

func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// sigTERM is a hard kill on Windows; processes cannot be sent SIGTERM there,
// so 'judge serve stop' skips the graceful drain.
func sigTERM() syscall.Signal { return syscall.SIGKILL }

func sigKILL() syscall.Signal { return syscall.SIGKILL }
