//go:build !windows

package util

import (
	"errors"
	"os"
	"syscall"
)

// ShutdownSignals returns the signals that stop the daemon.
func ShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// Interrupt asks a child process to stop with SIGINT. A process that has
// already exited is not an error.
func Interrupt(p *os.Process) error {
	if err := p.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
