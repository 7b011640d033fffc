//go:build windows

package util

import (
	"errors"
	"os"
)

// ShutdownSignals returns the signals that stop the daemon.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// Interrupt stops a child process. Windows cannot deliver SIGINT to a
// child, so the process is killed. A process that has already exited is not
// an error.
func Interrupt(p *os.Process) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
