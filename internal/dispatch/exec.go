package dispatch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/google/shlex"

	"github.com/oszuidwest/zwfm-silentcmd/internal/util"
)

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	// Shell runs the command line through the platform shell. Otherwise the
	// line is split into words with POSIX shell quoting rules (no expansion,
	// pipes or redirection) and the first word is executed directly, so a
	// missing program is reported as a start failure.
	Shell bool
	// Stdout receives the command's standard output. Nil discards it.
	Stdout io.Writer
}

// Run implements Runner.
func (r ExecRunner) Run(command string) (int, error) {
	name, args, err := r.split(command)
	if err != nil {
		return -1, err
	}

	cmd := exec.Command(name, args...)
	cmd.Stdout = r.Stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("%w %q: %w", ErrStart, command, err)
	}

	err = cmd.Wait()
	if msg := util.StderrTail(name, stderr.String()); msg != "" {
		slog.Warn("command stderr", "command", command, "output", msg)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, util.WrapError("wait for command", err)
	}
	return 0, nil
}

// split returns the program and arguments for command.
func (r ExecRunner) split(command string) (string, []string, error) {
	if r.Shell {
		name, args := util.ShellCommand(command)
		return name, args, nil
	}
	words, err := shlex.Split(command)
	if err != nil {
		return "", nil, fmt.Errorf("%w: parse %q: %w", ErrStart, command, err)
	}
	if len(words) == 0 {
		return "", nil, fmt.Errorf("%w: empty command", ErrStart)
	}
	return words[0], words[1:], nil
}
