// Package dispatch runs the on/off commands for switch events.
//
// Events are queued without blocking the caller and executed one at a time,
// in arrival order, by a single worker. A command that hangs stalls every
// command queued after it: running commands are never cancelled or timed out.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStart reports that a command could not be started.
var ErrStart = errors.New("failed to start command")

// Commands holds the command lines run on each transition.
type Commands struct {
	On  string
	Off string
}

// For returns the command for a transition.
func (c Commands) For(on bool) string {
	if on {
		return c.On
	}
	return c.Off
}

// Runner executes a command line and waits for it to exit.
//
// Run returns an error wrapping ErrStart when the command could not be
// started. A command that started returns its exit code and a nil error,
// whatever that code is.
type Runner interface {
	Run(command string) (exitCode int, err error)
}

// Recorder receives command lifecycle notifications from the worker.
type Recorder interface {
	CommandStarted(command string, on bool)
	CommandExited(command string, on bool, exitCode int, elapsed time.Duration)
	CommandFailed(command string, on bool, err error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRecorder reports command lifecycle events to r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// Dispatcher queues switch events and executes their commands sequentially.
// Dispatch is safe to call from one producer while Run executes on another
// goroutine.
type Dispatcher struct {
	cmds     Commands
	runner   Runner
	recorder Recorder

	mu     sync.Mutex
	queue  []bool
	closed bool // no new events accepted; Run drains and returns
	dead   bool // worker failed; events are dropped
	err    error

	wake chan struct{}
	done chan struct{}
}

// New returns a Dispatcher executing cmds with runner.
func New(cmds Commands, runner Runner, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cmds:   cmds,
		runner: runner,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch queues a transition. It never waits for a command. Events are
// dropped after Close or after the worker has failed.
func (d *Dispatcher) Dispatch(on bool) {
	d.mu.Lock()
	if d.closed || d.dead {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, on)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting events. Events already queued are still executed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run executes queued events until Close has been called and the queue is
// empty, or ctx is cancelled. A running command is always waited for.
// Run returns an error wrapping ErrStart if a command could not be started;
// the dispatcher is unusable afterwards.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)

	for {
		on, ok := d.next(ctx)
		if !ok {
			return nil
		}
		if err := d.execute(on); err != nil {
			d.fail(err)
			return err
		}
	}
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Err returns the error that stopped the worker, if any.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Pending returns the number of queued events not yet started.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// next blocks until an event is available. It reports false when the
// dispatcher is closed and drained or ctx is done.
func (d *Dispatcher) next(ctx context.Context) (bool, bool) {
	for {
		if ctx.Err() != nil {
			return false, false
		}

		d.mu.Lock()
		if len(d.queue) > 0 {
			on := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()
			return on, true
		}
		closed := d.closed
		d.mu.Unlock()

		if closed {
			return false, false
		}

		select {
		case <-ctx.Done():
			return false, false
		case <-d.wake:
		}
	}
}

// execute runs the command for one event to completion.
func (d *Dispatcher) execute(on bool) error {
	command := d.cmds.For(on)
	state := stateName(on)

	slog.Info("running command", "state", state, "command", command)
	if d.recorder != nil {
		d.recorder.CommandStarted(command, on)
	}

	start := time.Now()
	code, err := d.runner.Run(command)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, ErrStart) {
			slog.Error("command could not be started, stopping dispatcher", "state", state, "command", command, "error", err)
			if d.recorder != nil {
				d.recorder.CommandFailed(command, on, err)
			}
			return err
		}
		slog.Warn("command failed", "state", state, "command", command, "error", err, "elapsed", elapsed)
		if d.recorder != nil {
			d.recorder.CommandFailed(command, on, err)
		}
		return nil
	}

	if code != 0 {
		slog.Warn("command exited with non-zero status", "state", state, "command", command, "exit_code", code, "elapsed", elapsed)
	} else {
		slog.Info("command finished", "state", state, "command", command, "elapsed", elapsed)
	}
	if d.recorder != nil {
		d.recorder.CommandExited(command, on, code, elapsed)
	}
	return nil
}

// fail marks the worker dead and discards queued events.
func (d *Dispatcher) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dead = true
	d.err = err
	d.queue = nil
}

func stateName(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
