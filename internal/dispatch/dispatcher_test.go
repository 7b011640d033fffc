package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"
)

// fakeRunner records commands and optionally blocks each one until released.
type fakeRunner struct {
	mu      sync.Mutex
	ran     []string
	started chan string
	release chan struct{}
	fail    map[string]bool
	lost    map[string]bool // started but could not be waited for
	codes   map[string]int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		started: make(chan string, 64),
		fail:    map[string]bool{},
		lost:    map[string]bool{},
		codes:   map[string]int{},
	}
}

func (r *fakeRunner) Run(command string) (int, error) {
	r.started <- command
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[command] {
		return -1, fmt.Errorf("%w: %s", ErrStart, command)
	}
	r.ran = append(r.ran, command)
	if r.lost[command] {
		return -1, errors.New("wait: no child processes")
	}
	return r.codes[command], nil
}

func (r *fakeRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ran)
}

type recorded struct {
	kind    string
	command string
	code    int
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recorded
}

func (f *fakeRecorder) CommandStarted(command string, on bool) {
	f.add(recorded{kind: "started", command: command})
}

func (f *fakeRecorder) CommandExited(command string, on bool, exitCode int, elapsed time.Duration) {
	f.add(recorded{kind: "exited", command: command, code: exitCode})
}

func (f *fakeRecorder) CommandFailed(command string, on bool, err error) {
	f.add(recorded{kind: "failed", command: command})
}

func (f *fakeRecorder) add(r recorded) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, r)
}

var cmds = Commands{On: "start-thing", Off: "stop-thing"}

func waitDone(t *testing.T, d *Dispatcher) {
	t.Helper()
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not finish")
	}
}

func TestDispatchRunsInOrder(t *testing.T) {
	runner := newFakeRunner()
	d := New(cmds, runner)

	d.Dispatch(true)
	d.Dispatch(false)
	d.Dispatch(true)
	d.Close()

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"start-thing", "stop-thing", "start-thing"}
	if got := runner.commands(); !slices.Equal(got, want) {
		t.Fatalf("ran %v, want %v", got, want)
	}
}

func TestDispatchDoesNotWaitForCommands(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	d := New(cmds, runner)

	go func() { _ = d.Run(context.Background()) }()

	d.Dispatch(true)
	<-runner.started

	// The on command is blocked; further events must queue immediately.
	returned := make(chan struct{})
	go func() {
		d.Dispatch(false)
		d.Dispatch(true)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a running command")
	}
	if got := d.Pending(); got != 2 {
		t.Fatalf("Pending = %d, want 2", got)
	}

	d.Close()
	close(runner.release)
	waitDone(t, d)

	want := []string{"start-thing", "stop-thing", "start-thing"}
	if got := runner.commands(); !slices.Equal(got, want) {
		t.Fatalf("ran %v, want %v", got, want)
	}
}

func TestSlowCommandKeepsOrder(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	d := New(cmds, runner)
	go func() { _ = d.Run(context.Background()) }()

	d.Dispatch(true)
	if got := <-runner.started; got != "start-thing" {
		t.Fatalf("first command = %q", got)
	}
	d.Dispatch(false)

	select {
	case got := <-runner.started:
		t.Fatalf("%q started while the previous command was running", got)
	case <-time.After(50 * time.Millisecond):
	}

	runner.release <- struct{}{}
	if got := <-runner.started; got != "stop-thing" {
		t.Fatalf("second command = %q", got)
	}
	d.Close()
	close(runner.release)
	waitDone(t, d)
}

func TestStartFailureStopsWorker(t *testing.T) {
	runner := newFakeRunner()
	runner.fail["start-thing"] = true
	rec := &fakeRecorder{}
	d := New(cmds, runner, WithRecorder(rec))

	d.Dispatch(true)
	d.Dispatch(false)

	err := d.Run(context.Background())
	if !errors.Is(err, ErrStart) {
		t.Fatalf("Run error = %v, want ErrStart", err)
	}
	if !errors.Is(d.Err(), ErrStart) {
		t.Fatalf("Err = %v, want ErrStart", d.Err())
	}
	if got := runner.commands(); len(got) != 0 {
		t.Fatalf("ran %v after start failure", got)
	}
	if d.Pending() != 0 {
		t.Fatal("queue must be discarded after start failure")
	}

	// Later events are dropped without blocking.
	d.Dispatch(false)
	if d.Pending() != 0 {
		t.Fatal("event accepted by failed dispatcher")
	}

	if len(rec.events) != 2 || rec.events[1].kind != "failed" {
		t.Fatalf("recorded %v, want started then failed", rec.events)
	}
}

func TestNonZeroExitIsNotFatal(t *testing.T) {
	runner := newFakeRunner()
	runner.codes["start-thing"] = 3
	rec := &fakeRecorder{}
	d := New(cmds, runner, WithRecorder(rec))

	d.Dispatch(true)
	d.Dispatch(false)
	d.Close()
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := runner.commands(); len(got) != 2 {
		t.Fatalf("ran %v, want both commands", got)
	}
	want := []recorded{
		{kind: "started", command: "start-thing"},
		{kind: "exited", command: "start-thing", code: 3},
		{kind: "started", command: "stop-thing"},
		{kind: "exited", command: "stop-thing"},
	}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("recorded %v, want %v", rec.events, want)
	}
}

func TestWaitFailureIsRecordedOnce(t *testing.T) {
	runner := newFakeRunner()
	runner.lost["start-thing"] = true
	rec := &fakeRecorder{}
	d := New(cmds, runner, WithRecorder(rec))

	d.Dispatch(true)
	d.Dispatch(false)
	d.Close()
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []recorded{
		{kind: "started", command: "start-thing"},
		{kind: "failed", command: "start-thing"},
		{kind: "started", command: "stop-thing"},
		{kind: "exited", command: "stop-thing"},
	}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("recorded %v, want %v", rec.events, want)
	}
}

func TestCloseDropsLaterEvents(t *testing.T) {
	runner := newFakeRunner()
	d := New(cmds, runner)
	d.Dispatch(true)
	d.Close()
	d.Dispatch(false)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := runner.commands(); !slices.Equal(got, []string{"start-thing"}) {
		t.Fatalf("ran %v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d := New(cmds, newFakeRunner())
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCancelWaitsForRunningCommand(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	d := New(cmds, runner)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = d.Run(ctx) }()

	d.Dispatch(true)
	d.Dispatch(false)
	<-runner.started
	cancel()

	select {
	case <-d.Done():
		t.Fatal("Run returned while a command was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	waitDone(t, d)
	if got := runner.commands(); !slices.Equal(got, []string{"start-thing"}) {
		t.Fatalf("ran %v, want only the running command", got)
	}
}
