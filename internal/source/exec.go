package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
	"github.com/oszuidwest/zwfm-silentcmd/internal/util"
)

// shutdownTimeout is how long a capture process gets to exit after the
// interrupt before it is killed.
const shutdownTimeout = 3 * time.Second

// captureProc is one run of the capture program.
type captureProc struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout *bufio.Reader
	stderr bytes.Buffer

	once   sync.Once
	status string // last stderr line, set by reap
}

// reap waits for the process. It must not run while stdout is being read.
func (p *captureProc) reap() string {
	p.once.Do(func() {
		p.cancel()
		if err := p.cmd.Wait(); err != nil {
			slog.Debug("capture process exited", "program", p.cmd.Path, "error", err)
		}
		p.status = util.StderrTail(p.cmd.Path, p.stderr.String())
	})
	return p.status
}

// ExecSource reads raw PCM from a capture process (arecord on Linux, FFmpeg
// elsewhere). When the process dies, Read reports ErrCaptureStopped and the
// next Read starts a new process.
type ExecSource struct {
	command string
	args    []string
	format  audio.Format

	mu      sync.Mutex
	proc    *captureProc
	reading bool // a Read is blocked on proc.stdout
	closed  bool

	buf []byte
}

// OpenExec builds the platform capture command and starts it.
func OpenExec(cfg Config) (*ExecSource, error) {
	f := audio.Format{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		BitDepth:   captureDepth(cfg.BitDepth),
	}

	command, args, err := platformTool.command(cfg, f)
	if err != nil {
		return nil, err
	}

	s := &ExecSource{
		command: command,
		args:    args,
		format:  f,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

// Format implements Source.
func (s *ExecSource) Format() audio.Format {
	return s.format
}

// start launches the capture process. s.mu must be held.
func (s *ExecSource) start() error {
	slog.Info("starting audio capture", "command", s.command, "args", s.args)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Cancel = func() error {
		return util.Interrupt(cmd.Process)
	}
	cmd.WaitDelay = shutdownTimeout

	p := &captureProc{cmd: cmd, cancel: cancel}
	cmd.Stderr = &p.stderr

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return util.WrapError("create capture pipe", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return util.WrapError("start audio capture", err)
	}

	p.stdout = bufio.NewReaderSize(stdoutPipe, 64*1024)
	s.proc = p
	return nil
}

// Read implements Source.
func (s *ExecSource) Read(ctx context.Context, b *audio.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return io.EOF
	}
	if s.proc == nil {
		if err := s.start(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	p := s.proc
	s.reading = true
	s.mu.Unlock()

	frames := b.Capacity(s.format.Channels)
	need := frames * s.format.Channels * bytesPerSample(s.format.BitDepth)
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]
	_, err := io.ReadFull(p.stdout, buf)

	s.mu.Lock()
	s.reading = false
	closed := s.closed
	if err != nil && s.proc == p {
		s.proc = nil
	}
	s.mu.Unlock()

	if closed {
		// Close left the process to this reader.
		p.reap()
		b.Frames = 0
		return io.EOF
	}
	if err != nil {
		b.Frames = 0
		msg := p.reap()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// A live capture never ends; report the exit, not end of stream.
			if msg == "" {
				msg = "process exited"
			}
			return fmt.Errorf("%w: %s", ErrCaptureStopped, msg)
		}
		if msg != "" {
			return fmt.Errorf("%w: %v: %s", ErrCaptureStopped, err, msg)
		}
		return fmt.Errorf("%w: %v", ErrCaptureStopped, err)
	}

	decodePCM(b.Int, buf, s.format.BitDepth)
	b.Frames = frames
	return nil
}

// Close implements Source. It interrupts the capture process. A blocked Read
// returns io.EOF once the process has exited and reaps it; otherwise Close
// reaps the process itself.
func (s *ExecSource) Close() error {
	s.mu.Lock()
	s.closed = true
	p, reading := s.proc, s.reading
	s.proc = nil
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	if reading {
		p.cancel()
		return nil
	}
	p.reap()
	return nil
}
