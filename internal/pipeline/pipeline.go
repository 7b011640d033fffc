// Package pipeline runs the per-block loop from a frame source through the
// mixer, envelope detector and switch controller to the dispatcher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
	"github.com/oszuidwest/zwfm-silentcmd/internal/source"
	"github.com/oszuidwest/zwfm-silentcmd/internal/switcher"
	"github.com/oszuidwest/zwfm-silentcmd/internal/util"
)

// Read error backoff bounds.
const (
	readRetryInitial = 10 * time.Millisecond
	readRetryMax     = 5 * time.Second
)

// displayFloorDB is the lowest level written to verbose and analysis output.
const displayFloorDB = -200.0

// displayDB clamps a level for printing so silence does not print as
// -MaxFloat64.
func displayDB(db float64) float64 {
	return max(db, displayFloorDB)
}

// Dispatcher accepts switch transitions without blocking.
type Dispatcher interface {
	Dispatch(on bool)
}

// Recorder receives switch transitions for the event log.
type Recorder interface {
	SwitchChanged(on bool, levelDB, thresholdDB float64)
}

// Config holds the detection settings.
type Config struct {
	Channels    []int // 1-based channels averaged into the mono signal
	ThresholdDB float64
	Timeout     time.Duration
	Window      int // envelope window in samples
	Attack      time.Duration
	Release     time.Duration
	BufferSize  int // frames per block
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used by the switch controller.
func WithClock(c switcher.Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// WithRecorder reports switch transitions to r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithVerbose writes one "<level_db>\t<marker>" line per block to w, for
// example "-23.45\t20.0". Levels are clamped at -200 dB.
func WithVerbose(w io.Writer) Option {
	return func(p *Pipeline) {
		p.verbose = w
	}
}

// Stats summarizes a run.
type Stats struct {
	Blocks      int
	ReadErrors  int
	Transitions int
	levelSum    float64
}

// Average returns the mean linear envelope value over all blocks.
func (s Stats) Average() float64 {
	if s.Blocks == 0 {
		return 0
	}
	return s.levelSum / float64(s.Blocks)
}

// Pipeline owns the signal path state. It is not safe for concurrent use.
type Pipeline struct {
	format     audio.Format
	cfg        Config
	mixer      *audio.Mixer
	envelope   *audio.Envelope
	controller *switcher.Controller
	dispatcher Dispatcher
	recorder   Recorder
	clock      switcher.Clock
	verbose    io.Writer

	block *audio.Block
	mono  []float64
	stats Stats
}

// New builds a pipeline for frames of format f. It fails when the channel
// selection does not fit the format.
func New(f audio.Format, cfg Config, d Dispatcher, opts ...Option) (*Pipeline, error) {
	mixer, err := audio.NewMixer(cfg.Channels, f.Channels)
	if err != nil {
		return nil, err
	}
	if cfg.BufferSize < 1 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", cfg.BufferSize)
	}

	p := &Pipeline{
		format:     f,
		cfg:        cfg,
		mixer:      mixer,
		envelope:   audio.NewEnvelope(cfg.Window, f.SampleRate, cfg.Attack, cfg.Release),
		dispatcher: d,
		block:      audio.NewBlock(f, cfg.BufferSize),
		mono:       make([]float64, 0, cfg.BufferSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.controller = switcher.New(cfg.ThresholdDB, cfg.Timeout, p.clock)
	return p, nil
}

// Controller returns the switch controller.
func (p *Pipeline) Controller() *switcher.Controller {
	return p.controller
}

// Stats returns the statistics gathered so far.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// Process runs one block through the signal path and returns its level in
// dB.
func (p *Pipeline) Process(b *audio.Block) float64 {
	p.mono = p.mixer.MixBlock(b, p.format, p.mono)
	amplitude := p.envelope.ProcessBlock(p.mono)
	level := audio.ToDB(amplitude)

	p.stats.Blocks++
	p.stats.levelSum += amplitude

	if ev, ok := p.controller.Update(level); ok {
		on := bool(ev)
		p.stats.Transitions++
		slog.Info("switch state changed", "state", ev.String(), "level_db", level, "threshold_db", p.cfg.ThresholdDB)
		p.dispatcher.Dispatch(on)
		if p.recorder != nil {
			p.recorder.SwitchChanged(on, level, p.cfg.ThresholdDB)
		}
	}

	if p.verbose != nil {
		if _, err := fmt.Fprintf(p.verbose, "%.2f\t%.1f\n", displayDB(level), p.controller.Marker()); err != nil {
			slog.Debug("failed to write verbose output", "error", err)
		}
	}
	return level
}

// Run reads blocks from src until it ends or ctx is cancelled. Read errors
// skip the block and are paced with exponential backoff. End of stream and
// cancellation are not errors.
func (p *Pipeline) Run(ctx context.Context, src source.Source) (Stats, error) {
	if src.Format() != p.format {
		return p.stats, fmt.Errorf("source format %v does not match pipeline format %v", src.Format(), p.format)
	}

	backoff := util.NewBackoff(readRetryInitial, readRetryMax)
	for {
		err := src.Read(ctx, p.block)
		switch {
		case err == nil:
			backoff.Reset()
			if p.block.Frames > 0 {
				p.Process(p.block)
			}
			continue
		case errors.Is(err, io.EOF):
			p.logDone(src, "end of stream")
			return p.stats, nil
		case ctx.Err() != nil:
			p.logDone(src, "stopped")
			return p.stats, nil
		}

		p.stats.ReadErrors++
		slog.Warn("audio read failed, skipping block", "error", err, "read_errors", p.stats.ReadErrors)
		if backoff.Wait(ctx) != nil {
			p.logDone(src, "stopped")
			return p.stats, nil
		}
	}
}

func (p *Pipeline) logDone(src source.Source, reason string) {
	attrs := []any{
		"reason", reason,
		"blocks", p.stats.Blocks,
		"read_errors", p.stats.ReadErrors,
		"transitions", p.stats.Transitions,
		"average_db", audio.ToDB(p.stats.Average()),
	}
	if o, ok := src.(interface{ Overruns() uint64 }); ok {
		attrs = append(attrs, "overruns", o.Overruns())
	}
	slog.Info("pipeline finished", attrs...)
}
