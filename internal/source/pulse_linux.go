//go:build linux

package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jfreymuth/pulse"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
	"github.com/oszuidwest/zwfm-silentcmd/internal/util"
)

// pulseLatency is the requested record latency in seconds.
const pulseLatency = 0.05

// PulseSource captures from a PulseAudio (or PipeWire-pulse) record stream.
type PulseSource struct {
	client *pulse.Client
	stream *pulse.RecordStream
	format audio.Format
	feed   *feeder
}

// OpenPulse connects to the PulseAudio server and starts recording. Only mono
// and stereo streams are supported. cfg.Device is a source name as listed by
// PulseDevices; empty records from the default source.
func OpenPulse(cfg Config) (*PulseSource, error) {
	var layout pulse.RecordOption
	switch cfg.Channels {
	case 1:
		layout = pulse.RecordMono
	case 2:
		layout = pulse.RecordStereo
	default:
		return nil, fmt.Errorf("%w: pulse records 1 or 2 channels, not %d", ErrUnsupported, cfg.Channels)
	}

	client, err := pulse.NewClient()
	if err != nil {
		return nil, util.WrapError("connect to pulse server", err)
	}

	f := audio.Format{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		BitDepth:   captureDepth(cfg.BitDepth),
	}
	s := &PulseSource{
		client: client,
		format: f,
		feed:   newFeeder(f.Channels, max(cfg.BufferSize, 1)*f.Channels),
	}

	opts := []pulse.RecordOption{
		layout,
		pulse.RecordSampleRate(f.SampleRate),
		pulse.RecordLatency(pulseLatency),
	}
	if cfg.Device != "" {
		src, err := client.SourceByID(cfg.Device)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: %q: %w", ErrNoAudioDevice, cfg.Device, err)
		}
		opts = append(opts, pulse.RecordSource(src))
	}

	var writer pulse.Writer
	if f.BitDepth == audio.BitDepth16 {
		writer = pulse.Int16Writer(func(samples []int16) (int, error) {
			if buf, ok := s.feed.acquire(); ok {
				for _, v := range samples {
					buf = append(buf, int32(v))
				}
				s.feed.submit(buf)
			}
			return len(samples), nil
		})
	} else {
		writer = pulse.Int32Writer(func(samples []int32) (int, error) {
			if buf, ok := s.feed.acquire(); ok {
				s.feed.submit(append(buf, samples...))
			}
			return len(samples), nil
		})
	}

	stream, err := client.NewRecord(writer, opts...)
	if err != nil {
		client.Close()
		return nil, util.WrapError("create pulse record stream", err)
	}
	s.stream = stream
	stream.Start()

	slog.Info("started pulse capture", "format", f.String(), "device", cfg.Device)
	return s, nil
}

// Format implements Source.
func (s *PulseSource) Format() audio.Format {
	return s.format
}

// Read implements Source.
func (s *PulseSource) Read(ctx context.Context, b *audio.Block) error {
	return s.feed.read(ctx, b)
}

// Overruns returns the number of chunks dropped because the pipeline fell
// behind.
func (s *PulseSource) Overruns() uint64 {
	return s.feed.Overruns()
}

// Close implements Source.
func (s *PulseSource) Close() error {
	s.feed.close()
	s.stream.Stop()
	s.stream.Close()
	s.client.Close()
	return nil
}

// PulseDevices lists PulseAudio sources.
func PulseDevices() ([]Device, error) {
	client, err := pulse.NewClient()
	if err != nil {
		return nil, util.WrapError("connect to pulse server", err)
	}
	defer client.Close()

	sources, err := client.ListSources()
	if err != nil {
		return nil, util.WrapError("list pulse sources", err)
	}
	devices := make([]Device, 0, len(sources))
	for _, src := range sources {
		devices = append(devices, Device{ID: src.ID(), Name: src.Name()})
	}
	return devices, nil
}
