package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// FLACSource decodes FLAC files.
type FLACSource struct {
	stream *flac.Stream
	format audio.Format

	frame *frame.Frame // frame being consumed
	pos   int          // next sample index within frame
}

// OpenFLAC opens a FLAC file and parses its stream info.
func OpenFLAC(path string) (*FLACSource, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFile, err)
	}

	format := audio.Format{
		SampleRate: int(stream.Info.SampleRate),
		Channels:   int(stream.Info.NChannels),
		BitDepth:   int(stream.Info.BitsPerSample),
	}
	if format.BitDepth < 4 || format.BitDepth > 32 || format.Channels < 1 {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: FLAC with %d channels of %d bits", ErrUnsupportedFile, format.Channels, format.BitDepth)
	}

	return &FLACSource{stream: stream, format: format}, nil
}

// Format implements Source. BitDepth is the stream's bits per sample.
func (s *FLACSource) Format() audio.Format {
	return s.format
}

// Read implements Source. The final block may be partial.
func (s *FLACSource) Read(ctx context.Context, b *audio.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	channels := s.format.Channels
	want := b.Capacity(channels)
	n := 0
	for n < want {
		if s.frame == nil || s.pos >= int(s.frame.BlockSize) {
			f, err := s.stream.ParseNext()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				b.Frames = n
				return fmt.Errorf("decode FLAC frame: %w", err)
			}
			s.frame, s.pos = f, 0
		}

		count := min(want-n, int(s.frame.BlockSize)-s.pos)
		for i := range count {
			for ch := range channels {
				b.Int[(n+i)*channels+ch] = s.frame.Subframes[ch].Samples[s.pos+i]
			}
		}
		s.pos += count
		n += count
	}

	b.Frames = n
	if n == 0 {
		return io.EOF
	}
	return nil
}

// Close implements Source.
func (s *FLACSource) Close() error {
	return s.stream.Close()
}
