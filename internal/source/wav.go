package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// WAV format tags.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// WAVSource reads 16, 24 or 32-bit integer or 32-bit float WAV files.
type WAVSource struct {
	file   *os.File
	dec    *wav.Decoder
	format audio.Format
	buf    *goaudio.IntBuffer
}

// OpenWAV opens a WAV file and reads its header.
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is not a WAV file", ErrUnsupportedFile, path)
	}
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read WAV header: %w", err)
	}

	format := audio.Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	switch {
	case dec.WavAudioFormat == wavFormatFloat && dec.BitDepth == 32:
		format.Float = true
	case dec.WavAudioFormat == wavFormatPCM && (dec.BitDepth == 16 || dec.BitDepth == 24 || dec.BitDepth == 32):
	default:
		_ = f.Close()
		return nil, fmt.Errorf("%w: WAV format %d with %d bits", ErrUnsupportedFile, dec.WavAudioFormat, dec.BitDepth)
	}
	if format.Channels < 1 || format.SampleRate < 1 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFile, format.Channels, format.SampleRate)
	}

	return &WAVSource{
		file:   f,
		dec:    dec,
		format: format,
		buf: &goaudio.IntBuffer{
			Format:         dec.Format(),
			SourceBitDepth: int(dec.BitDepth),
		},
	}, nil
}

// Format implements Source.
func (s *WAVSource) Format() audio.Format {
	return s.format
}

// Read implements Source. The final block may be partial.
func (s *WAVSource) Read(ctx context.Context, b *audio.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	want := b.Capacity(s.format.Channels) * s.format.Channels
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		b.Frames = 0
		return fmt.Errorf("decode WAV: %w", err)
	}
	frames := n / s.format.Channels
	if frames == 0 {
		b.Frames = 0
		return io.EOF
	}

	samples := s.buf.Data[:frames*s.format.Channels]
	if s.format.Float {
		for i, v := range samples {
			b.Float[i] = math.Float32frombits(uint32(int32(v)))
		}
	} else {
		for i, v := range samples {
			b.Int[i] = int32(v)
		}
	}
	b.Frames = frames
	return nil
}

// Close implements Source.
func (s *WAVSource) Close() error {
	return s.file.Close()
}
