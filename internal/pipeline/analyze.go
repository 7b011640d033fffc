package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
	"github.com/oszuidwest/zwfm-silentcmd/internal/source"
)

// ErrNotMono is returned when analysis is asked to read a multi-channel
// source.
var ErrNotMono = errors.New("input must be mono")

// Analysis is the result of analyzing a finite source.
type Analysis struct {
	Blocks    int
	Average   float64 // mean linear envelope value per block
	AverageDB float64
}

// Analyze reads a mono source to its end and writes the envelope level in dB
// after each block of window samples to out, one value per line with two
// decimals, clamped at -200 dB.
func Analyze(ctx context.Context, src source.Source, window int, attack, release time.Duration, out io.Writer) (Analysis, error) {
	f := src.Format()
	if f.Channels != 1 {
		return Analysis{}, fmt.Errorf("%w: got %d channels", ErrNotMono, f.Channels)
	}
	if window < 1 {
		return Analysis{}, fmt.Errorf("window must be positive, got %d", window)
	}

	mixer, err := audio.NewMixer([]int{1}, 1)
	if err != nil {
		return Analysis{}, err
	}
	env := audio.NewEnvelope(window, f.SampleRate, attack, release)
	block := audio.NewBlock(f, window)
	mono := make([]float64, 0, window)

	var (
		result Analysis
		sum    float64
	)
	for {
		err := src.Read(ctx, block)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, err
		}
		if block.Frames == 0 {
			continue
		}

		mono = mixer.MixBlock(block, f, mono)
		level := env.ProcessBlock(mono)
		sum += level
		result.Blocks++
		if _, err := fmt.Fprintf(out, "%.2f\n", displayDB(audio.ToDB(level))); err != nil {
			return result, err
		}
	}

	if result.Blocks > 0 {
		result.Average = sum / float64(result.Blocks)
	}
	result.AverageDB = audio.ToDB(result.Average)
	return result, nil
}
