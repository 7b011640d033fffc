// Package audio provides the signal path of the switch: channel mixing,
// envelope detection and level conversion.
package audio

import "fmt"

// Supported integer bit depths.
const (
	BitDepth16 = 16
	BitDepth24 = 24
	BitDepth32 = 32
)

// Format describes the sample layout delivered by a source.
type Format struct {
	// SampleRate is the number of frames per second.
	SampleRate int
	// Channels is the number of interleaved channels per frame.
	Channels int
	// BitDepth is the significant bits of integer samples (16, 24 or 32).
	// It is ignored when Float is set.
	BitDepth int
	// Float reports whether samples are float32 values in [-1, 1].
	Float bool
}

// String implements fmt.Stringer.
func (f Format) String() string {
	if f.Float {
		return fmt.Sprintf("%d Hz, %d ch, float32", f.SampleRate, f.Channels)
	}
	return fmt.Sprintf("%d Hz, %d ch, %d bit", f.SampleRate, f.Channels, f.BitDepth)
}

// FullScale returns the magnitude that maps an integer sample of the given
// bit depth to 1.0.
func FullScale(bitDepth int) float64 {
	return float64(int64(1) << (bitDepth - 1))
}

// Block holds consecutive interleaved frames. Integer sources fill Int,
// float sources fill Float; only the first Frames*Channels values are valid.
type Block struct {
	Int    []int32
	Float  []float32
	Frames int
}

// NewBlock allocates a block that can hold frames frames of the given format.
func NewBlock(f Format, frames int) *Block {
	b := &Block{}
	if f.Float {
		b.Float = make([]float32, frames*f.Channels)
	} else {
		b.Int = make([]int32, frames*f.Channels)
	}
	return b
}

// Capacity returns the number of frames the block can hold.
func (b *Block) Capacity(channels int) int {
	if channels <= 0 {
		return 0
	}
	if b.Float != nil {
		return len(b.Float) / channels
	}
	return len(b.Int) / channels
}
