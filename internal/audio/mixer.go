package audio

import (
	"errors"
	"fmt"
)

// Sentinel errors for channel selection.
var (
	ErrNoChannels        = errors.New("no channels selected")
	ErrChannelOutOfRange = errors.New("channel out of range")
	ErrDuplicateChannel  = errors.New("duplicate channel")
)

// Mixer downmixes frames to mono by averaging a fixed set of channels.
type Mixer struct {
	offsets  []int // zero-based channel offsets within a frame
	channels int   // channels per frame
}

// NewMixer returns a Mixer averaging the given 1-based channel numbers of
// frames with channelCount channels.
func NewMixer(selected []int, channelCount int) (*Mixer, error) {
	if len(selected) == 0 {
		return nil, ErrNoChannels
	}

	seen := make(map[int]bool, len(selected))
	offsets := make([]int, 0, len(selected))
	for _, ch := range selected {
		if ch < 1 || ch > channelCount {
			return nil, fmt.Errorf("%w: channel %d, input has %d", ErrChannelOutOfRange, ch, channelCount)
		}
		if seen[ch] {
			return nil, fmt.Errorf("%w: channel %d", ErrDuplicateChannel, ch)
		}
		seen[ch] = true
		offsets = append(offsets, ch-1)
	}

	return &Mixer{offsets: offsets, channels: channelCount}, nil
}

// Channels returns the number of channels per frame the mixer expects.
func (m *Mixer) Channels() int {
	return m.channels
}

// MixInt returns the normalized mean of the selected channels of an integer
// frame. The sum is accumulated in 64 bits.
func (m *Mixer) MixInt(frame []int32, bitDepth int) float64 {
	var sum int64
	for _, off := range m.offsets {
		sum += int64(frame[off])
	}
	return float64(sum) / float64(len(m.offsets)) / FullScale(bitDepth)
}

// MixFloat returns the mean of the selected channels of a float frame.
func (m *Mixer) MixFloat(frame []float32) float64 {
	var sum float64
	for _, off := range m.offsets {
		sum += float64(frame[off])
	}
	return sum / float64(len(m.offsets))
}

// MixBlock downmixes every frame of b into dst, reusing its capacity, and
// returns the mono samples.
func (m *Mixer) MixBlock(b *Block, f Format, dst []float64) []float64 {
	dst = dst[:0]
	n := m.channels
	if f.Float {
		for i := range b.Frames {
			dst = append(dst, m.MixFloat(b.Float[i*n:(i+1)*n]))
		}
		return dst
	}
	for i := range b.Frames {
		dst = append(dst, m.MixInt(b.Int[i*n:(i+1)*n], f.BitDepth))
	}
	return dst
}
