package audio

import (
	"errors"
	"testing"
)

func TestNewMixerValidation(t *testing.T) {
	tests := []struct {
		name     string
		selected []int
		channels int
		want     error
	}{
		{"empty selection", nil, 2, ErrNoChannels},
		{"zero channel", []int{0}, 2, ErrChannelOutOfRange},
		{"beyond input", []int{1, 3}, 2, ErrChannelOutOfRange},
		{"duplicate", []int{2, 2}, 2, ErrDuplicateChannel},
		{"valid", []int{1, 2}, 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMixer(tt.selected, tt.channels)
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewMixer(%v, %d) error = %v, want %v", tt.selected, tt.channels, err, tt.want)
			}
		})
	}
}

func TestMixFloatConstantChannels(t *testing.T) {
	for _, v := range []float32{0, 0.5, -0.75, 0.125, 1} {
		for n := 1; n <= 4; n++ {
			sel := make([]int, n)
			frame := make([]float32, n)
			for i := range n {
				sel[i] = i + 1
				frame[i] = v
			}
			m, err := NewMixer(sel, n)
			if err != nil {
				t.Fatal(err)
			}
			if got := m.MixFloat(frame); got != float64(v) {
				t.Errorf("MixFloat(%d x %v) = %v, want %v", n, v, got, v)
			}
		}
	}
}

func TestMixIntNoOverflow(t *testing.T) {
	m, err := NewMixer([]int{1, 2, 3}, 3)
	if err != nil {
		t.Fatal(err)
	}
	const peak = int32(1<<31 - 1)
	frame := []int32{peak, peak, peak}
	got := m.MixInt(frame, BitDepth32)
	want := float64(peak) / FullScale(BitDepth32)
	if got != want {
		t.Fatalf("MixInt(full scale) = %v, want %v", got, want)
	}
}

func TestMixIntSelectsChannels(t *testing.T) {
	m, err := NewMixer([]int{2}, 4)
	if err != nil {
		t.Fatal(err)
	}
	frame := []int32{32767, -16384, 100, 200}
	if got, want := m.MixInt(frame, BitDepth16), -0.5; got != want {
		t.Fatalf("MixInt = %v, want %v (unity gain)", got, want)
	}

	m, err = NewMixer([]int{1, 3}, 4)
	if err != nil {
		t.Fatal(err)
	}
	frame = []int32{8192, 0, -8192, 32767}
	if got := m.MixInt(frame, BitDepth16); got != 0 {
		t.Fatalf("MixInt = %v, want 0", got)
	}
}

func TestMixBlockZeros(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 2, BitDepth: BitDepth16}
	b := NewBlock(f, 8)
	b.Frames = 8
	m, err := NewMixer([]int{1, 2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]float64, 0, 8)
	out := m.MixBlock(b, f, dst)
	if len(out) != 8 {
		t.Fatalf("len = %d, want 8", len(out))
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0", i, v)
		}
	}
}

func TestMixBlockPartial(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 2, Float: true}
	b := NewBlock(f, 4)
	copy(b.Float, []float32{0.5, 0.25, -0.5, -0.25, 9, 9, 9, 9})
	b.Frames = 2
	m, err := NewMixer([]int{1, 2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	out := m.MixBlock(b, f, nil)
	want := []float64{0.375, -0.375}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, out[i], want[i])
		}
	}
}
