package audio

import (
	"math"
	"time"
)

// Envelope is a windowed RMS detector with attack/release smoothing.
// It is not safe for concurrent use; the pipeline goroutine owns it.
type Envelope struct {
	window  []float64 // circular buffer of squared samples
	next    int       // write position
	count   int       // valid entries
	sum     float64   // running sum of squares
	pushes  int       // pushes since the sum was last recomputed
	attack  float64
	release float64
	held    float64
}

// NewEnvelope returns an Envelope with a window of size samples. Attack and
// release are time constants converted to smoothing coefficients at the given
// sample rate.
func NewEnvelope(size, sampleRate int, attack, release time.Duration) *Envelope {
	return &Envelope{
		window:  make([]float64, max(size, 1)),
		attack:  Coefficient(sampleRate, attack),
		release: Coefficient(sampleRate, release),
	}
}

// Coefficient returns exp(-1 / (sampleRate * tc)), or 0 for a non-positive
// time constant or sample rate.
func Coefficient(sampleRate int, tc time.Duration) float64 {
	if sampleRate <= 0 || tc <= 0 {
		return 0
	}
	return math.Exp(-1 / (float64(sampleRate) * tc.Seconds()))
}

// Process folds one mono sample into the envelope and returns the new value.
// NaN and infinite samples count as silence.
func (e *Envelope) Process(sample float64) float64 {
	if math.IsNaN(sample) || math.IsInf(sample, 0) {
		sample = 0
	}
	sq := sample * sample

	if e.count == len(e.window) {
		e.sum -= e.window[e.next]
	} else {
		e.count++
	}
	e.window[e.next] = sq
	e.sum += sq
	e.next = (e.next + 1) % len(e.window)

	// Recompute once per window length so subtraction error cannot accumulate.
	e.pushes++
	if e.pushes >= len(e.window) {
		e.pushes = 0
		e.sum = 0
		for i := range e.count {
			e.sum += e.window[i]
		}
	}

	rms := e.RMS()
	coeff := e.release
	if rms > e.held {
		coeff = e.attack
	}
	e.held = coeff*e.held + (1-coeff)*rms
	return e.held
}

// ProcessBlock folds all samples in order and returns the envelope after the
// last one. An empty block leaves the envelope unchanged.
func (e *Envelope) ProcessBlock(samples []float64) float64 {
	for _, s := range samples {
		e.Process(s)
	}
	return e.held
}

// RMS returns the unsmoothed RMS of the samples currently in the window.
func (e *Envelope) RMS() float64 {
	if e.count == 0 || e.sum <= 0 {
		return 0
	}
	return math.Sqrt(e.sum / float64(e.count))
}

// Value returns the current smoothed envelope.
func (e *Envelope) Value() float64 {
	return e.held
}

// Size returns the window capacity in samples.
func (e *Envelope) Size() int {
	return len(e.window)
}

// Reset empties the window and zeroes the envelope.
func (e *Envelope) Reset() {
	clear(e.window)
	e.next = 0
	e.count = 0
	e.sum = 0
	e.pushes = 0
	e.held = 0
}
