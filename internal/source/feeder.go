package source

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// feederBuffers is the number of chunks a callback source can hold before
// dropping data.
const feederBuffers = 8

// feeder hands chunks of samples from a device callback to Read through a
// fixed pool of buffers. The callback never blocks: when every buffer is in
// use the chunk is dropped and counted as an overrun.
type feeder struct {
	channels int
	free     chan []int32
	filled   chan []int32
	closed   chan struct{}
	once     sync.Once
	overruns atomic.Uint64

	// owned by the reader
	current []int32 // chunk being consumed, returned to free when done
	pending []int32 // unread samples of current
}

func newFeeder(channels, chunkSamples int) *feeder {
	f := &feeder{
		channels: channels,
		free:     make(chan []int32, feederBuffers),
		filled:   make(chan []int32, feederBuffers),
		closed:   make(chan struct{}),
	}
	for range feederBuffers {
		f.free <- make([]int32, 0, chunkSamples)
	}
	return f
}

// acquire returns an empty buffer for the callback, or false when none is
// free.
func (f *feeder) acquire() ([]int32, bool) {
	select {
	case buf := <-f.free:
		return buf[:0], true
	default:
		f.overruns.Add(1)
		return nil, false
	}
}

// submit queues a filled buffer for the reader.
func (f *feeder) submit(buf []int32) {
	select {
	case f.filled <- buf:
	default:
		// Unreachable while the pool and queue have the same size.
		f.overruns.Add(1)
		f.free <- buf
	}
}

// Overruns returns the number of chunks dropped so far.
func (f *feeder) Overruns() uint64 {
	return f.overruns.Load()
}

// close wakes the reader. Chunks already queued are discarded.
func (f *feeder) close() {
	f.once.Do(func() { close(f.closed) })
}

// read fills b with whole frames, blocking until b is full.
func (f *feeder) read(ctx context.Context, b *audio.Block) error {
	want := b.Capacity(f.channels) * f.channels
	n := 0
	for n < want {
		if len(f.pending) == 0 {
			if f.current != nil {
				f.free <- f.current
				f.current = nil
			}
			select {
			case <-ctx.Done():
				b.Frames = 0
				return ctx.Err()
			case <-f.closed:
				b.Frames = 0
				return io.EOF
			case chunk := <-f.filled:
				f.current, f.pending = chunk, chunk
			}
		}
		c := copy(b.Int[n:want], f.pending)
		f.pending = f.pending[c:]
		n += c
	}
	b.Frames = want / f.channels
	return nil
}
