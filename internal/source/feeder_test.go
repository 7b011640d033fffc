package source

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

func push(f *feeder, samples ...int32) bool {
	buf, ok := f.acquire()
	if !ok {
		return false
	}
	f.submit(append(buf, samples...))
	return true
}

func TestFeederAssemblesBlocks(t *testing.T) {
	f := newFeeder(2, 4)
	push(f, 1, 2, 3)
	push(f, 4, 5, 6, 7, 8, 9, 10)

	b := audio.NewBlock(audio.Format{Channels: 2, BitDepth: 16}, 3)
	if err := f.read(context.Background(), b); err != nil {
		t.Fatalf("read: %v", err)
	}
	if b.Frames != 3 {
		t.Fatalf("Frames = %d, want 3", b.Frames)
	}
	for i, want := range []int32{1, 2, 3, 4, 5, 6} {
		if b.Int[i] != want {
			t.Fatalf("Int = %v", b.Int)
		}
	}

	// The remainder of the second chunk starts the next block.
	push(f, 11, 12)
	if err := f.read(context.Background(), b); err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, want := range []int32{7, 8, 9, 10, 11, 12} {
		if b.Int[i] != want {
			t.Fatalf("Int = %v", b.Int)
		}
	}
}

func TestFeederCountsOverruns(t *testing.T) {
	f := newFeeder(1, 1)
	for range feederBuffers {
		if !push(f, 1) {
			t.Fatal("pool exhausted early")
		}
	}
	if push(f, 1) {
		t.Fatal("push succeeded with every buffer in use")
	}
	if f.Overruns() != 1 {
		t.Fatalf("Overruns = %d, want 1", f.Overruns())
	}

	// Consuming returns buffers to the pool.
	b := audio.NewBlock(audio.Format{Channels: 1}, feederBuffers)
	if err := f.read(context.Background(), b); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !push(f, 2) {
		t.Fatal("buffers were not recycled")
	}
}

func TestFeederReadStops(t *testing.T) {
	f := newFeeder(1, 1)
	b := audio.NewBlock(audio.Format{Channels: 1}, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.read(ctx, b); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("read = %v, want deadline exceeded", err)
	}

	f.close()
	if err := f.read(context.Background(), b); !errors.Is(err, io.EOF) {
		t.Fatalf("read after close = %v, want EOF", err)
	}
}
