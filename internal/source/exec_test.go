//go:build linux

package source

import (
	"context"
	"errors"
	"io"
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

func TestExecSourceRestartsAfterExit(t *testing.T) {
	// Each process writes exactly one block of silence and exits.
	s := &ExecSource{
		command: "head",
		args:    []string{"-c", "16", "/dev/zero"},
		format:  audio.Format{SampleRate: 8000, Channels: 2, BitDepth: 16},
	}
	defer s.Close()
	b := audio.NewBlock(s.format, 4)

	for round := range 2 {
		if err := s.Read(context.Background(), b); err != nil {
			t.Fatalf("round %d: Read: %v", round, err)
		}
		if b.Frames != 4 {
			t.Fatalf("round %d: Frames = %d", round, b.Frames)
		}
		err := s.Read(context.Background(), b)
		if !errors.Is(err, ErrCaptureStopped) || errors.Is(err, io.EOF) {
			t.Fatalf("round %d: Read after exit = %v, want ErrCaptureStopped", round, err)
		}
	}
}

func TestExecSourceClose(t *testing.T) {
	s := &ExecSource{
		command: "cat",
		args:    []string{"/dev/zero"},
		format:  audio.Format{SampleRate: 8000, Channels: 1, BitDepth: 32},
	}
	b := audio.NewBlock(s.format, 64)
	if err := s.Read(context.Background(), b); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Read(context.Background(), b); !errors.Is(err, io.EOF) {
		t.Fatalf("Read after Close = %v, want EOF", err)
	}
}

func TestExecSourceCloseUnblocksRead(t *testing.T) {
	// sleep writes nothing, so Read stays blocked on the pipe until the
	// interrupt from Close ends the process.
	s := &ExecSource{
		command: "sleep",
		args:    []string{"30"},
		format:  audio.Format{SampleRate: 8000, Channels: 1, BitDepth: 16},
	}
	b := audio.NewBlock(s.format, 16)

	errc := make(chan error, 1)
	go func() {
		errc <- s.Read(context.Background(), b)
	}()

	// Wait until the process is running and the read is in flight.
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.mu.Lock()
		reading := s.reading
		s.mu.Unlock()
		if reading {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Read never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("Read = %v, want EOF", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Read still blocked after Close")
	}
}

func TestArecordArgs(t *testing.T) {
	args := strings.Join(arecordArgs("hw:1", audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16}), " ")
	want := "-D hw:1 -f S16_LE -r 44100 -c 2 -t raw -q -"
	if args != want {
		t.Fatalf("args = %q, want %q", args, want)
	}
}

func TestParseArecordList(t *testing.T) {
	output := `**** List of CAPTURE Hardware Devices ****
card 0: PCH [HDA Intel PCH], device 0: ALC3246 Analog [ALC3246 Analog]
  Subdevices: 1/1
card 2: sndrpihifiberry [snd_rpi_hifiberry_dacplusadc], device 0: HiFiBerry
`
	devices := platformTool.list.parse(output)
	want := []Device{
		{ID: "default:CARD=PCH", Name: "HDA Intel PCH"},
		{ID: "default:CARD=sndrpihifiberry", Name: "snd_rpi_hifiberry_dacplusadc"},
	}
	if !slices.Equal(devices, want) {
		t.Fatalf("devices = %v, want %v", devices, want)
	}
}

func TestResolveMissingProgram(t *testing.T) {
	tool := captureTool{program: "silentcmd-no-such-recorder"}
	if _, err := tool.resolve(""); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("resolve = %v, want ErrUnsupported", err)
	}
}

func TestDeviceListSection(t *testing.T) {
	l := deviceList{
		begin:   "audio devices:",
		end:     "video devices:",
		pattern: regexp.MustCompile(`\[(\d+)\] (.+)`),
		device: func(m []string) (Device, bool) {
			return Device{ID: m[1], Name: m[2]}, true
		},
	}
	output := "[9] Before\naudio devices:\n[0] Built-in Mic\n[1] USB Interface\nvideo devices:\n[2] Camera\n"
	want := []Device{{ID: "0", Name: "Built-in Mic"}, {ID: "1", Name: "USB Interface"}}
	if got := l.parse(output); !slices.Equal(got, want) {
		t.Fatalf("parse = %v, want %v", got, want)
	}
}
