// Package source delivers blocks of audio frames to the pipeline from capture
// devices and files.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// Sentinel errors for opening sources.
var (
	ErrUnknownBackend  = errors.New("unknown source backend")
	ErrUnsupported     = errors.New("backend not supported on this platform")
	ErrNoAudioDevice   = errors.New("no audio input device found")
	ErrUnsupportedFile = errors.New("unsupported audio file")
	ErrCaptureStopped  = errors.New("audio capture stopped")
)

// Backend names a source implementation.
type Backend string

// Available backends.
const (
	BackendExec  Backend = "exec"
	BackendMalgo Backend = "malgo"
	BackendPulse Backend = "pulse"
	BackendWAV   Backend = "wav"
	BackendFLAC  Backend = "flac"
)

// Backends lists every backend name.
var Backends = []Backend{BackendExec, BackendMalgo, BackendPulse, BackendWAV, BackendFLAC}

// IsFile reports whether the backend reads from a file.
func (b Backend) IsFile() bool {
	return b == BackendWAV || b == BackendFLAC
}

// Source produces interleaved audio frames.
type Source interface {
	// Format describes the frames returned by Read.
	Format() audio.Format
	// Read fills b with up to its capacity of frames and sets b.Frames.
	// It returns io.EOF once a finite source is exhausted.
	Read(ctx context.Context, b *audio.Block) error
	// Close releases the source. A blocked Read returns after Close.
	Close() error
}

// Config selects and parameterizes a source.
type Config struct {
	Backend    Backend
	Device     string // capture device; empty selects the platform default
	Path       string // input file for file backends
	SampleRate int
	Channels   int
	BitDepth   int
	BufferSize int    // frames per block, used to size capture buffers
	FFmpegPath string // ffmpeg binary for exec capture on macOS and Windows
}

// Device represents an available audio input device.
type Device struct {
	// ID is the device identifier passed back as Config.Device.
	ID string `json:"id"`
	// Name is the device display name.
	Name string `json:"name"`
}

// Open returns the source selected by cfg.
func Open(cfg Config) (Source, error) {
	src, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", cfg.Backend, err)
	}
	return src, nil
}

func open(cfg Config) (Source, error) {
	switch cfg.Backend {
	case BackendExec:
		s, err := OpenExec(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMalgo:
		s, err := OpenMalgo(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPulse:
		s, err := OpenPulse(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendWAV:
		s, err := OpenWAV(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendFLAC:
		s, err := OpenFLAC(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Devices returns the capture devices available to a live backend.
func Devices(backend Backend) ([]Device, error) {
	switch backend {
	case BackendExec:
		return ExecDevices(), nil
	case BackendMalgo:
		return MalgoDevices()
	case BackendPulse:
		return PulseDevices()
	case BackendWAV, BackendFLAC:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// captureDepth returns the integer depth a live backend captures for the
// requested depth. 24-bit samples are captured in 32-bit containers.
func captureDepth(bits int) int {
	if bits == audio.BitDepth16 {
		return audio.BitDepth16
	}
	return audio.BitDepth32
}
