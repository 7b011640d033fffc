//go:build !linux

package source

import (
	"context"
	"fmt"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// PulseSource is only available on Linux.
type PulseSource struct{}

// OpenPulse reports that PulseAudio capture is Linux only.
func OpenPulse(Config) (*PulseSource, error) {
	return nil, fmt.Errorf("%w: pulse is only available on linux", ErrUnsupported)
}

// PulseDevices reports that PulseAudio capture is Linux only.
func PulseDevices() ([]Device, error) {
	return nil, fmt.Errorf("%w: pulse is only available on linux", ErrUnsupported)
}

// Format implements Source.
func (*PulseSource) Format() audio.Format { return audio.Format{} }

// Read implements Source.
func (*PulseSource) Read(context.Context, *audio.Block) error { return ErrUnsupported }

// Close implements Source.
func (*PulseSource) Close() error { return nil }
