//go:build !cgo

package source

import (
	"context"
	"fmt"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// MalgoSource is unavailable in builds without cgo.
type MalgoSource struct{}

// OpenMalgo reports that miniaudio capture needs cgo.
func OpenMalgo(Config) (*MalgoSource, error) {
	return nil, fmt.Errorf("%w: malgo requires cgo", ErrUnsupported)
}

// MalgoDevices reports that miniaudio capture needs cgo.
func MalgoDevices() ([]Device, error) {
	return nil, fmt.Errorf("%w: malgo requires cgo", ErrUnsupported)
}

// Format implements Source.
func (*MalgoSource) Format() audio.Format { return audio.Format{} }

// Read implements Source.
func (*MalgoSource) Read(context.Context, *audio.Block) error { return ErrUnsupported }

// Close implements Source.
func (*MalgoSource) Close() error { return nil }
