//go:build cgo

package source

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
	"github.com/oszuidwest/zwfm-silentcmd/internal/util"
)

// MalgoSource captures from a miniaudio device.
type MalgoSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	format audio.Format
	feed   *feeder
}

// OpenMalgo opens and starts a miniaudio capture device. cfg.Device is a
// hex device ID as listed by MalgoDevices; empty selects the default device.
func OpenMalgo(cfg Config) (*MalgoSource, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, util.WrapError("initialize miniaudio", err)
	}

	f := audio.Format{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		BitDepth:   captureDepth(cfg.BitDepth),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS32
	if f.BitDepth == audio.BitDepth16 {
		deviceConfig.Capture.Format = malgo.FormatS16
	}
	deviceConfig.Capture.Channels = uint32(f.Channels)
	deviceConfig.SampleRate = uint32(f.SampleRate)

	if cfg.Device != "" {
		idBytes, err := hex.DecodeString(cfg.Device)
		if err != nil {
			freeContext(mctx)
			return nil, fmt.Errorf("invalid device ID: %w", err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
	}

	s := &MalgoSource{
		ctx:    mctx,
		format: f,
		feed:   newFeeder(f.Channels, max(cfg.BufferSize, 1)*f.Channels),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			buf, ok := s.feed.acquire()
			if !ok {
				return
			}
			n := len(data) / bytesPerSample(f.BitDepth)
			if cap(buf) < n {
				buf = make([]int32, n)
			}
			buf = buf[:n]
			decodePCM(buf, data, f.BitDepth)
			s.feed.submit(buf)
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		freeContext(mctx)
		return nil, util.WrapError("open capture device", err)
	}
	s.device = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		freeContext(mctx)
		return nil, util.WrapError("start capture device", err)
	}

	slog.Info("started miniaudio capture", "format", f.String(), "device", cfg.Device)
	return s, nil
}

// Format implements Source.
func (s *MalgoSource) Format() audio.Format {
	return s.format
}

// Read implements Source.
func (s *MalgoSource) Read(ctx context.Context, b *audio.Block) error {
	return s.feed.read(ctx, b)
}

// Overruns returns the number of device periods dropped because the
// pipeline fell behind.
func (s *MalgoSource) Overruns() uint64 {
	return s.feed.Overruns()
}

// Close implements Source.
func (s *MalgoSource) Close() error {
	s.feed.close()
	if err := s.device.Stop(); err != nil {
		slog.Warn("failed to stop capture device", "error", err)
	}
	s.device.Uninit()
	freeContext(s.ctx)
	return nil
}

// MalgoDevices lists miniaudio capture devices.
func MalgoDevices() ([]Device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, util.WrapError("initialize miniaudio", err)
	}
	defer freeContext(mctx)

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, util.WrapError("list capture devices", err)
	}
	devices := make([]Device, 0, len(infos))
	for _, d := range infos {
		devices = append(devices, Device{
			ID:   hex.EncodeToString(d.ID[:]),
			Name: d.Name(),
		})
	}
	return devices, nil
}

func freeContext(mctx *malgo.AllocatedContext) {
	if err := mctx.Uninit(); err != nil {
		slog.Warn("failed to release miniaudio context", "error", err)
	}
	mctx.Free()
}
