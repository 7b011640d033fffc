package source

import (
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// captureTool is the external program exec capture runs on this platform.
type captureTool struct {
	program string
	ffmpeg  bool // program is ffmpeg and may be overridden by Config.FFmpegPath

	// defaultDevice is captured when none is configured. Empty means the
	// first listed device.
	defaultDevice string

	args func(device string, f audio.Format) []string
	list deviceList
}

// deviceList describes how a capture tool lists its input devices.
type deviceList struct {
	args     []string
	begin    string // marker line opening the audio section; empty = whole output
	end      string // marker line closing it
	pattern  *regexp.Regexp
	device   func(m []string) (Device, bool)
	fallback []Device
}

// ExecDevices returns the audio input devices of the platform capture tool.
func ExecDevices() []Device {
	return platformTool.devices(platformTool.program)
}

// resolve returns the program to run, honouring an ffmpeg override.
func (t *captureTool) resolve(ffmpegPath string) (string, error) {
	program := t.program
	if t.ffmpeg && ffmpegPath != "" {
		program = ffmpegPath
	}
	path, err := exec.LookPath(program)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found: %w", ErrUnsupported, program, err)
	}
	return path, nil
}

// command returns the program and arguments capturing format f.
func (t *captureTool) command(cfg Config, f audio.Format) (string, []string, error) {
	program, err := t.resolve(cfg.FFmpegPath)
	if err != nil {
		return "", nil, err
	}

	device := cfg.Device
	if device == "" {
		device = t.defaultDevice
	}
	if device == "" {
		devices := t.devices(program)
		if len(devices) == 0 {
			return "", nil, ErrNoAudioDevice
		}
		device = devices[0].ID
	}
	return program, t.args(device, f), nil
}

// devices runs the listing command. Tools print listings on stderr and may
// exit non-zero, so only missing output counts as failure.
func (t *captureTool) devices(program string) []Device {
	out, err := exec.Command(program, t.list.args...).CombinedOutput()
	if err != nil && len(out) == 0 {
		slog.Error("failed to list audio devices", "program", program, "error", err)
		return t.list.fallback
	}
	if devices := t.list.parse(string(out)); len(devices) > 0 {
		return devices
	}
	return t.list.fallback
}

func (l *deviceList) parse(output string) []Device {
	var devices []Device
	inside := l.begin == ""
	for line := range strings.SplitSeq(output, "\n") {
		switch {
		case l.begin != "" && strings.Contains(line, l.begin):
			inside = true
		case l.end != "" && strings.Contains(line, l.end):
			inside = false
		case inside:
			if m := l.pattern.FindStringSubmatch(line); m != nil {
				if d, ok := l.device(m); ok {
					devices = append(devices, d)
				}
			}
		}
	}
	return devices
}
