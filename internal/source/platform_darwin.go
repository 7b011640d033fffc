//go:build darwin

package source

import (
	"regexp"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// platformTool captures with ffmpeg's avfoundation input.
var platformTool = captureTool{
	program:       "ffmpeg",
	ffmpeg:        true,
	defaultDevice: ":0",
	args: func(device string, f audio.Format) []string {
		return ffmpegArgs("avfoundation", device, f)
	},
	list: deviceList{
		args:    []string{"-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""},
		begin:   "AVFoundation audio devices:",
		end:     "AVFoundation video devices:",
		pattern: regexp.MustCompile(`\[AVFoundation[^\]]*\]\s*\[(\d+)\]\s*(.+)`),
		device: func(m []string) (Device, bool) {
			return Device{ID: ":" + m[1], Name: m[2]}, true
		},
	},
}
