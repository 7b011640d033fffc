//go:build windows

package source

import (
	"regexp"
	"strings"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// platformTool captures with ffmpeg's dshow input. There is no default
// device, so the first listed one is used.
var platformTool = captureTool{
	program: "ffmpeg",
	ffmpeg:  true,
	args: func(device string, f audio.Format) []string {
		return ffmpegArgs("dshow", device, f)
	},
	list: deviceList{
		args: []string{"-hide_banner", "-f", "dshow", "-list_devices", "true", "-i", "dummy"},
		// Lines look like: [dshow @ 0000] "Microphone (USB Audio)" (audio)
		pattern: regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]+)"\s*\(audio\)`),
		device: func(m []string) (Device, bool) {
			name := strings.TrimSpace(m[1])
			return Device{ID: "audio=" + name, Name: name}, name != ""
		},
	},
}
