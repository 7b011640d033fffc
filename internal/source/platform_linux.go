//go:build linux

package source

import (
	"regexp"
	"strconv"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// platformTool captures with arecord from alsa-utils.
var platformTool = captureTool{
	program:       "arecord",
	defaultDevice: "default",
	args:          arecordArgs,
	list: deviceList{
		args:    []string{"-l"},
		pattern: regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]+)\]`),
		device: func(m []string) (Device, bool) {
			return Device{ID: "default:CARD=" + m[2], Name: m[3]}, true
		},
		fallback: []Device{{ID: "default", Name: "System default"}},
	},
}

func arecordArgs(device string, f audio.Format) []string {
	sampleFormat := "S32_LE"
	if f.BitDepth == audio.BitDepth16 {
		sampleFormat = "S16_LE"
	}
	return []string{
		"-D", device,
		"-f", sampleFormat,
		"-r", strconv.Itoa(f.SampleRate),
		"-c", strconv.Itoa(f.Channels),
		"-t", "raw",
		"-q",
		"-",
	}
}
