//go:build !linux

package source

import (
	"strconv"

	"github.com/oszuidwest/zwfm-silentcmd/internal/audio"
)

// ffmpegArgs captures raw little-endian PCM from an ffmpeg input device to
// stdout.
func ffmpegArgs(inputFormat, device string, f audio.Format) []string {
	sampleFormat := "s32le"
	if f.BitDepth == audio.BitDepth16 {
		sampleFormat = "s16le"
	}
	return []string{
		"-f", inputFormat,
		"-i", device,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-vn",
		"-f", sampleFormat,
		"-ac", strconv.Itoa(f.Channels),
		"-ar", strconv.Itoa(f.SampleRate),
		"pipe:1",
	}
}
