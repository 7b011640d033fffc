// Package config provides application configuration management.
//
// Settings are layered: built-in defaults, then a JSON or YAML file, then
// SILENTCMD_* environment variables, then command-line flags applied by the
// caller. Validate must be called once all layers are applied.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oszuidwest/zwfm-silentcmd/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultBackend     = "exec"
	DefaultSampleRate  = 48000
	DefaultBits        = 32
	DefaultBufferSize  = 1024
	DefaultThresholdDB = -60.0
	DefaultTimeout     = 30 * time.Second
	DefaultAttack      = 10 * time.Millisecond
	DefaultRelease     = 100 * time.Millisecond
	DefaultLogLevel    = "info"
)

// SourceConfig holds frame source settings.
type SourceConfig struct {
	Backend    string `json:"backend" yaml:"backend" validate:"oneof=exec malgo pulse wav flac"`
	Device     string `json:"device,omitempty" yaml:"device,omitempty" validate:"max=512"`         // Capture device (empty = platform default)
	Path       string `json:"path,omitempty" yaml:"path,omitempty" validate:"max=4096"`            // Input file for wav/flac
	SampleRate int    `json:"sample_rate" yaml:"sample_rate" validate:"gte=8000,lte=384000"`       // Capture rate in Hz
	Bits       int    `json:"bits" yaml:"bits" validate:"oneof=16 24 32"`                          // Capture bit depth
	Channels   int    `json:"channels,omitempty" yaml:"channels,omitempty" validate:"lte=64"`      // Capture channel count (0 = highest selected channel)
	BufferSize int    `json:"buffer_size" yaml:"buffer_size" validate:"gte=16,lte=1048576"`        // Frames per block
	FFmpegPath string `json:"ffmpeg_path,omitempty" yaml:"ffmpeg_path,omitempty" validate:"max=4096"` // FFmpeg binary (empty = use PATH)
}

// DetectionConfig holds level detection and switching parameters.
type DetectionConfig struct {
	Channels    []int    `json:"channels" yaml:"channels" validate:"min=1,max=64,unique,dive,gte=1,lte=64"` // 1-based channels averaged to mono
	ThresholdDB float64  `json:"threshold_db" yaml:"threshold_db" validate:"gte=-200,lte=20"`        // Level that switches on
	Timeout     Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`                            // Silence before switching off
	Window      int      `json:"window,omitempty" yaml:"window,omitempty" validate:"lte=1048576"`    // Envelope window (0 = buffer size)
	Attack      Duration `json:"attack" yaml:"attack" validate:"gte=0"`                              // Envelope attack time constant
	Release     Duration `json:"release" yaml:"release" validate:"gte=0"`                            // Envelope release time constant
}

// CommandsConfig holds the commands run on each transition.
type CommandsConfig struct {
	On    string `json:"on" yaml:"on" validate:"max=4096"`
	Off   string `json:"off" yaml:"off" validate:"max=4096"`
	Shell bool   `json:"shell,omitempty" yaml:"shell,omitempty"` // Run through /bin/sh -c or cmd /C
}

// Config holds all application configuration.
type Config struct {
	Source    SourceConfig    `json:"source" yaml:"source"`
	Detection DetectionConfig `json:"detection" yaml:"detection"`
	Commands  CommandsConfig  `json:"commands" yaml:"commands"`
	Verbose   bool            `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	EventLog  string          `json:"event_log,omitempty" yaml:"event_log,omitempty" validate:"max=4096"`
	LogLevel  string          `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	// Analyze selects analysis mode, which needs no commands.
	Analyze bool `json:"-" yaml:"-"`

	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		Source: SourceConfig{
			Backend:    DefaultBackend,
			SampleRate: DefaultSampleRate,
			Bits:       DefaultBits,
			BufferSize: DefaultBufferSize,
		},
		Detection: DetectionConfig{
			Channels:    []int{1},
			ThresholdDB: DefaultThresholdDB,
			Timeout:     Duration(DefaultTimeout),
			Attack:      Duration(DefaultAttack),
			Release:     Duration(DefaultRelease),
		},
		LogLevel: DefaultLogLevel,
		filePath: filePath,
	}
}

// Path returns the configuration file path.
func (c *Config) Path() string {
	return c.filePath
}

// Load reads the config file over the defaults. An empty path loads nothing.
// Files ending in .yaml or .yml are parsed as YAML, anything else as JSON.
func (c *Config) Load() error {
	if c.filePath == "" {
		return nil
	}

	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if isYAML(c.filePath) {
		err = yaml.Unmarshal(data, c)
	} else {
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()
	return nil
}

// Save writes the configuration to its file path in the format implied by
// the extension.
func (c *Config) Save() error {
	return c.SaveAs(c.filePath)
}

// SaveAs writes the configuration to path and makes it the file path.
func (c *Config) SaveAs(path string) error {
	c.filePath = path

	var (
		data []byte
		err  error
	)
	if isYAML(c.filePath) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.Source.Backend == "" {
		c.Source.Backend = DefaultBackend
	}
	if c.Source.SampleRate == 0 {
		c.Source.SampleRate = DefaultSampleRate
	}
	if c.Source.Bits == 0 {
		c.Source.Bits = DefaultBits
	}
	if c.Source.BufferSize == 0 {
		c.Source.BufferSize = DefaultBufferSize
	}
	if len(c.Detection.Channels) == 0 {
		c.Detection.Channels = []int{1}
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// CaptureChannels returns the number of channels to capture: the configured
// count, or the highest selected channel.
func (c *Config) CaptureChannels() int {
	if c.Source.Channels > 0 {
		return c.Source.Channels
	}
	if len(c.Detection.Channels) == 0 {
		return 1
	}
	return slices.Max(c.Detection.Channels)
}

// WindowSize returns the envelope window in samples, defaulting to the
// buffer size.
func (c *Config) WindowSize() int {
	if c.Detection.Window > 0 {
		return c.Detection.Window
	}
	return c.Source.BufferSize
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
