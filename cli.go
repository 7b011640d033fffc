package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oszuidwest/zwfm-silentcmd/internal/config"
	"github.com/oszuidwest/zwfm-silentcmd/internal/source"
)

// errUsage is returned for command lines that cannot be parsed.
var errUsage = errors.New("invalid usage")

// options holds the command-line flags. Settings flags are only applied to
// the configuration when they were given explicitly.
type options struct {
	configPath  string
	envFile     string
	writeConfig string
	analyze     bool
	listDevices bool
	showVersion bool

	events       int
	eventsFilter string
	eventsOffset int

	backend    string
	device     string
	file       string
	sampleRate int
	bits       int
	bufferSize int
	channels   string
	threshold  float64
	timeout    string
	window     int
	shell      bool
	verbose    bool
	eventLog   string
	logLevel   string

	set  map[string]bool
	args []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{set: make(map[string]bool)}
	fs := flag.NewFlagSet("silentcmd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: silentcmd [flags] <cmd-on> <cmd-off>")
		fmt.Fprintln(stderr, "       silentcmd -analyze -backend wav -file input.wav")
		fs.PrintDefaults()
	}

	fs.StringVar(&o.configPath, "config", "", "Path to config file, JSON or YAML (default: config.json next to binary, if present)")
	fs.StringVar(&o.envFile, "env-file", ".env", "Path to a .env file with SILENTCMD_* variables")
	fs.StringVar(&o.writeConfig, "write-config", "", "Write the resolved configuration to this path and exit")
	fs.BoolVar(&o.analyze, "analyze", false, "Print the level of every block of a mono input and its average, then exit")
	fs.BoolVar(&o.listDevices, "list-devices", false, "List capture devices for the selected backend and exit")
	fs.BoolVar(&o.showVersion, "version", false, "Print version information and exit")

	fs.IntVar(&o.events, "events", 0, "Print the newest N events from the event log and exit")
	fs.StringVar(&o.eventsFilter, "events-filter", "all", "Events to print with -events: all, switch or command")
	fs.IntVar(&o.eventsOffset, "events-offset", 0, "Skip this many newer events with -events")

	fs.StringVar(&o.backend, "backend", "", "Frame source: "+backendNames())
	fs.StringVar(&o.device, "device", "", "Capture device")
	fs.StringVar(&o.file, "file", "", "Input file for the wav and flac backends")
	fs.IntVar(&o.sampleRate, "sample-rate", 0, "Capture sample rate in Hz")
	fs.IntVar(&o.bits, "bits", 0, "Capture bit depth: 16, 24 or 32")
	fs.IntVar(&o.bufferSize, "buffer-size", 0, "Frames per block")
	fs.StringVar(&o.channels, "channels", "", "Comma-separated 1-based channels to monitor")
	fs.Float64Var(&o.threshold, "threshold", 0, "Switch-on threshold in dB")
	fs.StringVar(&o.timeout, "timeout", "", "Silence before switching off, in seconds or as a duration")
	fs.IntVar(&o.window, "window", 0, "Envelope window in samples (default: buffer size)")
	fs.BoolVar(&o.shell, "shell", false, "Run commands through the platform shell")
	fs.BoolVar(&o.verbose, "verbose", false, "Print level and switch state for every block")
	fs.StringVar(&o.eventLog, "event-log", "", `Append switch and command events to this JSON-lines file ("default" for the platform path)`)
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	fs.Visit(func(f *flag.Flag) {
		o.set[f.Name] = true
	})
	o.args = fs.Args()
	if o.events < 0 || o.eventsOffset < 0 {
		return nil, fmt.Errorf("%w: -events and -events-offset must not be negative", errUsage)
	}
	if len(o.args) > 2 {
		return nil, fmt.Errorf("%w: expected at most two commands, got %d arguments", errUsage, len(o.args))
	}
	return o, nil
}

// backendNames lists the source backends for usage text.
func backendNames() string {
	names := make([]string, len(source.Backends))
	for i, b := range source.Backends {
		names[i] = string(b)
	}
	return strings.Join(names, ", ")
}

// resolveConfigPath returns the config file to load. Without -config a
// config.json next to the binary is used when it exists.
func (o *options) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	path := filepath.Join(filepath.Dir(execPath), "config.json")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// apply overlays explicitly set flags and positional commands on cfg.
func (o *options) apply(cfg *config.Config) error {
	var errs []error

	if o.set["backend"] {
		cfg.Source.Backend = o.backend
	}
	if o.set["device"] {
		cfg.Source.Device = o.device
	}
	if o.set["file"] {
		cfg.Source.Path = o.file
	}
	if o.set["sample-rate"] {
		cfg.Source.SampleRate = o.sampleRate
	}
	if o.set["bits"] {
		cfg.Source.Bits = o.bits
	}
	if o.set["buffer-size"] {
		cfg.Source.BufferSize = o.bufferSize
	}
	if o.set["channels"] {
		channels, err := config.ParseChannels(o.channels)
		if err != nil {
			errs = append(errs, fmt.Errorf("-channels: %w", err))
		} else {
			cfg.Detection.Channels = channels
		}
	}
	if o.set["threshold"] {
		cfg.Detection.ThresholdDB = o.threshold
	}
	if o.set["timeout"] {
		d, err := config.ParseDuration(o.timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("-timeout: %w", err))
		} else {
			cfg.Detection.Timeout = config.Duration(d)
		}
	}
	if o.set["window"] {
		cfg.Detection.Window = o.window
	}
	if o.set["shell"] {
		cfg.Commands.Shell = o.shell
	}
	if o.set["verbose"] {
		cfg.Verbose = o.verbose
	}
	if o.set["event-log"] {
		cfg.EventLog = o.eventLog
	}
	if o.set["log-level"] {
		cfg.LogLevel = strings.ToLower(o.logLevel)
	}

	if len(o.args) > 0 {
		cfg.Commands.On = o.args[0]
	}
	if len(o.args) > 1 {
		cfg.Commands.Off = o.args[1]
	}
	cfg.Analyze = o.analyze

	return errors.Join(errs...)
}

// loadConfig builds the configuration from defaults, the config file, the
// environment and the command line, in that order.
func loadConfig(o *options, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.New(o.resolveConfigPath())
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := o.apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
