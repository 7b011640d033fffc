package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SILENTCMD_"

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies SILENTCMD_* overrides read through lookup, usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	setString := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	setString("BACKEND", &c.Source.Backend)
	setString("DEVICE", &c.Source.Device)
	setString("FILE", &c.Source.Path)
	setInt("SAMPLE_RATE", &c.Source.SampleRate)
	setInt("BITS", &c.Source.Bits)
	setInt("BUFFER_SIZE", &c.Source.BufferSize)
	setInt("WINDOW", &c.Detection.Window)
	setString("CMD_ON", &c.Commands.On)
	setString("CMD_OFF", &c.Commands.Off)
	setBool("SHELL", &c.Commands.Shell)
	setBool("VERBOSE", &c.Verbose)
	setString("EVENT_LOG", &c.EventLog)
	setString("LOG_LEVEL", &c.LogLevel)

	if v, ok := get("CHANNELS"); ok {
		channels, err := ParseChannels(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCHANNELS: %w", EnvPrefix, err))
		} else {
			c.Detection.Channels = channels
		}
	}
	if v, ok := get("THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTHRESHOLD: %w", EnvPrefix, err))
		} else {
			c.Detection.ThresholdDB = f
		}
	}
	if v, ok := get("TIMEOUT"); ok {
		d, err := ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Detection.Timeout = Duration(d)
		}
	}

	return errors.Join(errs...)
}

// ParseChannels parses a comma-separated list of 1-based channel numbers
// such as "1,2".
func ParseChannels(s string) ([]int, error) {
	var channels []int
	for field := range strings.SplitSeq(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid channel %q", field)
		}
		channels = append(channels, n)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels in %q", s)
	}
	return channels, nil
}
