// Package eventlog provides persistent event logging for the switch.
// It captures switch transitions (switch_on, switch_off) and command
// executions (command_started, command_exited, command_failed) in a single
// JSON lines file.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// EventType represents the type of event.
type EventType string

// Switch event types.
const (
	SwitchOn  EventType = "switch_on"
	SwitchOff EventType = "switch_off"
)

// Command event types.
const (
	CommandStarted EventType = "command_started"
	CommandExited  EventType = "command_exited"
	CommandFailed  EventType = "command_failed"
)

// Event represents a single log entry with type-specific details.
type Event struct {
	Timestamp time.Time       `json:"ts"`
	Type      EventType       `json:"type"`
	Message   string          `json:"msg,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// SwitchDetails contains switch-specific event details.
type SwitchDetails struct {
	LevelDB     float64 `json:"level_db"`
	ThresholdDB float64 `json:"threshold_db"`
}

// CommandDetails contains command-specific event details.
type CommandDetails struct {
	Command    string `json:"command"`
	State      string `json:"state"`
	ExitCode   int    `json:"exit_code,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Logger writes events to a JSON lines file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
	now      func() time.Time
}

// DefaultPathName is the event log path value that selects DefaultLogPath.
const DefaultPathName = "default"

// DefaultLogPath returns the platform-specific log file path.
func DefaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		programData := os.Getenv("PROGRAMDATA")
		if programData == "" {
			programData = `C:\ProgramData`
		}
		return filepath.Join(programData, "silentcmd", "events.jsonl")
	default: // linux, darwin
		return filepath.Join("/var/log/silentcmd", "events.jsonl")
	}
}

// ResolvePath maps DefaultPathName, or an empty path, to DefaultLogPath.
func ResolvePath(path string) string {
	if path == "" || path == DefaultPathName {
		return DefaultLogPath()
	}
	return path
}

// NewLogger creates a new event logger at the specified path.
func NewLogger(filePath string) (*Logger, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
		now:      time.Now,
	}, nil
}

// Log writes an event with the given details to the log file.
func (l *Logger) Log(eventType EventType, message string, details any) error {
	var raw json.RawMessage
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode event details: %w", err)
		}
		raw = b
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.encoder.Encode(&Event{
		Timestamp: l.now(),
		Type:      eventType,
		Message:   message,
		Details:   raw,
	})
}

// SwitchChanged logs a switch transition.
func (l *Logger) SwitchChanged(on bool, levelDB, thresholdDB float64) {
	eventType, msg := SwitchOff, "silence exceeded timeout"
	if on {
		eventType, msg = SwitchOn, "level reached threshold"
	}
	l.report(l.Log(eventType, msg, &SwitchDetails{
		LevelDB:     levelDB,
		ThresholdDB: thresholdDB,
	}))
}

// CommandStarted logs the start of a command.
func (l *Logger) CommandStarted(command string, on bool) {
	l.report(l.Log(CommandStarted, "", &CommandDetails{
		Command: command,
		State:   stateName(on),
	}))
}

// CommandExited logs a command that ran to completion.
func (l *Logger) CommandExited(command string, on bool, exitCode int, elapsed time.Duration) {
	l.report(l.Log(CommandExited, "", &CommandDetails{
		Command:    command,
		State:      stateName(on),
		ExitCode:   exitCode,
		DurationMs: elapsed.Milliseconds(),
	}))
}

// CommandFailed logs a command that could not be started.
func (l *Logger) CommandFailed(command string, on bool, err error) {
	l.report(l.Log(CommandFailed, "", &CommandDetails{
		Command: command,
		State:   stateName(on),
		Error:   err.Error(),
	}))
}

func (l *Logger) report(err error) {
	if err != nil {
		slog.Warn("failed to write event log", "path", l.filePath, "error", err)
	}
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Path returns the path to the log file.
func (l *Logger) Path() string {
	return l.filePath
}

// TypeFilter specifies which event types to include when reading.
type TypeFilter string

// Filter constants for ReadLast.
const (
	FilterAll     TypeFilter = ""
	FilterSwitch  TypeFilter = "switch"
	FilterCommand TypeFilter = "command"
)

// Match reports whether the filter includes events of type t.
func (f TypeFilter) Match(t EventType) bool {
	switch f {
	case FilterSwitch:
		return IsSwitchEvent(t)
	case FilterCommand:
		return IsCommandEvent(t)
	default:
		return true
	}
}

// ParseFilter parses "all", "switch" or "command". An empty string selects
// all events.
func ParseFilter(s string) (TypeFilter, error) {
	switch s {
	case "", "all":
		return FilterAll, nil
	case string(FilterSwitch), string(FilterCommand):
		return TypeFilter(s), nil
	default:
		return FilterAll, fmt.Errorf("unknown event filter %q (want all, switch or command)", s)
	}
}

// MaxReadLimit is the maximum number of events that can be read at once.
const MaxReadLimit = 500

// ReadLast reads events from the log file with pagination support.
// Returns up to n events starting from offset, filtered by type, newest
// first, and whether older matching events remain. n is capped at
// MaxReadLimit. A missing file yields no events.
func ReadLast(filePath string, n, offset int, filter TypeFilter) ([]Event, bool, error) {
	n = min(n, MaxReadLimit)
	if n <= 0 {
		return []Event{}, false, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	events := make([]Event, 0, n)
	skipped := 0
	for i := len(lines) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // Skip malformed lines
		}
		if !filter.Match(event.Type) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(events) == n {
			return events, true, nil
		}
		events = append(events, event)
	}

	return events, false, nil
}

// IsSwitchEvent returns true if the event type is a switch transition.
func IsSwitchEvent(t EventType) bool {
	return t == SwitchOn || t == SwitchOff
}

// IsCommandEvent returns true if the event type is a command event.
func IsCommandEvent(t EventType) bool {
	return t == CommandStarted || t == CommandExited || t == CommandFailed
}

func stateName(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
