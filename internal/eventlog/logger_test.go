package eventlog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
	return l
}

func TestLoggerRoundTrip(t *testing.T) {
	l := newTestLogger(t)

	l.SwitchChanged(true, -42.5, -60)
	l.CommandStarted("amp-on", true)
	l.CommandExited("amp-on", true, 2, 1500*time.Millisecond)
	l.SwitchChanged(false, -75, -60)
	l.CommandFailed("amp-off", false, errors.New("not found"))

	events, more, err := ReadLast(l.Path(), 10, 0, FilterAll)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}
	if more {
		t.Fatal("unexpected hasMore")
	}
	wantTypes := []EventType{CommandFailed, SwitchOff, CommandExited, CommandStarted, SwitchOn}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d type = %s, want %s", i, events[i].Type, want)
		}
	}
	if !events[0].Timestamp.After(events[1].Timestamp) {
		t.Error("events must be newest first")
	}

	var sw SwitchDetails
	if err := json.Unmarshal(events[4].Details, &sw); err != nil {
		t.Fatalf("decode switch details: %v", err)
	}
	if sw.LevelDB != -42.5 || sw.ThresholdDB != -60 {
		t.Errorf("switch details = %+v", sw)
	}

	var cmd CommandDetails
	if err := json.Unmarshal(events[2].Details, &cmd); err != nil {
		t.Fatalf("decode command details: %v", err)
	}
	if cmd.Command != "amp-on" || cmd.ExitCode != 2 || cmd.DurationMs != 1500 || cmd.State != "on" {
		t.Errorf("command details = %+v", cmd)
	}

	var failed CommandDetails
	if err := json.Unmarshal(events[0].Details, &failed); err != nil {
		t.Fatalf("decode failure details: %v", err)
	}
	if failed.Error != "not found" {
		t.Errorf("failure error = %q", failed.Error)
	}
}

func TestReadLastFilterAndPaging(t *testing.T) {
	l := newTestLogger(t)
	for range 3 {
		l.SwitchChanged(true, -10, -60)
		l.CommandStarted("on", true)
		l.CommandExited("on", true, 0, time.Millisecond)
	}

	tests := []struct {
		name      string
		n, offset int
		filter    TypeFilter
		wantLen   int
		wantMore  bool
		wantFirst EventType
	}{
		{"all", 100, 0, FilterAll, 9, false, CommandExited},
		{"switch only", 100, 0, FilterSwitch, 3, false, SwitchOn},
		{"command page", 2, 0, FilterCommand, 2, true, CommandExited},
		{"command offset", 10, 4, FilterCommand, 2, false, CommandExited},
		{"exact fit", 3, 0, FilterSwitch, 3, false, SwitchOn},
		{"zero", 0, 0, FilterAll, 0, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, more, err := ReadLast(l.Path(), tt.n, tt.offset, tt.filter)
			if err != nil {
				t.Fatalf("ReadLast: %v", err)
			}
			if len(events) != tt.wantLen || more != tt.wantMore {
				t.Fatalf("got %d events (more=%v), want %d (more=%v)", len(events), more, tt.wantLen, tt.wantMore)
			}
			if tt.wantLen > 0 && events[0].Type != tt.wantFirst {
				t.Fatalf("first type = %s, want %s", events[0].Type, tt.wantFirst)
			}
		})
	}
}

func TestReadLastSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	data := `{"ts":"2024-01-01T00:00:00Z","type":"switch_on"}
not json
{"ts":"2024-01-01T00:00:01Z","type":"switch_off"}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	events, _, err := ReadLast(path, 10, 0, FilterAll)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}
	if len(events) != 2 || events[0].Type != SwitchOff {
		t.Fatalf("events = %+v", events)
	}
}

func TestReadLastMissingFile(t *testing.T) {
	events, more, err := ReadLast(filepath.Join(t.TempDir(), "absent.jsonl"), 10, 0, FilterAll)
	if err != nil || more || len(events) != 0 {
		t.Fatalf("got %v, %v, %v", events, more, err)
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/tmp/events.jsonl"); got != "/tmp/events.jsonl" {
		t.Errorf("explicit path = %q", got)
	}
	for _, p := range []string{"", DefaultPathName} {
		if got := ResolvePath(p); got != DefaultLogPath() {
			t.Errorf("ResolvePath(%q) = %q, want %q", p, got, DefaultLogPath())
		}
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		want TypeFilter
	}{
		{"", FilterAll},
		{"all", FilterAll},
		{"switch", FilterSwitch},
		{"command", FilterCommand},
	}
	for _, tt := range tests {
		got, err := ParseFilter(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFilter(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseFilter("alerts"); err == nil {
		t.Error("ParseFilter(alerts) succeeded")
	}
}
