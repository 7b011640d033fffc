// Package switcher implements the threshold-with-timeout state machine that
// turns level readings into on/off events.
//
// The controller switches on as soon as a reading reaches the threshold and
// switches off only after readings have stayed below it for longer than the
// timeout. Every reading at or above the threshold rearms the timeout.
package switcher

import "time"

// Verbose output markers for the controller state.
const (
	MarkerOn  = 20.0
	MarkerOff = 0.0
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock, including its monotonic reading.
var SystemClock Clock = ClockFunc(time.Now)

// Event is a state transition: true switches on, false switches off.
type Event bool

// Transition events.
const (
	On  Event = true
	Off Event = false
)

// String implements fmt.Stringer.
func (e Event) String() string {
	if e {
		return "on"
	}
	return "off"
}

// Controller tracks the on/off state. It is not safe for concurrent use;
// the pipeline goroutine owns it.
type Controller struct {
	thresholdDB float64
	timeout     time.Duration
	clock       Clock
	lastTrigger time.Time
	on          bool
}

// New returns a controller in the off state. A nil clock uses SystemClock.
func New(thresholdDB float64, timeout time.Duration, clock Clock) *Controller {
	if clock == nil {
		clock = SystemClock
	}
	return &Controller{
		thresholdDB: thresholdDB,
		timeout:     timeout,
		clock:       clock,
		lastTrigger: clock.Now(),
	}
}

// Update feeds a level reading taken now and returns the transition it
// caused, if any.
func (c *Controller) Update(levelDB float64) (Event, bool) {
	return c.Step(levelDB, c.clock.Now())
}

// Step feeds a level reading taken at now and returns the transition it
// caused, if any. At most one event is produced per call.
func (c *Controller) Step(levelDB float64, now time.Time) (Event, bool) {
	if levelDB >= c.thresholdDB {
		if now.After(c.lastTrigger) {
			c.lastTrigger = now
		}
		if !c.on {
			c.on = true
			return On, true
		}
		return On, false
	}

	if c.on && now.Sub(c.lastTrigger) > c.timeout {
		c.on = false
		return Off, true
	}
	return Event(c.on), false
}

// IsOn reports whether the controller is in the on state.
func (c *Controller) IsOn() bool {
	return c.on
}

// Marker returns the verbose output marker for the current state.
func (c *Controller) Marker() float64 {
	if c.on {
		return MarkerOn
	}
	return MarkerOff
}

// Threshold returns the on threshold in dB.
func (c *Controller) Threshold() float64 {
	return c.thresholdDB
}

// Timeout returns the time readings must stay below the threshold before
// switching off.
func (c *Controller) Timeout() time.Duration {
	return c.timeout
}

// LastTrigger returns the time of the most recent reading at or above the
// threshold, or the construction time if there was none.
func (c *Controller) LastTrigger() time.Time {
	return c.lastTrigger
}
