// Package simhal implements a simulated hal.Board with a virtual clock. Every
// call is recorded, which makes it the fake of choice for tests.
package simhal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
	"libdb.so/missimo/hal"
)

// EventKind is the kind of a recorded board call.
type EventKind uint8

const (
	SetPull EventKind = iota
	WriteDigital
	WaitMicros
	NowMicros
	PulseIn
	WritePWMPulse
	WriteAnalog
)

// String returns a string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case SetPull:
		return "set_pull"
	case WriteDigital:
		return "write_digital"
	case WaitMicros:
		return "wait_micros"
	case NowMicros:
		return "now_micros"
	case PulseIn:
		return "pulse_in"
	case WritePWMPulse:
		return "write_pwm_pulse"
	case WriteAnalog:
		return "write_analog"
	default:
		return fmt.Sprintf("EventKind(%d)", k)
	}
}

// Event is a single recorded call.
type Event struct {
	Kind EventKind
	Pin  hal.Pin
	// Arg is the pull mode or level argument, if any.
	Arg uint8
	// Value is the microseconds, timeout or analog level argument, or the
	// returned value for NowMicros and PulseIn.
	Value uint32
	// At is the virtual clock when the call started.
	At uint32
}

// Board is a simulated board. The zero value is usable and starts its clock at
// 0.
type Board struct {
	// Clock is the virtual microsecond clock.
	Clock uint32
	// Echoes is a queue of echo pulse durations returned by PulseIn, oldest
	// first. A 0 entry simulates a missing echo.
	Echoes []uint32
	// Echo is called by PulseIn once Echoes is exhausted. If nil, PulseIn
	// reports no echo.
	Echo func(now uint32) uint32
	// Events is the log of calls made to the board.
	Events []Event
	// Quiet disables the event log, for long running simulations.
	Quiet bool
}

var _ hal.Board = (*Board)(nil)

// New creates a new simulated board whose clock starts at the given value.
func New(clock uint32) *Board {
	return &Board{Clock: clock}
}

// FixedDistance returns an Echo function that always reports an object at the
// given distance in centimeters.
func FixedDistance(cm uint32) func(uint32) uint32 {
	us := pulseFor(cm)
	return func(uint32) uint32 { return us }
}

// JitteredDistance is like FixedDistance, but every echo is off by a uniformly
// random whole number of centimeters in [-jitter, jitter]. The distance never
// drops below 1cm.
func JitteredDistance(cm, jitter uint32) func(uint32) uint32 {
	if jitter == 0 {
		return FixedDistance(cm)
	}

	offset := distuv.Uniform{
		Min: -float64(jitter),
		Max: float64(jitter) + 1,
	}

	return func(uint32) uint32 {
		d := int64(cm) + int64(math.Floor(offset.Rand()))
		d = min(d, int64(cm)+int64(jitter))
		d = max(d, 1)
		return pulseFor(uint32(d))
	}
}

// pulseFor is the echo length for cm at 58.2us per centimeter, rounded up so
// the distance floors back to cm.
func pulseFor(cm uint32) uint32 {
	return (cm*582 + 9) / 10
}

func (b *Board) record(kind EventKind, pin hal.Pin, arg uint8, value uint32) {
	if b.Quiet {
		return
	}
	b.Events = append(b.Events, Event{
		Kind:  kind,
		Pin:   pin,
		Arg:   arg,
		Value: value,
		At:    b.Clock,
	})
}

func (b *Board) SetPull(pin hal.Pin, mode hal.PullMode) {
	b.record(SetPull, pin, uint8(mode), 0)
}

func (b *Board) WriteDigital(pin hal.Pin, level hal.Level) {
	b.record(WriteDigital, pin, uint8(level), 0)
}

func (b *Board) WaitMicros(us uint32) {
	b.record(WaitMicros, 0, 0, us)
	b.Clock += us
}

func (b *Board) NowMicros() uint32 {
	b.record(NowMicros, 0, 0, b.Clock)
	return b.Clock
}

func (b *Board) PulseIn(pin hal.Pin, level hal.Level, timeout uint32) uint32 {
	var d uint32
	if len(b.Echoes) > 0 {
		d = b.Echoes[0]
		b.Echoes = b.Echoes[1:]
	} else if b.Echo != nil {
		d = b.Echo(b.Clock)
	}

	if d == 0 || d > timeout {
		d = 0
	}

	b.record(PulseIn, pin, uint8(level), d)

	if d == 0 {
		b.Clock += timeout
	} else {
		b.Clock += d
	}
	return d
}

func (b *Board) WritePWMPulse(pin hal.Pin, us uint32) {
	b.record(WritePWMPulse, pin, 0, us)
}

func (b *Board) WriteAnalog(pin hal.Pin, level uint8) {
	b.record(WriteAnalog, pin, 0, uint32(level))
}

// Filter returns the recorded events of the given kind.
func (b *Board) Filter(kind EventKind) []Event {
	var events []Event
	for _, ev := range b.Events {
		if ev.Kind == kind {
			events = append(events, ev)
		}
	}
	return events
}

// TriggerTimes returns the clock values at which the given pin was driven
// high.
func (b *Board) TriggerTimes(pin hal.Pin) []uint32 {
	var times []uint32
	for _, ev := range b.Events {
		if ev.Kind == WriteDigital && ev.Pin == pin && hal.Level(ev.Arg) == hal.High {
			times = append(times, ev.At)
		}
	}
	return times
}

// Reset clears the event log.
func (b *Board) Reset() {
	b.Events = b.Events[:0]
}
