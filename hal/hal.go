// Package hal describes the minimal hardware abstraction the robot core runs
// against: pin I/O and a microsecond clock.
package hal

import "fmt"

// Pin identifies a board pin. The numbering is whatever the backing board
// uses; the core never interprets it.
type Pin uint8

// PullMode is the pull resistor configuration of a pin.
type PullMode uint8

const (
	PullNone PullMode = iota
	PullUp
	PullDown
)

// String returns a string representation of the pull mode.
func (m PullMode) String() string {
	switch m {
	case PullNone:
		return "none"
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return fmt.Sprintf("PullMode(%d)", m)
	}
}

// Level is a digital pin level.
type Level uint8

const (
	Low Level = iota
	High
)

// String returns a string representation of the level.
func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Level(%d)", l)
	}
}

// Board is the contract a board must provide. None of the methods report
// errors: a board that can fail degrades to zero values and exposes the fault
// some other way (see Faulter).
type Board interface {
	// SetPull configures the pull resistor of the pin.
	SetPull(pin Pin, mode PullMode)
	// WriteDigital drives the pin to the given level.
	WriteDigital(pin Pin, level Level)
	// WaitMicros blocks for the given number of microseconds.
	WaitMicros(us uint32)
	// NowMicros returns a monotonic microsecond counter. It wraps silently;
	// use Elapsed to subtract two readings.
	NowMicros() uint32
	// PulseIn blocks until a pulse of the given level starts and ends on the
	// pin and returns its duration in microseconds. It returns 0 if no full
	// pulse was seen within timeout microseconds.
	PulseIn(pin Pin, level Level, timeout uint32) uint32
	// WritePWMPulse sets the high time of a servo output, in microseconds.
	WritePWMPulse(pin Pin, us uint32)
	// WriteAnalog sets an analog (PWM) output level.
	WriteAnalog(pin Pin, level uint8)
}

// Faulter is implemented by boards that can lose their connection to the
// hardware. Err returns the first unrecoverable fault, or nil.
type Faulter interface {
	Err() error
}

// Elapsed returns the number of microseconds from since to now, correct across
// a single wrap of the counter.
func Elapsed(since, now uint32) uint32 {
	return now - since
}
