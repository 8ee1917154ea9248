// Package actuator drives the board's servos and LEDs, skipping servo writes
// that would not change anything.
package actuator

import (
	"libdb.so/missimo/board"
	"libdb.so/missimo/hal"
)

const (
	// PulseMin and PulseMax are the full reverse and full forward servo
	// pulse widths in microseconds.
	PulseMin = 1200
	PulseMax = 1800
	// PulseCenter stops a continuous rotation servo.
	PulseCenter = 1500

	// unset is never a valid pulse, so the first command always writes.
	unset = -1
)

const (
	ledOn  = 255
	ledOff = 0
)

// PulseForPercent maps a speed in percent, -100 to 100, to a pulse width.
// Values outside the range are clamped.
func PulseForPercent(percent int) int {
	if percent == 0 {
		return PulseCenter
	}
	pulse := PulseMin + (percent+100)*(PulseMax-PulseMin)/200
	return clamp(pulse, PulseMin, PulseMax)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// State is the last commanded state of the actuators. It must only be used
// from one goroutine.
type State struct {
	board  hal.Board
	pulses [len(board.Servos)]int
}

// New creates a new actuator state for the given board. No servo has been
// commanded yet.
func New(b hal.Board) *State {
	s := &State{board: b}
	for i := range s.pulses {
		s.pulses[i] = unset
	}
	return s
}

// SetServo sets the speed of a servo in percent, -100 to 100. The servo is
// only written to if the resulting pulse differs from the last one.
func (s *State) SetServo(id board.Servo, percent int) {
	pulse := PulseForPercent(percent)
	if s.pulses[id] == pulse {
		return
	}
	s.pulses[id] = pulse
	s.board.WritePWMPulse(id.Pin(), uint32(pulse))
}

// StopServo stops a servo. It is the same as SetServo(id, 0).
func (s *State) StopServo(id board.Servo) {
	s.SetServo(id, 0)
}

// Pulse returns the last pulse written to the servo and true, or false if the
// servo has not been commanded yet.
func (s *State) Pulse(id board.Servo) (int, bool) {
	p := s.pulses[id]
	return p, p != unset
}

// SetLED switches both LEDs of a group. It always writes.
func (s *State) SetLED(group board.LEDGroup, on bool) {
	level := uint8(ledOff)
	if on {
		level = ledOn
	}
	for _, pin := range group.Pins() {
		s.board.WriteAnalog(pin, level)
	}
}
