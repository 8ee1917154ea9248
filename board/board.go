// Package board holds the fixed pin assignment of the add-on board.
package board

import (
	"fmt"

	"libdb.so/missimo/hal"
)

const (
	// TriggerPin starts an ultrasonic ranging cycle.
	TriggerPin hal.Pin = 8
	// EchoPin stays high for the round trip time of the ping.
	EchoPin hal.Pin = 2
)

// Servo is one of the two drive servos.
type Servo uint8

const (
	Left Servo = iota
	Right
)

// Servos lists every servo.
var Servos = [...]Servo{Left, Right}

// String returns a string representation of the servo.
func (s Servo) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Servo(%d)", s)
	}
}

// Pin returns the servo's output pin.
func (s Servo) Pin() hal.Pin {
	switch s {
	case Left:
		return 13
	case Right:
		return 14
	default:
		panic("invalid servo")
	}
}

// LEDGroup is a pair of LEDs that always switch together.
type LEDGroup uint8

const (
	Front LEDGroup = iota
	Back
)

// LEDGroups lists every LED group.
var LEDGroups = [...]LEDGroup{Front, Back}

// String returns a string representation of the LED group.
func (g LEDGroup) String() string {
	switch g {
	case Front:
		return "front"
	case Back:
		return "back"
	default:
		return fmt.Sprintf("LEDGroup(%d)", g)
	}
}

// Pins returns the left and right pins of the group.
func (g LEDGroup) Pins() [2]hal.Pin {
	switch g {
	case Front:
		return [2]hal.Pin{0, 1}
	case Back:
		return [2]hal.Pin{10, 11}
	default:
		panic("invalid LED group")
	}
}
