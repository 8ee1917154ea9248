package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"libdb.so/missimo/hal"
)

func TestPinsDistinct(t *testing.T) {
	seen := map[hal.Pin]string{
		TriggerPin: "trigger",
		EchoPin:    "echo",
	}

	claim := func(pin hal.Pin, name string) {
		if prev, ok := seen[pin]; ok {
			t.Errorf("pin %d used by both %s and %s", pin, prev, name)
		}
		seen[pin] = name
	}

	for _, s := range Servos {
		claim(s.Pin(), "servo "+s.String())
	}
	for _, g := range LEDGroups {
		for _, pin := range g.Pins() {
			claim(pin, "led "+g.String())
		}
	}

	assert.Len(t, seen, 2+len(Servos)+2*len(LEDGroups))
}

func TestInvalidTagPanics(t *testing.T) {
	assert.Panics(t, func() { Servo(7).Pin() })
	assert.Panics(t, func() { LEDGroup(7).Pins() })
	assert.Equal(t, "Servo(7)", Servo(7).String())
}
