package periphhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"libdb.so/missimo/hal"
	"periph.io/x/conn/v3/gpio"
)

func TestDutyOf(t *testing.T) {
	assert.Equal(t, gpio.Duty(0), dutyOf(0, 0xFF))
	assert.Equal(t, gpio.DutyMax, dutyOf(0xFF, 0xFF))
	assert.Equal(t, gpio.DutyHalf, dutyOf(10000, servoPeriodMicros))
	assert.Equal(t, gpio.Duty(int64(gpio.DutyMax)*1500/20000), dutyOf(1500, servoPeriodMicros))
	assert.Equal(t, gpio.DutyMax, dutyOf(30000, servoPeriodMicros))
}

func TestPinMapping(t *testing.T) {
	assert.Equal(t, "GPIO8", PinName(8))
	assert.Equal(t, gpio.Float, periphPull(hal.PullNone))
	assert.Equal(t, gpio.PullUp, periphPull(hal.PullUp))
	assert.Equal(t, gpio.High, periphLevel(hal.High))
	assert.Equal(t, gpio.Low, periphLevel(hal.Low))
}
