package simhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"libdb.so/missimo/hal"
	"libdb.so/missimo/rangesensor"
)

func TestPulseIn(t *testing.T) {
	b := New(10)
	b.Echoes = []uint32{500, 0, 30000}
	b.Echo = FixedDistance(20)

	assert.Equal(t, uint32(500), b.PulseIn(2, hal.High, 23200))
	assert.Equal(t, uint32(510), b.Clock)

	assert.Zero(t, b.PulseIn(2, hal.High, 23200))
	assert.Equal(t, uint32(510+23200), b.Clock)

	assert.Zero(t, b.PulseIn(2, hal.High, 23200), "longer than the timeout")
	assert.Equal(t, uint32(1164), b.PulseIn(2, hal.High, 23200))
}

func TestQuiet(t *testing.T) {
	b := New(0)
	b.Quiet = true
	b.WaitMicros(5)
	b.WriteDigital(1, hal.High)

	assert.Empty(t, b.Events)
	assert.Equal(t, uint32(5), b.Clock)
}

func TestClockWraps(t *testing.T) {
	b := New(^uint32(0))
	b.WaitMicros(2)
	assert.Equal(t, uint32(1), b.NowMicros())
}

func TestJitteredDistance(t *testing.T) {
	echo := JitteredDistance(30, 3)

	seen := make(map[rangesensor.Distance]bool)
	for i := 0; i < 2000; i++ {
		d := rangesensor.DistanceFromPulse(echo(0))
		assert.GreaterOrEqual(t, d, rangesensor.Distance(27))
		assert.LessOrEqual(t, d, rangesensor.Distance(33))
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "readings should vary")
}

func TestJitteredDistanceFloor(t *testing.T) {
	echo := JitteredDistance(2, 10)
	for i := 0; i < 500; i++ {
		assert.GreaterOrEqual(t, rangesensor.DistanceFromPulse(echo(0)), rangesensor.Distance(1))
	}
}

func TestJitteredDistanceNone(t *testing.T) {
	assert.Equal(t, FixedDistance(30)(0), JitteredDistance(30, 0)(0))
}
