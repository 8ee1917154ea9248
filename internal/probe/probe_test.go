package probe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"libdb.so/missimo/rangesensor"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]rangesensor.Distance{10, 0, 20, 30, 0})

	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 2, s.Dropouts)
	assert.Equal(t, 3, s.Valid())
	assert.InDelta(t, 0.4, s.DropoutRatio(), 1e-9)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 30.0, s.Max)
	assert.InDelta(t, 20.0, s.Mean, 1e-9)
	// Sample standard deviation of 10, 20, 30.
	assert.InDelta(t, 10.0, s.StdDev, 1e-9)
}

func TestSummarizeSingle(t *testing.T) {
	s := Summarize([]rangesensor.Distance{42})
	assert.Equal(t, 42.0, s.Mean)
	assert.Zero(t, s.StdDev)
	assert.False(t, math.IsNaN(s.StdDev))
}

func TestSummarizeNoEcho(t *testing.T) {
	s := Summarize([]rangesensor.Distance{0, 0})
	assert.Equal(t, 0, s.Valid())
	assert.Equal(t, 1.0, s.DropoutRatio())
	assert.Equal(t, "n=2 valid=0 dropouts=2", s.String())

	assert.Zero(t, Summarize(nil).DropoutRatio())
}

func TestTake(t *testing.T) {
	var i rangesensor.Distance
	readings := Take(3, func() rangesensor.Distance {
		i++
		return i
	})
	assert.Equal(t, []rangesensor.Distance{1, 2, 3}, readings)
}
