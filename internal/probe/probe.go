// Package probe summarizes batches of rangefinder readings, for calibrating a
// sensor in place.
package probe

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"libdb.so/missimo/rangesensor"
)

// Summary describes a batch of readings. Statistics only cover valid
// readings.
type Summary struct {
	// Count is the total number of readings.
	Count int
	// Dropouts is the number of readings without an echo.
	Dropouts int
	Min      float64
	Max      float64
	Mean     float64
	StdDev   float64
}

// Valid returns the number of readings with an echo.
func (s Summary) Valid() int {
	return s.Count - s.Dropouts
}

// DropoutRatio returns the fraction of readings without an echo.
func (s Summary) DropoutRatio() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Dropouts) / float64(s.Count)
}

// String formats the summary on a single line.
func (s Summary) String() string {
	if s.Valid() == 0 {
		return fmt.Sprintf("n=%d valid=0 dropouts=%d", s.Count, s.Dropouts)
	}
	return fmt.Sprintf(
		"n=%d valid=%d dropouts=%d (%.0f%%) min=%.0fcm max=%.0fcm mean=%.1fcm stddev=%.2fcm",
		s.Count, s.Valid(), s.Dropouts, 100*s.DropoutRatio(),
		s.Min, s.Max, s.Mean, s.StdDev)
}

// Summarize summarizes the given readings.
func Summarize(readings []rangesensor.Distance) Summary {
	s := Summary{Count: len(readings)}

	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		if !r.Valid() {
			s.Dropouts++
			continue
		}
		values = append(values, float64(r))
	}

	if len(values) == 0 {
		return s
	}

	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		s.StdDev = 0
	}

	return s
}

// Take calls measure n times and returns the readings.
func Take(n int, measure func() rangesensor.Distance) []rangesensor.Distance {
	readings := make([]rangesensor.Distance, n)
	for i := range readings {
		readings[i] = measure()
	}
	return readings
}
