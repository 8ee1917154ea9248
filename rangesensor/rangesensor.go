// Package rangesensor measures distance with an HC-SR04 style ultrasonic
// rangefinder and smooths the readings.
package rangesensor

import (
	"fmt"

	"libdb.so/missimo/hal"
)

const (
	// MinInterval is the minimum time between two trigger pulses, in
	// microseconds. Triggering sooner picks up echoes of the previous ping.
	MinInterval = 20000
	// IntervalSlack is added on top of the remaining interval when the
	// sensor has to wait.
	IntervalSlack = 100
	// EchoTimeout is the echo duration of the sensor's maximum rated range,
	// in microseconds.
	EchoTimeout = 23200

	settleMicros  = 2
	triggerMicros = 15
	sampleSpacing = 10
)

// DefaultSamples is the number of readings MeasureFiltered folds into the
// first one.
const DefaultSamples = 6

// Distance is a distance in whole centimeters. Zero means "no reading", never
// an object touching the sensor.
type Distance uint32

// Valid returns true if the distance is an actual reading.
func (d Distance) Valid() bool { return d != 0 }

// DistanceFromPulse converts an echo duration to a distance: floor(us / 58.2).
func DistanceFromPulse(us uint32) Distance {
	return Distance(uint64(us) * 10 / 582)
}

// FilterMode selects how MeasureFiltered combines readings.
type FilterMode string

const (
	// AnchoredFilter blends every reading with the first reading of the
	// round: avg = 0.8*first + 0.2*reading. The result is therefore the last
	// valid reading pulled 80% of the way toward the first one. This is what
	// the board firmware has always done.
	AnchoredFilter FilterMode = "anchored"
	// RunningFilter is a regular exponential moving average:
	// avg = 0.8*avg + 0.2*reading.
	RunningFilter FilterMode = "running"
)

// Validate returns an error if the mode is unknown.
func (m FilterMode) Validate() error {
	switch m {
	case AnchoredFilter, RunningFilter:
		return nil
	default:
		return fmt.Errorf("unknown filter mode %q", string(m))
	}
}

// Config is the configuration of a Sensor.
type Config struct {
	// Trigger and Echo are the sensor pins used by MeasureFiltered.
	Trigger hal.Pin
	Echo    hal.Pin
	// Samples is the number of readings taken after the first one by
	// MeasureFiltered. If zero, DefaultSamples is used.
	Samples int
	// Filter is the filter used by MeasureFiltered. If empty,
	// AnchoredFilter is used.
	Filter FilterMode
}

// Sensor is an ultrasonic rangefinder. It must only be used from one
// goroutine.
type Sensor struct {
	board hal.Board
	cfg   Config
	// last is the clock value at which the previous trigger sequence
	// started. It starts at 0, like the board's clock.
	last uint32
}

// New creates a new sensor on the given board.
func New(board hal.Board, cfg Config) *Sensor {
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSamples
	}
	if cfg.Filter == "" {
		cfg.Filter = AnchoredFilter
	}
	return &Sensor{
		board: board,
		cfg:   cfg,
	}
}

// Config returns the effective configuration of the sensor.
func (s *Sensor) Config() Config {
	return s.cfg
}

// Measure takes a single reading. It returns 0 if no echo arrived within
// EchoTimeout.
//
// Measure never fires two trigger pulses less than MinInterval apart: if the
// previous trigger was dt microseconds ago, it first waits
// MinInterval-dt+IntervalSlack microseconds.
func (s *Sensor) Measure(trigger, echo hal.Pin) Distance {
	now := s.board.NowMicros()
	if dt := hal.Elapsed(s.last, now); dt < MinInterval {
		s.board.WaitMicros(MinInterval - dt + IntervalSlack)
		now = s.board.NowMicros()
	}
	s.last = now

	s.board.SetPull(trigger, hal.PullNone)
	s.board.WriteDigital(trigger, hal.Low)
	s.board.WaitMicros(settleMicros)
	s.board.WriteDigital(trigger, hal.High)
	s.board.WaitMicros(triggerMicros)
	s.board.WriteDigital(trigger, hal.Low)

	d := s.board.PulseIn(echo, hal.High, EchoTimeout)
	return DistanceFromPulse(d)
}

// MeasureFiltered takes 1+Samples readings on the configured pins and returns
// the filtered distance. Readings of 0 are skipped. If every reading after the
// first is 0, the first reading is returned as is.
func (s *Sensor) MeasureFiltered() Distance {
	first := float64(s.Measure(s.cfg.Trigger, s.cfg.Echo))
	avg := first

	for i := 0; i < s.cfg.Samples; i++ {
		dist := s.Measure(s.cfg.Trigger, s.cfg.Echo)
		if dist.Valid() {
			switch s.cfg.Filter {
			case RunningFilter:
				avg = 0.8*avg + 0.2*float64(dist)
			default:
				avg = 0.8*first + 0.2*float64(dist)
			}
		}
		s.board.WaitMicros(sampleSpacing)
	}

	return Distance(avg)
}
