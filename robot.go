package missimo

import (
	"libdb.so/missimo/actuator"
	"libdb.so/missimo/board"
	"libdb.so/missimo/hal"
	"libdb.so/missimo/rangesensor"
)

// Robot is the add-on board: one rangefinder, two drive servos and two LED
// groups. It is owned by a single goroutine.
type Robot struct {
	Sensor    *rangesensor.Sensor
	Actuators *actuator.State

	drive    DriveConfig
	obstacle bool
	lit      bool // LEDs reflect obstacle
}

// StepResult is the outcome of a single control step.
type StepResult struct {
	Distance rangesensor.Distance
	Obstacle bool
}

// NewRobot creates a robot on the given board.
func NewRobot(b hal.Board, sensor SensorConfig, drive DriveConfig) *Robot {
	return &Robot{
		Sensor: rangesensor.New(b, rangesensor.Config{
			Trigger: board.TriggerPin,
			Echo:    board.EchoPin,
			Samples: sensor.Samples,
			Filter:  sensor.Filter,
		}),
		Actuators: actuator.New(b),
		drive:     drive,
	}
}

// Step takes a filtered distance reading and drives accordingly. A missing
// reading counts as a clear way.
func (r *Robot) Step() StepResult {
	dist := r.Sensor.MeasureFiltered()
	obstacle := dist.Valid() && uint32(dist) < r.drive.StopDistance

	speed := r.drive.Speed
	switch {
	case !obstacle:
	case r.drive.Reverse:
		speed = -speed
	default:
		speed = 0
	}
	r.setSpeed(speed)

	if !r.lit || obstacle != r.obstacle {
		r.Actuators.SetLED(board.Front, obstacle)
		r.Actuators.SetLED(board.Back, obstacle && r.drive.Reverse)
		r.lit = true
	}
	r.obstacle = obstacle

	return StepResult{
		Distance: dist,
		Obstacle: obstacle,
	}
}

func (r *Robot) setSpeed(speed int) {
	right := speed
	if r.drive.InvertRight {
		right = -right
	}
	r.Actuators.SetServo(board.Left, speed)
	r.Actuators.SetServo(board.Right, right)
}

// Halt stops both servos and turns every LED off.
func (r *Robot) Halt() {
	for _, s := range board.Servos {
		r.Actuators.StopServo(s)
	}
	for _, g := range board.LEDGroups {
		r.Actuators.SetLED(g, false)
	}
	r.lit = false
}
