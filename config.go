package missimo

import (
	"encoding"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/missimo/rangesensor"
)

// Config is the configuration for the missimo daemon.
type Config struct {
	// Backend is the board backend to use.
	Backend Backend `toml:"backend"`
	// Device is the path to the serial device of the board.
	// This is usually /dev/ttyACM0. Only used by the serial backend.
	Device string `toml:"device"`
	// Baud is the baud rate for the serial connection.
	Baud int `toml:"baud"`
	// ReplyTimeout is how long to wait for the board to answer a batch.
	ReplyTimeout TOMLDuration `toml:"reply_timeout"`
	// Rate is the control loop rate in Hz.
	Rate int `toml:"rate"`

	Sensor SensorConfig `toml:"sensor"`
	Drive  DriveConfig  `toml:"drive"`
	Sim    SimConfig    `toml:"sim"`
}

// MaxRate is the highest control loop rate in Hz.
const MaxRate = 1000

// Backend is the kind of board the daemon talks to.
type Backend string

const (
	// SerialBackend runs pin operations on a microcontroller over a serial
	// line.
	SerialBackend Backend = "serial"
	// PeriphBackend drives the GPIO pins of the host directly.
	PeriphBackend Backend = "periph"
	// SimBackend uses a simulated board with a fixed obstacle.
	SimBackend Backend = "sim"
)

// SensorConfig is the configuration for the rangefinder.
type SensorConfig struct {
	// Samples is the number of readings taken after the first one.
	Samples int `toml:"samples"`
	// Filter is the filter mode, either "anchored" or "running".
	Filter rangesensor.FilterMode `toml:"filter"`
}

// DriveConfig is the configuration for the drive behavior.
type DriveConfig struct {
	// Speed is the cruising speed in percent.
	Speed int `toml:"speed"`
	// StopDistance is the distance in centimeters below which the robot
	// considers the way blocked.
	StopDistance uint32 `toml:"stop_distance"`
	// Reverse makes the robot back off instead of stopping when blocked.
	Reverse bool `toml:"reverse"`
	// InvertRight negates the right servo's speed, for servos mounted
	// mirrored.
	InvertRight bool `toml:"invert_right"`
}

// SimConfig is the configuration for the simulated board.
type SimConfig struct {
	// Distance is the distance of the simulated obstacle in centimeters.
	// Zero simulates a sensor that never sees an echo.
	Distance uint32 `toml:"distance"`
	// Jitter randomly moves each simulated reading by up to this many
	// centimeters either way.
	Jitter uint32 `toml:"jitter"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:      SerialBackend,
		Device:       "/dev/ttyACM0",
		Baud:         115200,
		ReplyTimeout: TOMLDuration(500 * time.Millisecond),
		Rate:         10,
		Sensor: SensorConfig{
			Samples: rangesensor.DefaultSamples,
			Filter:  rangesensor.AnchoredFilter,
		},
		Drive: DriveConfig{
			Speed:        50,
			StopDistance: 20,
			InvertRight:  true,
		},
		Sim: SimConfig{
			Distance: 40,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case SerialBackend:
		if c.Device == "" {
			return errors.New("serial backend needs a device")
		}
		if c.Baud <= 0 {
			return fmt.Errorf("invalid baud rate %d", c.Baud)
		}
		if c.ReplyTimeout <= 0 {
			return fmt.Errorf("invalid reply timeout %v", time.Duration(c.ReplyTimeout))
		}
	case PeriphBackend, SimBackend:
	default:
		return fmt.Errorf("unknown backend %q", string(c.Backend))
	}

	if c.Rate <= 0 || c.Rate > MaxRate {
		return fmt.Errorf("rate %d out of range [1, %d]", c.Rate, MaxRate)
	}

	if c.Sensor.Samples < 1 {
		return fmt.Errorf("invalid sample count %d", c.Sensor.Samples)
	}

	if err := c.Sensor.Filter.Validate(); err != nil {
		return errors.Wrap(err, "invalid sensor filter")
	}

	if c.Drive.Speed < -100 || c.Drive.Speed > 100 {
		return fmt.Errorf("drive speed %d out of range [-100, 100]", c.Drive.Speed)
	}

	return nil
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader. Keys missing from the
// document keep their DefaultConfig value.
func ParseConfig(r io.Reader) (*Config, error) {
	config := DefaultConfig()
	if err := toml.NewDecoder(r).Decode(config); err != nil {
		return nil, err
	}
	return config, nil
}
