package missimo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/missimo/rangesensor"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`
backend = "serial"
device = "/dev/ttyUSB1"
baud = 57600
reply_timeout = "250ms"
rate = 5

[sensor]
samples = 11
filter = "running"

[drive]
speed = 80
stop_distance = 15
reverse = true
invert_right = false
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, SerialBackend, cfg.Backend)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Device)
	assert.Equal(t, 57600, cfg.Baud)
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.ReplyTimeout))
	assert.Equal(t, 5, cfg.Rate)
	assert.Equal(t, SensorConfig{Samples: 11, Filter: rangesensor.RunningFilter}, cfg.Sensor)
	assert.Equal(t, DriveConfig{Speed: 80, StopDistance: 15, Reverse: true}, cfg.Drive)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`backend = "sim"`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	def := DefaultConfig()
	assert.Equal(t, SimBackend, cfg.Backend)
	assert.Equal(t, def.Sensor, cfg.Sensor)
	assert.Equal(t, def.Drive, cfg.Drive)
	assert.Equal(t, def.Rate, cfg.Rate)
}

func TestParseConfigSim(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader("backend = \"sim\"\n[sim]\ndistance = 25\njitter = 3\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, SimConfig{Distance: 25, Jitter: 3}, cfg.Sim)
}

func TestConfigValidateMaxRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rate = MaxRate
	assert.NoError(t, cfg.Validate())
}

func TestParseConfigBadDuration(t *testing.T) {
	_, err := ParseConfig(strings.NewReader(`reply_timeout = "soon"`))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "bluetooth" }},
		{"no device", func(c *Config) { c.Device = "" }},
		{"bad baud", func(c *Config) { c.Baud = 0 }},
		{"bad timeout", func(c *Config) { c.ReplyTimeout = 0 }},
		{"bad rate", func(c *Config) { c.Rate = 0 }},
		{"rate too high", func(c *Config) { c.Rate = 2_000_000_000 }},
		{"no samples", func(c *Config) { c.Sensor.Samples = 0 }},
		{"bad filter", func(c *Config) { c.Sensor.Filter = "kalman" }},
		{"bad speed", func(c *Config) { c.Drive.Speed = 101 }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			require.NoError(t, cfg.Validate())
			test.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigValidateSimSkipsSerial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = SimBackend
	cfg.Device = ""
	cfg.Baud = 0
	assert.NoError(t, cfg.Validate())
}
