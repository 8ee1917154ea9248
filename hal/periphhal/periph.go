// Package periphhal implements hal.Board on top of the host's own GPIO pins
// using periph.io, for boards wired straight to a Raspberry Pi header.
package periphhal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"libdb.so/missimo/hal"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// ServoFrequency is the frame rate of servo outputs.
	ServoFrequency = 50 * physic.Hertz
	// AnalogFrequency is the PWM frequency of analog outputs.
	AnalogFrequency = physic.KiloHertz

	servoPeriodMicros = 20000
)

// PinName returns the periph name of a pin. Pins are numbered the BCM way.
func PinName(pin hal.Pin) string {
	return fmt.Sprintf("GPIO%d", pin)
}

// Board is a hal.Board backed by periph.io GPIO. Timing is done by busy
// waiting on the host clock, which is only as good as the host's scheduler.
type Board struct {
	logger *slog.Logger
	epoch  time.Time
	pins   map[hal.Pin]gpio.PinIO
	pulls  map[hal.Pin]gpio.Pull
	err    error
}

var (
	_ hal.Board   = (*Board)(nil)
	_ hal.Faulter = (*Board)(nil)
)

// Open initializes the host drivers and returns a new board.
func Open(logger *slog.Logger) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host")
	}
	return &Board{
		logger: logger,
		epoch:  time.Now(),
		pins:   make(map[hal.Pin]gpio.PinIO),
		pulls:  make(map[hal.Pin]gpio.Pull),
	}, nil
}

// Err returns the first pin error, if any.
func (b *Board) Err() error {
	return b.err
}

func (b *Board) fail(err error) {
	if b.err == nil {
		b.err = err
	}
	b.logger.Warn(
		"gpio operation failed",
		"error", err)
}

func (b *Board) pin(pin hal.Pin) gpio.PinIO {
	if p, ok := b.pins[pin]; ok {
		return p
	}
	p := gpioreg.ByName(PinName(pin))
	if p == nil {
		b.fail(fmt.Errorf("no GPIO pin named %s", PinName(pin)))
		return nil
	}
	b.pins[pin] = p
	return p
}

func periphPull(mode hal.PullMode) gpio.Pull {
	switch mode {
	case hal.PullUp:
		return gpio.PullUp
	case hal.PullDown:
		return gpio.PullDown
	default:
		return gpio.Float
	}
}

func periphLevel(level hal.Level) gpio.Level {
	return gpio.Level(level == hal.High)
}

// SetPull records the pull mode of the pin. periph only applies pulls to
// inputs, so it takes effect the next time the pin is read.
func (b *Board) SetPull(pin hal.Pin, mode hal.PullMode) {
	b.pulls[pin] = periphPull(mode)
}

func (b *Board) WriteDigital(pin hal.Pin, level hal.Level) {
	p := b.pin(pin)
	if p == nil {
		return
	}
	if err := p.Out(periphLevel(level)); err != nil {
		b.fail(errors.Wrapf(err, "failed to write %s", p.Name()))
	}
}

func (b *Board) WaitMicros(us uint32) {
	deadline := time.Now().Add(time.Duration(us) * time.Microsecond)
	for time.Now().Before(deadline) {
	}
}

func (b *Board) NowMicros() uint32 {
	return uint32(time.Since(b.epoch).Microseconds())
}

// PulseIn busy-polls the pin. The timeout covers both waiting for the pulse to
// start and the pulse itself.
func (b *Board) PulseIn(pin hal.Pin, level hal.Level, timeout uint32) uint32 {
	p := b.pin(pin)
	if p == nil {
		return 0
	}

	pull, ok := b.pulls[pin]
	if !ok {
		pull = gpio.PullNoChange
	}
	if err := p.In(pull, gpio.NoEdge); err != nil {
		b.fail(errors.Wrapf(err, "failed to configure %s as input", p.Name()))
		return 0
	}

	want := periphLevel(level)
	deadline := time.Now().Add(time.Duration(timeout) * time.Microsecond)

	for p.Read() == want {
		if time.Now().After(deadline) {
			return 0
		}
	}
	for p.Read() != want {
		if time.Now().After(deadline) {
			return 0
		}
	}
	start := time.Now()
	for p.Read() == want {
		if time.Now().After(deadline) {
			return 0
		}
	}

	return uint32(time.Since(start).Microseconds())
}

func (b *Board) WritePWMPulse(pin hal.Pin, us uint32) {
	b.pwm(pin, dutyOf(us, servoPeriodMicros), ServoFrequency)
}

func (b *Board) WriteAnalog(pin hal.Pin, level uint8) {
	b.pwm(pin, dutyOf(uint32(level), 0xFF), AnalogFrequency)
}

func dutyOf(v, full uint32) gpio.Duty {
	if v >= full {
		return gpio.DutyMax
	}
	return gpio.Duty(int64(gpio.DutyMax) * int64(v) / int64(full))
}

func (b *Board) pwm(pin hal.Pin, duty gpio.Duty, f physic.Frequency) {
	p := b.pin(pin)
	if p == nil {
		return
	}
	if err := p.PWM(duty, f); err != nil {
		b.fail(errors.Wrapf(err, "failed to set PWM on %s", p.Name()))
	}
}
