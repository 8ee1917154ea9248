package main

import (
	"machine"
	"time"

	"github.com/sparques/pwm"
	"libdb.so/missimo/hal"
	"tinygo.org/x/drivers/servo"
)

// analogPeriod is the 1kHz LED PWM period in nanoseconds.
const analogPeriod = uint64(time.Millisecond)

type pinMode uint8

const (
	modeUnused pinMode = iota
	modeInput
	modeOutput
	modeServo
	modeAnalog
)

type pwmOutput struct {
	group pwm.Group
	ch    uint8
}

// Board runs hal operations on the RP2040's own pins. Pin numbers are GPIO
// numbers.
type Board struct {
	epoch time.Time
	modes map[hal.Pin]pinMode
	pulls map[hal.Pin]machine.PinMode
	pwms   map[hal.Pin]pwmOutput
	servos map[hal.Pin]servo.Servo
}

var _ hal.Board = (*Board)(nil)

// NewBoard creates a new board. Pins are configured on first use.
func NewBoard() *Board {
	return &Board{
		epoch: time.Now(),
		modes: make(map[hal.Pin]pinMode),
		pulls: make(map[hal.Pin]machine.PinMode),
		pwms:   make(map[hal.Pin]pwmOutput),
		servos: make(map[hal.Pin]servo.Servo),
	}
}

func (b *Board) SetPull(pin hal.Pin, mode hal.PullMode) {
	switch mode {
	case hal.PullUp:
		b.pulls[pin] = machine.PinInputPullup
	case hal.PullDown:
		b.pulls[pin] = machine.PinInputPulldown
	default:
		b.pulls[pin] = machine.PinInput
	}
	// Re-apply on next use.
	if b.modes[pin] == modeInput {
		b.modes[pin] = modeUnused
	}
}

func (b *Board) WriteDigital(pin hal.Pin, level hal.Level) {
	p := machine.Pin(pin)
	if b.modes[pin] != modeOutput {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		b.modes[pin] = modeOutput
	}
	p.Set(level == hal.High)
}

func (b *Board) WaitMicros(us uint32) {
	deadline := time.Now().Add(time.Duration(us) * time.Microsecond)
	for time.Now().Before(deadline) {
	}
}

func (b *Board) NowMicros() uint32 {
	return uint32(time.Since(b.epoch) / time.Microsecond)
}

func (b *Board) PulseIn(pin hal.Pin, level hal.Level, timeout uint32) uint32 {
	p := machine.Pin(pin)
	if b.modes[pin] != modeInput {
		mode, ok := b.pulls[pin]
		if !ok {
			mode = machine.PinInput
		}
		p.Configure(machine.PinConfig{Mode: mode})
		b.modes[pin] = modeInput
	}

	want := level == hal.High
	deadline := time.Now().Add(time.Duration(timeout) * time.Microsecond)

	for p.Get() == want {
		if time.Now().After(deadline) {
			return 0
		}
	}
	for p.Get() != want {
		if time.Now().After(deadline) {
			return 0
		}
	}
	start := time.Now()
	for p.Get() == want {
		if time.Now().After(deadline) {
			return 0
		}
	}

	return uint32(time.Since(start) / time.Microsecond)
}

// WritePWMPulse drives a 50Hz servo frame with the given pulse width. A width
// of 0 stops the pulses.
func (b *Board) WritePWMPulse(pin hal.Pin, us uint32) {
	s, ok := b.servos[pin]
	if !ok || b.modes[pin] != modeServo {
		var err error
		s, err = servo.New(pwm.Get(machine.Pin(pin)), machine.Pin(pin))
		if err != nil {
			return
		}
		b.servos[pin] = s
		b.modes[pin] = modeServo
	}
	s.SetMicroseconds(int16(min(us, 0x7FFF)))
}

func (b *Board) WriteAnalog(pin hal.Pin, level uint8) {
	out := b.pwm(pin, analogPeriod)
	out.group.Set(out.ch, scale(out.group.Top(), uint32(level), 0xFF))
}

func (b *Board) pwm(pin hal.Pin, period uint64) pwmOutput {
	if b.modes[pin] == modeAnalog {
		return b.pwms[pin]
	}

	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinPWM})

	group := pwm.Get(p)
	group.Configure(machine.PWMConfig{Period: period})
	ch, _ := group.Channel(p)

	out := pwmOutput{group: group, ch: ch}
	b.pwms[pin] = out
	b.modes[pin] = modeAnalog
	return out
}

func scale(top, v, full uint32) uint32 {
	if v >= full {
		return top
	}
	return uint32(uint64(top) * uint64(v) / uint64(full))
}
