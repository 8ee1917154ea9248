package actuator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/missimo/board"
	"libdb.so/missimo/hal/simhal"
)

func TestPulseForPercent(t *testing.T) {
	tests := []struct {
		percent int
		want    int
	}{
		{0, PulseCenter},
		{100, PulseMax},
		{-100, PulseMin},
		{50, 1650},
		{-50, 1350},
		{1, 1503},
		{-1, 1497},
		{150, PulseMax},
		{-1000, PulseMin},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, PulseForPercent(test.percent), "percent %d", test.percent)
	}
}

func TestPulseSymmetry(t *testing.T) {
	for p := 1; p <= 100; p++ {
		fwd := PulseForPercent(p)
		rev := PulseForPercent(-p)
		assert.Greater(t, fwd, PulseCenter)
		assert.Less(t, rev, PulseCenter)
		assert.Equal(t, PulseCenter-(fwd-PulseCenter), rev, "percent %d", p)
	}
}

func TestSetServoDedup(t *testing.T) {
	b := simhal.New(0)
	s := New(b)

	s.SetServo(board.Left, 0)
	s.SetServo(board.Left, 0)
	s.StopServo(board.Left)

	writes := b.Filter(simhal.WritePWMPulse)
	require.Len(t, writes, 1)
	assert.Equal(t, board.Left.Pin(), writes[0].Pin)
	assert.Equal(t, uint32(PulseCenter), writes[0].Value)
}

func TestSetServoFirstWrite(t *testing.T) {
	for _, id := range board.Servos {
		b := simhal.New(0)
		s := New(b)

		_, ok := s.Pulse(id)
		assert.False(t, ok, "servo %s", id)

		s.StopServo(id)
		assert.Len(t, b.Filter(simhal.WritePWMPulse), 1, "servo %s", id)

		p, ok := s.Pulse(id)
		assert.True(t, ok)
		assert.Equal(t, PulseCenter, p)
	}
}

func TestSetServoChanges(t *testing.T) {
	b := simhal.New(0)
	s := New(b)

	s.SetServo(board.Left, 50)
	s.SetServo(board.Left, -50)
	s.SetServo(board.Right, 100)
	s.SetServo(board.Right, -100)
	s.SetServo(board.Right, -120) // clamps to the same pulse

	want := []simhal.Event{
		{Kind: simhal.WritePWMPulse, Pin: board.Left.Pin(), Value: 1650},
		{Kind: simhal.WritePWMPulse, Pin: board.Left.Pin(), Value: 1350},
		{Kind: simhal.WritePWMPulse, Pin: board.Right.Pin(), Value: PulseMax},
		{Kind: simhal.WritePWMPulse, Pin: board.Right.Pin(), Value: PulseMin},
	}
	if diff := cmp.Diff(want, b.Events); diff != "" {
		t.Errorf("unexpected writes (-want +got):\n%s", diff)
	}
}

func TestSetServoIndependent(t *testing.T) {
	b := simhal.New(0)
	s := New(b)

	s.SetServo(board.Left, 30)
	s.SetServo(board.Right, 30)
	s.SetServo(board.Left, 30)

	assert.Len(t, b.Filter(simhal.WritePWMPulse), 2)
}

func TestSetLED(t *testing.T) {
	b := simhal.New(0)
	s := New(b)

	s.SetLED(board.Front, true)
	s.SetLED(board.Front, true)
	s.SetLED(board.Back, false)

	front := board.Front.Pins()
	back := board.Back.Pins()
	want := []simhal.Event{
		{Kind: simhal.WriteAnalog, Pin: front[0], Value: 255},
		{Kind: simhal.WriteAnalog, Pin: front[1], Value: 255},
		{Kind: simhal.WriteAnalog, Pin: front[0], Value: 255},
		{Kind: simhal.WriteAnalog, Pin: front[1], Value: 255},
		{Kind: simhal.WriteAnalog, Pin: back[0], Value: 0},
		{Kind: simhal.WriteAnalog, Pin: back[1], Value: 0},
	}
	if diff := cmp.Diff(want, b.Events); diff != "" {
		t.Errorf("unexpected writes (-want +got):\n%s", diff)
	}
}
