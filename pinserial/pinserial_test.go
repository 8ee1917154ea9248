package pinserial

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchPacket(t *testing.T) {
	batch := BatchPacket{Ops: []Op{
		{Kind: OpSetPull, Pin: 8, Arg: 0},
		{Kind: OpWriteDigital, Pin: 8, Arg: 1},
		{Kind: OpWaitMicros, Value: 15},
		{Kind: OpPulseIn, Pin: 2, Arg: 1, Value: 23200},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteIncomingPacket(&buf, batch))

	// type, count, 7 bytes per op, crc32
	assert.Equal(t, 1+1+7*len(batch.Ops)+4, buf.Len())

	p, err := ReadIncomingPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, batch, p)
	assert.Zero(t, buf.Len())
}

func TestBatchPacketTooLarge(t *testing.T) {
	batch := BatchPacket{Ops: make([]Op, MaxBatchOps+1)}
	assert.Error(t, WriteIncomingPacket(io.Discard, batch))
}

func TestIncomingChecksum(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIncomingPacket(&buf, BatchPacket{Ops: []Op{
		{Kind: OpWritePWMPulse, Pin: 13, Value: 1500},
	}}))

	b := buf.Bytes()
	b[len(b)-5] ^= 0xFF // last byte of the op

	_, err := ReadIncomingPacket(bytes.NewReader(b))
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestOutgoingPackets(t *testing.T) {
	packets := []OutgoingPacket{
		ResultPacket{Value: 1164},
		AckPacket{IncomingPacketType: TypeResetPacket},
		LogPacket{Message: "ready"},
		ErrorPacket{Message: "invalid pin 99"},
		PanicPacket{},
	}

	var buf bytes.Buffer
	for _, p := range packets {
		require.NoError(t, WriteOutgoingPacket(&buf, p))
	}

	for _, want := range packets {
		p, err := ReadOutgoingPacket(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, p)
	}

	_, err := ReadOutgoingPacket(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestUnknownPacketType(t *testing.T) {
	_, err := ReadIncomingPacket(bytes.NewReader([]byte{0x7F}))
	assert.ErrorContains(t, err, "unknown packet type")

	_, err = ReadOutgoingPacket(bytes.NewReader([]byte{0x7F}))
	assert.ErrorContains(t, err, "unknown packet type")
}

func TestOpKindReturns(t *testing.T) {
	for k := OpSetPull; k <= OpWriteAnalog; k++ {
		want := k == OpNowMicros || k == OpPulseIn
		assert.Equal(t, want, k.Returns(), "op %s", k)
	}
}
