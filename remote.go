package missimo

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"libdb.so/missimo/hal"
	"libdb.so/missimo/pinserial"
)

// RemoteBoard is a hal.Board whose pins live on a microcontroller at the other
// end of a pinserial link.
//
// Operations that return nothing are queued. An operation that returns a value
// sends the queue along with itself as one batch and waits for the answer, so
// a trigger pulse and the pulse_in that follows it run back to back on the
// board without any link latency in between.
type RemoteBoard struct {
	ctx     context.Context
	w       io.Writer
	replies <-chan pinserial.OutgoingPacket
	logger  *slog.Logger
	timeout time.Duration

	queue []pinserial.Op
	err   error
}

var (
	_ hal.Board   = (*RemoteBoard)(nil)
	_ hal.Faulter = (*RemoteBoard)(nil)
)

// NewRemoteBoard creates a new remote board writing batches to w. Answers from
// the board must be delivered on replies; log packets are handled by whoever
// reads the link and must not be sent there.
func NewRemoteBoard(ctx context.Context, w io.Writer, replies <-chan pinserial.OutgoingPacket, timeout time.Duration, logger *slog.Logger) *RemoteBoard {
	return &RemoteBoard{
		ctx:     ctx,
		w:       w,
		replies: replies,
		logger:  logger,
		timeout: timeout,
		queue:   make([]pinserial.Op, 0, pinserial.MaxBatchOps),
	}
}

// Err returns the error that broke the link, if any. Once set, every
// operation is a no-op that returns 0.
func (b *RemoteBoard) Err() error {
	return b.err
}

// Reset asks the board to drive its outputs low and waits for the
// acknowledgement.
func (b *RemoteBoard) Reset() error {
	b.queue = b.queue[:0]
	if _, err := b.roundTrip(pinserial.ResetPacket{}); err != nil {
		return err
	}
	return nil
}

// Flush sends the queued operations and waits for the board to run them.
func (b *RemoteBoard) Flush() {
	if len(b.queue) > 0 {
		b.flush()
	}
}

func (b *RemoteBoard) SetPull(pin hal.Pin, mode hal.PullMode) {
	b.enqueue(pinserial.Op{Kind: pinserial.OpSetPull, Pin: uint8(pin), Arg: uint8(mode)})
}

func (b *RemoteBoard) WriteDigital(pin hal.Pin, level hal.Level) {
	b.enqueue(pinserial.Op{Kind: pinserial.OpWriteDigital, Pin: uint8(pin), Arg: uint8(level)})
}

func (b *RemoteBoard) WaitMicros(us uint32) {
	b.enqueue(pinserial.Op{Kind: pinserial.OpWaitMicros, Value: us})
}

func (b *RemoteBoard) NowMicros() uint32 {
	return b.enqueue(pinserial.Op{Kind: pinserial.OpNowMicros})
}

func (b *RemoteBoard) PulseIn(pin hal.Pin, level hal.Level, timeout uint32) uint32 {
	return b.enqueue(pinserial.Op{Kind: pinserial.OpPulseIn, Pin: uint8(pin), Arg: uint8(level), Value: timeout})
}

func (b *RemoteBoard) WritePWMPulse(pin hal.Pin, us uint32) {
	b.enqueue(pinserial.Op{Kind: pinserial.OpWritePWMPulse, Pin: uint8(pin), Value: us})
}

func (b *RemoteBoard) WriteAnalog(pin hal.Pin, level uint8) {
	b.enqueue(pinserial.Op{Kind: pinserial.OpWriteAnalog, Pin: uint8(pin), Value: uint32(level)})
}

// enqueue queues op. If op returns a value, the queue is sent right away and
// the value is returned.
func (b *RemoteBoard) enqueue(op pinserial.Op) uint32 {
	if b.err != nil {
		return 0
	}
	if len(b.queue) == pinserial.MaxBatchOps {
		b.flush()
	}
	b.queue = append(b.queue, op)
	if op.Kind.Returns() {
		return b.flush()
	}
	return 0
}

// flush sends the queue as a batch and returns the board's result. It returns
// 0 if the batch failed.
func (b *RemoteBoard) flush() uint32 {
	if b.err != nil {
		b.queue = b.queue[:0]
		return 0
	}

	batch := pinserial.BatchPacket{Ops: b.queue}
	defer func() { b.queue = b.queue[:0] }()

	reply, err := b.roundTrip(batch)
	if err != nil {
		b.logger.Warn(
			"batch failed",
			"ops", len(batch.Ops),
			"error", err)
		return 0
	}

	result, ok := reply.(pinserial.ResultPacket)
	if !ok {
		b.logger.Warn(
			"unexpected reply to batch",
			"type", reply.Type())
		return 0
	}

	return result.Value
}

// errBoardRejected marks a packet the board answered with an error. It does
// not break the link.
var errBoardRejected = errors.New("board rejected packet")

func (b *RemoteBoard) roundTrip(p pinserial.IncomingPacket) (pinserial.OutgoingPacket, error) {
	if b.err != nil {
		return nil, b.err
	}

	b.logger.Debug(
		"writing packet",
		"type", p.Type())

	if err := pinserial.WriteIncomingPacket(b.w, p); err != nil {
		b.err = errors.Wrap(err, "failed to write packet")
		return nil, b.err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case <-b.ctx.Done():
		b.err = b.ctx.Err()
		return nil, b.err

	case <-timer.C:
		b.err = errors.Errorf("no reply to %s packet within %v", p.Type(), b.timeout)
		return nil, b.err

	case reply, ok := <-b.replies:
		if !ok {
			b.err = errors.New("link closed")
			return nil, b.err
		}
		if e, ok := reply.(pinserial.ErrorPacket); ok {
			return nil, errors.Wrap(errBoardRejected, e.Message)
		}
		return reply, nil
	}
}
