package pinserial

import (
	"errors"
	"fmt"
	"io"

	"libdb.so/missimo/hal"
)

// Server runs incoming packets against a board. It is what the firmware side
// of the link runs.
type Server struct {
	board hal.Board
	// outputs remembers how each output pin was last driven, for reset.
	outputs map[uint8]OpKind
}

// NewServer creates a new server for the given board.
func NewServer(b hal.Board) *Server {
	return &Server{
		board:   b,
		outputs: make(map[uint8]OpKind),
	}
}

// Serve reads packets from rw and answers each one until reading fails. It
// returns nil when rw reaches EOF.
//
// A corrupted or unknown packet is answered with an ErrorPacket. If rw has a
// Buffered() int method, the bytes already received are then dropped so that
// reading resumes at the next packet the host sends rather than in the middle
// of the bad one.
func (s *Server) Serve(rw io.ReadWriter) error {
	for {
		p, err := ReadIncomingPacket(rw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, ErrChecksum) || errors.Is(err, ErrUnknownPacket) {
				if err := WriteOutgoingPacket(rw, ErrorPacket{Message: err.Error()}); err != nil {
					return err
				}
				discardBuffered(rw)
				continue
			}
			return err
		}

		if err := WriteOutgoingPacket(rw, s.Handle(p)); err != nil {
			return err
		}
	}
}

func discardBuffered(r io.Reader) {
	b, ok := r.(interface{ Buffered() int })
	if !ok {
		return
	}
	if n := b.Buffered(); n > 0 {
		io.CopyN(io.Discard, r, int64(n))
	}
}

// Handle runs a single packet and returns the answer to send back.
func (s *Server) Handle(p IncomingPacket) OutgoingPacket {
	switch p := p.(type) {
	case ResetPacket:
		s.reset()
		return AckPacket{IncomingPacketType: p.Type()}

	case BatchPacket:
		v, err := s.Run(p.Ops)
		if err != nil {
			return ErrorPacket{Message: err.Error()}
		}
		return ResultPacket{Value: v}

	default:
		return ErrorPacket{Message: fmt.Sprintf("unknown packet type: %T", p)}
	}
}

// Run validates the operations, then runs them in order. It returns the value
// of the last value-returning operation, or 0 if there was none. Nothing is
// run if any operation is invalid.
func (s *Server) Run(ops []Op) (uint32, error) {
	for i, op := range ops {
		if err := validateOp(op); err != nil {
			return 0, fmt.Errorf("op %d: %w", i, err)
		}
	}

	var v uint32
	for _, op := range ops {
		pin := hal.Pin(op.Pin)

		switch op.Kind {
		case OpSetPull:
			s.board.SetPull(pin, hal.PullMode(op.Arg))
		case OpWriteDigital:
			s.board.WriteDigital(pin, hal.Level(op.Arg))
			s.outputs[op.Pin] = op.Kind
		case OpWaitMicros:
			s.board.WaitMicros(op.Value)
		case OpNowMicros:
			v = s.board.NowMicros()
		case OpPulseIn:
			v = s.board.PulseIn(pin, hal.Level(op.Arg), op.Value)
		case OpWritePWMPulse:
			s.board.WritePWMPulse(pin, op.Value)
			s.outputs[op.Pin] = op.Kind
		case OpWriteAnalog:
			s.board.WriteAnalog(pin, uint8(op.Value))
			s.outputs[op.Pin] = op.Kind
		}
	}

	return v, nil
}

func validateOp(op Op) error {
	switch op.Kind {
	case OpSetPull:
		if op.Arg > uint8(hal.PullDown) {
			return fmt.Errorf("invalid pull mode %d", op.Arg)
		}
	case OpWriteDigital, OpPulseIn:
		if op.Arg > uint8(hal.High) {
			return fmt.Errorf("invalid level %d", op.Arg)
		}
	case OpWriteAnalog:
		if op.Value > 0xFF {
			return fmt.Errorf("invalid analog level %d", op.Value)
		}
	case OpWaitMicros, OpNowMicros, OpWritePWMPulse:
	default:
		return fmt.Errorf("unknown op %s", op.Kind)
	}
	return nil
}

func (s *Server) reset() {
	for pin, kind := range s.outputs {
		switch kind {
		case OpWriteDigital:
			s.board.WriteDigital(hal.Pin(pin), hal.Low)
		case OpWritePWMPulse:
			s.board.WritePWMPulse(hal.Pin(pin), 0)
		case OpWriteAnalog:
			s.board.WriteAnalog(hal.Pin(pin), 0)
		}
	}
}
