// Package pinserial implements the pin serial protocol. The host sends
// batches of pin operations; the board runs each batch back to back on its own
// clock and answers with the value of the batch's last value-returning
// operation.
package pinserial

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Endianness defines the endianness of the protocol.
var Endianness = binary.LittleEndian

// MaxBatchOps is the maximum number of operations in a single batch.
const MaxBatchOps = 255

// OpKind is the kind of a pin operation.
type OpKind uint8

const (
	OpSetPull OpKind = iota
	OpWriteDigital
	OpWaitMicros
	OpNowMicros
	OpPulseIn
	OpWritePWMPulse
	OpWriteAnalog
)

// String returns a string representation of the operation kind.
func (k OpKind) String() string {
	switch k {
	case OpSetPull:
		return "set_pull"
	case OpWriteDigital:
		return "write_digital"
	case OpWaitMicros:
		return "wait_micros"
	case OpNowMicros:
		return "now_micros"
	case OpPulseIn:
		return "pulse_in"
	case OpWritePWMPulse:
		return "write_pwm_pulse"
	case OpWriteAnalog:
		return "write_analog"
	default:
		return fmt.Sprintf("OpKind(%d)", k)
	}
}

// Returns returns true if the operation produces a value. The host sends a
// batch as soon as it holds such an operation, so that the value can be read
// back.
func (k OpKind) Returns() bool {
	return k == OpNowMicros || k == OpPulseIn
}

// Op is a single pin operation. It is 7 bytes on the wire.
type Op struct {
	Kind OpKind
	Pin  uint8
	// Arg is the pull mode or level.
	Arg uint8
	// Value is the duration, timeout, pulse width or analog level.
	Value uint32
}

// IncomingPacketType is a type of packet.
type IncomingPacketType uint8

const (
	TypeResetPacket IncomingPacketType = iota
	TypeBatchPacket
)

// String returns a string representation of the packet type.
func (t IncomingPacketType) String() string {
	switch t {
	case TypeResetPacket:
		return "reset"
	case TypeBatchPacket:
		return "batch"
	default:
		return fmt.Sprintf("IncomingPacketType(%d)", t)
	}
}

// IncomingPacket is a packet sent from the host to the board.
type IncomingPacket interface {
	// Type returns the type of packet.
	Type() IncomingPacketType
}

// ResetPacket is a packet that drives every output used so far low.
type ResetPacket struct{}

// BatchPacket is a packet that runs the given operations in order.
type BatchPacket struct {
	Ops []Op
}

func (p ResetPacket) Type() IncomingPacketType { return TypeResetPacket }
func (p BatchPacket) Type() IncomingPacketType { return TypeBatchPacket }

// OutgoingPacketType is a type of packet.
type OutgoingPacketType uint8

const (
	TypeErrorPacket OutgoingPacketType = iota
	TypePanicPacket
	TypeLogPacket
	TypeAckPacket
	TypeResultPacket
)

// String returns a string representation of the packet type.
func (t OutgoingPacketType) String() string {
	switch t {
	case TypeErrorPacket:
		return "error"
	case TypePanicPacket:
		return "panic"
	case TypeLogPacket:
		return "log"
	case TypeAckPacket:
		return "ack"
	case TypeResultPacket:
		return "result"
	default:
		return fmt.Sprintf("OutgoingPacketType(%d)", t)
	}
}

// OutgoingPacket is a packet sent from the board to the host.
type OutgoingPacket interface {
	// Type returns the type of packet.
	Type() OutgoingPacketType
}

// ErrorPacket is a packet that indicates the last incoming packet failed.
type ErrorPacket struct {
	Message string
}

// PanicPacket is a packet that indicates the program cannot recover.
type PanicPacket struct{}

// LogPacket is a packet that contains a log message.
type LogPacket struct {
	Message string
}

// AckPacket is a packet that acknowledges a packet without a result.
type AckPacket struct {
	IncomingPacketType IncomingPacketType
}

// ResultPacket is the answer to a batch.
type ResultPacket struct {
	Value uint32
}

func (p ErrorPacket) Type() OutgoingPacketType  { return TypeErrorPacket }
func (p PanicPacket) Type() OutgoingPacketType  { return TypePanicPacket }
func (p LogPacket) Type() OutgoingPacketType    { return TypeLogPacket }
func (p AckPacket) Type() OutgoingPacketType    { return TypeAckPacket }
func (p ResultPacket) Type() OutgoingPacketType { return TypeResultPacket }

// ErrChecksum is returned when a packet fails its checksum.
var ErrChecksum = errors.New("packet checksum mismatch")

// ErrUnknownPacket is returned when a packet starts with an unknown type byte.
// The rest of the packet is left unread.
var ErrUnknownPacket = errors.New("unknown packet type")

// ReadIncomingPacket reads an incoming packet from the given reader.
func ReadIncomingPacket(r io.Reader) (IncomingPacket, error) {
	hash := crc32.NewIEEE()
	r = io.TeeReader(r, hash)

	var packet IncomingPacket
	var ptypeBuf [1]byte
	if _, err := io.ReadFull(r, ptypeBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to read incoming packet type: %w", err)
	}

	switch ptype := IncomingPacketType(ptypeBuf[0]); ptype {
	case TypeResetPacket:
		packet = ResetPacket{}

	case TypeBatchPacket:
		var n uint8
		if err := binary.Read(r, Endianness, &n); err != nil {
			return nil, fmt.Errorf("failed to read number of ops: %w", err)
		}
		p := BatchPacket{Ops: make([]Op, n)}
		if err := binary.Read(r, Endianness, p.Ops); err != nil {
			return nil, fmt.Errorf("failed to read ops: %w", err)
		}
		packet = p

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPacket, ptype)
	}

	sum := hash.Sum32()

	var checksum uint32
	if err := binary.Read(r, Endianness, &checksum); err != nil {
		return nil, fmt.Errorf("failed to read packet checksum: %w", err)
	}

	if checksum != sum {
		return nil, ErrChecksum
	}

	return packet, nil
}

// WriteIncomingPacket writes an incoming packet to the given writer.
func WriteIncomingPacket(w io.Writer, p IncomingPacket) error {
	hash := crc32.NewIEEE()
	mw := io.MultiWriter(w, hash)

	switch p := p.(type) {
	case ResetPacket:
		if err := binary.Write(mw, Endianness, TypeResetPacket); err != nil {
			return fmt.Errorf("failed to write packet type: %w", err)
		}
	case BatchPacket:
		if len(p.Ops) > MaxBatchOps {
			return fmt.Errorf("batch of %d ops exceeds %d", len(p.Ops), MaxBatchOps)
		}
		if err := binary.Write(mw, Endianness, TypeBatchPacket); err != nil {
			return fmt.Errorf("failed to write packet type: %w", err)
		}
		if err := binary.Write(mw, Endianness, uint8(len(p.Ops))); err != nil {
			return fmt.Errorf("failed to write number of ops: %w", err)
		}
		if err := binary.Write(mw, Endianness, p.Ops); err != nil {
			return fmt.Errorf("failed to write ops: %w", err)
		}
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	if err := binary.Write(w, Endianness, hash.Sum32()); err != nil {
		return fmt.Errorf("failed to write packet checksum: %w", err)
	}

	return nil
}

// ReadOutgoingPacket reads an outgoing packet from the given reader.
func ReadOutgoingPacket(r io.Reader) (OutgoingPacket, error) {
	hash := crc32.NewIEEE()
	r = io.TeeReader(r, hash)

	var packet OutgoingPacket
	var ptypeBuf [1]byte
	if _, err := io.ReadFull(r, ptypeBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to read outgoing packet type: %w", err)
	}

	switch ptype := OutgoingPacketType(ptypeBuf[0]); ptype {
	case TypeErrorPacket:
		msg, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read error message: %w", err)
		}
		packet = ErrorPacket{Message: msg}

	case TypePanicPacket:
		packet = PanicPacket{}

	case TypeLogPacket:
		msg, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read log message: %w", err)
		}
		packet = LogPacket{Message: msg}

	case TypeAckPacket:
		var p AckPacket
		if err := binary.Read(r, Endianness, &p); err != nil {
			return nil, fmt.Errorf("failed to read acked packet type: %w", err)
		}
		packet = p

	case TypeResultPacket:
		var p ResultPacket
		if err := binary.Read(r, Endianness, &p); err != nil {
			return nil, fmt.Errorf("failed to read result: %w", err)
		}
		packet = p

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPacket, ptype)
	}

	sum := hash.Sum32()

	var checksum uint32
	if err := binary.Read(r, Endianness, &checksum); err != nil {
		return nil, fmt.Errorf("failed to read packet checksum: %w", err)
	}

	if checksum != sum {
		return nil, ErrChecksum
	}

	return packet, nil
}

// WriteOutgoingPacket writes an outgoing packet to the given writer.
func WriteOutgoingPacket(w io.Writer, p OutgoingPacket) error {
	hash := crc32.NewIEEE()
	mw := io.MultiWriter(w, hash)

	if err := binary.Write(mw, Endianness, p.Type()); err != nil {
		return fmt.Errorf("failed to write packet type: %w", err)
	}

	switch p := p.(type) {
	case ErrorPacket:
		if err := writeString(mw, p.Message); err != nil {
			return fmt.Errorf("failed to write error message: %w", err)
		}
	case PanicPacket:
	case LogPacket:
		if err := writeString(mw, p.Message); err != nil {
			return fmt.Errorf("failed to write log message: %w", err)
		}
	case AckPacket, ResultPacket:
		if err := binary.Write(mw, Endianness, p); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	if err := binary.Write(w, Endianness, hash.Sum32()); err != nil {
		return fmt.Errorf("failed to write packet checksum: %w", err)
	}

	return nil
}

func readString(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, Endianness, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		s = s[:0xFFFF]
	}
	if err := binary.Write(w, Endianness, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}
