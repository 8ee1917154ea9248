package main

import (
	"io"
	"machine"
	"runtime"
)

// usbPort adapts a machine.Serialer to a blocking io.ReadWriter.
type usbPort struct {
	machine.Serialer
}

var _ io.ReadWriter = usbPort{}

// Read blocks until at least one byte is available, then returns what is
// buffered.
func (s usbPort) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	for s.Buffered() == 0 {
		runtime.Gosched()
	}

	var n int
	for n < len(b) && s.Buffered() > 0 {
		c, err := s.ReadByte()
		if err != nil {
			return n, err
		}
		b[n] = c
		n++
	}
	return n, nil
}

func (s usbPort) Write(b []byte) (int, error) {
	for i, c := range b {
		if err := s.WriteByte(c); err != nil {
			return i, err
		}
	}
	return len(b), nil
}
