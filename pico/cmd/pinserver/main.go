// Command pinserver runs the board end of the pinserial link on an RP2040.
package main

import (
	"machine"

	"libdb.so/missimo/pinserial"
)

func main() {
	port := usbPort{Serialer: machine.Serial}

	defer func() {
		if r := recover(); r != nil {
			pinserial.WriteOutgoingPacket(port, pinserial.PanicPacket{})
			panic(r)
		}
	}()

	server := pinserial.NewServer(NewBoard())
	pinserial.WriteOutgoingPacket(port, pinserial.LogPacket{Message: "pinserver ready"})

	for {
		if err := server.Serve(port); err != nil {
			pinserial.WriteOutgoingPacket(port, pinserial.ErrorPacket{Message: err.Error()})
		}
	}
}
