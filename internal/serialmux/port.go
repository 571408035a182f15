package serialmux

import "io"

// SerialPorter is the minimal port abstraction; serial.Port satisfies it.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
