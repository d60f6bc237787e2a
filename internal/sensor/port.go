package sensor

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the minimal interface the gauge needs from a serial port.
// The abstraction enables unit testing without real hardware.
type Port interface {
	io.ReadWriter
	io.Closer
}

// PortMode holds the serial line parameters for the gauge's RS-232
// interface.
type PortMode struct {
	BaudRate    int
	DataBits    int
	ReadTimeout time.Duration
}

// DefaultPortMode returns the torque gauge line settings (19200 8N1).
func DefaultPortMode() PortMode {
	return PortMode{BaudRate: 19200, DataBits: 8, ReadTimeout: 20 * time.Millisecond}
}

// PortOpener opens a serial port at the given path. Injected so tests
// can substitute an in-memory port.
type PortOpener func(path string, mode PortMode) (Port, error)

// OpenSerialPort is the real opener backed by the host serial stack.
func OpenSerialPort(path string, mode PortMode) (Port, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: mode.BaudRate,
		DataBits: mode.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if mode.ReadTimeout > 0 {
		if err := port.SetReadTimeout(mode.ReadTimeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	return port, nil
}
