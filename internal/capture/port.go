package capture

import (
	"io"
	"time"
)

// SerialPorter is the subset of a serial port the recorder needs. It lets
// tests substitute a scripted port for real hardware.
type SerialPorter interface {
	io.ReadWriteCloser
}

// TimeoutSerialPorter is implemented by ports that support read timeouts.
type TimeoutSerialPorter interface {
	SerialPorter
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens the port at path.
type Opener func(path string, opts PortOptions) (SerialPorter, error)
