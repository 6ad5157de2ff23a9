package capture

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by MockPort after Close.
var ErrPortClosed = errors.New("serial port closed")

// MockPort implements TimeoutSerialPorter with scripted reads, for tests
// and dry runs without hardware.
type MockPort struct {
	mu sync.Mutex

	readBuffer  *bytes.Buffer
	writeBuffer *bytes.Buffer

	// ReadError is returned once the read buffer is drained, if set.
	ReadError error

	// BlockReads makes Read wait for AddReadData or Close instead of
	// returning io.EOF on an empty buffer.
	BlockReads bool

	ReadTimeout time.Duration
	Closed      bool
	ReadCalls   int

	readCond *sync.Cond
}

// NewMockPort returns a port that yields data and then io.EOF.
func NewMockPort(data []byte) *MockPort {
	m := &MockPort{
		readBuffer:  bytes.NewBuffer(append([]byte(nil), data...)),
		writeBuffer: bytes.NewBuffer(nil),
	}
	m.readCond = sync.NewCond(&m.mu)
	return m
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReadCalls++
	if m.Closed {
		return 0, ErrPortClosed
	}

	if m.BlockReads {
		for !m.Closed && m.readBuffer.Len() == 0 {
			m.readCond.Wait()
		}
		if m.Closed {
			return 0, ErrPortClosed
		}
	}

	if m.readBuffer.Len() == 0 && m.ReadError != nil {
		return 0, m.ReadError
	}
	return m.readBuffer.Read(p)
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, ErrPortClosed
	}
	return m.writeBuffer.Write(p)
}

// Close marks the port closed and wakes blocked readers.
func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	m.readCond.Broadcast()
	return nil
}

func (m *MockPort) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReadTimeout = timeout
	return nil
}

// AddReadData queues data for subsequent reads.
func (m *MockPort) AddReadData(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readBuffer.Write(data)
	m.readCond.Signal()
}

// Written returns everything written to the port.
func (m *MockPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]byte(nil), m.writeBuffer.Bytes()...)
}

// MockOpener returns an Opener that hands out port and records the paths
// it was asked for.
func MockOpener(port SerialPorter, opened *[]string) Opener {
	var mu sync.Mutex
	return func(path string, opts PortOptions) (SerialPorter, error) {
		if _, err := opts.Normalize(); err != nil {
			return nil, err
		}
		mu.Lock()
		defer mu.Unlock()
		if opened != nil {
			*opened = append(*opened, path)
		}
		return port, nil
	}
}
