package sensor

import (
	"bytes"
	"errors"
	"sync"
)

// MockPort implements Port with scripted responses, enabling gauge
// tests without hardware.
type MockPort struct {
	mu sync.Mutex

	// ReadBuffer holds data returned by Read calls.
	ReadBuffer *bytes.Buffer
	// WriteBuffer captures data written to the port.
	WriteBuffer *bytes.Buffer
	// ReadError is returned by the next Read call if set.
	ReadError error
	// Closed indicates whether Close was called.
	Closed bool
}

// NewMockPort returns an empty mock port.
func NewMockPort() *MockPort {
	return &MockPort{ReadBuffer: bytes.NewBuffer(nil), WriteBuffer: bytes.NewBuffer(nil)}
}

// QueueTelegram appends a response line, terminated, to the read buffer.
func (m *MockPort) QueueTelegram(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadBuffer.WriteString(s)
	m.ReadBuffer.WriteByte(EOL)
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, errors.New("port closed")
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.ReadError = nil
		return 0, err
	}
	if m.ReadBuffer.Len() == 0 {
		// emulate a serial read timeout
		return 0, nil
	}
	return m.ReadBuffer.Read(p)
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, errors.New("port closed")
	}
	return m.WriteBuffer.Write(p)
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// WrittenData returns everything the gauge has written to the port.
func (m *MockPort) WrittenData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.WriteBuffer.Bytes()...)
}

// MockOpener returns a PortOpener that always hands out port.
func MockOpener(port Port) PortOpener {
	return func(string, PortMode) (Port, error) { return port, nil }
}

// FailingOpener returns a PortOpener that always fails, for exercising
// self-test gates.
func FailingOpener(err error) PortOpener {
	return func(string, PortMode) (Port, error) { return nil, err }
}
