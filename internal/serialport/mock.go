package serialport

import (
	"errors"
	"io"
	"sync"
	"time"
)

// TestableSerialPort implements SerialPorter with scripted behaviour for
// testing. Reads are served from a queue of chunks; a nil chunk simulates a
// read that timed out with no data.
type TestableSerialPort struct {
	mu sync.Mutex

	chunks [][]byte

	// MaxReadSize caps the bytes handed out per Read call (0 = no cap), to
	// exercise short reads.
	MaxReadSize int

	// EOFWhenDrained makes Read return io.EOF once the script is exhausted.
	// Otherwise an empty queue behaves like a timeout.
	EOFWhenDrained bool

	// DropOnReset discards queued chunks when ResetInputBuffer is called,
	// as real hardware would.
	DropOnReset bool

	// ReadError is returned by the next Read call if set
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	// ResetCalls records the number of ResetInputBuffer calls
	ResetCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	return &TestableSerialPort{}
}

// NewScriptedPort returns a port that yields data and then reports EOF.
func NewScriptedPort(data []byte) *TestableSerialPort {
	p := &TestableSerialPort{EOFWhenDrained: true}
	p.AddReadData(data)
	return p
}

// Read serves the next scripted chunk.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.Closed {
		return 0, io.EOF
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if len(t.chunks) == 0 {
		if t.EOFWhenDrained {
			return 0, io.EOF
		}
		return 0, nil
	}

	chunk := t.chunks[0]
	if chunk == nil {
		t.chunks = t.chunks[1:]
		return 0, nil
	}

	limit := len(p)
	if t.MaxReadSize > 0 && t.MaxReadSize < limit {
		limit = t.MaxReadSize
	}
	n = copy(p[:limit], chunk)
	if n == len(chunk) {
		t.chunks = t.chunks[1:]
	} else {
		t.chunks[0] = chunk[n:]
	}
	return n, nil
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	return t.CloseError
}

// SetReadTimeout implements TimeoutSerialPorter.
func (t *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadTimeout = timeout
	return nil
}

// ResetInputBuffer implements InputResetter.
func (t *TestableSerialPort) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ResetCalls++
	if t.DropOnReset {
		t.chunks = nil
	}
	return nil
}

// AddReadData queues data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(data) == 0 {
		return
	}
	t.chunks = append(t.chunks, append([]byte(nil), data...))
}

// AddTimeout queues a read that returns no data.
func (t *TestableSerialPort) AddTimeout() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.chunks = append(t.chunks, nil)
}

// Pending returns the number of queued bytes not yet read.
func (t *TestableSerialPort) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, c := range t.chunks {
		n += len(c)
	}
	return n
}

// MockSerialPortFactory implements SerialPortFactory for testing.
type MockSerialPortFactory struct {
	mu sync.Mutex

	// Port is the port to return from Open
	Port SerialPorter

	// Error is returned by Open if set
	Error error

	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Opts PortOptions
}

// NewMockSerialPortFactory creates a new MockSerialPortFactory.
func NewMockSerialPortFactory(port SerialPorter) *MockSerialPortFactory {
	return &MockSerialPortFactory{Port: port}
}

// Open returns the configured port or error.
func (f *MockSerialPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Opts: opts})

	if f.Error != nil {
		return nil, f.Error
	}
	if f.Port == nil {
		return nil, errors.New("mock factory has no port")
	}
	return f.Port, nil
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockSerialPortFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}
