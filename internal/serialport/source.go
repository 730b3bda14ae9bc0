package serialport

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrTimeout is returned when a read returned no data within the port's
	// read timeout. Nothing was consumed; the caller may simply retry.
	ErrTimeout = errors.New("serial read timed out")

	// ErrClosed is returned once the stream has ended, either because the
	// device went away or because the port was closed.
	ErrClosed = errors.New("serial stream closed")
)

// ByteSource is a sequential, blocking byte stream.
type ByteSource interface {
	// ReadByte returns the next byte, ErrTimeout if none arrived in time, or
	// ErrClosed once the stream has ended.
	ReadByte() (byte, error)
	// Read reads up to len(p) bytes. It may return fewer than requested;
	// (0, ErrTimeout) means nothing arrived in time.
	Read(p []byte) (int, error)
	// Flush drops any pending, unread input.
	Flush() error
}

const defaultReadBufferSize = 4096

// Source adapts a SerialPorter into a ByteSource. It keeps a small read-ahead
// buffer so byte-at-a-time marker scanning does not cost a syscall per byte.
type Source struct {
	port SerialPorter
	buf  []byte
	r, w int
	err  error
}

// NewSource wraps port. The port's read timeout governs how long each call
// may block before returning ErrTimeout.
func NewSource(port SerialPorter) *Source {
	return &Source{
		port: port,
		buf:  make([]byte, defaultReadBufferSize),
	}
}

// Buffered reports how many read-ahead bytes are waiting.
func (s *Source) Buffered() int { return s.w - s.r }

// fill performs exactly one read from the port into the empty buffer.
func (s *Source) fill() error {
	if s.err != nil {
		return s.err
	}
	s.r, s.w = 0, 0
	n, err := s.port.Read(s.buf)
	if n < 0 || n > len(s.buf) {
		return fmt.Errorf("serial port returned invalid count %d", n)
	}
	s.w = n
	if n > 0 {
		// Hand out what arrived; a trailing error surfaces on the next fill.
		if err != nil {
			s.err = classifyReadError(err)
		}
		return nil
	}
	if err != nil {
		s.err = classifyReadError(err)
		return s.err
	}
	return ErrTimeout
}

func classifyReadError(err error) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, os.ErrClosed):
		return ErrClosed
	case errors.Is(err, ErrClosed), errors.Is(err, ErrTimeout):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
}

// ReadByte implements ByteSource.
func (s *Source) ReadByte() (byte, error) {
	if s.r == s.w {
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
	b := s.buf[s.r]
	s.r++
	return b, nil
}

// Read implements ByteSource.
func (s *Source) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.r == s.w {
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, s.buf[s.r:s.w])
	s.r += n
	return n, nil
}

// Flush drops the read-ahead buffer and asks the port to discard anything the
// driver has queued.
func (s *Source) Flush() error {
	s.r, s.w = 0, 0
	if ir, ok := s.port.(InputResetter); ok {
		if err := ir.ResetInputBuffer(); err != nil {
			return fmt.Errorf("failed to reset serial input: %w", err)
		}
	}
	return nil
}

// Close closes the underlying port.
func (s *Source) Close() error {
	return s.port.Close()
}
