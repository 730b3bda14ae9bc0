package framesync

import "fmt"

// Defaults for the capture firmware's wire format.
const (
	DefaultMarker1     byte = 0xFF
	DefaultMarker2     byte = 0xFF
	DefaultPayloadSize      = 512
	// RichHeaderSize covers the range byte and the reserved byte that follow
	// the marker in the distance-sensing firmware.
	RichHeaderSize = 2
	// SimpleHeaderSize is used by firmware that sends the payload straight
	// after the marker.
	SimpleHeaderSize = 0
)

// Range byte values carried in header byte 0.
const (
	RangeOut byte = 0
	RangeIn  byte = 1
)

// Layout describes how a frame is laid out on the wire:
//
//	[Marker[0]][Marker[1]][header: HeaderSize bytes][payload: PayloadSize bytes]
//
// When HeaderSize > 0 the first header byte is the range byte.
type Layout struct {
	Marker      [2]byte
	HeaderSize  int
	PayloadSize int
}

// DefaultLayout returns the rich layout: 0xFF 0xFF, range + reserved, 512 bytes.
func DefaultLayout() Layout {
	return Layout{
		Marker:      [2]byte{DefaultMarker1, DefaultMarker2},
		HeaderSize:  RichHeaderSize,
		PayloadSize: DefaultPayloadSize,
	}
}

// Validate checks the layout is usable.
func (l Layout) Validate() error {
	if l.PayloadSize <= 0 {
		return fmt.Errorf("payload size must be positive, got %d", l.PayloadSize)
	}
	if l.HeaderSize < 0 || l.HeaderSize > 2 {
		return fmt.Errorf("header size must be 0, 1 or 2, got %d", l.HeaderSize)
	}
	return nil
}

// FrameSize is the total number of bytes one aligned frame occupies.
func (l Layout) FrameSize() int {
	return len(l.Marker) + l.HeaderSize + l.PayloadSize
}

// Frame is one decoded protocol unit.
type Frame struct {
	// Valid is false when the range byte held something other than 0 or 1.
	Valid bool
	// InRange reports the distance sensor's verdict. Frames decoded with no
	// header are always valid and in range.
	InRange bool
	// Range is the raw range byte (0 when the layout has no header).
	Range byte
	// Payload holds PayloadSize raw bytes. It aliases the synchronizer's
	// internal buffer and is only valid until the next call to Next.
	Payload []byte
}
