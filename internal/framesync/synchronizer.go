// Package framesync recovers fixed-size frames from a continuous byte stream
// delimited only by a two-byte start marker.
//
// The decoder scans one byte at a time for the marker. A mismatch on the
// second marker byte throws both bytes away and scanning restarts at the next
// byte, so alignment is regained after any slip, drop or noise burst at the
// cost of the bytes skipped while hunting.
package framesync

import (
	"github.com/banshee-data/audio.capture/internal/serialport"
)

type phase int

const (
	phaseHuntFirst phase = iota
	phaseHuntSecond
	phaseHeader
	phasePayload
)

// Stats counts what the synchronizer has seen since it was created.
type Stats struct {
	// Frames is the number of complete frames emitted.
	Frames uint64
	// Invalid counts emitted frames whose range byte was not 0 or 1.
	Invalid uint64
	// Discarded is the number of bytes skipped while hunting for a marker.
	Discarded uint64
	// Resyncs counts frames that were preceded by discarded bytes.
	Resyncs uint64
}

// Synchronizer yields aligned frames from a ByteSource.
//
// Next is resumable: if the source times out part-way through a frame, the
// bytes already read are kept and the following call carries on from the same
// position. A Synchronizer is not safe for concurrent use.
type Synchronizer struct {
	src    serialport.ByteSource
	layout Layout

	phase   phase
	n       int
	header  [2]byte
	payload []byte
	skipped int

	stats Stats
}

// New creates a Synchronizer reading from src.
func New(src serialport.ByteSource, layout Layout) (*Synchronizer, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Synchronizer{
		src:     src,
		layout:  layout,
		payload: make([]byte, layout.PayloadSize),
	}, nil
}

// Layout returns the wire layout in use.
func (s *Synchronizer) Layout() Layout { return s.layout }

// Stats returns a snapshot of the counters.
func (s *Synchronizer) Stats() Stats { return s.stats }

// Reset abandons any partially read frame and returns to marker hunting.
// Call it after the underlying source has been flushed.
func (s *Synchronizer) Reset() {
	s.phase = phaseHuntFirst
	s.n = 0
	s.skipped = 0
}

// Next blocks until a complete frame has been read. Errors from the source
// are returned unchanged: serialport.ErrTimeout means "call again",
// serialport.ErrClosed means the stream has ended.
func (s *Synchronizer) Next() (Frame, error) {
	for {
		switch s.phase {
		case phaseHuntFirst:
			b, err := s.src.ReadByte()
			if err != nil {
				return Frame{}, err
			}
			if b == s.layout.Marker[0] {
				s.phase = phaseHuntSecond
			} else {
				s.skip(1)
			}

		case phaseHuntSecond:
			b, err := s.src.ReadByte()
			if err != nil {
				return Frame{}, err
			}
			if b == s.layout.Marker[1] {
				s.phase = phaseHeader
				s.n = 0
			} else {
				// Both bytes are dropped; b is not re-tested as a first marker byte.
				s.skip(2)
				s.phase = phaseHuntFirst
			}

		case phaseHeader:
			for s.n < s.layout.HeaderSize {
				b, err := s.src.ReadByte()
				if err != nil {
					return Frame{}, err
				}
				s.header[s.n] = b
				s.n++
			}
			s.phase = phasePayload
			s.n = 0

		case phasePayload:
			for s.n < s.layout.PayloadSize {
				m, err := s.src.Read(s.payload[s.n:])
				s.n += m
				if err != nil {
					return Frame{}, err
				}
			}
			return s.emit(), nil
		}
	}
}

func (s *Synchronizer) skip(n int) {
	s.skipped += n
	s.stats.Discarded += uint64(n)
}

func (s *Synchronizer) emit() Frame {
	f := Frame{Valid: true, InRange: true, Payload: s.payload}
	if s.layout.HeaderSize > 0 {
		f.Range = s.header[0]
		switch f.Range {
		case RangeIn:
		case RangeOut:
			f.InRange = false
		default:
			f.Valid = false
			f.InRange = false
			s.stats.Invalid++
			opsf("frame %d: unexpected range byte 0x%02x", s.stats.Frames+1, f.Range)
		}
	}

	s.stats.Frames++
	if s.skipped > 0 {
		s.stats.Resyncs++
		diagf("resynchronised after discarding %d bytes (frame %d)", s.skipped, s.stats.Frames)
	}
	tracef("frame %d range=%d valid=%t", s.stats.Frames, f.Range, f.Valid)

	s.phase = phaseHuntFirst
	s.n = 0
	s.skipped = 0
	return f
}
