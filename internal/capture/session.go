package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/audio.capture/internal/framesync"
	"github.com/banshee-data/audio.capture/internal/serialport"
	"github.com/banshee-data/audio.capture/internal/timeutil"
)

// ErrNoCapture is returned when the stream ended before anything was
// recorded.
var ErrNoCapture = errors.New("stream ended before anything was captured")

// distanceBufferFrames sizes the initial buffer in distance mode, where the
// recording length is not known up front.
const distanceBufferFrames = 64

// Summary describes the pending recording at the save/discard prompt.
type Summary struct {
	Frames     int
	Bytes      int
	SampleRate int
}

// Duration is the audio length the held bytes represent.
func (s Summary) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	samples := s.Bytes / 2
	return time.Duration(samples) * time.Second / time.Duration(s.SampleRate)
}

// Decider answers the save/discard prompt. Returning DecisionNone (or any
// unrecognised value) causes the prompt to be asked again.
type Decider interface {
	Decide(ctx context.Context, s Summary) (Decision, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, s Summary) (Decision, error)

// Decide implements Decider.
func (f DeciderFunc) Decide(ctx context.Context, s Summary) (Decision, error) { return f(ctx, s) }

// Result is a completed capture.
type Result struct {
	ID         string
	Mode       Mode
	SampleRate int
	// Raw holds the retained frame payloads, in order.
	Raw []byte
	// Frames is the number of payloads in Raw.
	Frames int
	// Discards counts recordings thrown away at the prompt before this one.
	Discards int
	// Implicit is set when the stream closed before the capture finished on
	// its own and the partial recording was kept.
	Implicit  bool
	StartedAt time.Time
	EndedAt   time.Time
	Sync      framesync.Stats
}

// Session runs one capture. It owns the synchronizer and the buffer for the
// lifetime of Run and must not be shared.
type Session struct {
	cfg     Config
	src     serialport.ByteSource
	sync    *framesync.Synchronizer
	decider Decider
	clock   timeutil.Clock
	id      string

	machine  Machine
	buf      *Buffer
	discards int
	timeouts int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock overrides the clock used for timestamps.
func WithClock(c timeutil.Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithID overrides the generated capture ID.
func WithID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// NewSession validates cfg and prepares a session reading from src. decider
// may be nil in manual mode.
func NewSession(cfg Config, src serialport.ByteSource, decider Decider, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}
	if cfg.Mode == ModeDistance && decider == nil {
		return nil, errors.New("distance mode requires a decider")
	}
	sync, err := framesync.New(src, cfg.Layout)
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:     cfg,
		src:     src,
		sync:    sync,
		decider: decider,
		clock:   timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	return s, nil
}

// ID returns the capture ID.
func (s *Session) ID() string { return s.id }

// Machine exposes the state machine, mainly for tests and progress reporting.
// It is nil until Run starts.
func (s *Session) Machine() Machine { return s.machine }

// Run blocks until the capture reaches a terminal state, the stream closes,
// or ctx is cancelled.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if s.machine != nil {
		return nil, errors.New("session already run")
	}
	started := s.clock.Now()

	switch s.cfg.Mode {
	case ModeManual:
		target := s.cfg.TargetFrames()
		s.buf = NewBuffer(target * s.cfg.Layout.PayloadSize)
		s.machine = NewManual(target, s.buf)
		diagf("capture %s: manual, %d frames for %s", s.id, target, s.cfg.Duration)
	case ModeDistance:
		s.buf = NewBuffer(distanceBufferFrames * s.cfg.Layout.PayloadSize)
		trig := NewTrigger(s.cfg.OnThreshold, s.cfg.OffThreshold, s.buf)
		s.machine = trig
		if err := s.flush(); err != nil {
			return nil, err
		}
		diagf("capture %s: distance, on=%d off=%d", s.id, s.cfg.OnThreshold, s.cfg.OffThreshold)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := s.sync.Next()
		switch {
		case errors.Is(err, serialport.ErrTimeout):
			s.timeouts++
			tracef("capture %s: read timeout (%d), state %s", s.id, s.timeouts, s.machine.State())
			continue
		case errors.Is(err, serialport.ErrClosed):
			if s.machine.StreamClosed() {
				opsf("capture %s: stream closed in progress; keeping %d bytes", s.id, s.buf.Len())
				return s.result(started, true), nil
			}
			return nil, fmt.Errorf("%w: %w", ErrNoCapture, err)
		case err != nil:
			return nil, err
		}

		action, err := s.machine.Observe(f)
		if err != nil {
			return nil, err
		}
		switch action {
		case ActionDone:
			return s.result(started, false), nil
		case ActionDecide:
			saved, err := s.decide(ctx)
			if err != nil {
				return nil, err
			}
			if saved {
				return s.result(started, false), nil
			}
		}
	}
}

// decide asks for a decision until a valid one arrives. It reports whether
// the recording was saved.
func (s *Session) decide(ctx context.Context) (bool, error) {
	trig, ok := s.machine.(*Trigger)
	if !ok {
		return false, fmt.Errorf("decision requested by %T", s.machine)
	}
	summary := Summary{Frames: trig.Retained(), Bytes: s.buf.Len(), SampleRate: s.cfg.SampleRate}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		d, err := s.decider.Decide(ctx, summary)
		if err != nil {
			return false, fmt.Errorf("save/discard prompt: %w", err)
		}
		err = trig.Resolve(d)
		if errors.Is(err, ErrInvalidDecision) {
			diagf("capture %s: rejected decision %v, asking again", s.id, d)
			continue
		}
		if err != nil {
			return false, err
		}
		break
	}

	if trig.State() == StateSaved {
		return true, nil
	}

	s.discards++
	diagf("capture %s: discarded recording %d (%d bytes); re-armed", s.id, s.discards, summary.Bytes)
	return false, s.flush()
}

func (s *Session) flush() error {
	if err := s.src.Flush(); err != nil {
		return err
	}
	s.sync.Reset()
	return nil
}

func (s *Session) result(started time.Time, implicit bool) *Result {
	return &Result{
		ID:         s.id,
		Mode:       s.cfg.Mode,
		SampleRate: s.cfg.SampleRate,
		Frames:     s.machine.Retained(),
		Raw:        s.buf.Detach(),
		Discards:   s.discards,
		Implicit:   implicit,
		StartedAt:  started,
		EndedAt:    s.clock.Now(),
		Sync:       s.sync.Stats(),
	}
}
