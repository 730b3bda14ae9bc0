package capture

import (
	"errors"
	"fmt"

	"github.com/banshee-data/audio.capture/internal/framesync"
)

var (
	// ErrInvalidDecision is returned when a save/discard prompt is answered
	// with anything other than an explicit choice. The state is unchanged.
	ErrInvalidDecision = errors.New("invalid decision: expected save or discard")

	// ErrNoDecisionPending is returned by Resolve outside the decision point.
	ErrNoDecisionPending = errors.New("no decision pending")

	// ErrAwaitingDecision is returned by Observe while consumption is
	// suspended for the save/discard prompt.
	ErrAwaitingDecision = errors.New("capture suspended awaiting decision")

	// ErrFinished is returned by Observe once a terminal state is reached.
	ErrFinished = errors.New("capture already finished")
)

// State is a capture state machine state.
type State int

const (
	StateArmed State = iota
	StateActive
	StateCooldown
	StateAwaitingDecision
	StateSaved
	StateRecording
	StateDone
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "ARMED"
	case StateActive:
		return "ACTIVE"
	case StateCooldown:
		return "COOLDOWN"
	case StateAwaitingDecision:
		return "AWAITING_DECISION"
	case StateSaved:
		return "SAVED"
	case StateRecording:
		return "RECORDING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the capture has finished.
func (s State) Terminal() bool {
	return s == StateSaved || s == StateDone
}

// Action tells the I/O loop what to do after a frame has been observed.
type Action int

const (
	// ActionContinue means read the next frame.
	ActionContinue Action = iota
	// ActionDecide means stop reading and ask for a save/discard decision.
	ActionDecide
	// ActionDone means the capture is complete.
	ActionDone
)

// Decision is the answer to the save/discard prompt.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionSave
	DecisionDiscard
)

func (d Decision) String() string {
	switch d {
	case DecisionSave:
		return "save"
	case DecisionDiscard:
		return "discard"
	default:
		return "none"
	}
}

// Machine is the transition logic shared by both capture modes. It performs
// no I/O.
type Machine interface {
	Observe(f framesync.Frame) (Action, error)
	// StreamClosed handles the end of the byte stream. It returns true when
	// the accumulated data should be kept as an implicit save.
	StreamClosed() bool
	State() State
	// Retained is the number of frame payloads appended to the buffer.
	Retained() int
}

// Trigger is the distance-triggered state machine:
//
//	ARMED -> ACTIVE <-> COOLDOWN -> AWAITING_DECISION -> SAVED
//	                                         \-> (discard) ARMED
type Trigger struct {
	on, off  int
	state    State
	counters Counters
	buf      *Buffer
	retained int
}

// NewTrigger returns an armed machine appending into buf.
func NewTrigger(onThreshold, offThreshold int, buf *Buffer) *Trigger {
	return &Trigger{
		on:       onThreshold,
		off:      offThreshold,
		state:    StateArmed,
		counters: NewCounters(),
		buf:      buf,
	}
}

func (m *Trigger) State() State { return m.state }

// Counters returns a copy of the hysteresis counters.
func (m *Trigger) Counters() Counters { return m.counters }

func (m *Trigger) Retained() int { return m.retained }

// Observe applies one frame. Frames with an unrecognised range byte are
// ignored.
func (m *Trigger) Observe(f framesync.Frame) (Action, error) {
	switch m.state {
	case StateAwaitingDecision:
		return ActionDecide, ErrAwaitingDecision
	case StateSaved:
		return ActionDone, ErrFinished
	}
	if !f.Valid {
		return ActionContinue, nil
	}

	switch m.state {
	case StateArmed:
		// Out-of-range frames neither count nor reset the detection run.
		if !f.InRange {
			return ActionContinue, nil
		}
		m.counters.OneCount++
		if m.counters.OneCount < m.on {
			return ActionContinue, nil
		}
		m.counters.FirstActivation = false
		m.counters.ZeroCount = 0
		m.keep(f)
		m.state = StateActive
		diagf("armed -> active after %d in-range frames", m.counters.OneCount)

	case StateActive, StateCooldown:
		m.keep(f)
		if f.InRange {
			if m.state == StateCooldown {
				tracef("cooldown -> active after %d out-of-range frames", m.counters.ZeroCount)
			}
			m.counters.ZeroCount = 0
			m.state = StateActive
			return ActionContinue, nil
		}
		m.counters.ZeroCount++
		m.state = StateCooldown
		if m.counters.ZeroCount >= m.off {
			m.state = StateAwaitingDecision
			diagf("cooldown complete after %d out-of-range frames; %d bytes held", m.counters.ZeroCount, m.buf.Len())
			return ActionDecide, nil
		}
	}
	return ActionContinue, nil
}

func (m *Trigger) keep(f framesync.Frame) {
	m.buf.Append(f.Payload)
	m.retained++
}

// Resolve applies the user's answer to the save/discard prompt. On discard
// the buffer and counters return to their initial state and the machine is
// re-armed; the caller is responsible for flushing the byte source.
func (m *Trigger) Resolve(d Decision) error {
	if m.state != StateAwaitingDecision {
		return fmt.Errorf("%w (state %s)", ErrNoDecisionPending, m.state)
	}
	switch d {
	case DecisionSave:
		m.state = StateSaved
	case DecisionDiscard:
		m.rearm()
	default:
		return ErrInvalidDecision
	}
	return nil
}

func (m *Trigger) rearm() {
	m.buf.Reset()
	m.counters.Reset()
	m.retained = 0
	m.state = StateArmed
}

// StreamClosed saves whatever was recorded if the machine was past ARMED.
func (m *Trigger) StreamClosed() bool {
	switch m.state {
	case StateActive, StateCooldown, StateAwaitingDecision:
		m.state = StateSaved
		return true
	case StateSaved:
		return true
	default:
		return false
	}
}

// Manual is the fixed-length state machine: RECORDING -> DONE.
type Manual struct {
	target   int
	state    State
	buf      *Buffer
	retained int
}

// NewManual returns a machine that keeps target frames.
func NewManual(target int, buf *Buffer) *Manual {
	m := &Manual{target: target, state: StateRecording, buf: buf}
	if target <= 0 {
		m.state = StateDone
	}
	return m
}

func (m *Manual) State() State { return m.state }

func (m *Manual) Retained() int { return m.retained }

// Target returns the number of frames the machine will keep.
func (m *Manual) Target() int { return m.target }

// Observe appends every frame regardless of its range byte.
func (m *Manual) Observe(f framesync.Frame) (Action, error) {
	if m.state == StateDone {
		return ActionDone, ErrFinished
	}
	m.buf.Append(f.Payload)
	m.retained++
	if m.retained >= m.target {
		m.state = StateDone
		return ActionDone, nil
	}
	return ActionContinue, nil
}

// StreamClosed keeps a short recording rather than dropping it.
func (m *Manual) StreamClosed() bool {
	if m.retained == 0 {
		return false
	}
	m.state = StateDone
	return true
}
