package capture

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/audio.capture/internal/framesync"
)

const testPayload = 8

func inRange(b byte) framesync.Frame {
	return framesync.Frame{Valid: true, InRange: true, Range: framesync.RangeIn, Payload: bytes.Repeat([]byte{b}, testPayload)}
}

func outOfRange(b byte) framesync.Frame {
	return framesync.Frame{Valid: true, InRange: false, Range: framesync.RangeOut, Payload: bytes.Repeat([]byte{b}, testPayload)}
}

func observeN(t *testing.T, m Machine, f framesync.Frame, n int) Action {
	t.Helper()
	var last Action
	for i := 0; i < n; i++ {
		a, err := m.Observe(f)
		require.NoError(t, err, "frame %d", i)
		last = a
	}
	return last
}

func activeTrigger(t *testing.T, on, off int) (*Trigger, *Buffer) {
	t.Helper()
	buf := NewBuffer(0)
	m := NewTrigger(on, off, buf)
	observeN(t, m, inRange(0x01), on)
	require.Equal(t, StateActive, m.State())
	return m, buf
}

func TestTrigger_DebounceHoldsArmed(t *testing.T) {
	buf := NewBuffer(0)
	m := NewTrigger(75, 100, buf)

	assert.Equal(t, ActionContinue, observeN(t, m, inRange(0x01), 74))
	assert.Equal(t, StateArmed, m.State())
	assert.Equal(t, 74, m.Counters().OneCount)

	a, err := m.Observe(outOfRange(0x02))
	require.NoError(t, err)
	assert.Equal(t, ActionContinue, a)
	assert.Equal(t, StateArmed, m.State())
	assert.Equal(t, 74, m.Counters().OneCount, "an out-of-range frame keeps the in-range count")
	assert.Zero(t, buf.Len())

	_, err = m.Observe(inRange(0x03))
	require.NoError(t, err)
	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, bytes.Repeat([]byte{0x03}, testPayload), buf.Bytes())
}

func TestTrigger_ActivatesOnThreshold(t *testing.T) {
	buf := NewBuffer(0)
	m := NewTrigger(75, 100, buf)

	observeN(t, m, inRange(0x01), 74)
	require.Equal(t, StateArmed, m.State())
	require.Zero(t, buf.Len())

	_, err := m.Observe(inRange(0x7F))
	require.NoError(t, err)
	assert.Equal(t, StateActive, m.State())
	assert.False(t, m.Counters().FirstActivation)
	assert.Equal(t, 75, m.Counters().OneCount)
	// The triggering frame is the first one retained.
	assert.Equal(t, bytes.Repeat([]byte{0x7F}, testPayload), buf.Bytes())
	assert.Equal(t, 1, m.Retained())
}

func TestTrigger_OffThreshold(t *testing.T) {
	m, buf := activeTrigger(t, 75, 100)

	assert.Equal(t, ActionContinue, observeN(t, m, outOfRange(0x02), 99))
	assert.Equal(t, StateCooldown, m.State())
	assert.Equal(t, 99, m.Counters().ZeroCount)
	assert.Equal(t, 75, m.Counters().OneCount, "one_count is kept through cooldown")

	a, err := m.Observe(outOfRange(0x02))
	require.NoError(t, err)
	assert.Equal(t, ActionDecide, a)
	assert.Equal(t, StateAwaitingDecision, m.State())
	assert.Equal(t, 100, m.Counters().ZeroCount)
	assert.Equal(t, 101*testPayload, buf.Len())
}

func TestTrigger_CooldownReturnsToActive(t *testing.T) {
	m, buf := activeTrigger(t, 3, 5)

	observeN(t, m, outOfRange(0x02), 4)
	require.Equal(t, StateCooldown, m.State())

	_, err := m.Observe(inRange(0x03))
	require.NoError(t, err)
	assert.Equal(t, StateActive, m.State())
	assert.Zero(t, m.Counters().ZeroCount)

	// The count starts again from zero.
	assert.Equal(t, ActionContinue, observeN(t, m, outOfRange(0x02), 4))
	assert.Equal(t, ActionDecide, observeN(t, m, outOfRange(0x02), 1))

	// 1 trigger + 4 + 1 + 5, everything after activation is retained.
	assert.Equal(t, 11*testPayload, buf.Len())
	assert.Equal(t, 11, m.Retained())
}

func TestTrigger_ActiveInRangeKeepsZeroCountAtZero(t *testing.T) {
	m, _ := activeTrigger(t, 2, 2)
	observeN(t, m, inRange(0x05), 10)
	assert.Equal(t, StateActive, m.State())
	assert.Zero(t, m.Counters().ZeroCount)
}

func TestTrigger_OffThresholdOfOne(t *testing.T) {
	m, _ := activeTrigger(t, 1, 1)
	a, err := m.Observe(outOfRange(0))
	require.NoError(t, err)
	assert.Equal(t, ActionDecide, a)
}

func TestTrigger_DiscardRestoresInitialState(t *testing.T) {
	m, buf := activeTrigger(t, 75, 100)
	observeN(t, m, outOfRange(0x02), 100)
	require.Equal(t, StateAwaitingDecision, m.State())

	require.NoError(t, m.Resolve(DecisionDiscard))

	assert.Equal(t, StateArmed, m.State())
	assert.Equal(t, Counters{OneCount: 0, ZeroCount: 0, FirstActivation: true}, m.Counters())
	assert.Zero(t, buf.Len())
	assert.Zero(t, m.Retained())

	// And it arms again from scratch.
	observeN(t, m, inRange(0x01), 74)
	assert.Equal(t, StateArmed, m.State())
	observeN(t, m, inRange(0x01), 1)
	assert.Equal(t, StateActive, m.State())
}

func TestTrigger_Save(t *testing.T) {
	m, buf := activeTrigger(t, 2, 2)
	observeN(t, m, outOfRange(0x02), 2)

	require.NoError(t, m.Resolve(DecisionSave))
	assert.Equal(t, StateSaved, m.State())
	assert.True(t, m.State().Terminal())
	assert.Equal(t, 3*testPayload, buf.Len())

	_, err := m.Observe(inRange(0))
	assert.ErrorIs(t, err, ErrFinished)
}

func TestTrigger_InvalidDecisionIsRejected(t *testing.T) {
	m, buf := activeTrigger(t, 2, 2)
	observeN(t, m, outOfRange(0x02), 2)
	before := m.Counters()

	for _, d := range []Decision{DecisionNone, Decision(42)} {
		assert.ErrorIs(t, m.Resolve(d), ErrInvalidDecision)
		assert.Equal(t, StateAwaitingDecision, m.State())
		assert.Equal(t, before, m.Counters())
		assert.Equal(t, 3*testPayload, buf.Len())
	}
}

func TestTrigger_ObserveWhileAwaitingDecision(t *testing.T) {
	m, buf := activeTrigger(t, 2, 2)
	observeN(t, m, outOfRange(0x02), 2)

	a, err := m.Observe(inRange(0x09))
	assert.ErrorIs(t, err, ErrAwaitingDecision)
	assert.Equal(t, ActionDecide, a)
	assert.Equal(t, 3*testPayload, buf.Len())
}

func TestTrigger_ResolveWithoutPrompt(t *testing.T) {
	m := NewTrigger(2, 2, NewBuffer(0))
	assert.ErrorIs(t, m.Resolve(DecisionSave), ErrNoDecisionPending)
	assert.Equal(t, StateArmed, m.State())
}

func TestTrigger_InvalidFramesIgnored(t *testing.T) {
	buf := NewBuffer(0)
	m := NewTrigger(3, 3, buf)
	bad := framesync.Frame{Valid: false, Range: 7, Payload: make([]byte, testPayload)}

	observeN(t, m, inRange(1), 2)
	observeN(t, m, bad, 5)
	assert.Equal(t, 2, m.Counters().OneCount, "invalid frames neither count nor reset")

	observeN(t, m, inRange(1), 1)
	require.Equal(t, StateActive, m.State())
	observeN(t, m, bad, 5)
	assert.Equal(t, testPayload, buf.Len())
}

func TestTrigger_StreamClosed(t *testing.T) {
	armed := NewTrigger(2, 2, NewBuffer(0))
	assert.False(t, armed.StreamClosed())
	assert.Equal(t, StateArmed, armed.State())

	active, _ := activeTrigger(t, 2, 2)
	assert.True(t, active.StreamClosed())
	assert.Equal(t, StateSaved, active.State())

	cooling, _ := activeTrigger(t, 2, 5)
	observeN(t, cooling, outOfRange(0), 1)
	require.Equal(t, StateCooldown, cooling.State())
	assert.True(t, cooling.StreamClosed())

	waiting, _ := activeTrigger(t, 2, 1)
	observeN(t, waiting, outOfRange(0), 1)
	require.Equal(t, StateAwaitingDecision, waiting.State())
	assert.True(t, waiting.StreamClosed())
}

func TestManual(t *testing.T) {
	buf := NewBuffer(0)
	m := NewManual(3, buf)
	assert.Equal(t, StateRecording, m.State())
	assert.Equal(t, 3, m.Target())

	// Range is irrelevant in manual mode.
	assert.Equal(t, ActionContinue, observeN(t, m, outOfRange(0x01), 1))
	assert.Equal(t, ActionContinue, observeN(t, m, inRange(0x02), 1))
	assert.Equal(t, ActionDone, observeN(t, m, framesync.Frame{Payload: bytes.Repeat([]byte{3}, testPayload)}, 1))
	assert.Equal(t, StateDone, m.State())
	assert.Equal(t, 3*testPayload, buf.Len())

	_, err := m.Observe(inRange(4))
	assert.ErrorIs(t, err, ErrFinished)
}

func TestManual_StreamClosed(t *testing.T) {
	empty := NewManual(3, NewBuffer(0))
	assert.False(t, empty.StreamClosed())

	partial := NewManual(3, NewBuffer(0))
	observeN(t, partial, inRange(1), 1)
	assert.True(t, partial.StreamClosed())
	assert.Equal(t, StateDone, partial.State())
}

func TestStateAndDecisionStrings(t *testing.T) {
	assert.Equal(t, "ARMED", StateArmed.String())
	assert.Equal(t, "AWAITING_DECISION", StateAwaitingDecision.String())
	assert.Equal(t, "State(99)", State(99).String())
	assert.Equal(t, "save", DecisionSave.String())
	assert.Equal(t, "discard", DecisionDiscard.String())
	assert.Equal(t, "none", Decision(9).String())
}
