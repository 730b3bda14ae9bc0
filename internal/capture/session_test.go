package capture

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/audio.capture/internal/framesync"
	"github.com/banshee-data/audio.capture/internal/serialport"
	"github.com/banshee-data/audio.capture/internal/timeutil"
)

func wireFrame(l framesync.Layout, rangeByte byte, payload []byte) []byte {
	out := []byte{l.Marker[0], l.Marker[1]}
	if l.HeaderSize > 0 {
		out = append(out, rangeByte)
	}
	if l.HeaderSize > 1 {
		out = append(out, 0x00)
	}
	return append(out, payload...)
}

func repeatFrames(l framesync.Layout, rangeByte, value byte, n int) []byte {
	f := wireFrame(l, rangeByte, bytes.Repeat([]byte{value}, l.PayloadSize))
	return bytes.Repeat(f, n)
}

// scriptedDecider replays answers in order and records every prompt.
type scriptedDecider struct {
	answers []Decision
	prompts []Summary
}

func (d *scriptedDecider) Decide(_ context.Context, s Summary) (Decision, error) {
	d.prompts = append(d.prompts, s)
	if len(d.answers) == 0 {
		return DecisionNone, errors.New("no more answers")
	}
	a := d.answers[0]
	d.answers = d.answers[1:]
	return a, nil
}

func distanceConfig(payload int) Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeDistance
	cfg.Layout.PayloadSize = payload
	return cfg
}

func TestSession_DistanceEndToEnd(t *testing.T) {
	cfg := distanceConfig(512)
	stream := repeatFrames(cfg.Layout, framesync.RangeIn, 0x10, 75)
	stream = append(stream, repeatFrames(cfg.Layout, framesync.RangeOut, 0x10, 100)...)

	port := serialport.NewScriptedPort(stream)
	decider := &scriptedDecider{answers: []Decision{DecisionSave}}
	clock := timeutil.NewMockClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	clock.SetStep(time.Second)

	s, err := NewSession(cfg, serialport.NewSource(port), decider, WithClock(clock), WithID("cap-1"))
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	// The 75th in-range frame triggers and is kept, then the 100 cooldown frames.
	assert.Len(t, res.Raw, 101*512)
	assert.Equal(t, bytes.Repeat([]byte{0x10}, 101*512), res.Raw)
	assert.Equal(t, 101, res.Frames)
	assert.Equal(t, "cap-1", res.ID)
	assert.Equal(t, ModeDistance, res.Mode)
	assert.Equal(t, 44100, res.SampleRate)
	assert.False(t, res.Implicit)
	assert.Zero(t, res.Discards)
	assert.Equal(t, uint64(175), res.Sync.Frames)
	assert.Equal(t, time.Second, res.EndedAt.Sub(res.StartedAt))

	require.Len(t, decider.prompts, 1)
	assert.Equal(t, Summary{Frames: 101, Bytes: 101 * 512, SampleRate: 44100}, decider.prompts[0])
	assert.Equal(t, StateSaved, s.Machine().State())
	assert.Equal(t, 1, port.ResetCalls, "input is flushed when arming")
}

func TestSession_DiscardThenSave(t *testing.T) {
	cfg := distanceConfig(8)
	cfg.OnThreshold = 3
	cfg.OffThreshold = 4

	port := serialport.NewTestableSerialPort()
	port.EOFWhenDrained = true
	first := repeatFrames(cfg.Layout, framesync.RangeIn, 0xAA, 3)
	first = append(first, repeatFrames(cfg.Layout, framesync.RangeOut, 0xAA, 4)...)
	port.AddReadData(first)

	second := repeatFrames(cfg.Layout, framesync.RangeIn, 0x22, 5)
	second = append(second, repeatFrames(cfg.Layout, framesync.RangeOut, 0x22, 4)...)
	port.AddReadData(second)

	decider := &scriptedDecider{answers: []Decision{DecisionDiscard, DecisionSave}}
	s, err := NewSession(cfg, serialport.NewSource(port), decider)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	// Nothing from the discarded attempt survives: 1 trigger + 2 in + 4 out.
	assert.Equal(t, bytes.Repeat([]byte{0x22}, 7*8), res.Raw)
	assert.Equal(t, 1, res.Discards)
	assert.Equal(t, 2, port.ResetCalls)
	require.Len(t, decider.prompts, 2)
	assert.Equal(t, 5*8, decider.prompts[0].Bytes)
	assert.NotEmpty(t, res.ID)
}

func TestSession_InvalidDecisionReprompts(t *testing.T) {
	cfg := distanceConfig(8)
	cfg.OnThreshold = 2
	cfg.OffThreshold = 2
	stream := repeatFrames(cfg.Layout, framesync.RangeIn, 1, 2)
	stream = append(stream, repeatFrames(cfg.Layout, framesync.RangeOut, 1, 2)...)

	decider := &scriptedDecider{answers: []Decision{DecisionNone, Decision(9), DecisionSave}}
	s, err := NewSession(cfg, serialport.NewSource(serialport.NewScriptedPort(stream)), decider)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, decider.prompts, 3)
	assert.Len(t, res.Raw, 3*8)
}

func TestSession_StreamClosedWhileRecording(t *testing.T) {
	cfg := distanceConfig(8)
	cfg.OnThreshold = 2
	stream := repeatFrames(cfg.Layout, framesync.RangeIn, 5, 2)
	stream = append(stream, repeatFrames(cfg.Layout, framesync.RangeOut, 5, 10)...)

	decider := &scriptedDecider{}
	s, err := NewSession(cfg, serialport.NewSource(serialport.NewScriptedPort(stream)), decider)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Implicit)
	assert.Len(t, res.Raw, 11*8)
	assert.Empty(t, decider.prompts)
}

func TestSession_StreamClosedWhileArmed(t *testing.T) {
	cfg := distanceConfig(8)
	stream := repeatFrames(cfg.Layout, framesync.RangeIn, 5, 10)

	s, err := NewSession(cfg, serialport.NewSource(serialport.NewScriptedPort(stream)), &scriptedDecider{})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNoCapture)
	assert.ErrorIs(t, err, serialport.ErrClosed)
}

func TestSession_ManualWithTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Layout = framesync.Layout{Marker: [2]byte{0xFF, 0xFF}, HeaderSize: framesync.SimpleHeaderSize, PayloadSize: 8}
	cfg.SampleRate = 16
	cfg.Duration = 2 * time.Second
	cfg.OvercaptureFactor = 1.0
	require.Equal(t, 4, cfg.TargetFrames())

	port := serialport.NewTestableSerialPort()
	for i := 0; i < 6; i++ {
		port.AddReadData(wireFrame(cfg.Layout, 0, bytes.Repeat([]byte{byte(i)}, 8)))
		port.AddTimeout()
	}

	s, err := NewSession(cfg, serialport.NewSource(port), nil)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	var want []byte
	for i := 0; i < 4; i++ {
		want = append(want, bytes.Repeat([]byte{byte(i)}, 8)...)
	}
	assert.Equal(t, want, res.Raw)
	assert.Equal(t, 4, res.Frames)
	assert.Equal(t, ModeManual, res.Mode)
	assert.Zero(t, port.ResetCalls, "manual mode does not flush")
}

func TestSession_ManualStreamClosedEarly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Layout.PayloadSize = 8
	stream := repeatFrames(cfg.Layout, framesync.RangeOut, 3, 2)

	s, err := NewSession(cfg, serialport.NewSource(serialport.NewScriptedPort(stream)), nil)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Implicit)
	assert.Len(t, res.Raw, 16)
}

func TestSession_ContextCancelled(t *testing.T) {
	cfg := distanceConfig(8)
	port := serialport.NewTestableSerialPort() // times out forever
	s, err := NewSession(cfg, serialport.NewSource(port), &scriptedDecider{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSession_DeciderError(t *testing.T) {
	cfg := distanceConfig(8)
	cfg.OnThreshold = 1
	cfg.OffThreshold = 1
	stream := repeatFrames(cfg.Layout, framesync.RangeIn, 1, 1)
	stream = append(stream, repeatFrames(cfg.Layout, framesync.RangeOut, 1, 1)...)

	boom := errors.New("stdin closed")
	decider := DeciderFunc(func(context.Context, Summary) (Decision, error) { return DecisionNone, boom })
	s, err := NewSession(cfg, serialport.NewSource(serialport.NewScriptedPort(stream)), decider)
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSession_RunTwice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Layout.PayloadSize = 8
	s, err := NewSession(cfg, serialport.NewSource(serialport.NewScriptedPort(repeatFrames(cfg.Layout, 0, 0, 1))), nil)
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	assert.Error(t, err)
}

func TestNewSession_Validation(t *testing.T) {
	src := serialport.NewSource(serialport.NewTestableSerialPort())

	bad := DefaultConfig()
	bad.SampleRate = 0
	_, err := NewSession(bad, src, nil)
	assert.Error(t, err)

	_, err = NewSession(distanceConfig(8), src, nil)
	assert.Error(t, err, "distance mode needs a decider")
}

func TestSummary_Duration(t *testing.T) {
	assert.Equal(t, time.Second, Summary{Bytes: 88200, SampleRate: 44100}.Duration())
	assert.Zero(t, Summary{Bytes: 10}.Duration())
}
