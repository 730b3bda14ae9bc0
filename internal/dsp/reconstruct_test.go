package dsp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstruct(t *testing.T) {
	raw := []byte{0x00, 0x00, 0xFF, 0x0F, 0x34, 0x12, 0xCD, 0xFB}
	got, err := Reconstruct(raw)
	require.NoError(t, err)

	want := []uint16{0x000, 0xFFF, 0x234, 0xBCD}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reconstruct() mismatch (-want +got):\n%s", diff)
	}
}

func TestReconstruct_Empty(t *testing.T) {
	got, err := Reconstruct(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReconstruct_OddLength(t *testing.T) {
	for _, n := range []int{1, 3, 513, 1025} {
		got, err := Reconstruct(make([]byte, n))
		assert.ErrorIs(t, err, ErrMalformedCapture, "length %d", n)
		assert.Nil(t, got, "length %d must not be truncated", n)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	// Every low byte and every lower nibble survives; upper nibbles are lost.
	raw := make([]byte, 0, 512)
	for i := 0; i < 256; i++ {
		raw = append(raw, byte(i), byte(255-i))
	}

	samples, err := Reconstruct(raw)
	require.NoError(t, err)
	back := Split(samples)
	require.Len(t, back, len(raw))

	for i := 0; i < len(raw); i += 2 {
		assert.Equal(t, raw[i], back[i], "low byte %d", i/2)
		assert.Equal(t, raw[i+1]&0x0F, back[i+1], "high nibble %d", i/2)
	}

	again, err := Reconstruct(back)
	require.NoError(t, err)
	assert.Equal(t, samples, again)
}

func TestReconstruct_Range(t *testing.T) {
	raw := []byte{0xFF, 0xFF, 0xFF, 0xF0}
	got, err := Reconstruct(raw)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x0FFF, 0x00FF}, got)
}
