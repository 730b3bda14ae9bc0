// Package dsp turns captured frame payloads into a filtered audio signal:
// 12-bit sample reconstruction, min-max normalisation to the 16-bit range
// and a zero-phase Butterworth bandpass.
package dsp

import (
	"errors"
	"fmt"
)

// ErrMalformedCapture is returned when a capture cannot be split into whole
// samples.
var ErrMalformedCapture = errors.New("malformed capture")

// Reconstruct recombines byte pairs into 12-bit samples. Each pair is the low
// byte followed by a byte whose lower nibble holds bits 8..11; the upper
// nibble is ignored.
func Reconstruct(raw []byte) ([]uint16, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrMalformedCapture, len(raw))
	}
	samples := make([]uint16, len(raw)/2)
	for i := range samples {
		lo := uint16(raw[2*i])
		hi := uint16(raw[2*i+1] & 0x0F)
		samples[i] = hi<<8 | lo
	}
	return samples, nil
}

// Split is the inverse of Reconstruct for the bits it keeps. The upper
// nibble of each high byte comes back as zero.
func Split(samples []uint16) []byte {
	raw := make([]byte, 0, 2*len(samples))
	for _, s := range samples {
		raw = append(raw, byte(s), byte(s>>8)&0x0F)
	}
	return raw
}
