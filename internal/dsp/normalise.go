package dsp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNoSamples is returned for an empty capture.
	ErrNoSamples = errors.New("no samples")

	// ErrDegenerateSignal is returned when every sample has the same value.
	ErrDegenerateSignal = errors.New("no usable signal: capture is constant")
)

// FullScale is the largest 16-bit unsigned sample value.
const FullScale = math.MaxUint16

// Normalise min-max scales samples into [0, 1] using their own extremes.
func Normalise(samples []uint16) ([]float64, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	lo, hi := floats.Min(out), floats.Max(out)
	if lo == hi {
		return nil, ErrDegenerateSignal
	}
	floats.AddConst(-lo, out)
	span := hi - lo
	// Divide rather than multiply by the reciprocal so the maximum lands on
	// exactly 1.
	for i := range out {
		out[i] /= span
	}
	return out, nil
}

// Scale16 maps normalised values onto [0, FullScale], truncating.
func Scale16(norm []float64) []uint16 {
	out := make([]uint16, len(norm))
	for i, v := range norm {
		switch {
		case v <= 0 || math.IsNaN(v):
			out[i] = 0
		case v >= 1:
			out[i] = FullScale
		default:
			out[i] = uint16(v * FullScale)
		}
	}
	return out
}
