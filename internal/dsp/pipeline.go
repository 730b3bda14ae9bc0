package dsp

import (
	"fmt"
	"time"
)

// Signal is a processed capture, ready for export.
type Signal struct {
	SampleRate int
	Band       Band
	// Samples are the reconstructed 12-bit values.
	Samples []uint16
	// Scaled are Samples min-max stretched to the full 16-bit range.
	Scaled []uint16
	// Filtered is the zero-phase bandpassed Scaled signal. Index i
	// corresponds to time i / SampleRate.
	Filtered []float64
}

// Len returns the number of samples.
func (s *Signal) Len() int { return len(s.Filtered) }

// Duration returns the length of the signal in time.
func (s *Signal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Len()) * time.Second / time.Duration(s.SampleRate)
}

// Time returns the capture time of sample i in seconds.
func (s *Signal) Time(i int) float64 {
	return float64(i) / float64(s.SampleRate)
}

// Process runs the full chain over the raw bytes of a capture.
func Process(raw []byte, rate int, band Band) (*Signal, error) {
	if err := band.Validate(float64(rate)); err != nil {
		return nil, err
	}
	samples, err := Reconstruct(raw)
	if err != nil {
		return nil, err
	}
	norm, err := Normalise(samples)
	if err != nil {
		return nil, err
	}
	scaled := Scale16(norm)

	b, a, err := Butterworth(band.Order, band.Low, band.High, float64(rate))
	if err != nil {
		return nil, err
	}
	x := make([]float64, len(scaled))
	for i, v := range scaled {
		x[i] = float64(v)
	}
	filtered, err := FiltFilt(b, a, x)
	if err != nil {
		return nil, fmt.Errorf("bandpass %g-%g Hz: %w", band.Low, band.High, err)
	}

	return &Signal{
		SampleRate: rate,
		Band:       band,
		Samples:    samples,
		Scaled:     scaled,
		Filtered:   filtered,
	}, nil
}
