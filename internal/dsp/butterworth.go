package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

// Default bandpass settings.
const (
	DefaultLowCutoff  = 20.0
	DefaultHighCutoff = 20000.0
	DefaultOrder      = 5
)

// ErrInvalidBand is returned for cutoffs or orders a filter cannot be
// designed for.
var ErrInvalidBand = errors.New("invalid filter band")

// Band describes a bandpass filter in Hz.
type Band struct {
	Low   float64
	High  float64
	Order int
}

// DefaultBand returns the 20 Hz - 20 kHz fifth-order band.
func DefaultBand() Band {
	return Band{Low: DefaultLowCutoff, High: DefaultHighCutoff, Order: DefaultOrder}
}

// Validate checks that the band fits under the Nyquist frequency of rate.
func (b Band) Validate(rate float64) error {
	if b.Order < 1 {
		return fmt.Errorf("%w: order must be >= 1, got %d", ErrInvalidBand, b.Order)
	}
	if rate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %g", ErrInvalidBand, rate)
	}
	nyq := rate / 2
	if !(b.Low > 0 && b.Low < b.High && b.High < nyq) {
		return fmt.Errorf("%w: need 0 < low < high < %g Hz, got low=%g high=%g", ErrInvalidBand, nyq, b.Low, b.High)
	}
	return nil
}

// Butterworth designs a digital bandpass filter and returns its transfer
// function coefficients, numerator b and denominator a, each of length
// 2*order+1 with a[0] == 1.
//
// The design starts from the analog lowpass prototype, prewarps the band
// edges, applies the lowpass-to-bandpass transform and maps the result to the
// z-plane with the bilinear transform.
func Butterworth(order int, low, high, rate float64) (b, a []float64, err error) {
	band := Band{Low: low, High: high, Order: order}
	if err := band.Validate(rate); err != nil {
		return nil, nil, err
	}

	// Prototype poles on the left half of the unit circle.
	proto := make([]complex128, order)
	for k := range proto {
		m := float64(-order + 1 + 2*k)
		proto[k] = -cmplx.Exp(complex(0, math.Pi*m/float64(2*order)))
	}

	// Band edges as a fraction of Nyquist, prewarped for a bilinear transform
	// at fs = 2.
	const fs2 = 4.0
	nyq := rate / 2
	wl := fs2 * math.Tan(math.Pi*(low/nyq)/2)
	wh := fs2 * math.Tan(math.Pi*(high/nyq)/2)
	bw := wh - wl
	wo := math.Sqrt(wl * wh)

	// Lowpass to bandpass: every prototype pole splits in two and order
	// zeros appear at the origin.
	poles := make([]complex128, 0, 2*order)
	for _, p := range proto {
		pl := p * complex(bw/2, 0)
		d := cmplx.Sqrt(pl*pl - complex(wo*wo, 0))
		poles = append(poles, pl+d)
	}
	for _, p := range proto {
		pl := p * complex(bw/2, 0)
		d := cmplx.Sqrt(pl*pl - complex(wo*wo, 0))
		poles = append(poles, pl-d)
	}
	gain := complex(math.Pow(bw, float64(order)), 0)

	// Bilinear transform. The origin zeros map to z = 1 and the excess
	// poles bring order zeros at z = -1.
	zeros := make([]complex128, 0, 2*order)
	num := complex(1, 0)
	for i := 0; i < order; i++ {
		zeros = append(zeros, 1)
		num *= fs2
	}
	for i := 0; i < order; i++ {
		zeros = append(zeros, -1)
	}
	den := complex(1, 0)
	for i, p := range poles {
		den *= complex(fs2, 0) - p
		poles[i] = (complex(fs2, 0) + p) / (complex(fs2, 0) - p)
	}
	k := real(gain * num / den)

	b = realPoly(zeros)
	for i := range b {
		b[i] *= k
	}
	a = realPoly(poles)
	return b, a, nil
}

// realPoly expands prod(z - r) and returns the real parts of its
// coefficients, highest power first. Roots must come in conjugate pairs.
func realPoly(roots []complex128) []float64 {
	c := make([]complex128, 1, len(roots)+1)
	c[0] = 1
	for _, r := range roots {
		c = append(c, 0)
		for j := len(c) - 1; j > 0; j-- {
			c[j] -= r * c[j-1]
		}
	}
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = real(v)
	}
	return out
}
