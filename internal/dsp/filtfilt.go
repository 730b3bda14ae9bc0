package dsp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrSignalTooShort is returned when the input is not longer than the edge
// padding FiltFilt needs.
var ErrSignalTooShort = errors.New("signal too short to filter")

// PadLen is the number of samples FiltFilt reflects onto each end of the
// input for a filter with the given coefficients.
func PadLen(b, a []float64) int {
	return 3 * max(len(a), len(b))
}

// FiltFilt applies the filter forwards and then backwards so the output has
// no phase shift. The ends are extended by odd reflection and the filter
// state starts at its steady-state response to the first sample.
func FiltFilt(b, a []float64, x []float64) ([]float64, error) {
	b, a, err := normaliseCoeffs(b, a)
	if err != nil {
		return nil, err
	}
	edge := PadLen(b, a)
	if len(x) <= edge {
		return nil, fmt.Errorf("%w: need more than %d samples, got %d", ErrSignalTooShort, edge, len(x))
	}

	zi, err := lfilterZi(b, a)
	if err != nil {
		return nil, err
	}

	ext := oddExtend(x, edge)
	state := make([]float64, len(zi))

	floats.ScaleTo(state, ext[0], zi)
	y := lfilter(b, a, ext, state)

	floats.Reverse(y)
	floats.ScaleTo(state, y[0], zi)
	y = lfilter(b, a, y, state)
	floats.Reverse(y)

	out := make([]float64, len(x))
	copy(out, y[edge:edge+len(x)])
	return out, nil
}

// normaliseCoeffs pads b and a to a common length and scales both so that
// a[0] == 1.
func normaliseCoeffs(b, a []float64) ([]float64, []float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, nil, errors.New("filter coefficients must not be empty")
	}
	if a[0] == 0 {
		return nil, nil, errors.New("leading denominator coefficient must be non-zero")
	}
	n := max(len(a), len(b))
	nb := make([]float64, n)
	na := make([]float64, n)
	copy(nb, b)
	copy(na, a)
	if a0 := na[0]; a0 != 1 {
		floats.Scale(1/a0, nb)
		floats.Scale(1/a0, na)
	}
	return nb, na, nil
}

// oddExtend reflects n samples about each end point of x.
func oddExtend(x []float64, n int) []float64 {
	last := len(x) - 1
	ext := make([]float64, 0, len(x)+2*n)
	for i := n; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := 1; i <= n; i++ {
		ext = append(ext, 2*x[last]-x[last-i])
	}
	return ext
}

// lfilterZi returns the initial state of lfilter for a unit step that has
// been applied forever, by solving (I - A^T) zi = b[1:] - a[1:]*b[0] where A
// is the companion matrix of a.
func lfilterZi(b, a []float64) ([]float64, error) {
	n := len(a) - 1
	if n == 0 {
		return nil, nil
	}
	m := mat.NewDense(n, n, nil)
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
		m.Set(i, 0, m.At(i, 0)+a[i+1])
		if i+1 < n {
			m.Set(i, i+1, -1)
		}
		rhs.SetVec(i, b[i+1]-a[i+1]*b[0])
	}
	var zi mat.VecDense
	if err := zi.SolveVec(m, rhs); err != nil {
		return nil, fmt.Errorf("solving filter initial conditions: %w", err)
	}
	return mat.Col(nil, 0, &zi), nil
}

// lfilter runs a direct form II transposed filter over x. b and a must have
// the same length with a[0] == 1; z is the filter state and is updated in
// place.
func lfilter(b, a, x, z []float64) []float64 {
	y := make([]float64, len(x))
	n := len(a)
	for i, xi := range x {
		if n == 1 {
			y[i] = b[0] * xi
			continue
		}
		yi := b[0]*xi + z[0]
		for j := 0; j < n-2; j++ {
			z[j] = b[j+1]*xi + z[j+1] - a[j+1]*yi
		}
		z[n-2] = b[n-1]*xi - a[n-1]*yi
		y[i] = yi
	}
	return y
}
