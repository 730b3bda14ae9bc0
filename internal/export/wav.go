package export

import (
	"errors"
	"io"
	"math"

	"github.com/youpy/go-wav"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/audio.capture/internal/dsp"
	"github.com/banshee-data/audio.capture/internal/monitoring"
)

const wavBitsPerSample = 16

// PCM16 rounds filtered values and clips them to the signed 16-bit range.
func PCM16(filtered []float64) []int16 {
	out := make([]int16, len(filtered))
	for i, v := range filtered {
		r := math.Round(v)
		switch {
		case math.IsNaN(r):
			out[i] = 0
		case r > math.MaxInt16:
			out[i] = math.MaxInt16
		case r < math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = int16(r)
		}
	}
	return out
}

// FitPCM16 converts filtered values to PCM, first scaling the whole signal
// down when its peak exceeds the int16 range. It returns the gain applied.
func FitPCM16(filtered []float64) ([]int16, float64) {
	gain := 1.0
	if len(filtered) > 0 {
		// A NaN peak leaves the gain at 1; PCM16 maps NaN to 0.
		if peak := floats.Norm(filtered, math.Inf(1)); peak > math.MaxInt16 {
			gain = math.MaxInt16 / peak
		}
	}
	if gain == 1 {
		return PCM16(filtered), gain
	}
	scaled := make([]float64, len(filtered))
	floats.ScaleTo(scaled, gain, filtered)
	return PCM16(scaled), gain
}

// WriteWAV writes the filtered signal as mono 16-bit little-endian PCM.
func WriteWAV(w io.Writer, sig *dsp.Signal) error {
	if sig.SampleRate <= 0 {
		return errors.New("wav export needs a positive sample rate")
	}
	pcm, gain := FitPCM16(sig.Filtered)
	if gain != 1 {
		monitoring.Logf("wav: signal peak above int16 range; scaled by %.4f", gain)
	}
	ww := wav.NewWriter(w, uint32(len(pcm)), 1, uint32(sig.SampleRate), wavBitsPerSample)

	const chunk = 4096
	samples := make([]wav.Sample, 0, chunk)
	for start := 0; start < len(pcm); start += chunk {
		samples = samples[:0]
		for _, v := range pcm[start:min(start+chunk, len(pcm))] {
			samples = append(samples, wav.Sample{Values: [2]int{int(v)}})
		}
		if err := ww.WriteSamples(samples); err != nil {
			return err
		}
	}
	return nil
}
