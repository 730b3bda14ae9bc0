package export

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/audio.capture/internal/dsp"
)

// Plot dimensions for the PNG export.
var (
	PlotWidth  = 10 * vg.Inch
	PlotHeight = 4 * vg.Inch
)

// waveformPlot builds the filtered waveform against time in seconds.
func waveformPlot(sig *dsp.Signal) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Filtered Audio Signal (%g-%g Hz)", sig.Band.Low, sig.Band.High)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Amplitude"
	p.Add(plotter.NewGrid())

	stride := strideFor(sig.Len(), maxPlotPoints)
	pts := make(plotter.XYs, 0, sig.Len()/stride+1)
	for i := 0; i < sig.Len(); i += stride {
		pts = append(pts, plotter.XY{X: sig.Time(i), Y: sig.Filtered[i]})
	}
	if len(pts) == 0 {
		return p, nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("waveform line: %w", err)
	}
	line.Width = vg.Points(0.5)
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)
	return p, nil
}

// WritePNG renders the filtered waveform as a PNG image.
func WritePNG(w io.Writer, sig *dsp.Signal) error {
	p, err := waveformPlot(sig)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(PlotWidth, PlotHeight, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
