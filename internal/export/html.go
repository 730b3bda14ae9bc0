package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/audio.capture/internal/dsp"
)

// maxPlotPoints caps the points drawn by the plot exporters; longer signals
// are decimated by a fixed stride.
const maxPlotPoints = 20000

func strideFor(n, limit int) int {
	if n <= limit {
		return 1
	}
	return (n + limit - 1) / limit
}

// WriteHTML renders the filtered waveform as a zoomable echarts page.
func WriteHTML(w io.Writer, sig *dsp.Signal) error {
	stride := strideFor(sig.Len(), maxPlotPoints)
	xs := make([]string, 0, sig.Len()/stride+1)
	ys := make([]opts.LineData, 0, sig.Len()/stride+1)
	for i := 0; i < sig.Len(); i += stride {
		xs = append(xs, strconv.FormatFloat(sig.Time(i), 'f', 5, 64))
		ys = append(ys, opts.LineData{Value: sig.Filtered[i]})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Captured Audio", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Filtered Audio Signal",
			Subtitle: fmt.Sprintf("rate=%d Hz band=%g-%g Hz samples=%d stride=%d", sig.SampleRate, sig.Band.Low, sig.Band.High, sig.Len(), stride),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Amplitude", NameLocation: "middle", NameGap: 50}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside", Start: 0, End: 100},
			opts.DataZoom{Type: "slider", Start: 0, End: 100},
		),
	)
	line.SetXAxis(xs).AddSeries("filtered", ys, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
