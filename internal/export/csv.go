package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/banshee-data/audio.capture/internal/dsp"
)

// CSVHeader is the first row of a CSV export.
var CSVHeader = []string{"Sample Index", "16-bit Value"}

// WriteCSV writes one row per scaled 16-bit sample.
func WriteCSV(w io.Writer, sig *dsp.Signal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	row := make([]string, 2)
	for i, v := range sig.Scaled {
		row[0] = strconv.Itoa(i)
		row[1] = strconv.FormatUint(uint64(v), 10)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
