// Package export writes processed captures to disk as WAV audio, PNG and
// HTML waveform plots, and CSV sample tables.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/audio.capture/internal/dsp"
)

// Format is an output file type.
type Format int

const (
	FormatWAV Format = iota
	FormatPNG
	FormatCSV
	FormatHTML
)

// AllFormats lists every supported format in menu order.
var AllFormats = []Format{FormatWAV, FormatPNG, FormatCSV, FormatHTML}

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatPNG:
		return "png"
	case FormatCSV:
		return "csv"
	case FormatHTML:
		return "html"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + f.String() }

// Describe returns a label for menus.
func (f Format) Describe() string {
	switch f {
	case FormatWAV:
		return "WAV audio (16-bit PCM)"
	case FormatPNG:
		return "PNG waveform image"
	case FormatCSV:
		return "CSV sample table"
	case FormatHTML:
		return "HTML interactive waveform"
	default:
		return f.String()
	}
}

// ParseFormat accepts a format name, with or without a leading dot.
func ParseFormat(s string) (Format, error) {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	for _, f := range AllFormats {
		if f.String() == name {
			return f, nil
		}
	}
	if name == "wave" {
		return FormatWAV, nil
	}
	return 0, fmt.Errorf("unknown export format %q: expected one of wav, png, csv, html", s)
}

// ParseFormats parses a comma-separated list, dropping duplicates. "all"
// selects every format.
func ParseFormats(s string) ([]Format, error) {
	if strings.EqualFold(strings.TrimSpace(s), "all") {
		return append([]Format(nil), AllFormats...), nil
	}
	var out []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFormat(part)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no export formats in %q", s)
	}
	return out, nil
}

// Writer returns the encoder for f.
func (f Format) Writer() (func(io.Writer, *dsp.Signal) error, error) {
	switch f {
	case FormatWAV:
		return WriteWAV, nil
	case FormatPNG:
		return WritePNG, nil
	case FormatCSV:
		return WriteCSV, nil
	case FormatHTML:
		return WriteHTML, nil
	default:
		return nil, fmt.Errorf("no writer for %v", f)
	}
}
