// Package config loads the capture tool's JSON configuration. Every field is
// optional; Get* accessors supply the default for anything left out.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/audio.capture/internal/capture"
	"github.com/banshee-data/audio.capture/internal/dsp"
	"github.com/banshee-data/audio.capture/internal/export"
	"github.com/banshee-data/audio.capture/internal/framesync"
	"github.com/banshee-data/audio.capture/internal/fsutil"
	"github.com/banshee-data/audio.capture/internal/serialport"
)

// DefaultConfigPath is the canonical defaults file.
const DefaultConfigPath = "config/capture.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024

// Defaults not owned by another package.
const (
	DefaultOutputDir = "captures"
	DefaultBasename  = "capture"
	DefaultFormats   = "wav,png"
)

// CaptureConfig is the root of the configuration file.
type CaptureConfig struct {
	// Serial link
	Port        *string `json:"port,omitempty"`
	BaudRate    *int    `json:"baud_rate,omitempty"`
	DataBits    *int    `json:"data_bits,omitempty"`
	StopBits    *int    `json:"stop_bits,omitempty"`
	Parity      *string `json:"parity,omitempty"`
	ReadTimeout *string `json:"read_timeout,omitempty"` // duration string like "1s"

	// Wire framing
	Marker1     *int `json:"marker1,omitempty"`
	Marker2     *int `json:"marker2,omitempty"`
	HeaderSize  *int `json:"header_size,omitempty"`
	PayloadSize *int `json:"payload_size,omitempty"`

	// Capture
	Mode              *string  `json:"mode,omitempty"`
	SampleRate        *int     `json:"sample_rate,omitempty"`
	OnThreshold       *int     `json:"on_threshold,omitempty"`
	OffThreshold      *int     `json:"off_threshold,omitempty"`
	Duration          *string  `json:"duration,omitempty"` // duration string like "5s"
	OvercaptureFactor *float64 `json:"overcapture_factor,omitempty"`

	// Bandpass filter
	LowCutoffHz  *float64 `json:"low_cutoff_hz,omitempty"`
	HighCutoffHz *float64 `json:"high_cutoff_hz,omitempty"`
	FilterOrder  *int     `json:"filter_order,omitempty"`

	// Output
	OutputDir *string  `json:"output_dir,omitempty"`
	Basename  *string  `json:"basename,omitempty"`
	Formats   []string `json:"formats,omitempty"`
	Overwrite *bool    `json:"overwrite,omitempty"`

	// Catalogue; empty disables it.
	DBPath *string `json:"db_path,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyCaptureConfig returns a config with every field unset.
func EmptyCaptureConfig() *CaptureConfig {
	return &CaptureConfig{}
}

// DefaultCaptureConfig returns a config with every field set to its default.
func DefaultCaptureConfig() *CaptureConfig {
	return &CaptureConfig{
		Port:              ptrString(""),
		BaudRate:          ptrInt(serialport.DefaultBaudRate),
		DataBits:          ptrInt(8),
		StopBits:          ptrInt(1),
		Parity:            ptrString("N"),
		ReadTimeout:       ptrString(serialport.DefaultReadTimeout.String()),
		Marker1:           ptrInt(int(framesync.DefaultMarker1)),
		Marker2:           ptrInt(int(framesync.DefaultMarker2)),
		HeaderSize:        ptrInt(framesync.RichHeaderSize),
		PayloadSize:       ptrInt(framesync.DefaultPayloadSize),
		Mode:              ptrString(capture.ModeManual.String()),
		SampleRate:        ptrInt(capture.DefaultSampleRate),
		OnThreshold:       ptrInt(capture.DefaultOnThreshold),
		OffThreshold:      ptrInt(capture.DefaultOffThreshold),
		Duration:          ptrString(capture.DefaultDuration.String()),
		OvercaptureFactor: ptrFloat64(capture.DefaultOvercapture),
		LowCutoffHz:       ptrFloat64(dsp.DefaultLowCutoff),
		HighCutoffHz:      ptrFloat64(dsp.DefaultHighCutoff),
		FilterOrder:       ptrInt(dsp.DefaultOrder),
		OutputDir:         ptrString(DefaultOutputDir),
		Basename:          ptrString(DefaultBasename),
		Formats:           strings.Split(DefaultFormats, ","),
		Overwrite:         ptrBool(false),
		DBPath:            ptrString(""),
	}
}

// LoadCaptureConfig reads a config file from disk.
func LoadCaptureConfig(path string) (*CaptureConfig, error) {
	return LoadCaptureConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadCaptureConfigFS reads a config file from fsys. The file must have a
// .json extension and be at most 1MB. Fields left out of the file keep
// their defaults through the Get* accessors.
func LoadCaptureConfigFS(fsys fsutil.FileSystem, path string) (*CaptureConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCaptureConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or one of its parents. It panics on failure and is meant for tests.
func MustLoadDefaultConfig() *CaptureConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/ subpackages
	}
	for _, path := range candidates {
		if cfg, err := LoadCaptureConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks each field that is set, then the combination that a
// capture session and the filter would be built from.
func (c *CaptureConfig) Validate() error {
	for name, v := range map[string]*string{"read_timeout": c.ReadTimeout, "duration": c.Duration} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}
	for name, v := range map[string]*int{"marker1": c.Marker1, "marker2": c.Marker2} {
		if v != nil && (*v < 0 || *v > 0xFF) {
			return fmt.Errorf("%s must be a byte value 0-255, got %d", name, *v)
		}
	}
	if c.Mode != nil && *c.Mode != "" {
		if _, err := capture.ParseMode(*c.Mode); err != nil {
			return err
		}
	}
	if _, err := c.PortOptions(); err != nil {
		return err
	}
	if _, err := c.SessionConfig(); err != nil {
		return err
	}
	if err := c.Band().Validate(float64(c.GetSampleRate())); err != nil {
		return err
	}
	if _, err := c.ExportFormats(); err != nil {
		return err
	}
	return nil
}

func getString(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getDuration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def
	}
	return d
}

// GetPort returns the serial device path, which has no default.
func (c *CaptureConfig) GetPort() string { return getString(c.Port, "") }

func (c *CaptureConfig) GetBaudRate() int { return getInt(c.BaudRate, serialport.DefaultBaudRate) }

func (c *CaptureConfig) GetReadTimeout() time.Duration {
	return getDuration(c.ReadTimeout, serialport.DefaultReadTimeout)
}

func (c *CaptureConfig) GetSampleRate() int { return getInt(c.SampleRate, capture.DefaultSampleRate) }

// GetMode returns the capture mode, falling back to manual for unknown
// names; Validate reports those.
func (c *CaptureConfig) GetMode() capture.Mode {
	m, err := capture.ParseMode(getString(c.Mode, capture.ModeManual.String()))
	if err != nil {
		return capture.ModeManual
	}
	return m
}

func (c *CaptureConfig) GetDuration() time.Duration {
	return getDuration(c.Duration, capture.DefaultDuration)
}

func (c *CaptureConfig) GetOutputDir() string { return getString(c.OutputDir, DefaultOutputDir) }

func (c *CaptureConfig) GetBasename() string { return getString(c.Basename, DefaultBasename) }

func (c *CaptureConfig) GetOverwrite() bool { return c.Overwrite != nil && *c.Overwrite }

func (c *CaptureConfig) GetDBPath() string { return getString(c.DBPath, "") }

// GetOvercaptureFactor defaults to 2.1 for framed payloads and 1.0 when the
// firmware sends no header.
func (c *CaptureConfig) GetOvercaptureFactor() float64 {
	def := capture.DefaultOvercapture
	if getInt(c.HeaderSize, framesync.RichHeaderSize) == framesync.SimpleHeaderSize {
		def = 1.0
	}
	return getFloat(c.OvercaptureFactor, def)
}

// Layout returns the wire framing.
func (c *CaptureConfig) Layout() framesync.Layout {
	return framesync.Layout{
		Marker: [2]byte{
			byte(getInt(c.Marker1, int(framesync.DefaultMarker1))),
			byte(getInt(c.Marker2, int(framesync.DefaultMarker2))),
		},
		HeaderSize:  getInt(c.HeaderSize, framesync.RichHeaderSize),
		PayloadSize: getInt(c.PayloadSize, framesync.DefaultPayloadSize),
	}
}

// PortOptions returns normalised serial settings.
func (c *CaptureConfig) PortOptions() (serialport.PortOptions, error) {
	return serialport.PortOptions{
		BaudRate:    c.GetBaudRate(),
		DataBits:    getInt(c.DataBits, 8),
		StopBits:    getInt(c.StopBits, 1),
		Parity:      getString(c.Parity, "N"),
		ReadTimeout: c.GetReadTimeout(),
	}.Normalise()
}

// SessionConfig returns a validated capture configuration.
func (c *CaptureConfig) SessionConfig() (capture.Config, error) {
	cfg := capture.Config{
		Mode:              c.GetMode(),
		SampleRate:        c.GetSampleRate(),
		Layout:            c.Layout(),
		OnThreshold:       getInt(c.OnThreshold, capture.DefaultOnThreshold),
		OffThreshold:      getInt(c.OffThreshold, capture.DefaultOffThreshold),
		Duration:          c.GetDuration(),
		OvercaptureFactor: c.GetOvercaptureFactor(),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Band returns the bandpass filter settings.
func (c *CaptureConfig) Band() dsp.Band {
	return dsp.Band{
		Low:   getFloat(c.LowCutoffHz, dsp.DefaultLowCutoff),
		High:  getFloat(c.HighCutoffHz, dsp.DefaultHighCutoff),
		Order: getInt(c.FilterOrder, dsp.DefaultOrder),
	}
}

// ExportFormats parses the configured output formats.
func (c *CaptureConfig) ExportFormats() ([]export.Format, error) {
	if len(c.Formats) == 0 {
		return export.ParseFormats(DefaultFormats)
	}
	return export.ParseFormats(strings.Join(c.Formats, ","))
}
