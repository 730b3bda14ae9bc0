package capture

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/banshee-data/audio.capture/internal/framesync"
)

// Mode selects how a session decides which frames to keep.
type Mode int

const (
	// ModeManual records a fixed number of frames derived from a duration.
	ModeManual Mode = iota
	// ModeDistance records while the firmware's range sensor reports an
	// object in range, with hysteresis on both edges.
	ModeDistance
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeDistance:
		return "distance"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "manual" or "distance" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual":
		return ModeManual, nil
	case "distance", "distance-trigger", "trigger":
		return ModeDistance, nil
	default:
		return 0, fmt.Errorf("unknown capture mode %q: expected manual or distance", s)
	}
}

// Defaults used by DefaultConfig.
const (
	DefaultSampleRate   = 44100
	DefaultOnThreshold  = 75
	DefaultOffThreshold = 100
	DefaultDuration     = 5 * time.Second
	// DefaultOvercapture compensates for the frames the rich firmware spends
	// on framing and range sensing. Tuned empirically on the bench.
	DefaultOvercapture = 2.1
)

// Config is the immutable snapshot a session runs with.
type Config struct {
	Mode       Mode
	SampleRate int
	Layout     framesync.Layout

	// Distance mode hysteresis.
	OnThreshold  int
	OffThreshold int

	// Manual mode sizing.
	Duration          time.Duration
	OvercaptureFactor float64
}

// DefaultConfig returns the settings for the rich firmware in manual mode.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeManual,
		SampleRate:        DefaultSampleRate,
		Layout:            framesync.DefaultLayout(),
		OnThreshold:       DefaultOnThreshold,
		OffThreshold:      DefaultOffThreshold,
		Duration:          DefaultDuration,
		OvercaptureFactor: DefaultOvercapture,
	}
}

// Validate checks the configuration for the selected mode.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if c.Layout.PayloadSize%2 != 0 {
		return fmt.Errorf("payload size must be even (two bytes per sample), got %d", c.Layout.PayloadSize)
	}
	switch c.Mode {
	case ModeManual:
		if c.Duration <= 0 {
			return fmt.Errorf("recording duration must be positive, got %s", c.Duration)
		}
		if c.OvercaptureFactor < 1 {
			return fmt.Errorf("overcapture factor must be >= 1, got %g", c.OvercaptureFactor)
		}
	case ModeDistance:
		if c.Layout.HeaderSize == 0 {
			return fmt.Errorf("distance mode needs a range byte; header size is 0")
		}
		if c.OnThreshold < 1 {
			return fmt.Errorf("on threshold must be >= 1, got %d", c.OnThreshold)
		}
		if c.OffThreshold < 1 {
			return fmt.Errorf("off threshold must be >= 1, got %d", c.OffThreshold)
		}
	default:
		return fmt.Errorf("unknown capture mode %v", c.Mode)
	}
	return nil
}

// TargetFrames is the number of frames manual mode consumes:
// ceil(duration * sample_rate / payload_size * overcapture).
func (c Config) TargetFrames() int {
	frames := c.Duration.Seconds() * float64(c.SampleRate) / float64(c.Layout.PayloadSize) * c.OvercaptureFactor
	return int(math.Ceil(frames))
}
