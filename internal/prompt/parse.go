// Package prompt implements the console side of a capture: the save/discard
// question asked when a distance-triggered recording ends, and numbered menus.
package prompt

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/audio.capture/internal/capture"
)

// ParseDecision interprets an answer to the save/discard question. Only an
// explicit yes/no (or save/discard) is accepted.
func ParseDecision(s string) (capture.Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "s", "save":
		return capture.DecisionSave, true
	case "n", "no", "d", "discard":
		return capture.DecisionDiscard, true
	default:
		return capture.DecisionNone, false
	}
}

// ParseYesNo interprets a yes/no answer.
func ParseYesNo(s string) (yes, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}

// ParseChoice interprets a 1-based menu selection among n options and
// returns the 0-based index.
func ParseChoice(s string, n int) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 || v > n {
		return 0, false
	}
	return v - 1, true
}

// ParseSeconds interprets a positive recording length. Bare numbers are
// seconds; Go duration strings such as "1m30s" are also accepted.
func ParseSeconds(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		// NaN fails both comparisons; +Inf and huge values overflow Duration.
		if !(f > 0) || f*float64(time.Second) >= math.MaxInt64 {
			return 0, false
		}
		return time.Duration(f * float64(time.Second)), true
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
