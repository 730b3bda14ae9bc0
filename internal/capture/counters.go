package capture

// Counters are the hysteresis counters of a distance-triggered session.
type Counters struct {
	// OneCount counts consecutive in-range frames while armed.
	OneCount int
	// ZeroCount counts consecutive out-of-range frames once recording.
	ZeroCount int
	// FirstActivation stays true until the on threshold is first crossed.
	FirstActivation bool
}

// NewCounters returns counters in their session-start state.
func NewCounters() Counters {
	return Counters{FirstActivation: true}
}

// Reset returns the counters to their session-start state.
func (c *Counters) Reset() {
	*c = NewCounters()
}
