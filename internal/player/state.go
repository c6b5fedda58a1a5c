package player

import "math"

// DisplayMode is the player's layout variant. It never affects playback.
type DisplayMode int

const (
	ModeNormal DisplayMode = iota
	ModeTheater
	ModeMini
)

func (m DisplayMode) String() string {
	switch m {
	case ModeTheater:
		return "theater"
	case ModeMini:
		return "mini"
	default:
		return "normal"
	}
}

// SkipStep is the distance covered by SkipForward and SkipBackward.
const SkipStep = 10.0

// Speeds is the ordered list of selectable playback rates.
var Speeds = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

// speedIndex returns the position of the list entry closest to rate.
func speedIndex(rate float64) int {
	best := 0
	for i, s := range Speeds {
		if math.Abs(s-rate) < math.Abs(Speeds[best]-rate) {
			best = i
		}
	}
	return best
}

// State is a snapshot of the player's transport and display state.
type State struct {
	Playing     bool
	CurrentTime float64
	// Duration is NaN until the media's metadata has loaded.
	Duration    float64
	Volume      float64
	Muted       bool
	Speed       float64
	DisplayMode DisplayMode
	Fullscreen  bool
	Ended       bool
	Buffering   bool

	Captions    bool
	HelpVisible bool
	CTAVisible  bool
}

// DurationKnown reports whether Duration is usable for arithmetic.
func (s State) DurationKnown() bool {
	return durationKnown(s.Duration)
}

// Progress returns CurrentTime as a fraction of Duration, or 0 when unknown.
func (s State) Progress() float64 {
	if !s.DurationKnown() {
		return 0
	}
	return clamp(s.CurrentTime/s.Duration, 0, 1)
}

func durationKnown(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// clampTime bounds t to the playable range. With no known duration only the
// lower bound applies.
func clampTime(t, duration float64) float64 {
	if !durationKnown(duration) {
		if math.IsNaN(t) || t < 0 {
			return 0
		}
		return t
	}
	return clamp(t, 0, duration)
}
