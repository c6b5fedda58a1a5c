package shortcut

import "math"

// Track is the on-screen geometry of the progress bar.
type Track struct {
	Left  float64
	Width float64
}

// Contains reports whether x falls on the track.
func (t Track) Contains(x float64) bool {
	return t.Width > 0 && x >= t.Left && x <= t.Left+t.Width
}

// Seeker is what a scrubber needs from the player.
type Seeker interface {
	SeekToFraction(f float64)
}

// Scrubber implements click and drag seeking on a progress track.
type Scrubber struct {
	seeker   Seeker
	dragging bool
}

// NewScrubber returns a scrubber driving s.
func NewScrubber(s Seeker) *Scrubber {
	return &Scrubber{seeker: s}
}

// Fraction maps a pointer x coordinate to a clamped position on the track.
func Fraction(x float64, track Track) float64 {
	if track.Width <= 0 || math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, (x-track.Left)/track.Width))
}

// Down starts a drag and seeks to the pointer.
func (s *Scrubber) Down(x float64, track Track) {
	s.dragging = true
	s.seeker.SeekToFraction(Fraction(x, track))
}

// Move seeks while a drag is in progress.
func (s *Scrubber) Move(x float64, track Track) {
	if !s.dragging {
		return
	}
	s.seeker.SeekToFraction(Fraction(x, track))
}

// Up ends the drag.
func (s *Scrubber) Up() {
	s.dragging = false
}

// Dragging reports whether a drag is in progress.
func (s *Scrubber) Dragging() bool {
	return s.dragging
}
