package player

// CallToAction configures the end-of-video overlay.
type CallToAction struct {
	Enabled     bool    `json:"enabled"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ButtonText  string  `json:"buttonText"`
	ButtonLink  string  `json:"buttonLink"`
	DisplayTime float64 `json:"displayTime"`
}

// Props is the configuration a host supplies when mounting a player.
type Props struct {
	Src            string
	Title          string
	PosterURL      string
	AutoPlay       bool
	Muted          bool
	Loop           bool
	StartTime      float64
	PrimaryColor   string
	SecondaryColor string
	CallToAction   *CallToAction
	TrackAnalytics bool
	VideoID        string
	Controls       bool
}

// CTAEnabled reports whether an end-of-video overlay is configured.
func (p Props) CTAEnabled() bool {
	return p.CallToAction != nil && p.CallToAction.Enabled
}

// Callbacks are invoked after a state transition completes, never while the
// controller holds its lock. Nil callbacks are skipped.
type Callbacks struct {
	OnPlaybackChange func(playing bool)
	OnEnded          func()
	OnDurationChange func(duration float64)
	OnError          func(message string)
	// OnStateChange receives a snapshot after every transition.
	OnStateChange func(State)
}

// PositionObserver is fed playback progress. The analytics tracker is the
// production implementation.
type PositionObserver interface {
	ObservePosition(position, duration float64)
	ObserveEnded()
	ObserveUnmount()
}
