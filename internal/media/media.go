package media

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrNotLoaded is returned by backends asked to act before media is loaded.
var ErrNotLoaded = errors.New("media not loaded")

// EventType identifies a backend notification.
type EventType int

const (
	EventTimeUpdate EventType = iota
	EventLoadedMetadata
	EventDurationChange
	EventPlay
	EventPause
	EventVolumeChange
	EventWaiting
	EventPlaying
	EventEnded
	EventFullscreenChange
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventTimeUpdate:
		return "timeupdate"
	case EventLoadedMetadata:
		return "loadedmetadata"
	case EventDurationChange:
		return "durationchange"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventVolumeChange:
		return "volumechange"
	case EventWaiting:
		return "waiting"
	case EventPlaying:
		return "playing"
	case EventEnded:
		return "ended"
	case EventFullscreenChange:
		return "fullscreenchange"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event carries the backend's view of the media at the time it fired.
// Only the fields relevant to Type are meaningful.
type Event struct {
	Type       EventType
	Time       float64
	Duration   float64
	Volume     float64
	Muted      bool
	Fullscreen bool
	Err        error
}

// Handler receives backend events. Handlers may be called from any goroutine.
type Handler func(Event)

// Backend is the minimal capability set the player needs from a media element.
type Backend interface {
	// Play requests playback. It may be rejected, e.g. when the media
	// cannot be decoded.
	Play(ctx context.Context) error
	Pause() error
	Seek(seconds float64) error
	SetVolume(level float64) error
	SetMuted(muted bool) error
	SetSpeed(rate float64) error
	SetLoop(loop bool) error

	CurrentTime() float64
	// Duration returns NaN until metadata is available.
	Duration() float64
	Volume() float64
	Muted() bool
	Paused() bool

	// Subscribe registers h and returns the function that removes it.
	Subscribe(h Handler) (cancel func())
}

// Fullscreener is implemented by backends whose surface can go fullscreen.
// The outcome is reported through EventFullscreenChange, never returned.
type Fullscreener interface {
	RequestFullscreen() error
	ExitFullscreen() error
}

// Hub fans events out to subscribers. Backends embed it.
type Hub struct {
	mu       sync.Mutex
	next     int
	handlers map[int]Handler
}

// Subscribe adds h. The returned cancel func is safe to call more than once.
func (hub *Hub) Subscribe(h Handler) func() {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.handlers == nil {
		hub.handlers = make(map[int]Handler)
	}
	id := hub.next
	hub.next++
	hub.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			hub.mu.Lock()
			delete(hub.handlers, id)
			hub.mu.Unlock()
		})
	}
}

// Emit delivers ev to every subscriber in registration order.
func (hub *Hub) Emit(ev Event) {
	hub.mu.Lock()
	ids := make([]int, 0, len(hub.handlers))
	for id := range hub.handlers {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, hub.handlers[id])
	}
	hub.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Len reports the number of live subscriptions.
func (hub *Hub) Len() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.handlers)
}
