// Package mediatest provides an in-memory media backend for tests.
package mediatest

import (
	"context"
	"math"
	"sync"

	"github.com/sendrec/player/internal/media"
)

// Backend is a scriptable media.Backend. It never emits events on its own
// except where noted; tests drive playback with the Advance/Finish helpers.
type Backend struct {
	media.Hub

	mu         sync.Mutex
	paused     bool
	time       float64
	duration   float64
	volume     float64
	muted      bool
	speed      float64
	loop       bool
	fullscreen bool

	// PlayErr, when set, makes Play fail and keep the media paused.
	PlayErr error

	PlayCalls  int
	PauseCalls int
	Seeks      []float64
}

// New returns a paused fake with unknown duration.
func New() *Backend {
	return &Backend{
		paused:   true,
		duration: math.NaN(),
		volume:   1,
		speed:    1,
	}
}

func (b *Backend) Play(ctx context.Context) error {
	b.mu.Lock()
	b.PlayCalls++
	if err := ctx.Err(); err != nil {
		b.mu.Unlock()
		return err
	}
	if b.PlayErr != nil {
		err := b.PlayErr
		b.mu.Unlock()
		return err
	}
	b.paused = false
	b.mu.Unlock()
	return nil
}

func (b *Backend) Pause() error {
	b.mu.Lock()
	b.PauseCalls++
	b.paused = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) Seek(seconds float64) error {
	b.mu.Lock()
	b.Seeks = append(b.Seeks, seconds)
	b.time = seconds
	b.mu.Unlock()
	return nil
}

func (b *Backend) SetVolume(level float64) error {
	b.mu.Lock()
	b.volume = level
	b.mu.Unlock()
	return nil
}

func (b *Backend) SetMuted(muted bool) error {
	b.mu.Lock()
	b.muted = muted
	b.mu.Unlock()
	return nil
}

func (b *Backend) SetSpeed(rate float64) error {
	b.mu.Lock()
	b.speed = rate
	b.mu.Unlock()
	return nil
}

func (b *Backend) SetLoop(loop bool) error {
	b.mu.Lock()
	b.loop = loop
	b.mu.Unlock()
	return nil
}

func (b *Backend) CurrentTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.time
}

func (b *Backend) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration
}

func (b *Backend) Volume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

func (b *Backend) Muted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muted
}

func (b *Backend) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// Speed returns the last rate set.
func (b *Backend) Speed() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speed
}

// Loop returns the last loop flag set.
func (b *Backend) Loop() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loop
}

// RequestFullscreen records the request; the host confirms with SetFullscreen.
func (b *Backend) RequestFullscreen() error {
	b.mu.Lock()
	b.fullscreen = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) ExitFullscreen() error {
	b.mu.Lock()
	b.fullscreen = false
	b.mu.Unlock()
	return nil
}

// FullscreenRequested reports the last request made by the player.
func (b *Backend) FullscreenRequested() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fullscreen
}

// SetFullscreen simulates the host entering or leaving fullscreen.
func (b *Backend) SetFullscreen(on bool) {
	b.mu.Lock()
	b.fullscreen = on
	b.mu.Unlock()
	b.Emit(media.Event{Type: media.EventFullscreenChange, Fullscreen: on})
}

// LoadMetadata sets the duration and emits loadedmetadata.
func (b *Backend) LoadMetadata(duration float64) {
	b.mu.Lock()
	b.duration = duration
	b.mu.Unlock()
	b.Emit(media.Event{Type: media.EventLoadedMetadata, Duration: duration})
}

// Advance moves the playhead to t and emits timeupdate.
func (b *Backend) Advance(t float64) {
	b.mu.Lock()
	b.time = t
	duration := b.duration
	b.mu.Unlock()
	b.Emit(media.Event{Type: media.EventTimeUpdate, Time: t, Duration: duration})
}

// Finish moves the playhead to the end, pauses and emits ended.
func (b *Backend) Finish() {
	b.mu.Lock()
	b.time = b.duration
	b.paused = true
	t := b.time
	b.mu.Unlock()
	b.Emit(media.Event{Type: media.EventEnded, Time: t})
}

// Fail emits a media runtime error.
func (b *Backend) Fail(err error) {
	b.Emit(media.Event{Type: media.EventError, Err: err})
}
