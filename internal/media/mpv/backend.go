package mpv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sendrec/player/internal/media"
)

const commandTimeout = 2 * time.Second

// Properties observed on connect. Their position is the observer id.
var observed = []string{
	"time-pos",
	"duration",
	"pause",
	"volume",
	"mute",
	"fullscreen",
	"eof-reached",
	"paused-for-cache",
}

// Backend is a media.Backend backed by a running mpv instance.
type Backend struct {
	media.Hub

	ipc *ipcConn

	mu       sync.Mutex
	time     float64
	duration float64
	volume   float64
	muted    bool
	paused   bool
	loaded   bool
}

// Connect attaches to the IPC socket of a running mpv and starts observing
// the properties the player needs.
func Connect(ctx context.Context, socketPath string) (*Backend, error) {
	b := &Backend{
		duration: math.NaN(),
		volume:   1,
		paused:   true,
	}
	c, err := dialIPC(ctx, socketPath, b.handleMessage)
	if err != nil {
		return nil, err
	}
	b.ipc = c

	for i, name := range observed {
		if _, err := c.Command(ctx, "observe_property", i+1, name); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("observe %s: %w", name, err)
		}
	}
	return b, nil
}

// Load replaces the current file with src.
func (b *Backend) Load(ctx context.Context, src string) error {
	if _, err := b.ipc.Command(ctx, "loadfile", src, "replace"); err != nil {
		return fmt.Errorf("load %s: %w", src, err)
	}
	return nil
}

// Close drops the IPC connection. mpv itself keeps running.
func (b *Backend) Close() error {
	return b.ipc.Close()
}

// Done is closed when mpv goes away.
func (b *Backend) Done() <-chan struct{} {
	return b.ipc.Done()
}

func (b *Backend) setProperty(ctx context.Context, name string, value any) error {
	if _, err := b.ipc.Command(ctx, "set_property", name, value); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

func (b *Backend) set(name string, value any) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return b.setProperty(ctx, name, value)
}

func (b *Backend) Play(ctx context.Context) error {
	if !b.isLoaded() {
		return media.ErrNotLoaded
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := b.setProperty(ctx, "pause", false); err != nil {
		return err
	}
	b.mu.Lock()
	b.paused = false
	b.mu.Unlock()
	return nil
}

func (b *Backend) Pause() error {
	if err := b.set("pause", true); err != nil {
		return err
	}
	b.mu.Lock()
	b.paused = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) Seek(seconds float64) error {
	if !b.isLoaded() {
		return media.ErrNotLoaded
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := b.ipc.Command(ctx, "seek", seconds, "absolute+exact"); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	b.mu.Lock()
	b.time = seconds
	b.mu.Unlock()
	return nil
}

func (b *Backend) SetVolume(level float64) error {
	return b.set("volume", level*100)
}

func (b *Backend) SetMuted(muted bool) error {
	return b.set("mute", muted)
}

func (b *Backend) SetSpeed(rate float64) error {
	return b.set("speed", rate)
}

func (b *Backend) SetLoop(loop bool) error {
	if loop {
		return b.set("loop-file", "inf")
	}
	return b.set("loop-file", "no")
}

func (b *Backend) RequestFullscreen() error {
	return b.set("fullscreen", true)
}

func (b *Backend) ExitFullscreen() error {
	return b.set("fullscreen", false)
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

func (b *Backend) isLoaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

func (b *Backend) handleMessage(msg message) {
	switch msg.Event {
	case "property-change":
		b.propertyChanged(msg.Name, msg.Data)
	case "start-file":
		b.mu.Lock()
		b.loaded = false
		b.duration = math.NaN()
		b.time = 0
		b.mu.Unlock()
	case "file-loaded":
		b.mu.Lock()
		b.loaded = true
		b.mu.Unlock()
	case "end-file":
		if msg.Reason == "error" {
			b.Emit(media.Event{Type: media.EventError, Err: fmt.Errorf("playback failed: %s", msg.FileError)})
		}
	}
}

func (b *Backend) propertyChanged(name string, raw json.RawMessage) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}

	switch name {
	case "time-pos":
		var t float64
		if !decode(name, raw, &t) {
			return
		}
		b.mu.Lock()
		b.time = t
		d := b.duration
		b.mu.Unlock()
		b.Emit(media.Event{Type: media.EventTimeUpdate, Time: t, Duration: d})

	case "duration":
		var d float64
		if !decode(name, raw, &d) {
			return
		}
		b.mu.Lock()
		first := math.IsNaN(b.duration)
		b.duration = d
		b.loaded = true
		b.mu.Unlock()
		typ := media.EventDurationChange
		if first {
			typ = media.EventLoadedMetadata
		}
		b.Emit(media.Event{Type: typ, Duration: d})

	case "pause":
		var paused bool
		if !decode(name, raw, &paused) {
			return
		}
		b.mu.Lock()
		b.paused = paused
		b.mu.Unlock()
		if paused {
			b.Emit(media.Event{Type: media.EventPause})
		} else {
			b.Emit(media.Event{Type: media.EventPlay})
		}

	case "volume", "mute":
		b.mu.Lock()
		ok := false
		if name == "volume" {
			var v float64
			if ok = decode(name, raw, &v); ok {
				b.volume = math.Max(0, math.Min(1, v/100))
			}
		} else {
			var m bool
			if ok = decode(name, raw, &m); ok {
				b.muted = m
			}
		}
		ev := media.Event{Type: media.EventVolumeChange, Volume: b.volume, Muted: b.muted}
		b.mu.Unlock()
		if ok {
			b.Emit(ev)
		}

	case "fullscreen":
		var on bool
		if !decode(name, raw, &on) {
			return
		}
		b.Emit(media.Event{Type: media.EventFullscreenChange, Fullscreen: on})

	case "eof-reached":
		var eof bool
		if !decode(name, raw, &eof) || !eof {
			return
		}
		b.mu.Lock()
		b.paused = true
		b.mu.Unlock()
		b.Emit(media.Event{Type: media.EventEnded})

	case "paused-for-cache":
		var waiting bool
		if !decode(name, raw, &waiting) {
			return
		}
		if waiting {
			b.Emit(media.Event{Type: media.EventWaiting})
		} else {
			b.Emit(media.Event{Type: media.EventPlaying})
		}
	}
}

func decode(name string, raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		slog.Debug("mpv: unexpected property value", "property", name, "error", err)
		return false
	}
	return true
}
