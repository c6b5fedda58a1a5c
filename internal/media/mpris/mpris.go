// Package mpris drives a desktop media player through the MPRIS D-Bus interface.
package mpris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/sendrec/player/internal/media"
)

const (
	BusPrefix  = "org.mpris.MediaPlayer2"
	ObjectPath = "/org/mpris/MediaPlayer2"

	playerIface = BusPrefix + ".Player"
	propsIface  = "org.freedesktop.DBus.Properties"

	defaultPollInterval = 250 * time.Millisecond
	// Paused this close to the end counts as finished.
	endTolerance = 0.25
)

// ErrNoPlayer is returned when no MPRIS player is on the session bus.
var ErrNoPlayer = errors.New("no mpris player instance found")

// busObject is the part of dbus.BusObject the backend uses.
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
	GetProperty(p string) (dbus.Variant, error)
	SetProperty(p string, v interface{}) error
}

// Discover returns the bus names of running MPRIS players.
func Discover(conn *dbus.Conn) ([]string, error) {
	var names []string
	err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil, fmt.Errorf("list bus names: %w", err)
	}

	var dests []string
	for _, name := range names {
		if strings.HasPrefix(name, BusPrefix+".") {
			dests = append(dests, name)
		}
	}
	if len(dests) == 0 {
		return nil, ErrNoPlayer
	}
	return dests, nil
}

// Backend is a media.Backend for an MPRIS player. MPRIS has no position
// notifications, so the position is polled while the backend runs.
type Backend struct {
	media.Hub

	obj          busObject
	conn         *dbus.Conn
	dest         string
	pollInterval time.Duration
	cancel       context.CancelFunc
	done         chan struct{}

	mu            sync.Mutex
	status        string
	trackID       dbus.ObjectPath
	time          float64
	duration      float64
	volume        float64
	restoreVolume float64
	muted         bool
	ended         bool
}

func newBackend(obj busObject) *Backend {
	return &Backend{
		obj:          obj,
		pollInterval: defaultPollInterval,
		status:       "Stopped",
		duration:     math.NaN(),
		volume:       1,
		done:         make(chan struct{}),
	}
}

// Connect attaches to the player owning dest, or to the first player found
// when dest is empty, and starts following its state.
func Connect(ctx context.Context, dest string) (*Backend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	if dest == "" {
		dests, err := Discover(conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		dest = dests[0]
	}

	b := newBackend(conn.Object(dest, ObjectPath))
	b.conn = conn
	b.dest = dest

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(ObjectPath),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("match PropertiesChanged: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(ObjectPath),
		dbus.WithMatchInterface(playerIface),
		dbus.WithMatchMember("Seeked"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("match Seeked: %w", err)
	}

	b.refresh()

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	b.start(ctx, signals)

	slog.Info("mpris: connected", "player", dest)
	return b, nil
}

// Name returns the bus name of the player.
func (b *Backend) Name() string {
	return b.dest
}

func (b *Backend) start(ctx context.Context, signals <-chan *dbus.Signal) {
	ctx, b.cancel = context.WithCancel(ctx)
	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				b.handleSignal(sig)
			case <-ticker.C:
				b.poll()
			}
		}
	}()
}

// Close stops following the player and drops the bus connection.
func (b *Backend) Close() error {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Load asks the player to open uri.
func (b *Backend) Load(ctx context.Context, uri string) error {
	return b.call(ctx, "OpenUri", uri)
}

func (b *Backend) call(ctx context.Context, method string, args ...interface{}) error {
	call := b.obj.CallWithContext(ctx, playerIface+"."+method, 0, args...)
	if call.Err != nil {
		return fmt.Errorf("call %s: %w", method, call.Err)
	}
	return nil
}

func (b *Backend) setProperty(name string, value interface{}) error {
	if err := b.obj.SetProperty(name, dbus.MakeVariant(value)); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

func (b *Backend) Play(ctx context.Context) error {
	if err := b.call(ctx, "Play"); err != nil {
		return err
	}
	b.mu.Lock()
	b.status = "Playing"
	b.ended = false
	b.mu.Unlock()
	return nil
}

func (b *Backend) Pause() error {
	if err := b.call(context.Background(), "Pause"); err != nil {
		return err
	}
	b.mu.Lock()
	b.status = "Paused"
	b.mu.Unlock()
	return nil
}

func (b *Backend) Seek(seconds float64) error {
	b.mu.Lock()
	trackID := b.trackID
	b.mu.Unlock()
	if trackID == "" {
		return media.ErrNotLoaded
	}

	us := int64(seconds * 1e6)
	if err := b.call(context.Background(), "SetPosition", trackID, us); err != nil {
		return err
	}
	b.mu.Lock()
	b.time = seconds
	if seconds < b.duration {
		b.ended = false
	}
	b.mu.Unlock()
	return nil
}

func (b *Backend) SetVolume(level float64) error {
	b.mu.Lock()
	if b.muted {
		b.restoreVolume = level
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()
	return b.setProperty(playerIface+".Volume", level)
}

// SetMuted emulates muting, which MPRIS lacks, by parking the volume at zero.
func (b *Backend) SetMuted(muted bool) error {
	b.mu.Lock()
	if muted == b.muted {
		b.mu.Unlock()
		return nil
	}
	level := b.restoreVolume
	if muted {
		b.restoreVolume = b.volume
		level = 0
	} else {
		b.volume = level
	}
	b.muted = muted
	ev := media.Event{Type: media.EventVolumeChange, Volume: b.restoreVolume, Muted: muted}
	b.mu.Unlock()

	if err := b.setProperty(playerIface+".Volume", level); err != nil {
		return err
	}
	b.Emit(ev)
	return nil
}

func (b *Backend) SetSpeed(rate float64) error {
	return b.setProperty(playerIface+".Rate", rate)
}

func (b *Backend) SetLoop(loop bool) error {
	status := "None"
	if loop {
		status = "Track"
	}
	return b.setProperty(playerIface+".LoopStatus", status)
}

func (b *Backend) RequestFullscreen() error {
	return b.setProperty(BusPrefix+".Fullscreen", true)
}

func (b *Backend) ExitFullscreen() error {
	return b.setProperty(BusPrefix+".Fullscreen", false)
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
	if b.muted {
		return b.restoreVolume
	}
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
	return b.status != "Playing"
}

// refresh reads the player's current state without emitting events for it,
// except for metadata which the player needs to learn the duration.
func (b *Backend) refresh() {
	if v, err := b.obj.GetProperty(playerIface + ".PlaybackStatus"); err == nil {
		if s, ok := v.Value().(string); ok {
			b.mu.Lock()
			b.status = s
			b.mu.Unlock()
		}
	}
	if v, err := b.obj.GetProperty(playerIface + ".Volume"); err == nil {
		if f, ok := v.Value().(float64); ok {
			b.mu.Lock()
			b.volume = f
			b.mu.Unlock()
		}
	}
	if v, err := b.obj.GetProperty(playerIface + ".Metadata"); err == nil {
		if m, ok := v.Value().(map[string]dbus.Variant); ok {
			b.applyMetadata(m)
		}
	}
	b.poll()
}

func (b *Backend) poll() {
	v, err := b.obj.GetProperty(playerIface + ".Position")
	if err != nil {
		return
	}
	us, ok := toInt64(v.Value())
	if !ok {
		return
	}
	t := float64(us) / 1e6

	b.mu.Lock()
	changed := t != b.time
	b.time = t
	d := b.duration
	finished := b.status == "Paused" && !b.ended && d > 0 && t >= d-endTolerance
	if finished {
		b.ended = true
	}
	b.mu.Unlock()

	if changed {
		b.Emit(media.Event{Type: media.EventTimeUpdate, Time: t, Duration: d})
	}
	if finished {
		b.Emit(media.Event{Type: media.EventEnded})
	}
}

func (b *Backend) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case playerIface + ".Seeked":
		if len(sig.Body) < 1 {
			return
		}
		us, ok := toInt64(sig.Body[0])
		if !ok {
			return
		}
		t := float64(us) / 1e6
		b.mu.Lock()
		b.time = t
		d := b.duration
		b.mu.Unlock()
		b.Emit(media.Event{Type: media.EventTimeUpdate, Time: t, Duration: d})

	case propsIface + ".PropertiesChanged":
		if len(sig.Body) < 2 {
			return
		}
		iface, _ := sig.Body[0].(string)
		changed, _ := sig.Body[1].(map[string]dbus.Variant)
		switch iface {
		case playerIface:
			b.playerChanged(changed)
		case BusPrefix:
			if v, ok := changed["Fullscreen"]; ok {
				if on, ok := v.Value().(bool); ok {
					b.Emit(media.Event{Type: media.EventFullscreenChange, Fullscreen: on})
				}
			}
		}
	}
}

func (b *Backend) playerChanged(changed map[string]dbus.Variant) {
	if v, ok := changed["Metadata"]; ok {
		if m, ok := v.Value().(map[string]dbus.Variant); ok {
			b.applyMetadata(m)
		}
	}
	if v, ok := changed["Volume"]; ok {
		if f, ok := v.Value().(float64); ok {
			b.mu.Lock()
			// Our own mute parks the volume at zero; hide that from listeners.
			suppress := b.muted && f == 0
			if !suppress {
				b.volume = f
				if b.muted {
					b.restoreVolume = f
				}
			}
			ev := media.Event{Type: media.EventVolumeChange, Volume: b.volume, Muted: b.muted}
			b.mu.Unlock()
			if !suppress {
				b.Emit(ev)
			}
		}
	}
	if v, ok := changed["PlaybackStatus"]; ok {
		if s, ok := v.Value().(string); ok {
			b.statusChanged(s)
		}
	}
}

func (b *Backend) statusChanged(status string) {
	b.mu.Lock()
	prev := b.status
	b.status = status
	ended := false
	if status == "Stopped" && prev != "Stopped" && b.trackID != "" && !b.ended {
		b.ended = true
		ended = true
	}
	if status == "Playing" {
		b.ended = false
	}
	b.mu.Unlock()

	switch {
	case status == prev:
	case status == "Playing":
		b.Emit(media.Event{Type: media.EventPlay})
	case ended:
		b.Emit(media.Event{Type: media.EventEnded})
	default:
		b.Emit(media.Event{Type: media.EventPause})
	}
}

func (b *Backend) applyMetadata(m map[string]dbus.Variant) {
	var trackID dbus.ObjectPath
	if v, ok := m["mpris:trackid"]; ok {
		switch id := v.Value().(type) {
		case dbus.ObjectPath:
			trackID = id
		case string:
			trackID = dbus.ObjectPath(id)
		}
	}
	duration := math.NaN()
	if v, ok := m["mpris:length"]; ok {
		if us, ok := toInt64(v.Value()); ok && us > 0 {
			duration = float64(us) / 1e6
		}
	}

	b.mu.Lock()
	if trackID != b.trackID {
		b.ended = false
	}
	b.trackID = trackID
	prev := b.duration
	b.duration = duration
	b.mu.Unlock()

	if math.IsNaN(duration) || duration == prev {
		return
	}
	typ := media.EventDurationChange
	if math.IsNaN(prev) {
		typ = media.EventLoadedMetadata
	}
	b.Emit(media.Event{Type: typ, Duration: duration})
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint32:
		return int64(x), true
	case float64:
		return int64(x), true
	}
	return 0, false
}
