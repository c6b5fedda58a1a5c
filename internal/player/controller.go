package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/sendrec/player/internal/media"
)

// ErrAlreadyMounted is returned by Mount on a controller that is live.
var ErrAlreadyMounted = errors.New("player already mounted")

// Controller owns the playback state and mirrors it onto a media backend.
// Every exported method is safe for concurrent use; backend events may arrive
// on any goroutine.
type Controller struct {
	backend  media.Backend
	props    Props
	cb       Callbacks
	observer PositionObserver

	mu           sync.Mutex
	state        State
	mounted      bool
	unmounted    bool
	cancel       func()
	pendingStart float64
	shouldPlay   *bool
}

// NewController returns an unmounted controller. observer may be nil.
func NewController(backend media.Backend, props Props, cb Callbacks, observer PositionObserver) *Controller {
	return &Controller{
		backend:  backend,
		props:    props,
		cb:       cb,
		observer: observer,
		state: State{
			Duration: math.NaN(),
			Volume:   1,
			Muted:    props.Muted,
			Speed:    1,
		},
	}
}

// Props returns the configuration the controller was built with.
func (c *Controller) Props() Props {
	return c.props
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// notifier collects callbacks to run once the lock is released.
type notifier struct {
	fns []func()
}

func (n *notifier) add(f func()) {
	n.fns = append(n.fns, f)
}

// mutate applies fn under the lock, then runs queued callbacks and
// OnStateChange without it.
func (c *Controller) mutate(fn func(n *notifier)) {
	n := &notifier{}
	c.mu.Lock()
	fn(n)
	snapshot := c.state
	c.mu.Unlock()

	for _, f := range n.fns {
		f()
	}
	if c.cb.OnStateChange != nil {
		c.cb.OnStateChange(snapshot)
	}
}

// Mount subscribes to backend events and applies the initial props.
// On failure every subscription taken so far is released.
func (c *Controller) Mount(ctx context.Context) (err error) {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.unmounted = false
	c.mu.Unlock()

	cancel := c.backend.Subscribe(c.handleEvent)
	defer func() {
		if err != nil {
			cancel()
			c.mu.Lock()
			c.mounted = false
			c.mu.Unlock()
		}
	}()

	if err := c.backend.SetMuted(c.props.Muted); err != nil {
		return fmt.Errorf("apply muted: %w", err)
	}
	if err := c.backend.SetLoop(c.props.Loop); err != nil {
		return fmt.Errorf("apply loop: %w", err)
	}

	duration := c.backend.Duration()
	c.mu.Lock()
	c.cancel = cancel
	if durationKnown(duration) {
		c.state.Duration = duration
	}
	if c.props.StartTime > 0 && !durationKnown(duration) {
		c.pendingStart = c.props.StartTime
	}
	c.mu.Unlock()

	if c.props.StartTime > 0 && durationKnown(duration) {
		c.Seek(c.props.StartTime)
	}
	if c.props.AutoPlay {
		c.play(ctx)
	}

	slog.Debug("player: mounted", "src", c.props.Src, "autoplay", c.props.AutoPlay)
	return nil
}

// Unmount releases backend subscriptions and tells the observer the session
// is over. Calling it more than once is a no-op.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if !c.mounted || c.unmounted {
		c.mu.Unlock()
		return
	}
	c.unmounted = true
	c.mounted = false
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c.observer != nil {
		c.observer.ObserveUnmount()
	}
	slog.Debug("player: unmounted", "src", c.props.Src)
}

// TogglePlay pauses when playing and requests playback otherwise. After the
// video has ended it replays from the start.
func (c *Controller) TogglePlay(ctx context.Context) {
	if c.State().Ended {
		c.Restart(ctx)
		return
	}
	if c.backend.Paused() {
		c.play(ctx)
		return
	}
	c.pause()
}

func (c *Controller) play(ctx context.Context) {
	err := c.backend.Play(ctx)
	playing := !c.backend.Paused()

	c.mutate(func(n *notifier) {
		if err != nil {
			slog.Warn("player: play request rejected", "src", c.props.Src, "error", err)
			c.reportError(n, err.Error())
		}
		c.setPlaying(playing, n)
	})
}

func (c *Controller) pause() {
	if err := c.backend.Pause(); err != nil {
		slog.Warn("player: pause failed", "src", c.props.Src, "error", err)
	}
	playing := !c.backend.Paused()
	c.mutate(func(n *notifier) {
		c.setPlaying(playing, n)
	})
}

// setPlaying must be called with c.mu held.
func (c *Controller) setPlaying(playing bool, n *notifier) {
	if c.state.Playing == playing {
		return
	}
	c.state.Playing = playing
	if cb := c.cb.OnPlaybackChange; cb != nil {
		n.add(func() { cb(playing) })
	}
}

// reportError must be called with c.mu held.
func (c *Controller) reportError(n *notifier, message string) {
	if cb := c.cb.OnError; cb != nil {
		n.add(func() { cb(message) })
	}
}

// SetShouldPlay reconciles an external play/pause signal with the current
// state. Only a change in the signal triggers a transition.
func (c *Controller) SetShouldPlay(ctx context.Context, want bool) {
	c.mu.Lock()
	if c.shouldPlay != nil && *c.shouldPlay == want {
		c.mu.Unlock()
		return
	}
	c.shouldPlay = &want
	playing := c.state.Playing
	c.mu.Unlock()

	if want == playing {
		return
	}
	if want {
		c.play(ctx)
	} else {
		c.pause()
	}
}

// Seek moves the playhead to t, clamped to [0, duration]. The displayed time
// updates immediately.
func (c *Controller) Seek(t float64) {
	c.mu.Lock()
	target := clampTime(t, c.state.Duration)
	c.mu.Unlock()

	if err := c.backend.Seek(target); err != nil {
		slog.Warn("player: seek failed", "src", c.props.Src, "target", target, "error", err)
	}

	c.mutate(func(n *notifier) {
		c.state.CurrentTime = target
		if c.state.Ended && (!c.state.DurationKnown() || target < c.state.Duration) {
			c.state.Ended = false
			c.state.CTAVisible = false
		}
	})
}

// SeekBy seeks relative to the current position.
func (c *Controller) SeekBy(delta float64) {
	c.Seek(c.State().CurrentTime + delta)
}

// SeekToFraction seeks to f of the duration. It does nothing until the
// duration is known.
func (c *Controller) SeekToFraction(f float64) {
	s := c.State()
	if !s.DurationKnown() {
		return
	}
	c.Seek(s.Duration * clamp(f, 0, 1))
}

// SkipForward seeks SkipStep seconds ahead.
func (c *Controller) SkipForward() {
	c.SeekBy(SkipStep)
}

// SkipBackward seeks SkipStep seconds back.
func (c *Controller) SkipBackward() {
	c.SeekBy(-SkipStep)
}

// SetVolume clamps v to [0,1]. Zero mutes; a positive level never unmutes.
func (c *Controller) SetVolume(v float64) {
	level := clamp(v, 0, 1)

	c.mu.Lock()
	wasMuted := c.state.Muted
	c.mu.Unlock()

	if err := c.backend.SetVolume(level); err != nil {
		slog.Warn("player: set volume failed", "level", level, "error", err)
	}
	mute := level == 0 && !wasMuted
	if mute {
		if err := c.backend.SetMuted(true); err != nil {
			slog.Warn("player: mute failed", "error", err)
		}
	}

	c.mutate(func(n *notifier) {
		c.state.Volume = level
		if mute {
			c.state.Muted = true
		}
	})
}

// AdjustVolume changes the volume by delta.
func (c *Controller) AdjustVolume(delta float64) {
	c.SetVolume(c.State().Volume + delta)
}

// ToggleMute flips the muted flag and leaves the volume level alone.
func (c *Controller) ToggleMute() {
	muted := !c.State().Muted
	if err := c.backend.SetMuted(muted); err != nil {
		slog.Warn("player: toggle mute failed", "error", err)
	}
	c.mutate(func(n *notifier) {
		c.state.Muted = muted
	})
}

// StepSpeed moves one entry up (+1) or down (-1) the Speeds list. It stops
// at either end.
func (c *Controller) StepSpeed(step int) {
	if step > 0 {
		step = 1
	} else if step < 0 {
		step = -1
	}

	c.mu.Lock()
	idx := speedIndex(c.state.Speed)
	c.mu.Unlock()

	next := idx + step
	if step == 0 || next < 0 || next >= len(Speeds) {
		return
	}
	rate := Speeds[next]
	if err := c.backend.SetSpeed(rate); err != nil {
		slog.Warn("player: set speed failed", "rate", rate, "error", err)
		return
	}
	c.mutate(func(n *notifier) {
		c.state.Speed = rate
	})
}

// ToggleFullscreen asks the backend's surface to enter or leave fullscreen.
// State follows only when the backend reports the change.
func (c *Controller) ToggleFullscreen() {
	fs, ok := c.backend.(media.Fullscreener)
	if !ok {
		slog.Debug("player: backend has no fullscreen surface")
		return
	}

	var err error
	if c.State().Fullscreen {
		err = fs.ExitFullscreen()
	} else {
		err = fs.RequestFullscreen()
	}
	if err != nil {
		slog.Warn("player: fullscreen request failed", "error", err)
	}
}

// SetDisplayMode switches layout without touching playback.
func (c *Controller) SetDisplayMode(m DisplayMode) {
	c.mutate(func(n *notifier) {
		c.state.DisplayMode = m
	})
}

// ToggleDisplayMode switches to m, or back to normal when m is active.
func (c *Controller) ToggleDisplayMode(m DisplayMode) {
	c.mutate(func(n *notifier) {
		if c.state.DisplayMode == m {
			c.state.DisplayMode = ModeNormal
		} else {
			c.state.DisplayMode = m
		}
	})
}

// ToggleCaptions flips the captions display flag.
func (c *Controller) ToggleCaptions() {
	c.mutate(func(n *notifier) {
		c.state.Captions = !c.state.Captions
	})
}

// ToggleHelp flips the shortcut overlay.
func (c *Controller) ToggleHelp() {
	c.mutate(func(n *notifier) {
		c.state.HelpVisible = !c.state.HelpVisible
	})
}

// Restart replays an ended video from the start.
func (c *Controller) Restart(ctx context.Context) {
	c.mu.Lock()
	ended := c.state.Ended
	c.mu.Unlock()
	if !ended {
		return
	}

	if err := c.backend.Seek(0); err != nil {
		slog.Warn("player: restart seek failed", "src", c.props.Src, "error", err)
	}
	c.mutate(func(n *notifier) {
		c.state.CurrentTime = 0
		c.state.Ended = false
		c.state.CTAVisible = false
	})
	c.play(ctx)
}

// DismissCTA hides the call-to-action overlay and replays the video from the
// start, whether or not it is still at the end.
func (c *Controller) DismissCTA(ctx context.Context) {
	c.mutate(func(n *notifier) {
		c.state.CTAVisible = false
	})
	c.Seek(0)
	c.play(ctx)
}

func (c *Controller) handleEvent(ev media.Event) {
	switch ev.Type {
	case media.EventTimeUpdate:
		var position, duration float64
		c.mutate(func(n *notifier) {
			c.state.CurrentTime = clampTime(ev.Time, c.state.Duration)
			position, duration = c.state.CurrentTime, c.state.Duration
		})
		if c.observer != nil {
			c.observer.ObservePosition(position, duration)
		}

	case media.EventLoadedMetadata, media.EventDurationChange:
		if !durationKnown(ev.Duration) {
			return
		}
		var start float64
		c.mutate(func(n *notifier) {
			if c.state.Duration == ev.Duration {
				return
			}
			c.state.Duration = ev.Duration
			c.state.CurrentTime = clampTime(c.state.CurrentTime, ev.Duration)
			if cb := c.cb.OnDurationChange; cb != nil {
				d := ev.Duration
				n.add(func() { cb(d) })
			}
			start, c.pendingStart = c.pendingStart, 0
		})
		if start > 0 {
			c.Seek(start)
		}

	case media.EventPlay, media.EventPause:
		c.mutate(func(n *notifier) {
			c.setPlaying(ev.Type == media.EventPlay, n)
		})

	case media.EventVolumeChange:
		c.mutate(func(n *notifier) {
			c.state.Volume = clamp(ev.Volume, 0, 1)
			c.state.Muted = ev.Muted
		})

	case media.EventWaiting, media.EventPlaying:
		c.mutate(func(n *notifier) {
			c.state.Buffering = ev.Type == media.EventWaiting
		})

	case media.EventFullscreenChange:
		c.mutate(func(n *notifier) {
			c.state.Fullscreen = ev.Fullscreen
		})

	case media.EventEnded:
		c.onEnded()

	case media.EventError:
		message := "media error"
		if ev.Err != nil {
			message = ev.Err.Error()
		}
		slog.Error("player: media error", "src", c.props.Src, "error", message)
		c.mutate(func(n *notifier) {
			c.state.Buffering = false
			c.reportError(n, message)
		})
	}
}

// onEnded runs the end-of-playback transition once per run to completion.
func (c *Controller) onEnded() {
	first := false
	c.mutate(func(n *notifier) {
		c.setPlaying(false, n)
		if c.state.Ended {
			return
		}
		first = true
		c.state.Ended = true
		if c.state.DurationKnown() {
			c.state.CurrentTime = c.state.Duration
		}
		if c.props.CTAEnabled() {
			c.state.CTAVisible = true
		}
		if cb := c.cb.OnEnded; cb != nil {
			n.add(cb)
		}
	})
	if first && c.observer != nil {
		c.observer.ObserveEnded()
	}
}
