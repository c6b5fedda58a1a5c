// Package analytics tracks watch progress for one player session and reports
// it to the sendrec collector.
package analytics

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultSampleInterval = 10.0
	defaultSendTimeout    = 10 * time.Second

	// A position jump larger than this between two ticks is treated as a seek.
	seekThreshold = 2.0
)

// Opener opens a CTA link outside the player.
type Opener interface {
	Open(link string) error
}

// Config controls a Tracker.
type Config struct {
	VideoID string
	Enabled bool
	// SampleInterval is the amount of played media time between samples.
	SampleInterval float64
	SendTimeout    time.Duration
	Now            func() time.Time
}

// Tracker records quarter milestones, CTA clicks and the completion report
// for a single mount. It is fed by the playback controller.
type Tracker struct {
	cfg    Config
	sender Sender
	opener Opener

	mu        sync.Mutex
	session   Session
	quarters  quarterSet
	lastPos   float64
	lastDur   float64
	havePos   bool
	elapsed   float64
	unmounted bool

	wg sync.WaitGroup
}

// NewTracker returns a tracker. A tracker with Enabled unset or an empty
// VideoID records nothing and sends nothing.
func NewTracker(cfg Config, sender Sender, opener Opener) *Tracker {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = defaultSampleInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{
		cfg:    cfg,
		sender: sender,
		opener: opener,
		session: Session{
			ID:        uuid.NewString(),
			StartedAt: cfg.Now(),
		},
	}
}

func (t *Tracker) active() bool {
	return t.cfg.Enabled && t.cfg.VideoID != "" && t.sender != nil
}

// ObservePosition is called on every position update. It accumulates played
// time and samples on the first tick, every SampleInterval seconds of play,
// and after a seek.
func (t *Tracker) ObservePosition(position, duration float64) {
	if !t.active() || math.IsNaN(position) {
		return
	}

	t.mu.Lock()
	sample := false
	if !t.havePos {
		sample = true
	} else {
		delta := position - t.lastPos
		if delta < 0 || delta > seekThreshold {
			sample = true
			t.elapsed = 0
		} else {
			t.session.WatchTime += delta
			t.elapsed += delta
			if t.elapsed >= t.cfg.SampleInterval {
				sample = true
				t.elapsed = 0
			}
		}
	}
	t.havePos = true
	t.lastPos = position
	t.lastDur = duration

	var ev *QuarterEvent
	if sample {
		ev = t.sampleLocked(position, duration)
	}
	t.mu.Unlock()

	if ev != nil {
		t.sendQuarter(*ev)
	}
}

// Sample records position and posts a quarter event if it reaches a quarter
// not seen before in this session.
func (t *Tracker) Sample(position, duration float64) {
	if !t.active() {
		return
	}
	t.mu.Lock()
	ev := t.sampleLocked(position, duration)
	t.mu.Unlock()

	if ev != nil {
		t.sendQuarter(*ev)
	}
}

func (t *Tracker) sampleLocked(position, duration float64) *QuarterEvent {
	t.session.Positions = append(t.session.Positions, Sample{
		Position:  position,
		Timestamp: t.cfg.Now().UnixMilli(),
	})
	q := QuarterIndex(position, duration)
	if !t.quarters.add(q) {
		return nil
	}
	t.session.Quarters = t.quarters.list()
	return &QuarterEvent{Quarter: q, SessionID: t.session.ID, Position: position}
}

// ObserveEnded marks the session as having reached the end and samples the
// end position, so short videos still record their last quarter.
func (t *Tracker) ObserveEnded() {
	if !t.active() {
		return
	}
	t.mu.Lock()
	t.session.Ended = true
	var ev *QuarterEvent
	if t.havePos {
		end := t.lastPos
		if QuarterIndex(t.lastDur, t.lastDur) >= 0 {
			end = t.lastDur
		}
		if n := len(t.session.Positions); n == 0 || t.session.Positions[n-1].Position != end {
			ev = t.sampleLocked(end, t.lastDur)
		}
		t.lastPos = end
		t.elapsed = 0
	}
	t.mu.Unlock()

	if ev != nil {
		t.sendQuarter(*ev)
	}
}

// ObserveUnmount sends the completion report if the session reached the end.
// Only the first call has any effect.
func (t *Tracker) ObserveUnmount() {
	if !t.active() {
		return
	}

	t.mu.Lock()
	if t.unmounted {
		t.mu.Unlock()
		return
	}
	t.unmounted = true
	if !t.session.Ended {
		t.mu.Unlock()
		return
	}
	report := ViewReport{
		SessionID:         t.session.ID,
		StartTime:         t.session.StartedAt,
		EndTime:           t.cfg.Now(),
		WatchTime:         t.session.WatchTime,
		PlaybackPositions: slices.Clone(t.session.Positions),
		CompletedQuarters: t.quarters.list(),
		IsCompleteView:    true,
	}
	t.mu.Unlock()

	t.dispatch("view", func(ctx context.Context) error {
		return t.sender.SendView(ctx, t.cfg.VideoID, report)
	})
}

// ClickCTA records a call-to-action click and opens link. The click beacon
// is sent in the background and never delays the open.
func (t *Tracker) ClickCTA(link string) error {
	if t.active() {
		t.mu.Lock()
		t.session.CTAClicked = true
		ev := CTAClickEvent{SessionID: t.session.ID}
		t.mu.Unlock()

		t.dispatch("cta-click", func(ctx context.Context) error {
			return t.sender.SendCTAClick(ctx, t.cfg.VideoID, ev)
		})
	}

	if link == "" || t.opener == nil {
		return nil
	}
	return t.opener.Open(link)
}

// Session returns a copy of the current session data.
func (t *Tracker) Session() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.session
	s.Positions = slices.Clone(t.session.Positions)
	s.Quarters = t.quarters.list()
	return s
}

// Quarters returns the reached quarter indices in ascending order.
func (t *Tracker) Quarters() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quarters.list()
}

// Close sends the completion report if it is still owed and waits for
// in-flight beacons until ctx is done.
func (t *Tracker) Close(ctx context.Context) error {
	t.ObserveUnmount()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) sendQuarter(ev QuarterEvent) {
	t.dispatch("quarter", func(ctx context.Context) error {
		return t.sender.SendQuarter(ctx, t.cfg.VideoID, ev)
	})
}

func (t *Tracker) dispatch(kind string, send func(ctx context.Context) error) {
	sessionID := t.session.ID
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.SendTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			slog.Warn("analytics: failed to send event", "kind", kind, "video_id", t.cfg.VideoID, "session_id", sessionID, "error", err)
		}
	}()
}
