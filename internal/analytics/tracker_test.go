package analytics

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

type fakeSender struct {
	mu       sync.Mutex
	err      error
	quarters []QuarterEvent
	clicks   []CTAClickEvent
	views    []ViewReport
	videoIDs []string
}

func (f *fakeSender) SendQuarter(_ context.Context, videoID string, ev QuarterEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quarters = append(f.quarters, ev)
	f.videoIDs = append(f.videoIDs, videoID)
	return f.err
}

func (f *fakeSender) SendCTAClick(_ context.Context, videoID string, ev CTAClickEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, ev)
	f.videoIDs = append(f.videoIDs, videoID)
	return f.err
}

func (f *fakeSender) SendView(_ context.Context, videoID string, ev ViewReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, ev)
	f.videoIDs = append(f.videoIDs, videoID)
	return f.err
}

type fakeOpener struct {
	links []string
}

func (f *fakeOpener) Open(link string) error {
	f.links = append(f.links, link)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestTracker(sender Sender, opener Opener, clock *fakeClock) *Tracker {
	cfg := Config{VideoID: "vid-1", Enabled: true}
	if clock != nil {
		cfg.Now = clock.Now
	}
	return NewTracker(cfg, sender, opener)
}

func drain(t *testing.T, tr *Tracker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.Close(ctx); err != nil {
		t.Fatalf("close tracker: %v", err)
	}
}

func TestQuarterIndex(t *testing.T) {
	tests := []struct {
		position float64
		duration float64
		want     int
	}{
		{0, 100, 0},
		{24.9, 100, 0},
		{25, 100, 1},
		{26, 100, 1},
		{74.9, 100, 2},
		{99, 100, 3},
		{100, 100, 3},
		{10, 0, -1},
		{-1, 100, -1},
	}
	for _, tt := range tests {
		if got := QuarterIndex(tt.position, tt.duration); got != tt.want {
			t.Errorf("QuarterIndex(%v, %v): expected %d, got %d", tt.position, tt.duration, tt.want, got)
		}
	}
}

func TestTracker_QuarterBoundary(t *testing.T) {
	sender := &fakeSender{}
	tr := newTestTracker(sender, nil, nil)

	tr.Sample(24.9, 100)
	if got := tr.Quarters(); !slices.Equal(got, []int{0}) {
		t.Errorf("expected quarters [0], got %v", got)
	}

	tr.Sample(25.1, 100)
	if got := tr.Quarters(); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("expected quarters [0 1], got %v", got)
	}

	drain(t, tr)
	if len(sender.quarters) != 2 {
		t.Fatalf("expected 2 quarter events, got %d", len(sender.quarters))
	}
	for _, ev := range sender.quarters {
		if ev.SessionID != tr.Session().ID {
			t.Errorf("expected session ID %q, got %q", tr.Session().ID, ev.SessionID)
		}
	}
}

func TestTracker_QuarterReportedOnce(t *testing.T) {
	sender := &fakeSender{}
	tr := newTestTracker(sender, nil, nil)

	tr.Sample(5, 100)
	tr.Sample(15, 100)
	tr.Sample(60, 100)
	tr.Sample(10, 100)
	drain(t, tr)

	if len(sender.quarters) != 2 {
		t.Errorf("expected 2 quarter events, got %d", len(sender.quarters))
	}
	if got := tr.Quarters(); !slices.Equal(got, []int{0, 2}) {
		t.Errorf("expected quarters [0 2], got %v", got)
	}
	if got := len(tr.Session().Positions); got != 4 {
		t.Errorf("expected 4 position samples, got %d", got)
	}
}

func TestTracker_SamplesEveryIntervalOfPlay(t *testing.T) {
	sender := &fakeSender{}
	tr := newTestTracker(sender, nil, nil)

	for pos := 0.0; pos <= 30; pos += 0.5 {
		tr.ObservePosition(pos, 100)
	}
	drain(t, tr)

	s := tr.Session()
	var got []float64
	for _, p := range s.Positions {
		got = append(got, p.Position)
	}
	if !slices.Equal(got, []float64{0, 10, 20, 30}) {
		t.Errorf("expected samples at [0 10 20 30], got %v", got)
	}
	if s.WatchTime != 30 {
		t.Errorf("expected watch time 30, got %v", s.WatchTime)
	}
	if got := tr.Quarters(); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("expected quarters [0 1], got %v", got)
	}
}

func TestTracker_SeekSamplesWithoutWatchTime(t *testing.T) {
	sender := &fakeSender{}
	tr := newTestTracker(sender, nil, nil)

	tr.ObservePosition(0, 100)
	tr.ObservePosition(80, 100)
	tr.ObservePosition(80.25, 100)
	tr.ObservePosition(30, 100)
	drain(t, tr)

	s := tr.Session()
	if s.WatchTime != 0.25 {
		t.Errorf("expected watch time 0.25, got %v", s.WatchTime)
	}
	if len(s.Positions) != 3 {
		t.Errorf("expected 3 samples, got %d", len(s.Positions))
	}
	if got := tr.Quarters(); !slices.Equal(got, []int{0, 1, 3}) {
		t.Errorf("expected quarters [0 1 3], got %v", got)
	}
}

func TestTracker_CompletionReportOnlyAfterEnd(t *testing.T) {
	sender := &fakeSender{}
	tr := newTestTracker(sender, nil, nil)

	tr.Sample(50, 100)
	tr.ObserveUnmount()
	drain(t, tr)

	if len(sender.views) != 0 {
		t.Errorf("expected no view report, got %d", len(sender.views))
	}
}

func TestTracker_CompletionReportSentOnce(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	sender := &fakeSender{}
	tr := newTestTracker(sender, nil, clock)

	for pos := 0.0; pos <= 20; pos += 0.5 {
		tr.ObservePosition(pos, 20)
	}
	tr.ObserveEnded()
	clock.now = clock.now.Add(time.Minute)

	tr.ObserveUnmount()
	tr.ObserveUnmount()
	drain(t, tr)

	if len(sender.views) != 1 {
		t.Fatalf("expected 1 view report, got %d", len(sender.views))
	}
	report := sender.views[0]
	if !report.IsCompleteView {
		t.Error("expected a complete view")
	}
	if report.SessionID != tr.Session().ID {
		t.Errorf("expected session ID %q, got %q", tr.Session().ID, report.SessionID)
	}
	if report.EndTime.Sub(report.StartTime) != time.Minute {
		t.Errorf("expected a one minute session, got %v", report.EndTime.Sub(report.StartTime))
	}
	if report.WatchTime != 20 {
		t.Errorf("expected watch time 20, got %v", report.WatchTime)
	}
	if !slices.Equal(report.CompletedQuarters, []int{0, 2, 3}) {
		t.Errorf("expected quarters [0 2 3], got %v", report.CompletedQuarters)
	}
	if len(report.PlaybackPositions) != 3 {
		t.Errorf("expected 3 playback positions, got %d", len(report.PlaybackPositions))
	}
}

func TestTracker_ShortVideoRecordsLastQuarterOnEnd(t *testing.T) {
	sender := &fakeSender{}
	tr := newTestTracker(sender, nil, nil)

	for pos := 0.0; pos <= 8; pos += 0.25 {
		tr.ObservePosition(pos, 8)
	}
	tr.ObserveEnded()
	tr.ObserveUnmount()
	drain(t, tr)

	if len(sender.views) != 1 {
		t.Fatalf("expected 1 view report, got %d", len(sender.views))
	}
	report := sender.views[0]
	if !slices.Equal(report.CompletedQuarters, []int{0, 3}) {
		t.Errorf("expected quarters [0 3], got %v", report.CompletedQuarters)
	}
	last := report.PlaybackPositions[len(report.PlaybackPositions)-1]
	if last.Position != 8 {
		t.Errorf("expected last sampled position 8, got %v", last.Position)
	}
	hasLast := slices.ContainsFunc(sender.quarters, func(ev QuarterEvent) bool { return ev.Quarter == 3 })
	if len(sender.quarters) != 2 || !hasLast {
		t.Errorf("expected events for quarters 0 and 3, got %v", sender.quarters)
	}
}

func TestTracker_EndDoesNotResampleLastPosition(t *testing.T) {
	sender := &fakeSender{}
	tr := newTestTracker(sender, nil, nil)

	tr.ObservePosition(0, 20)
	tr.ObservePosition(10, 20)
	tr.ObservePosition(20, 20)
	tr.ObserveEnded()
	drain(t, tr)

	if got := len(tr.Session().Positions); got != 3 {
		t.Errorf("expected 3 samples, got %d", got)
	}
}

func TestTracker_CloseSendsOwedReport(t *testing.T) {
	sender := &fakeSender{}
	tr := newTestTracker(sender, nil, nil)

	tr.ObserveEnded()
	drain(t, tr)
	tr.ObserveUnmount()
	drain(t, tr)

	if len(sender.views) != 1 {
		t.Errorf("expected 1 view report, got %d", len(sender.views))
	}
}

func TestTracker_ClickCTA(t *testing.T) {
	sender := &fakeSender{}
	opener := &fakeOpener{}
	tr := newTestTracker(sender, opener, nil)

	if err := tr.ClickCTA("https://example.com/pricing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(t, tr)

	if len(sender.clicks) != 1 {
		t.Fatalf("expected 1 click event, got %d", len(sender.clicks))
	}
	if sender.clicks[0].SessionID != tr.Session().ID {
		t.Errorf("expected session ID %q, got %q", tr.Session().ID, sender.clicks[0].SessionID)
	}
	if !tr.Session().CTAClicked {
		t.Error("expected session to record the click")
	}
	if !slices.Equal(opener.links, []string{"https://example.com/pricing"}) {
		t.Errorf("expected link to be opened, got %v", opener.links)
	}
	if !slices.Equal(sender.videoIDs, []string{"vid-1"}) {
		t.Errorf("expected video ID vid-1, got %v", sender.videoIDs)
	}
}

func TestTracker_ClickCTAOpensLinkWhenPostFails(t *testing.T) {
	sender := &fakeSender{err: errors.New("collector down")}
	opener := &fakeOpener{}
	tr := newTestTracker(sender, opener, nil)

	if err := tr.ClickCTA("https://example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(t, tr)

	if len(opener.links) != 1 {
		t.Errorf("expected link to be opened, got %v", opener.links)
	}
}

func TestTracker_DisabledIsNoOp(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"tracking off", Config{VideoID: "vid-1", Enabled: false}},
		{"no video ID", Config{Enabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			opener := &fakeOpener{}
			tr := NewTracker(tt.cfg, sender, opener)

			tr.ObservePosition(0, 100)
			tr.Sample(60, 100)
			tr.ObserveEnded()
			tr.ObserveUnmount()
			if err := tr.ClickCTA("https://example.com"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			drain(t, tr)

			if n := len(sender.quarters) + len(sender.clicks) + len(sender.views); n != 0 {
				t.Errorf("expected no events, got %d", n)
			}
			if got := tr.Quarters(); len(got) != 0 {
				t.Errorf("expected no quarters, got %v", got)
			}
			if len(opener.links) != 1 {
				t.Errorf("expected the CTA link to still open, got %v", opener.links)
			}
		})
	}
}

func TestTracker_SessionIDsAreUnique(t *testing.T) {
	a := newTestTracker(&fakeSender{}, nil, nil)
	b := newTestTracker(&fakeSender{}, nil, nil)
	if a.Session().ID == "" || a.Session().ID == b.Session().ID {
		t.Errorf("expected distinct session IDs, got %q and %q", a.Session().ID, b.Session().ID)
	}
}
