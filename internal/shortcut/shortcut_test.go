package shortcut

import (
	"context"
	"math"
	"testing"

	"github.com/sendrec/player/internal/media/mediatest"
	"github.com/sendrec/player/internal/player"
)

func newPlayer(t *testing.T, duration float64) (*player.Controller, *mediatest.Backend) {
	t.Helper()
	backend := mediatest.New()
	c := player.NewController(backend, player.Props{}, player.Callbacks{}, nil)
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	t.Cleanup(c.Unmount)
	if duration > 0 {
		backend.LoadMetadata(duration)
	}
	return c, backend
}

func TestLPressedThreeTimes(t *testing.T) {
	c, _ := newPlayer(t, 40)
	r := NewRouter(c, nil)

	for i := 0; i < 3; i++ {
		if !r.HandleKey(context.Background(), "l") {
			t.Fatal("expected l to be handled")
		}
	}
	if got := c.State().CurrentTime; got != 30 {
		t.Errorf("expected 30, got %v", got)
	}
}

func TestLClampsToShortDuration(t *testing.T) {
	c, _ := newPlayer(t, 25)
	r := NewRouter(c, nil)

	for i := 0; i < 3; i++ {
		r.HandleKey(context.Background(), "l")
	}
	if got := c.State().CurrentTime; got != 25 {
		t.Errorf("expected clamp at 25, got %v", got)
	}
}

func TestKeyBindings(t *testing.T) {
	tests := []struct {
		name  string
		keys  []string
		check func(t *testing.T, s player.State)
	}{
		{"k plays", []string{"k"}, func(t *testing.T, s player.State) {
			if !s.Playing {
				t.Error("expected playing")
			}
		}},
		{"uppercase K plays", []string{"K"}, func(t *testing.T, s player.State) {
			if !s.Playing {
				t.Error("expected playing")
			}
		}},
		{"space toggles twice", []string{" ", "Space"}, func(t *testing.T, s player.State) {
			if s.Playing {
				t.Error("expected paused")
			}
		}},
		{"j from 50", []string{"5", "j"}, func(t *testing.T, s player.State) {
			if s.CurrentTime != 40 {
				t.Errorf("expected 40, got %v", s.CurrentTime)
			}
		}},
		{"arrows seek five", []string{"5", "ArrowRight", "ArrowRight", "ArrowLeft"}, func(t *testing.T, s player.State) {
			if s.CurrentTime != 55 {
				t.Errorf("expected 55, got %v", s.CurrentTime)
			}
		}},
		{"arrow down lowers volume", []string{"ArrowDown", "ArrowDown"}, func(t *testing.T, s player.State) {
			if math.Abs(s.Volume-0.9) > 1e-9 {
				t.Errorf("expected 0.9, got %v", s.Volume)
			}
		}},
		{"arrow up caps volume", []string{"ArrowUp"}, func(t *testing.T, s player.State) {
			if s.Volume != 1 {
				t.Errorf("expected 1, got %v", s.Volume)
			}
		}},
		{"m mutes", []string{"m"}, func(t *testing.T, s player.State) {
			if !s.Muted || s.Volume != 1 {
				t.Errorf("expected muted at full volume, got muted=%v volume=%v", s.Muted, s.Volume)
			}
		}},
		{"t theater", []string{"t"}, func(t *testing.T, s player.State) {
			if s.DisplayMode != player.ModeTheater {
				t.Errorf("expected theater, got %v", s.DisplayMode)
			}
		}},
		{"i mini", []string{"I"}, func(t *testing.T, s player.State) {
			if s.DisplayMode != player.ModeMini {
				t.Errorf("expected mini, got %v", s.DisplayMode)
			}
		}},
		{"c captions", []string{"c"}, func(t *testing.T, s player.State) {
			if !s.Captions {
				t.Error("expected captions on")
			}
		}},
		{"period faster", []string{".", "."}, func(t *testing.T, s player.State) {
			if s.Speed != 1.5 {
				t.Errorf("expected 1.5, got %v", s.Speed)
			}
		}},
		{"comma slower", []string{","}, func(t *testing.T, s player.State) {
			if s.Speed != 0.75 {
				t.Errorf("expected 0.75, got %v", s.Speed)
			}
		}},
		{"question mark help", []string{"?"}, func(t *testing.T, s player.State) {
			if !s.HelpVisible {
				t.Error("expected help visible")
			}
		}},
		{"zero to start", []string{"8", "0"}, func(t *testing.T, s player.State) {
			if s.CurrentTime != 0 {
				t.Errorf("expected 0, got %v", s.CurrentTime)
			}
		}},
		{"digit percent", []string{"3"}, func(t *testing.T, s player.State) {
			if math.Abs(s.CurrentTime-30) > 1e-9 {
				t.Errorf("expected 30, got %v", s.CurrentTime)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newPlayer(t, 100)
			r := NewRouter(c, nil)
			for _, k := range tt.keys {
				if !r.HandleKey(context.Background(), k) {
					t.Fatalf("expected %q to be handled", k)
				}
			}
			tt.check(t, c.State())
		})
	}
}

func TestFullscreenKeyRequestsHost(t *testing.T) {
	c, backend := newPlayer(t, 100)
	r := NewRouter(c, nil)

	r.HandleKey(context.Background(), "f")

	if !backend.FullscreenRequested() {
		t.Error("expected fullscreen request")
	}
	if c.State().Fullscreen {
		t.Error("expected state to wait for host notification")
	}
}

func TestShortcutsSuppressedWhileTyping(t *testing.T) {
	c, backend := newPlayer(t, 100)
	typing := true
	r := NewRouter(c, FocusFunc(func() bool { return typing }))

	if r.HandleKey(context.Background(), "k") {
		t.Error("expected k to be ignored while a text field has focus")
	}
	if c.State().Playing || backend.PlayCalls != 0 {
		t.Error("expected no playback change while typing")
	}

	typing = false
	if !r.HandleKey(context.Background(), "k") {
		t.Error("expected k to be handled once focus leaves the field")
	}
}

func TestSlashAndUnknownKeysPassThrough(t *testing.T) {
	c, _ := newPlayer(t, 100)
	r := NewRouter(c, nil)

	for _, k := range []string{"/", "x", "Enter", "Escape"} {
		if r.HandleKey(context.Background(), k) {
			t.Errorf("expected %q to pass through", k)
		}
	}
}

func TestDigitsIgnoredWithoutDuration(t *testing.T) {
	c, _ := newPlayer(t, 0)
	r := NewRouter(c, nil)

	if r.HandleKey(context.Background(), "5") {
		t.Error("expected digit to pass through before metadata loads")
	}
	if got := c.State().CurrentTime; got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestBindingsTableCoversHelpOverlay(t *testing.T) {
	b := Bindings()
	if len(b) != 16 {
		t.Fatalf("expected 16 bindings, got %d", len(b))
	}
	b[0].Description = "changed"
	if Bindings()[0].Description == "changed" {
		t.Error("expected Bindings to return a copy")
	}
}
