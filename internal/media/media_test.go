package media

import "testing"

func TestHubDeliversInRegistrationOrder(t *testing.T) {
	var hub Hub
	var got []string

	hub.Subscribe(func(ev Event) { got = append(got, "first:"+ev.Type.String()) })
	hub.Subscribe(func(ev Event) { got = append(got, "second:"+ev.Type.String()) })

	hub.Emit(Event{Type: EventEnded})

	if len(got) != 2 || got[0] != "first:ended" || got[1] != "second:ended" {
		t.Errorf("unexpected delivery order: %v", got)
	}
}

func TestHubCancelRemovesHandler(t *testing.T) {
	var hub Hub
	calls := 0

	cancel := hub.Subscribe(func(Event) { calls++ })
	hub.Emit(Event{Type: EventPlay})
	cancel()
	cancel()
	hub.Emit(Event{Type: EventPause})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if hub.Len() != 0 {
		t.Errorf("expected no live subscriptions, got %d", hub.Len())
	}
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		typ  EventType
		want string
	}{
		{EventTimeUpdate, "timeupdate"},
		{EventFullscreenChange, "fullscreenchange"},
		{EventType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
