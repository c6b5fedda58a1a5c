package tui

import (
	"context"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sendrec/player/internal/player"
)

const relayBuffer = 16

// msgSender is the part of *tea.Program the bridge uses.
type msgSender interface {
	Send(msg tea.Msg)
}

// Bridge forwards controller callbacks into a running program. It exists
// before the program does, so the controller can be built with its callbacks
// first; notifications arriving while no program is attached are dropped.
//
// A single relay goroutine delivers messages in order. Refreshes are
// coalesced: at most one is queued at a time, and the model reads the latest
// state when it handles it.
type Bridge struct {
	mu     sync.Mutex
	target msgSender

	msgs           chan tea.Msg
	refreshPending atomic.Bool
	done           chan struct{}
	closeOnce      sync.Once
}

// NewBridge returns a bridge with its relay running. Call Close to stop it.
func NewBridge() *Bridge {
	b := &Bridge{
		msgs: make(chan tea.Msg, relayBuffer),
		done: make(chan struct{}),
	}
	go b.relay()
	return b
}

// Attach connects the bridge to p. Passing nil detaches it.
func (b *Bridge) Attach(p *tea.Program) {
	if p == nil {
		b.attach(nil)
		return
	}
	b.attach(p)
}

func (b *Bridge) attach(s msgSender) {
	b.mu.Lock()
	b.target = s
	b.mu.Unlock()
}

// Close stops the relay. Later notifications are dropped.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Callbacks wraps next so that every state change also refreshes the screen
// and errors are shown on it.
func (b *Bridge) Callbacks(next player.Callbacks) player.Callbacks {
	wrapped := next
	wrapped.OnStateChange = func(s player.State) {
		b.send(refreshMsg{})
		if next.OnStateChange != nil {
			next.OnStateChange(s)
		}
	}
	wrapped.OnError = func(message string) {
		b.send(errorMsg(message))
		if next.OnError != nil {
			next.OnError(message)
		}
	}
	return wrapped
}

// send never blocks: callbacks may fire from inside Update, and
// Program.Send waits for the event loop.
func (b *Bridge) send(msg tea.Msg) {
	_, refresh := msg.(refreshMsg)
	if refresh && !b.refreshPending.CompareAndSwap(false, true) {
		return
	}

	select {
	case <-b.done:
	case b.msgs <- msg:
	default:
		if refresh {
			b.refreshPending.Store(false)
		}
	}
}

func (b *Bridge) relay() {
	for {
		select {
		case <-b.done:
			return
		case msg := <-b.msgs:
			if _, ok := msg.(refreshMsg); ok {
				b.refreshPending.Store(false)
			}
			b.mu.Lock()
			target := b.target
			b.mu.Unlock()
			if target != nil {
				target.Send(msg)
			}
		}
	}
}

// Run shows the player screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, controls Controls, clicker CTAClicker, bridge *Bridge) error {
	m := New(ctx, controls, clicker)
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if bridge != nil {
		bridge.Attach(p)
		defer bridge.Attach(nil)
	}
	_, err := p.Run()
	return err
}
