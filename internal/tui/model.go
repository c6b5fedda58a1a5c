// Package tui is the terminal host for the player: it renders the playback
// state and turns key and mouse input into player operations.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sendrec/player/internal/player"
	"github.com/sendrec/player/internal/shortcut"
)

// Controls is what the terminal host drives.
type Controls interface {
	shortcut.Controls
	Props() player.Props
	Restart(ctx context.Context)
	DismissCTA(ctx context.Context)
}

// CTAClicker handles activation of the call-to-action button.
type CTAClicker interface {
	ClickCTA(link string) error
}

// refreshMsg tells the model the controller state changed outside Update.
type refreshMsg struct{}

// errorMsg carries a playback error for display.
type errorMsg string

// Model is the bubbletea model of the player screen.
type Model struct {
	ctx      context.Context
	controls Controls
	clicker  CTAClicker
	router   *shortcut.Router
	scrubber *shortcut.Scrubber
	keymap   keymap
	styles   styles

	prompt textinput.Model
	bar    progress.Model

	props     player.Props
	state     player.State
	track     shortcut.Track
	width     int
	height    int
	lastError string
}

// New returns a model driving controls. clicker may be nil when there is no
// analytics session.
func New(ctx context.Context, controls Controls, clicker CTAClicker) *Model {
	props := controls.Props()
	st := newStyles(props.PrimaryColor, props.SecondaryColor)

	prompt := textinput.New()
	prompt.Prompt = "jump to: "
	prompt.Placeholder = "1:30"
	prompt.CharLimit = 12

	m := &Model{
		ctx:      ctx,
		controls: controls,
		clicker:  clicker,
		keymap:   newKeymap(),
		styles:   st,
		prompt:   prompt,
		bar: progress.New(
			progress.WithGradient(st.primary, st.secondary),
			progress.WithoutPercentage(),
		),
		props: props,
		state: controls.State(),
		width: 80,
	}
	m.router = shortcut.NewRouter(controls, shortcut.FocusFunc(func() bool { return m.prompt.Focused() }))
	m.scrubber = shortcut.NewScrubber(controls)
	m.layout()
	return m
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case refreshMsg:
	case errorMsg:
		m.lastError = string(msg)
	case tea.KeyMsg:
		var quit bool
		cmd, quit = m.handleKey(msg)
		if quit {
			return m, tea.Quit
		}
	case tea.MouseMsg:
		m.handleMouse(msg)
	}

	m.state = m.controls.State()
	m.layout()
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.prompt.Focused() {
		switch {
		case key.Matches(msg, m.keymap.cancel):
			m.prompt.Blur()
			m.prompt.Reset()
			return nil, false
		case key.Matches(msg, m.keymap.submit):
			t, err := player.ParseTime(m.prompt.Value())
			m.prompt.Blur()
			m.prompt.Reset()
			if err != nil {
				m.lastError = err.Error()
				return nil, false
			}
			m.lastError = ""
			m.controls.Seek(t)
			return nil, false
		}
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return cmd, false
	}

	if key.Matches(msg, m.keymap.quit) {
		return nil, true
	}

	if m.state.CTAVisible {
		switch {
		case key.Matches(msg, m.keymap.openCTA):
			m.openCTA()
			return nil, false
		case key.Matches(msg, m.keymap.replay):
			m.controls.DismissCTA(m.ctx)
			return nil, false
		}
	} else if m.state.Ended && key.Matches(msg, m.keymap.replay) {
		m.controls.Restart(m.ctx)
		return nil, false
	}

	if key.Matches(msg, m.keymap.jump) {
		return m.prompt.Focus(), false
	}

	m.router.HandleKey(m.ctx, keyName(msg))
	return nil, false
}

func (m *Model) openCTA() {
	cta := m.props.CallToAction
	if cta == nil {
		return
	}
	var err error
	if m.clicker != nil {
		err = m.clicker.ClickCTA(cta.ButtonLink)
	}
	if err != nil {
		m.lastError = fmt.Sprintf("open link: %v", err)
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	x := float64(msg.X)
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft && msg.Y == barRow && m.track.Contains(x) {
			m.scrubber.Down(x, m.track)
		}
	case tea.MouseActionMotion:
		m.scrubber.Move(x, m.track)
	case tea.MouseActionRelease:
		m.scrubber.Up()
	}
}

// contentWidth is the usable width for the current display mode.
func (m *Model) contentWidth() int {
	w := m.width
	switch m.state.DisplayMode {
	case player.ModeMini:
		w = min(w, miniWidth)
	case player.ModeNormal:
		w = min(w, normalWidth)
	}
	return max(w-2*padX, minBarWidth)
}

// layout sizes the progress bar and records where it sits on screen.
func (m *Model) layout() {
	label := timeLabel(m.state)
	barWidth := max(m.contentWidth()-len(label)-1, minBarWidth)
	m.bar.Width = barWidth
	m.track = shortcut.Track{Left: padX, Width: float64(barWidth)}
}
