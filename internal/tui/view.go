package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sendrec/player/internal/player"
	"github.com/sendrec/player/internal/shortcut"
)

const (
	defaultPrimary   = "#00b67a"
	defaultSecondary = "#0f766e"

	// barRow is the screen row holding the progress bar.
	barRow = 1
	padX   = 1

	normalWidth = 80
	miniWidth   = 40
	minBarWidth = 10
)

type styles struct {
	primary   string
	secondary string

	title   lipgloss.Style
	status  lipgloss.Style
	muted   lipgloss.Style
	overlay lipgloss.Style
	button  lipgloss.Style
	keyCap  lipgloss.Style
	err     lipgloss.Style
}

func newStyles(primary, secondary string) styles {
	if primary == "" {
		primary = defaultPrimary
	}
	if secondary == "" {
		secondary = defaultSecondary
	}
	return styles{
		primary:   primary,
		secondary: secondary,
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e2e8f0")),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("#e2e8f0")),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8")),
		overlay: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#334155")).
			Background(lipgloss.Color("#0f172a")).
			Foreground(lipgloss.Color("#e2e8f0")).
			Padding(0, 1),
		button: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color(primary)).
			Padding(0, 1),
		keyCap: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(primary)),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
	}
}

func timeLabel(s player.State) string {
	return player.FormatTime(s.CurrentTime) + " / " + player.FormatTime(s.Duration)
}

func (m *Model) View() string {
	pad := strings.Repeat(" ", padX)
	var b strings.Builder

	title := m.props.Title
	if title == "" {
		title = "sendrec"
	}
	b.WriteString(pad + m.styles.title.Render(title) + "\n")
	b.WriteString(pad + m.bar.ViewAs(m.state.Progress()) + " " + m.styles.muted.Render(timeLabel(m.state)) + "\n")

	if m.props.Controls {
		b.WriteString(pad + m.styles.status.Render(m.statusLine()) + "\n")
	}

	if m.state.CTAVisible && m.props.CallToAction != nil {
		b.WriteString("\n" + indent(m.ctaView(), pad) + "\n")
	}
	if m.state.HelpVisible {
		b.WriteString("\n" + indent(m.helpView(), pad) + "\n")
	}
	if m.prompt.Focused() {
		b.WriteString("\n" + pad + m.prompt.View() + "\n")
	}
	if m.lastError != "" {
		b.WriteString("\n" + pad + m.styles.err.Render(m.lastError) + "\n")
	}
	return b.String()
}

func (m *Model) statusLine() string {
	s := m.state
	parts := make([]string, 0, 7)

	switch {
	case s.Ended:
		parts = append(parts, "ended")
	case s.Buffering:
		parts = append(parts, "buffering")
	case s.Playing:
		parts = append(parts, "playing")
	default:
		parts = append(parts, "paused")
	}

	parts = append(parts, fmt.Sprintf("%gx", s.Speed))
	if s.Muted {
		parts = append(parts, "muted")
	} else {
		parts = append(parts, fmt.Sprintf("vol %d%%", int(s.Volume*100+0.5)))
	}
	if s.Captions {
		parts = append(parts, "cc")
	}
	if s.DisplayMode != player.ModeNormal {
		parts = append(parts, s.DisplayMode.String())
	}
	if s.Fullscreen {
		parts = append(parts, "fullscreen")
	}
	parts = append(parts, "? help")
	return strings.Join(parts, "  ")
}

func (m *Model) ctaView() string {
	cta := m.props.CallToAction
	lines := []string{m.styles.title.Render(cta.Title)}
	if cta.Description != "" {
		lines = append(lines, cta.Description)
	}
	lines = append(lines,
		"",
		m.styles.button.Render(cta.ButtonText),
		m.styles.muted.Render("enter open · r replay"),
	)
	return m.styles.overlay.Width(m.contentWidth() - 2).Render(strings.Join(lines, "\n"))
}

func (m *Model) helpView() string {
	rows := make([]string, 0, len(shortcut.Bindings())+2)
	for _, bnd := range shortcut.Bindings() {
		rows = append(rows, fmt.Sprintf("%-22s %s", m.styles.keyCap.Render(strings.Join(bnd.Keys, " / ")), bnd.Description))
	}
	rows = append(rows,
		fmt.Sprintf("%-22s %s", m.styles.keyCap.Render(m.keymap.jump.Help().Key), m.keymap.jump.Help().Desc),
		fmt.Sprintf("%-22s %s", m.styles.keyCap.Render(m.keymap.quit.Help().Key), m.keymap.quit.Help().Desc),
	)
	return m.styles.overlay.Render(m.styles.title.Render("Keyboard shortcuts") + "\n" + strings.Join(rows, "\n"))
}

func indent(block, pad string) string {
	lines := strings.Split(block, "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n")
}
