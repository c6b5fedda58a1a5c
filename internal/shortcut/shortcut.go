// Package shortcut maps keyboard and pointer input onto player operations.
package shortcut

import (
	"context"
	"strings"

	"github.com/sendrec/player/internal/player"
)

const (
	arrowSeekStep = 5.0
	volumeStep    = 0.05
)

// Controls is the subset of the player the router drives.
type Controls interface {
	State() player.State
	TogglePlay(ctx context.Context)
	Seek(t float64)
	SeekBy(delta float64)
	SeekToFraction(f float64)
	AdjustVolume(delta float64)
	ToggleMute()
	ToggleFullscreen()
	ToggleDisplayMode(m player.DisplayMode)
	ToggleCaptions()
	StepSpeed(step int)
	ToggleHelp()
}

// FocusReporter tells the router whether a text-entry field has focus.
type FocusReporter interface {
	TextEntryFocused() bool
}

// FocusFunc adapts a function to FocusReporter.
type FocusFunc func() bool

func (f FocusFunc) TextEntryFocused() bool { return f() }

// Binding documents one row of the shortcut table.
type Binding struct {
	Keys        []string
	Description string
}

var bindings = []Binding{
	{Keys: []string{"k", "Space"}, Description: "Play / pause"},
	{Keys: []string{"j"}, Description: "Back 10 seconds"},
	{Keys: []string{"l"}, Description: "Forward 10 seconds"},
	{Keys: []string{"ArrowLeft"}, Description: "Back 5 seconds"},
	{Keys: []string{"ArrowRight"}, Description: "Forward 5 seconds"},
	{Keys: []string{"ArrowUp"}, Description: "Volume up"},
	{Keys: []string{"ArrowDown"}, Description: "Volume down"},
	{Keys: []string{"m"}, Description: "Mute / unmute"},
	{Keys: []string{"f"}, Description: "Fullscreen"},
	{Keys: []string{"t"}, Description: "Theater mode"},
	{Keys: []string{"i"}, Description: "Mini player"},
	{Keys: []string{"c"}, Description: "Captions"},
	{Keys: []string{",", "."}, Description: "Slower / faster"},
	{Keys: []string{"0"}, Description: "Jump to start"},
	{Keys: []string{"1-9"}, Description: "Jump to 10%-90%"},
	{Keys: []string{"?"}, Description: "Show shortcuts"},
}

// Bindings returns the shortcut table in display order.
func Bindings() []Binding {
	out := make([]Binding, len(bindings))
	copy(out, bindings)
	return out
}

// Router turns key names into player operations.
type Router struct {
	controls Controls
	focus    FocusReporter
}

// NewRouter returns a router. focus may be nil when the host has no text fields.
func NewRouter(controls Controls, focus FocusReporter) *Router {
	return &Router{controls: controls, focus: focus}
}

// HandleKey runs the operation bound to key and reports whether it was
// consumed. Key names follow the DOM KeyboardEvent.key convention (" " and
// "Space" are both accepted). Nothing is consumed while a text field has
// focus, and "/" is always left to the host.
func (r *Router) HandleKey(ctx context.Context, key string) bool {
	if r.focus != nil && r.focus.TextEntryFocused() {
		return false
	}

	switch normalize(key) {
	case "k", "space":
		r.controls.TogglePlay(ctx)
	case "j":
		r.controls.SeekBy(-player.SkipStep)
	case "l":
		r.controls.SeekBy(player.SkipStep)
	case "arrowleft":
		r.controls.SeekBy(-arrowSeekStep)
	case "arrowright":
		r.controls.SeekBy(arrowSeekStep)
	case "arrowup":
		r.controls.AdjustVolume(volumeStep)
	case "arrowdown":
		r.controls.AdjustVolume(-volumeStep)
	case "m":
		r.controls.ToggleMute()
	case "f":
		r.controls.ToggleFullscreen()
	case "t":
		r.controls.ToggleDisplayMode(player.ModeTheater)
	case "i":
		r.controls.ToggleDisplayMode(player.ModeMini)
	case "c":
		r.controls.ToggleCaptions()
	case ",":
		r.controls.StepSpeed(-1)
	case ".":
		r.controls.StepSpeed(+1)
	case "?":
		r.controls.ToggleHelp()
	case "0":
		r.controls.Seek(0)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		if !r.controls.State().DurationKnown() {
			return false
		}
		digit := float64(key[0] - '0')
		r.controls.SeekToFraction(digit / 10)
	default:
		return false
	}
	return true
}

func normalize(key string) string {
	if key == " " {
		return "space"
	}
	return strings.ToLower(key)
}
