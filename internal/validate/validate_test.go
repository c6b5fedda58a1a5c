package validate

import (
	"strings"
	"testing"

	"github.com/sendrec/player/internal/player"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid", "My Video", ""},
		{"empty", "", ""},
		{"at limit", string(make([]byte, MaxTitleLength)), ""},
		{"over limit", string(make([]byte, MaxTitleLength+1)), "title must be 500 characters or fewer"},
	}
	for _, tt := range tests {
		if got := Title(tt.input); got != tt.want {
			t.Errorf("Title(%q [len=%d]) = %q, want %q", tt.name, len(tt.input), got, tt.want)
		}
	}
}

func TestCTAText(t *testing.T) {
	if got := CTATitle(strings.Repeat("a", MaxCTATitleLength+1)); got != "CTA title must be 100 characters or fewer" {
		t.Errorf("expected CTA title limit message, got %q", got)
	}
	if got := CTAButton("Book a demo"); got != "" {
		t.Errorf("expected valid button text, got %q", got)
	}
	if got := CTADescription(strings.Repeat("a", MaxCTADescriptionLength)); got != "" {
		t.Errorf("expected description at limit to pass, got %q", got)
	}
}

func TestCTALink(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"https://example.com/book", true},
		{"http://example.com", true},
		{"ftp://example.com", false},
		{"javascript:alert(1)", false},
		{"example.com", false},
		{"https://", false},
		{"https://example.com/" + strings.Repeat("a", MaxCTALinkLength), false},
	}
	for _, tt := range tests {
		got := CTALink(tt.input)
		if (got == "") != tt.valid {
			t.Errorf("CTALink(%q): expected valid=%v, got %q", tt.input, tt.valid, got)
		}
	}
}

func TestColor(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"", true},
		{"#00b67a", true},
		{"#ABCDEF", true},
		{"00b67a", false},
		{"#fff", false},
		{"#gggggg", false},
	}
	for _, tt := range tests {
		got := Color(tt.input, "primary color")
		if (got == "") != tt.valid {
			t.Errorf("Color(%q): expected valid=%v, got %q", tt.input, tt.valid, got)
		}
	}
}

func TestProps(t *testing.T) {
	ok := player.Props{
		Title:        "Demo",
		PrimaryColor: "#00b67a",
		CallToAction: &player.CallToAction{
			Enabled:    true,
			Title:      "Book a demo",
			ButtonText: "Book",
			ButtonLink: "https://example.com",
		},
	}
	if problems := Props(ok); len(problems) != 0 {
		t.Errorf("expected no problems, got %v", problems)
	}

	bad := ok
	bad.PrimaryColor = "green"
	bad.StartTime = -1
	bad.CallToAction = &player.CallToAction{Enabled: true, ButtonLink: "mailto:x@example.com"}
	problems := Props(bad)
	if len(problems) != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", len(problems), problems)
	}
}

func TestProps_DisabledCTAIsNotChecked(t *testing.T) {
	p := player.Props{CallToAction: &player.CallToAction{ButtonLink: "nope"}}
	if problems := Props(p); len(problems) != 0 {
		t.Errorf("expected no problems, got %v", problems)
	}
}
