// Package validate checks host-supplied player configuration. Each check
// returns an empty string when the value is acceptable and a user-facing
// message otherwise.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sendrec/player/internal/player"
)

// Text field length limits, matching what the sendrec API accepts.
const (
	MaxTitleLength          = 500
	MaxCTATitleLength       = 100
	MaxCTADescriptionLength = 500
	MaxCTAButtonLength      = 100
	MaxCTALinkLength        = 2000
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string          { return checkLen(s, MaxTitleLength, "title") }
func CTATitle(s string) string       { return checkLen(s, MaxCTATitleLength, "CTA title") }
func CTADescription(s string) string { return checkLen(s, MaxCTADescriptionLength, "CTA description") }
func CTAButton(s string) string      { return checkLen(s, MaxCTAButtonLength, "CTA button text") }

// CTALink requires an absolute http(s) URL.
func CTALink(s string) string {
	if msg := checkLen(s, MaxCTALinkLength, "CTA link"); msg != "" {
		return msg
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "CTA link must start with http:// or https://"
	}
	return ""
}

// Color accepts an empty value (use the default) or a #rrggbb hex colour.
func Color(s, field string) string {
	if s != "" && !hexColorPattern.MatchString(s) {
		return "invalid " + field + ": must be a hex color like #1a2b3c"
	}
	return ""
}

// Props runs every check that applies to p and returns the messages of the
// failing ones.
func Props(p player.Props) []string {
	checks := []string{
		Title(p.Title),
		Color(p.PrimaryColor, "primary color"),
		Color(p.SecondaryColor, "secondary color"),
	}
	if p.StartTime < 0 {
		checks = append(checks, "start time must not be negative")
	}
	if cta := p.CallToAction; cta != nil && cta.Enabled {
		checks = append(checks,
			CTATitle(cta.Title),
			CTADescription(cta.Description),
			CTAButton(cta.ButtonText),
			CTALink(cta.ButtonLink),
		)
		if strings.TrimSpace(cta.ButtonText) == "" {
			checks = append(checks, "CTA button text is required")
		}
	}

	var problems []string
	for _, msg := range checks {
		if msg != "" {
			problems = append(problems, msg)
		}
	}
	return problems
}
