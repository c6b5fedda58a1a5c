// Package opener launches call-to-action links in the system browser.
package opener

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	ErrUnsupportedOS = errors.New("unsupported OS")
	ErrInvalidLink   = errors.New("invalid link")
)

// Browser opens links with the platform's default handler, or with App when set.
type Browser struct {
	App string

	goos  string
	start func(*exec.Cmd) error
}

// New returns a Browser for the running platform.
func New(app string) *Browser {
	return &Browser{
		App:   app,
		goos:  runtime.GOOS,
		start: (*exec.Cmd).Start,
	}
}

// Open validates link and starts the handler without waiting for it.
// Only http and https links are opened.
func (b *Browser) Open(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidLink, link)
	}

	cmd, err := b.command(u.String())
	if err != nil {
		return err
	}
	if err := b.start(cmd); err != nil {
		return fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	return nil
}

func (b *Browser) command(link string) (*exec.Cmd, error) {
	if b.App != "" {
		switch b.goos {
		case "windows":
			escaped := strings.ReplaceAll(link, "&", "^&")
			return exec.Command("cmd", "/C", "start", "", b.App, escaped), nil
		case "darwin":
			return exec.Command("open", "-a", b.App, link), nil
		case "linux", "freebsd", "openbsd":
			return exec.Command(b.App, link), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, b.goos)
	}

	switch b.goos {
	case "windows":
		rundll := filepath.Join(os.Getenv("SYSTEMROOT"), "System32", "rundll32.exe")
		return exec.Command(rundll, "url.dll,FileProtocolHandler", link), nil
	case "darwin":
		return exec.Command("open", link), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", link), nil
	case "android":
		return exec.Command("termux-open", link), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, b.goos)
}
