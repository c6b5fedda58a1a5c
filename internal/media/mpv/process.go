package mpv

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	socketWaitRetries = 20
	socketWaitDelay   = 150 * time.Millisecond
)

// Options configures a launched mpv.
type Options struct {
	// Path to the mpv binary; "mpv" when empty.
	Path  string
	Title string
	// ExtraArgs are appended before the IPC flags.
	ExtraArgs []string
}

// Process is an mpv child started with an IPC socket.
type Process struct {
	SocketPath string

	cmd    *exec.Cmd
	exited chan struct{}
}

// Launch starts an idle, paused mpv window and waits until its IPC socket
// accepts connections. Media is loaded afterwards with Backend.Load.
func Launch(ctx context.Context, opts Options) (*Process, error) {
	bin := opts.Path
	if bin == "" {
		bin = "mpv"
	}

	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("generate socket name: %w", err)
	}
	socketPath := filepath.Join(os.TempDir(), fmt.Sprintf("sendrec-player-%x.sock", randomBytes))

	cmd := exec.Command(bin, buildArgs(opts, socketPath)...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}

	p := &Process{SocketPath: socketPath, cmd: cmd, exited: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(p.exited)
	}()

	if err := p.waitForSocket(ctx); err != nil {
		slog.Warn("mpv: killing process, socket never became ready", "socket", socketPath)
		_ = p.Kill()
		return nil, fmt.Errorf("mpv socket not ready: %w", err)
	}
	return p, nil
}

func buildArgs(opts Options, socketPath string) []string {
	args := []string{
		"--no-terminal",
		"--really-quiet",
		"--idle=yes",
		"--force-window=yes",
		"--keep-open=yes",
		"--pause",
	}
	if title := sanitizeTitle(opts.Title); title != "" {
		args = append(args, "--force-media-title="+title, "--title="+title)
	}
	args = append(args, opts.ExtraArgs...)
	return append(args, "--input-ipc-server="+socketPath)
}

func sanitizeTitle(title string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(title))
}

func (p *Process) waitForSocket(ctx context.Context) error {
	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-time.After(socketWaitDelay):
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case <-p.exited:
			return fmt.Errorf("mpv exited before socket was ready")
		default:
		}

		conn, err := net.Dial("unix", p.SocketPath)
		if err == nil {
			_ = conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", p.SocketPath, socketWaitRetries)
}

// Exited is closed when the process ends, e.g. the user closed the window.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Kill stops mpv and removes its socket.
func (p *Process) Kill() error {
	defer func() { _ = os.Remove(p.SocketPath) }()
	select {
	case <-p.exited:
		return nil
	default:
	}
	return killProcess(p.cmd)
}
