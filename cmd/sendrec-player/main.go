package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sendrec/player/internal/analytics"
	"github.com/sendrec/player/internal/auth"
	"github.com/sendrec/player/internal/media"
	"github.com/sendrec/player/internal/media/mpris"
	"github.com/sendrec/player/internal/media/mpv"
	"github.com/sendrec/player/internal/opener"
	"github.com/sendrec/player/internal/player"
	"github.com/sendrec/player/internal/source"
	"github.com/sendrec/player/internal/tui"
	"github.com/sendrec/player/internal/validate"
)

const (
	loadTimeout   = 15 * time.Second
	shutdownGrace = 5 * time.Second
)

type options struct {
	apiURL       string
	token        string
	refreshToken string
	videoID      string

	backend     string
	mpvPath     string
	mprisPlayer string
	browser     string

	title          string
	autoPlay       bool
	muted          bool
	loop           bool
	start          float64
	primaryColor   string
	secondaryColor string
	noControls     bool
	noAnalytics    bool

	ctaTitle       string
	ctaDescription string
	ctaButton      string
	ctaLink        string

	s3 source.Config

	logFile  string
	logLevel string
}

// session is a backend the binary can load media into and release.
type session interface {
	media.Backend
	Load(ctx context.Context, src string) error
	Close() error
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "sendrec-player [source]",
		Short: "Play a sendrec recording in the terminal",
		Long: `Play a recording through mpv or a running MPRIS player, with sendrec's keyboard
shortcuts, end-of-video call to action and view analytics.

The source may be an http(s) URL, a local file or an s3://bucket/key object.`,
		Example: "  sendrec-player --video-id 3f2a https://cdn.example.com/v/3f2a.mp4",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0])
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&opts.apiURL, "api-url", getEnv("SENDREC_API_URL", "https://app.sendrec.eu/api"), "sendrec API base URL")
	f.StringVar(&opts.token, "token", os.Getenv("SENDREC_TOKEN"), "access token for analytics requests")
	f.StringVar(&opts.refreshToken, "refresh-token", os.Getenv("SENDREC_REFRESH_TOKEN"), "refresh token used to renew an expired access token")
	f.StringVar(&opts.videoID, "video-id", os.Getenv("SENDREC_VIDEO_ID"), "video ID analytics are reported against")

	f.StringVar(&opts.backend, "backend", getEnv("PLAYER_BACKEND", "mpv"), "media backend: mpv or mpris")
	f.StringVar(&opts.mpvPath, "mpv-path", getEnv("MPV_PATH", "mpv"), "mpv binary")
	f.StringVar(&opts.mprisPlayer, "mpris-player", os.Getenv("MPRIS_PLAYER"), "MPRIS bus name; first player found when empty")
	f.StringVar(&opts.browser, "browser", os.Getenv("BROWSER"), "application used to open call-to-action links")

	f.StringVar(&opts.title, "title", "", "title shown above the player")
	f.BoolVar(&opts.autoPlay, "autoplay", getEnvBool("PLAYER_AUTOPLAY", true), "start playing once loaded")
	f.BoolVar(&opts.muted, "muted", false, "start muted")
	f.BoolVar(&opts.loop, "loop", false, "loop the video")
	f.Float64Var(&opts.start, "start", getEnvFloat("PLAYER_START_TIME", 0), "start position in seconds")
	f.StringVar(&opts.primaryColor, "primary-color", os.Getenv("PLAYER_PRIMARY_COLOR"), "accent colour")
	f.StringVar(&opts.secondaryColor, "secondary-color", os.Getenv("PLAYER_SECONDARY_COLOR"), "secondary accent colour")
	f.BoolVar(&opts.noControls, "no-controls", false, "hide the status line")
	f.BoolVar(&opts.noAnalytics, "no-analytics", false, "do not report views")

	f.StringVar(&opts.ctaTitle, "cta-title", "", "call-to-action title shown at the end")
	f.StringVar(&opts.ctaDescription, "cta-description", "", "call-to-action description")
	f.StringVar(&opts.ctaButton, "cta-button", "Learn more", "call-to-action button text")
	f.StringVar(&opts.ctaLink, "cta-link", "", "call-to-action link")

	f.StringVar(&opts.s3.Endpoint, "s3-endpoint", os.Getenv("S3_ENDPOINT"), "S3 endpoint for s3:// sources")
	f.StringVar(&opts.s3.PublicEndpoint, "s3-public-endpoint", os.Getenv("S3_PUBLIC_ENDPOINT"), "endpoint used in presigned URLs")
	f.StringVar(&opts.s3.AccessKey, "s3-access-key", os.Getenv("S3_ACCESS_KEY"), "S3 access key")
	f.StringVar(&opts.s3.SecretKey, "s3-secret-key", os.Getenv("S3_SECRET_KEY"), "S3 secret key")
	f.StringVar(&opts.s3.Region, "s3-region", getEnv("S3_REGION", "eu-central-1"), "S3 region")
	f.BoolVar(&opts.s3.VerifyObjects, "s3-verify", getEnvBool("S3_VERIFY_OBJECTS", false), "check s3:// objects exist before playing")

	f.StringVar(&opts.logFile, "log-file", getEnv("LOG_FILE", "sendrec-player.log"), "log file")
	f.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level: debug, info, warn or error")

	return cmd
}

func run(parent context.Context, opts *options, src string) error {
	closeLog, err := setupLogging(opts.logFile, opts.logLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	props := buildProps(opts, src)
	if problems := validate.Props(props); len(problems) > 0 {
		return fmt.Errorf("invalid options: %s", strings.Join(problems, "; "))
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var resolver *source.Resolver
	if opts.s3.Endpoint != "" {
		resolver, err = source.New(ctx, opts.s3)
		if err != nil {
			return fmt.Errorf("configure storage: %w", err)
		}
	}
	playURL, err := resolver.Resolve(ctx, src)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	backend, release, err := openBackend(ctx, opts, cancel)
	if err != nil {
		return err
	}
	defer release()

	if err := loadAndWait(ctx, backend, playURL); err != nil {
		return err
	}

	client := analytics.NewClient(opts.apiURL, credentials(opts))
	tracker := analytics.NewTracker(analytics.Config{
		VideoID: props.VideoID,
		Enabled: props.TrackAnalytics,
	}, client, opener.New(opts.browser))

	bridge := tui.NewBridge()
	defer bridge.Close()
	ctrl := player.NewController(backend, props, bridge.Callbacks(player.Callbacks{
		OnPlaybackChange: func(playing bool) {
			slog.Debug("player: playback changed", "playing", playing)
		},
		OnEnded: func() {
			slog.Info("player: video ended", "video_id", props.VideoID)
		},
		OnDurationChange: func(d float64) {
			slog.Debug("player: duration known", "duration", d)
		},
		OnError: func(message string) {
			slog.Error("player: playback error", "video_id", props.VideoID, "error", message)
		},
	}), tracker)

	if err := ctrl.Mount(ctx); err != nil {
		return fmt.Errorf("mount player: %w", err)
	}

	runErr := tui.Run(ctx, ctrl, tracker, bridge)
	ctrl.Unmount()

	graceCtx, graceCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer graceCancel()
	if err := tracker.Close(graceCtx); err != nil {
		slog.Warn("analytics: pending events dropped", "error", err)
	}

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal ui: %w", runErr)
	}
	return nil
}

// openBackend starts or attaches to the media player. onGone is called when
// the player goes away on its own.
func openBackend(ctx context.Context, opts *options, onGone func()) (session, func(), error) {
	switch opts.backend {
	case "mpv":
		proc, err := mpv.Launch(ctx, mpv.Options{Path: opts.mpvPath, Title: opts.title})
		if err != nil {
			return nil, nil, fmt.Errorf("launch mpv: %w", err)
		}
		b, err := mpv.Connect(ctx, proc.SocketPath)
		if err != nil {
			_ = proc.Kill()
			return nil, nil, fmt.Errorf("connect mpv: %w", err)
		}
		go func() {
			select {
			case <-proc.Exited():
				slog.Info("mpv: exited")
				onGone()
			case <-b.Done():
				onGone()
			case <-ctx.Done():
			}
		}()
		return b, func() {
			_ = b.Close()
			if err := proc.Kill(); err != nil {
				slog.Warn("mpv: kill failed", "error", err)
			}
		}, nil

	case "mpris":
		b, err := mpris.Connect(ctx, opts.mprisPlayer)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mpris: %w", err)
		}
		return b, func() {
			if err := b.Close(); err != nil {
				slog.Warn("mpris: close failed", "player", b.Name(), "error", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", opts.backend)
}

// loadAndWait loads playURL and waits for its metadata so the player mounts with
// a known duration. A slow source is not fatal.
func loadAndWait(ctx context.Context, b session, playURL string) error {
	loaded := make(chan struct{})
	var once sync.Once
	unsubscribe := b.Subscribe(func(ev media.Event) {
		if ev.Type == media.EventLoadedMetadata {
			once.Do(func() { close(loaded) })
		}
	})
	defer unsubscribe()

	if err := b.Load(ctx, playURL); err != nil {
		return err
	}

	timer := time.NewTimer(loadTimeout)
	defer timer.Stop()
	select {
	case <-loaded:
	case <-timer.C:
		slog.Warn("player: metadata not loaded yet, mounting anyway", "timeout", loadTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func buildProps(opts *options, src string) player.Props {
	props := player.Props{
		Src:            src,
		Title:          opts.title,
		AutoPlay:       opts.autoPlay,
		Muted:          opts.muted,
		Loop:           opts.loop,
		StartTime:      opts.start,
		PrimaryColor:   opts.primaryColor,
		SecondaryColor: opts.secondaryColor,
		TrackAnalytics: !opts.noAnalytics && opts.videoID != "",
		VideoID:        opts.videoID,
		Controls:       !opts.noControls,
	}
	if opts.ctaLink != "" {
		props.CallToAction = &player.CallToAction{
			Enabled:     true,
			Title:       opts.ctaTitle,
			Description: opts.ctaDescription,
			ButtonText:  opts.ctaButton,
			ButtonLink:  opts.ctaLink,
		}
	}
	return props
}

func credentials(opts *options) auth.CredentialProvider {
	if opts.refreshToken != "" {
		return auth.NewSession(opts.apiURL, opts.token, opts.refreshToken)
	}
	return auth.Static(opts.token)
}

func setupLogging(path, level string) (func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lvl})))
	return func() { _ = f.Close() }, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
