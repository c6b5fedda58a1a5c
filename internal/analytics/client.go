package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sendrec/player/internal/auth"
)

const maxResponseBodyBytes = 1024

// ErrUnexpectedStatus is returned when the collector answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Sender delivers analytics events for a video.
type Sender interface {
	SendQuarter(ctx context.Context, videoID string, ev QuarterEvent) error
	SendCTAClick(ctx context.Context, videoID string, ev CTAClickEvent) error
	SendView(ctx context.Context, videoID string, ev ViewReport) error
}

// Client posts analytics events to the sendrec API.
type Client struct {
	baseURL     string
	http        *http.Client
	credentials auth.CredentialProvider
	cb          *gobreaker.CircuitBreaker[struct{}]
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a client for the API rooted at baseURL. credentials may be
// nil, in which case requests carry no Authorization header.
func NewClient(baseURL string, credentials auth.CredentialProvider, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: 10 * time.Second},
		credentials: credentials,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "analytics-collector",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("analytics: circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// State reports the breaker state, mainly for diagnostics.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

func (c *Client) SendQuarter(ctx context.Context, videoID string, ev QuarterEvent) error {
	return c.post(ctx, videoID, "quarters", ev)
}

func (c *Client) SendCTAClick(ctx context.Context, videoID string, ev CTAClickEvent) error {
	return c.post(ctx, videoID, "cta-click", ev)
}

func (c *Client) SendView(ctx context.Context, videoID string, ev ViewReport) error {
	return c.post(ctx, videoID, "view", ev)
}

func (c *Client) post(ctx context.Context, videoID, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	endpoint := fmt.Sprintf("%s/videos/%s/analytics/%s", c.baseURL, url.PathEscape(videoID), kind)

	_, err = c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, c.doPost(ctx, endpoint, body)
	})
	if err != nil {
		return fmt.Errorf("post %s event: %w", kind, err)
	}
	return nil
}

func (c *Client) doPost(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create analytics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.credentials != nil {
		token, err := c.credentials.Token(ctx)
		if err != nil {
			return fmt.Errorf("get credentials: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}
