package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshSkew is how long before expiry an access token is considered stale.
const RefreshSkew = 30 * time.Second

var (
	ErrNoCredentials = errors.New("no credentials available")
	ErrTokenExpired  = errors.New("access token expired")
)

// CredentialProvider supplies the bearer token for API calls. An empty token
// with a nil error means the request goes out unauthenticated.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// Claims mirrors the access token payload issued by the API.
type Claims struct {
	UserID    string `json:"userId"`
	TokenID   string `json:"jti"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a token without verifying its signature. Only the API
// holds the signing secret; the player just needs the expiry.
func ParseClaims(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// Static always returns the same token.
type Static string

func (s Static) Token(context.Context) (string, error) {
	return string(s), nil
}

// Session holds an access token and renews it through the API's refresh
// endpoint when it is missing or about to expire.
type Session struct {
	baseURL      string
	refreshToken string
	http         *http.Client
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewSession returns a session provider. accessToken may be empty; without a
// refresh token an expired access token is an error.
func NewSession(baseURL, accessToken, refreshToken string) *Session {
	s := &Session{
		baseURL:      strings.TrimRight(baseURL, "/"),
		refreshToken: refreshToken,
		http:         &http.Client{Timeout: 10 * time.Second},
		now:          time.Now,
	}
	s.setAccessToken(accessToken)
	return s
}

func (s *Session) setAccessToken(token string) {
	s.accessToken = token
	s.expiresAt = time.Time{}
	if token == "" {
		return
	}
	if claims, err := ParseClaims(token); err == nil && claims.ExpiresAt != nil {
		s.expiresAt = claims.ExpiresAt.Time
	}
}

func (s *Session) stale() bool {
	if s.accessToken == "" {
		return true
	}
	return !s.expiresAt.IsZero() && !s.now().Add(RefreshSkew).Before(s.expiresAt)
}

// Token returns a fresh access token, refreshing it first if needed.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stale() {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		if s.accessToken == "" {
			return "", ErrNoCredentials
		}
		return "", ErrTokenExpired
	}

	token, err := s.refresh(ctx)
	if err != nil {
		return "", err
	}
	s.setAccessToken(token)
	return s.accessToken, nil
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/refresh", nil)
	if err != nil {
		return "", fmt.Errorf("create refresh request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: s.refreshToken})

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("refresh token: status %d", resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("refresh token: %w", ErrNoCredentials)
	}

	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" && c.Value != "" {
			s.refreshToken = c.Value
		}
	}
	return body.AccessToken, nil
}
