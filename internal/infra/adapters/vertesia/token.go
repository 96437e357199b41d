package vertesia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// expirySkew is subtracted from the token's own expiry.
const expirySkew = 5 * time.Minute

// TokenSource exchanges the API key for a short-lived JWT and caches it.
type TokenSource struct {
	authURL string
	apiKey  string
	ttl     time.Duration
	client  *http.Client
	log     *zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewTokenSource(authURL, apiKey string, ttl time.Duration, client *http.Client, logger *zerolog.Logger) *TokenSource {
	return &TokenSource{
		authURL: authURL,
		apiKey:  apiKey,
		ttl:     ttl,
		client:  client,
		log:     logger,
		now:     time.Now,
	}
}

// Token returns a cached JWT, fetching a new one when missing or stale.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.expires) {
		return s.token, nil
	}
	tok, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.token = tok
	s.expires = s.expiryOf(tok)
	s.log.Debug().Time("expires", s.expires).Msg("vendor token acquired")
	return tok, nil
}

// Invalidate drops the cached token so the next call re-authenticates.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

func (s *TokenSource) fetch(ctx context.Context) (string, error) {
	u, err := url.Parse(s.authURL)
	if err != nil {
		return "", fmt.Errorf("auth url: %w", err)
	}
	q := u.Query()
	q.Set("token", s.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Endpoint: "auth"}
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("auth decode: %w", err)
	}
	if payload.Token == "" {
		return "", errors.New("auth: empty token")
	}
	return payload.Token, nil
}

// expiryOf reads exp from the (unverified) JWT; the configured TTL applies
// when the token carries none.
func (s *TokenSource) expiryOf(tok string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Add(-expirySkew)
	}
	return s.now().Add(s.ttl)
}
