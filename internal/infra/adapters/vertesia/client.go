// File: internal/infra/adapters/vertesia/client.go
package vertesia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/config"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/logging"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

// Client talks to the Vertesia REST API with a cached JWT.
type Client struct {
	base          string
	environment   string
	model         string
	maxIterations int
	http          *http.Client
	stream        *http.Client
	tokens        *TokenSource
	log           *zerolog.Logger
}

func New(cfg config.VertesiaConfig, maxIterations int, logger *zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("vertesia api key empty")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("vertesia base url empty")
	}
	l := logging.Component(logger, "vertesia")
	hc := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		base:          cfg.BaseURL,
		environment:   cfg.EnvironmentID,
		model:         cfg.Model,
		maxIterations: maxIterations,
		http:          hc,
		// streams are bounded by the caller's context, never by a client timeout
		stream: &http.Client{},
		tokens: NewTokenSource(cfg.AuthURL, cfg.APIKey, cfg.TokenTTL, hc, l),
		log:    l,
	}, nil
}

// do issues one JSON request; out may be nil. A 401 invalidates the token
// and is retried once.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	defer logging.TraceDuration(c.log, "vertesia."+endpoint)()
	start := time.Now()
	err := c.doOnce(ctx, endpoint, method, path, body, out)
	if IsStatus(err, http.StatusUnauthorized) {
		c.tokens.Invalidate()
		err = c.doOnce(ctx, endpoint, method, path, body, out)
	}
	metrics.ObserveVendorCall(endpoint, start, err == nil)
	return err
}

func (c *Client) doOnce(ctx context.Context, endpoint, method, path string, body, out any) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", endpoint, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vertesia %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Endpoint: endpoint, Body: string(snippet)}
	}
	if out == nil {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", endpoint, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
