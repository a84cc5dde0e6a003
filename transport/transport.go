package transport

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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/printfleet/fleetclient/tokenstore"
)

const (
	defaultBaseURL   = "http://localhost:8000/api"
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "fleetclient"
)

// Config for the HTTP chokepoint. Zero values fall back to the defaults
// above.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client issues every backend request for the fleet client. It reads the
// token slot before each dispatch and intercepts 401 responses; it holds no
// session state of its own.
type Client struct {
	base      *url.URL
	http      *http.Client
	tokens    tokenstore.Store
	logger    *slog.Logger
	userAgent string

	mu          sync.RWMutex
	invalidated func(ctx context.Context, path string)
}

// New creates the chokepoint. A nil logger falls back to [slog.Default].
func New(cfg Config, tokens tokenstore.Store, logger *slog.Logger) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("token store required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:      base,
		http:      &http.Client{Timeout: cfg.Timeout},
		tokens:    tokens,
		logger:    logger,
		userAgent: cfg.UserAgent,
	}, nil
}

// SetInvalidationHook registers fn to run synchronously on the error path of
// any 401 response, after the token slot has been cleared and before the
// error returns to the caller. Only one hook is held; later calls replace
// it.
func (c *Client) SetInvalidationHook(fn func(ctx context.Context, path string)) {
	c.mu.Lock()
	c.invalidated = fn
	c.mu.Unlock()
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path, query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", userAgentFromContext(ctx, c.userAgent))

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	token, err := c.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("read token slot: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// The request never produced a response; the token slot stays as
		// it is. Only an explicit 401 clears it.
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		raw, _ := io.ReadAll(resp.Body)
		if isCredentialExchange(ctx) {
			// Rejected credentials, not a rejected token.
			return &APIError{
				StatusCode: resp.StatusCode,
				Message:    normalizeMessage(raw),
				RequestID:  requestID,
			}
		}
		if clearErr := c.tokens.Clear(ctx); clearErr != nil {
			c.logger.Warn("clearing token slot after 401 failed", "error", clearErr)
		}
		c.mu.RLock()
		hook := c.invalidated
		c.mu.RUnlock()
		if hook != nil {
			hook(ctx, path)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    normalizeMessage(raw),
			RequestID:  requestID,
		}
	}

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		c.logger.Debug("request failed",
			"method", method, "path", path,
			"status", resp.StatusCode, "request_id", requestID)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    normalizeMessage(raw),
			RequestID:  requestID,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := c.base.JoinPath(strings.Split(strings.Trim(path, "/"), "/")...)
	// Backend routes are directory-style.
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
