package fleetclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/printfleet/fleetclient/internal/events"
	"github.com/printfleet/fleetclient/querycache"
	"github.com/printfleet/fleetclient/tokenstore"
	"github.com/printfleet/fleetclient/transport"
)

// Cache keys. List families carry a trailing slash so prefix invalidation
// reaches every filtered variant without touching sibling keys.
const (
	keyProfile       = "user-profile"
	keyPrinters      = "printers/"
	keyPrinterDetail = "printer/"
	keyPrinterStats  = "printer-statistics"
	keyAlerts        = "alerts/"
	keyAlertRules    = "alert-rules"
	keyAlertStats    = "alert-statistics"
)

// Client owns the session lifecycle and the request cache. Build one with
// [New] and boot it once; all methods are safe for concurrent use.
type Client struct {
	cfg     Config
	tokens  tokenstore.Store
	api     *transport.Client
	cache   *querycache.Cache
	events  *events.Dispatcher
	metrics *Metrics
	logger  *slog.Logger

	mu           sync.RWMutex
	state        SessionState
	user         *User
	refreshToken string
	booted       bool
	bootedAt     time.Time
}

func (c *Client) ready() error {
	if c == nil || c.api == nil {
		return ErrClientNotReady
	}
	return nil
}

// Boot resolves the stored token into a session. With no token the session
// is anonymous; with a token the profile is fetched, and any failure to
// resolve it signs the client out with the slot cleared. Boot ends the
// loading phase on every path, including errors.
func (c *Client) Boot(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.booted {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.booted = true
		c.bootedAt = time.Now()
		c.mu.Unlock()
	}()

	token, err := c.tokens.Get(ctx)
	if err != nil {
		c.setState(SessionAnonymous, nil)
		return fmt.Errorf("read token slot: %w", err)
	}
	if token == "" {
		c.setState(SessionAnonymous, nil)
		c.metrics.Inc(MetricBootAnonymous)
		c.emit(ctx, EventBootAnonymous, true, "", nil)
		return nil
	}

	user, err := c.fetchProfile(ctx)
	if err != nil {
		// A token that cannot be resolved into a profile ends in the logout
		// transition: slot cleared, cache purged, session anonymous.
		c.localLogout(ctx)
		if errors.Is(err, ErrUnauthenticated) {
			c.metrics.Inc(MetricBootRejected)
			c.emit(ctx, EventBootRejected, false, err.Error(), nil)
			return nil
		}
		return fmt.Errorf("restore session: %w", err)
	}

	c.setState(SessionAuthenticated, &user)
	c.metrics.Inc(MetricBootAuthenticated)
	c.emit(ctx, EventBootAuthenticated, true, "", nil)
	c.logger.Info("session restored", "username", user.Username)
	return nil
}

// Login exchanges credentials for a session. A backend rejection maps to
// [ErrInvalidCredentials] and restores whatever session existed before the
// attempt: an established identity survives a failed re-login untouched.
func (c *Client) Login(ctx context.Context, creds Credentials) (*User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	prevState := c.state
	prevUser := c.user
	prevRefresh := c.refreshToken
	// An established session stays visible while the exchange is in flight;
	// only a signed-out client shows the authenticating state.
	if c.state != SessionAuthenticated {
		c.state = SessionAuthenticating
		c.user = nil
	}
	c.mu.Unlock()

	restore := func() {
		c.mu.Lock()
		c.state = prevState
		c.user = prevUser
		c.refreshToken = prevRefresh
		c.mu.Unlock()
	}

	// A 401 here judges the submitted credentials, not the stored token.
	ctx = transport.WithCredentialExchange(ctx)

	var res LoginResult
	err := c.api.Post(ctx, "/auth/token/", map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	}, &res)
	if err != nil {
		restore()
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, EventLoginFailed, false, err.Error(), map[string]string{"username": creds.Username})

		var apiErr *transport.APIError
		if errors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnauthorized) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := c.tokens.Set(ctx, res.AccessToken); err != nil {
		restore()
		return nil, fmt.Errorf("persist token: %w", err)
	}

	user := res.User
	c.mu.Lock()
	c.state = SessionAuthenticated
	c.user = &user
	c.refreshToken = res.RefreshToken
	c.mu.Unlock()

	if prevUser != nil && prevUser.ID != user.ID {
		// A different identity signed in over the old session; nothing
		// cached for the previous user may leak into the new one.
		c.cache.Purge()
		c.metrics.Inc(MetricCachePurged)
	}
	// Anything cached before the identity was established is suspect.
	c.cache.Invalidate(keyProfile)

	c.metrics.Inc(MetricLoginSuccess)
	c.emit(ctx, EventLogin, true, "", map[string]string{"username": user.Username})
	c.logger.Info("logged in", "username", user.Username, "role", string(user.Role))

	out := user
	return &out, nil
}

// Logout ends the session. The backend call is best effort: a failure is
// logged and local teardown still runs, so Logout never returns an error.
// The local teardown is unconditional, so the slot and the session cannot
// disagree after an explicit sign-out; only the backend call and the logout
// event are skipped when the client is already signed out.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}

	c.mu.Lock()
	wasAuthenticated := c.state == SessionAuthenticated
	refresh := c.refreshToken
	c.mu.Unlock()

	if wasAuthenticated {
		body := map[string]string{}
		if refresh != "" {
			body["refresh_token"] = refresh
		}
		if err := c.api.Post(ctx, "/auth/logout/", body, nil); err != nil {
			c.metrics.Inc(MetricLogoutBackendFailed)
			c.logger.Warn("backend logout failed, tearing down locally", "error", err)
		}
	}

	c.localLogout(ctx)
	if wasAuthenticated {
		c.metrics.Inc(MetricLogout)
		c.emit(ctx, EventLogout, true, "", nil)
	}
	return nil
}

// localLogout clears the slot, purges the cache, and drops the identity. It
// is idempotent.
func (c *Client) localLogout(ctx context.Context) {
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Warn("clearing token slot failed", "error", err)
	}
	c.cache.Purge()
	c.metrics.Inc(MetricCachePurged)
	c.setState(SessionAnonymous, nil)
}

// handleInvalidated runs on the 401 error path of any request. It fires
// before the failing call returns to its caller, so by the time application
// code sees ErrUnauthenticated the session is already torn down.
func (c *Client) handleInvalidated(ctx context.Context, path string) {
	c.mu.Lock()
	if c.state != SessionAuthenticated {
		c.mu.Unlock()
		return
	}
	c.state = SessionAnonymous
	user := c.user
	c.user = nil
	c.refreshToken = ""
	c.mu.Unlock()

	// The transport already cleared the slot; finish the teardown.
	c.cache.Purge()
	c.metrics.Inc(MetricCachePurged)
	c.metrics.Inc(MetricSessionInvalidated)

	meta := map[string]string{"path": path}
	if user != nil {
		meta["username"] = user.Username
	}
	c.emit(ctx, EventSessionInvalidated, false, "session rejected by backend", meta)
	c.logger.Warn("session invalidated", "path", path)
}

func (c *Client) fetchProfile(ctx context.Context) (User, error) {
	return cachedFetch(ctx, c.cache, keyProfile, func(ctx context.Context) (User, error) {
		var u User
		err := c.api.Get(ctx, "/users/profile/", nil, &u)
		return u, err
	})
}

// Session returns a snapshot of the lifecycle state.
func (c *Client) Session() Session {
	if c == nil {
		return Session{State: SessionBooting, IsLoading: true}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Session{
		State:     c.state,
		IsLoading: !c.booted,
		BootedAt:  c.bootedAt,
	}
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	return s
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (c *Client) CurrentUser() *User {
	return c.Session().User
}

// IsAuthenticated reports whether an identity is established.
func (c *Client) IsAuthenticated() bool {
	return c.Session().IsAuthenticated()
}

// MetricsSnapshot copies the client counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// CacheStats copies the cache counters.
func (c *Client) CacheStats() querycache.Stats {
	return c.cache.Stats()
}

// EventsDropped reports how many session events the dispatcher discarded.
func (c *Client) EventsDropped() uint64 {
	return c.events.Dropped()
}

// Close drains and stops the event dispatcher. The client is not usable
// afterwards.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.events.Close()
}

func (c *Client) setState(state SessionState, user *User) {
	c.mu.Lock()
	c.state = state
	c.user = user
	if state != SessionAuthenticated {
		c.refreshToken = ""
	}
	c.mu.Unlock()
}

func (c *Client) emit(ctx context.Context, eventType string, success bool, errMsg string, metadata map[string]string) {
	if c.events == nil {
		return
	}
	ev := events.Event{
		Timestamp: time.Now(),
		Type:      eventType,
		RequestID: transport.RequestIDFromContext(ctx),
		Success:   success,
		Error:     errMsg,
		Metadata:  metadata,
	}
	c.mu.RLock()
	if c.user != nil {
		ev.UserID = strconv.Itoa(c.user.ID)
	}
	c.mu.RUnlock()
	c.events.Emit(ctx, ev)
}

// cachedFetch funnels a typed fetch through the cache, which stores values
// as any.
func cachedFetch[T any](ctx context.Context, cache *querycache.Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	v, err := cache.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache entry %q holds unexpected type %T", key, v)
	}
	return out, nil
}
