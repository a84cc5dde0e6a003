package fleetclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/printfleet/fleetclient/fleettest"
	"github.com/printfleet/fleetclient/tokenstore"
)

func newTestBackend(t *testing.T) *fleettest.Server {
	t.Helper()
	backend := fleettest.New()
	t.Cleanup(backend.Close)
	backend.AddUser(fleettest.User{
		Username:  "amira",
		Email:     "amira@example.com",
		FirstName: "Amira",
		Role:      "technician",
		IsActive:  true,
	}, "hunter2")
	return backend
}

func newTestClient(t *testing.T, backend *fleettest.Server, sink EventSink) (*Client, *tokenstore.Memory) {
	t.Helper()

	tokens := tokenstore.NewMemory()
	client, err := New().
		WithBaseURL(backend.URL()).
		WithTokenStore(tokens).
		WithEventSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client, tokens
}

func login(t *testing.T, client *Client) *User {
	t.Helper()
	user, err := client.Login(context.Background(), Credentials{Username: "amira", Password: "hunter2"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return user
}

func TestBootWithoutTokenIsAnonymous(t *testing.T) {
	backend := newTestBackend(t)
	client, _ := newTestClient(t, backend, nil)

	if s := client.Session(); !s.IsLoading {
		t.Fatal("expected loading before boot")
	}
	if err := client.Boot(context.Background()); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}

	s := client.Session()
	if s.IsLoading {
		t.Fatal("expected loading to end after boot")
	}
	if s.State != SessionAnonymous || s.User != nil {
		t.Fatalf("expected anonymous session, got %+v", s)
	}
	if got := client.MetricsSnapshot().Counters["boot_anonymous"]; got != 1 {
		t.Fatalf("expected boot_anonymous=1, got %d", got)
	}
}

func TestBootRestoresSessionFromStoredToken(t *testing.T) {
	backend := newTestBackend(t)
	client, tokens := newTestClient(t, backend, nil)
	ctx := context.Background()

	if err := tokens.Set(ctx, backend.IssueToken("amira", time.Hour)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := client.Boot(ctx); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}

	s := client.Session()
	if s.State != SessionAuthenticated || s.User == nil || s.User.Username != "amira" {
		t.Fatalf("expected restored session for amira, got %+v", s)
	}
	if got := backend.Requests("/users/profile/"); got != 1 {
		t.Fatalf("expected one profile fetch during boot, got %d", got)
	}
}

func TestBootWithRejectedTokenSignsOut(t *testing.T) {
	backend := newTestBackend(t)
	client, tokens := newTestClient(t, backend, nil)
	ctx := context.Background()

	if err := tokens.Set(ctx, backend.IssueToken("amira", -time.Minute)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := client.Boot(ctx); err != nil {
		t.Fatalf("Boot with a rejected token must not error, got %v", err)
	}

	s := client.Session()
	if s.IsLoading {
		t.Fatal("expected loading to end even on rejection")
	}
	if s.State != SessionAnonymous {
		t.Fatalf("expected anonymous session, got %v", s.State)
	}
	if got, _ := tokens.Get(ctx); got != "" {
		t.Fatalf("expected empty token slot after rejection, slot holds %q", got)
	}
	if got := client.MetricsSnapshot().Counters["boot_rejected"]; got != 1 {
		t.Fatalf("expected boot_rejected=1, got %d", got)
	}
}

func TestBootProfileFailureSignsOut(t *testing.T) {
	backend := newTestBackend(t)
	client, tokens := newTestClient(t, backend, nil)
	ctx := context.Background()

	backend.ForceStatus("/users/profile/", 500)
	if err := tokens.Set(ctx, backend.IssueToken("amira", time.Hour)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := client.Boot(ctx); err == nil {
		t.Fatal("expected Boot to surface the profile failure")
	}

	s := client.Session()
	if s.IsLoading {
		t.Fatal("expected loading to end even on failure")
	}
	if s.State != SessionAnonymous || s.User != nil {
		t.Fatalf("expected anonymous session, got %+v", s)
	}
	if got, _ := tokens.Get(ctx); got != "" {
		t.Fatalf("expected empty token slot after failed boot, slot holds %q", got)
	}
}

func TestLoginEstablishesSession(t *testing.T) {
	backend := newTestBackend(t)
	client, tokens := newTestClient(t, backend, nil)
	ctx := context.Background()

	if err := client.Boot(ctx); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	user := login(t, client)
	if user.Username != "amira" || user.Role != RoleTechnician {
		t.Fatalf("unexpected user %+v", user)
	}
	if !client.IsAuthenticated() {
		t.Fatal("expected authenticated session")
	}
	if got, _ := tokens.Get(ctx); got == "" {
		t.Fatal("expected token persisted after login")
	}

	// The login invalidated any prior profile entry, so the first Profile
	// call hits the backend and later calls are served from the cache.
	if _, err := client.Profile(ctx); err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if _, err := client.Profile(ctx); err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if got := backend.Requests("/users/profile/"); got != 1 {
		t.Fatalf("expected one profile fetch after login, got %d", got)
	}
}

func TestLoginFailureMapsToInvalidCredentials(t *testing.T) {
	backend := newTestBackend(t)
	client, tokens := newTestClient(t, backend, nil)
	ctx := context.Background()

	if err := client.Boot(ctx); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	_, err := client.Login(ctx, Credentials{Username: "amira", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if client.IsAuthenticated() {
		t.Fatal("expected anonymous session after rejected login")
	}
	if got, _ := tokens.Get(ctx); got != "" {
		t.Fatalf("expected empty token slot, slot holds %q", got)
	}
	if got := client.MetricsSnapshot().Counters["login_failure"]; got != 1 {
		t.Fatalf("expected login_failure=1, got %d", got)
	}
}

func TestFailedReloginKeepsExistingSession(t *testing.T) {
	backend := newTestBackend(t)
	client, tokens := newTestClient(t, backend, nil)
	ctx := context.Background()

	if err := client.Boot(ctx); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	login(t, client)
	before, _ := tokens.Get(ctx)

	_, err := client.Login(ctx, Credentials{Username: "amira", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// The rejected attempt must not disturb the session that was already
	// established.
	if !client.IsAuthenticated() {
		t.Fatal("expected the existing session to survive a failed re-login")
	}
	if u := client.CurrentUser(); u == nil || u.Username != "amira" {
		t.Fatalf("expected amira to stay signed in, got %+v", u)
	}
	if got, _ := tokens.Get(ctx); got != before || got == "" {
		t.Fatalf("expected the stored token to survive, got %q", got)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	backend := newTestBackend(t)
	client, tokens := newTestClient(t, backend, nil)
	ctx := context.Background()

	if err := client.Boot(ctx); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	login(t, client)

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := client.Logout(ctx); err != nil {
		t.Fatalf("second Logout must be a no-op, got %v", err)
	}

	if client.IsAuthenticated() {
		t.Fatal("expected anonymous session after logout")
	}
	if got, _ := tokens.Get(ctx); got != "" {
		t.Fatalf("expected empty token slot after logout, slot holds %q", got)
	}
	if got := backend.Requests("/auth/logout/"); got != 1 {
		t.Fatalf("expected one backend logout call, got %d", got)
	}
}

func TestLogoutWhileSignedOutClearsStrayToken(t *testing.T) {
	backend := newTestBackend(t)
	client, tokens := newTestClient(t, backend, nil)
	ctx := context.Background()

	if err := client.Boot(ctx); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	// A token left behind without a session, e.g. after a boot that never
	// resolved it.
	if err := tokens.Set(ctx, "stray-token"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if got, _ := tokens.Get(ctx); got != "" {
		t.Fatalf("expected Logout to empty the slot, slot holds %q", got)
	}
	if got := backend.Requests("/auth/logout/"); got != 0 {
		t.Fatalf("expected no backend call for a signed-out logout, got %d", got)
	}
	if got := client.MetricsSnapshot().Counters["logout"]; got != 0 {
		t.Fatalf("expected no logout metric when already signed out, got %d", got)
	}
}

func TestLogoutPurgesCachedData(t *testing.T) {
	backend := newTestBackend(t)
	backend.SeedPrinters(fleettest.Printer{Name: "hall-laser", Status: "active"})
	client, _ := newTestClient(t, backend, nil)
	ctx := context.Background()

	if err := client.Boot(ctx); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	login(t, client)

	for i := 0; i < 2; i++ {
		if _, err := client.Printers(ctx, PrinterFilters{}); err != nil {
			t.Fatalf("Printers failed: %v", err)
		}
	}
	if got := backend.Requests("/printers/"); got != 1 {
		t.Fatalf("expected the second list to come from cache, backend saw %d", got)
	}

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	login(t, client)

	if _, err := client.Printers(ctx, PrinterFilters{}); err != nil {
		t.Fatalf("Printers failed: %v", err)
	}
	if got := backend.Requests("/printers/"); got != 2 {
		t.Fatalf("expected a fresh fetch after logout purged the cache, backend saw %d", got)
	}
}

func TestUnauthorizedResponseForcesLogout(t *testing.T) {
	backend := newTestBackend(t)
	sink := NewChannelSink(16)
	client, tokens := newTestClient(t, backend, sink)
	ctx := context.Background()

	if err := client.Boot(ctx); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	login(t, client)

	backend.ForceStatus("/printers/statistics/", 401)
	_, err := client.PrinterStatistics(ctx)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	// By the time the error surfaced the teardown already ran.
	if client.IsAuthenticated() {
		t.Fatal("expected forced logout after 401")
	}
	if got, _ := tokens.Get(ctx); got != "" {
		t.Fatalf("expected empty token slot, slot holds %q", got)
	}
	if got := client.MetricsSnapshot().Counters["session_invalidated"]; got != 1 {
		t.Fatalf("expected session_invalidated=1, got %d", got)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.Type == EventSessionInvalidated {
				return
			}
		case <-deadline:
			t.Fatal("no session_invalidated event delivered")
		}
	}
}

func TestLogoutSwallowsBackendFailure(t *testing.T) {
	backend := newTestBackend(t)
	client, tokens := newTestClient(t, backend, nil)
	ctx := context.Background()

	if err := client.Boot(ctx); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	login(t, client)

	backend.ForceStatus("/auth/logout/", 500)
	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout must swallow backend failures, got %v", err)
	}

	if client.IsAuthenticated() {
		t.Fatal("expected local teardown despite backend failure")
	}
	if got, _ := tokens.Get(ctx); got != "" {
		t.Fatalf("expected empty token slot, slot holds %q", got)
	}
	if got := client.MetricsSnapshot().Counters["logout_backend_failed"]; got != 1 {
		t.Fatalf("expected logout_backend_failed=1, got %d", got)
	}
}

func TestMethodsBeforeBuildReturnNotReady(t *testing.T) {
	var client *Client
	if err := client.Boot(context.Background()); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
	if _, err := client.Login(context.Background(), Credentials{}); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	backend := newTestBackend(t)
	b := New().WithBaseURL(backend.URL()).WithTokenStore(tokenstore.NewMemory())
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildRequiresTokenStore(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected Build without a token store to fail")
	}
}
