package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/printfleet/fleetclient/tokenstore"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *tokenstore.Memory, *httptest.Server) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	tokens := tokenstore.NewMemory()
	client, err := New(Config{BaseURL: ts.URL + "/api"}, tokens, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client, tokens, ts
}

func TestBearerInjectedWhenTokenPresent(t *testing.T) {
	var gotAuth string
	client, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	ctx := context.Background()

	if err := client.Get(ctx, "/printers/", nil, nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("expected unauthenticated request without token, got %q", gotAuth)
	}

	if err := tokens.Set(ctx, "tok-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := client.Get(ctx, "/printers/", nil, nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("expected Bearer tok-1, got %q", gotAuth)
	}
}

func TestUnauthorizedClearsSlotAndFiresHookBeforeReturn(t *testing.T) {
	client, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "token expired"}`))
	}))
	ctx := context.Background()

	if err := tokens.Set(ctx, "stale"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	hookFired := false
	client.SetInvalidationHook(func(_ context.Context, path string) {
		hookFired = true
		// The slot must already be empty by the time the hook runs.
		if got, _ := tokens.Get(ctx); got != "" {
			t.Errorf("expected empty slot inside hook, got %q", got)
		}
		if path != "/alerts/" {
			t.Errorf("expected hook path /alerts/, got %q", path)
		}
	})

	err := client.Get(ctx, "/alerts/", nil, nil)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if !hookFired {
		t.Fatal("expected invalidation hook to fire before the error returned")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "token expired" {
		t.Fatalf("expected detail message, got %q", apiErr.Message)
	}
}

func TestCredentialExchangeRejectionKeepsToken(t *testing.T) {
	client, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "invalid credentials"}`))
	}))
	ctx := context.Background()

	if err := tokens.Set(ctx, "tok-keep"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	hookFired := false
	client.SetInvalidationHook(func(context.Context, string) { hookFired = true })

	// A rejected login judges the submitted credentials; the stored token
	// and the session must be untouched.
	err := client.Post(WithCredentialExchange(ctx), "/auth/token/", map[string]string{"username": "x"}, nil)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if hookFired {
		t.Fatal("a credential exchange 401 must not fire the invalidation hook")
	}
	if got, _ := tokens.Get(ctx); got != "tok-keep" {
		t.Fatalf("a credential exchange 401 must not clear the slot, got %q", got)
	}
}

func TestErrorMessagePrecedence(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message wins over detail", `{"message": "printer name taken", "detail": "ignored"}`, "printer name taken"},
		{"detail when no message", `{"detail": "not found"}`, "not found"},
		{"fallback on empty body", ``, "unknown error"},
		{"fallback on unstructured body", `<html>oops</html>`, "unknown error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tc.body))
			}))

			err := client.Post(context.Background(), "/printers/", map[string]string{"name": "x"}, nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Message != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, apiErr.Message)
			}
			if errors.Is(err, ErrUnauthenticated) {
				t.Fatal("a 400 must not carry ErrUnauthenticated")
			}
		})
	}
}

func TestNetworkFailureKeepsToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tokens := tokenstore.NewMemory()
	client, err := New(Config{BaseURL: ts.URL}, tokens, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ts.Close() // every request now fails before reaching a server

	ctx := context.Background()
	if err := tokens.Set(ctx, "tok-keep"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	err = client.Get(ctx, "/printers/", nil, nil)
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure must not be an APIError, got %+v", apiErr)
	}

	got, _ := tokens.Get(ctx)
	if got != "tok-keep" {
		t.Fatalf("transport failure must not clear the token, slot holds %q", got)
	}
}

func TestRequestIDHeaderAndCarrier(t *testing.T) {
	var gotID string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{}`))
	}))

	if err := client.Get(context.Background(), "/printers/", nil, nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotID == "" {
		t.Fatal("expected a generated X-Request-ID")
	}

	ctx := WithRequestID(context.Background(), "req-42")
	if err := client.Get(ctx, "/printers/", nil, nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotID != "req-42" {
		t.Fatalf("expected carrier request ID req-42, got %q", gotID)
	}
}

func TestResolveJoinsBaseAndQuery(t *testing.T) {
	var gotPath, gotQuery string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))

	q := url.Values{}
	q.Set("status", "active")
	if err := client.Get(context.Background(), "/printers/", q, nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotPath != "/api/printers/" {
		t.Fatalf("expected /api/printers/, got %q", gotPath)
	}
	if gotQuery != "status=active" {
		t.Fatalf("expected status=active, got %q", gotQuery)
	}
}

func TestUserAgentCarrierOverride(t *testing.T) {
	var gotUA string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{}`))
	}))

	if err := client.Get(context.Background(), "/printers/", nil, nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotUA != "fleetclient" {
		t.Fatalf("expected default user agent, got %q", gotUA)
	}

	ctx := WithUserAgent(context.Background(), "fleetctl/1.2")
	if err := client.Get(ctx, "/printers/", nil, nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotUA != "fleetctl/1.2" {
		t.Fatalf("expected carrier user agent, got %q", gotUA)
	}
}
