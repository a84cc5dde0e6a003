package fleetclient

import (
	"context"

	"github.com/printfleet/fleetclient/transport"
)

// WithRequestID pins the X-Request-ID header for requests made with ctx.
// Without it each request gets a generated ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return transport.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the pinned request ID, or the empty string.
func RequestIDFromContext(ctx context.Context) string {
	return transport.RequestIDFromContext(ctx)
}

// WithUserAgent overrides the User-Agent header for requests made with ctx.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return transport.WithUserAgent(ctx, ua)
}
