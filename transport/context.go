package transport

import "context"

type requestIDContextKey struct{}
type userAgentContextKey struct{}
type credentialExchangeContextKey struct{}

// WithRequestID attaches a correlation ID to ctx. It is sent as the
// X-Request-ID header and echoed on [APIError]; when absent, the client
// generates one per request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the correlation ID attached by
// [WithRequestID], or the empty string.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// WithUserAgent overrides the User-Agent header for requests issued under
// ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithCredentialExchange marks requests whose 401 responses judge the
// credentials submitted in the body rather than the stored bearer token, such
// as the login call. The 401 interceptor leaves the token slot and the
// session alone for them.
func WithCredentialExchange(ctx context.Context) context.Context {
	return context.WithValue(ctx, credentialExchangeContextKey{}, true)
}

func isCredentialExchange(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(credentialExchangeContextKey{}).(bool)
	return v
}

func userAgentFromContext(ctx context.Context, fallback string) string {
	if ctx == nil {
		return fallback
	}
	if ua, _ := ctx.Value(userAgentContextKey{}).(string); ua != "" {
		return ua
	}
	return fallback
}
