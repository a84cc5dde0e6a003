package tokenstore

import "context"

// Store is the process-wide slot holding the current bearer token.
//
// Get returns the empty string when no token is stored. Clear on an empty
// slot is a no-op, never an error; the logout transition depends on that.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
