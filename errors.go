package fleetclient

import (
	"errors"

	"github.com/printfleet/fleetclient/transport"
)

var (
	// ErrClientNotReady is returned when a Client method is called on a nil
	// or unbuilt client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrInvalidCredentials is returned by Login when the backend rejects
	// the username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAuthenticated is returned by operations that require a signed-in
	// session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoRefreshToken is returned by RefreshSession when the session holds
	// no refresh token from a previous login.
	ErrNoRefreshToken = errors.New("no refresh token held by this session")
)

// ErrUnauthenticated reports a backend 401. It is defined by the transport
// package and re-exported here so most callers never import transport.
var ErrUnauthenticated = transport.ErrUnauthenticated
