package fleetclient

import "time"

// SessionState is the client's position in the authentication lifecycle.
type SessionState uint8

const (
	// SessionBooting means the stored token has not been validated yet.
	SessionBooting SessionState = iota
	// SessionAnonymous means no identity is established.
	SessionAnonymous
	// SessionAuthenticating means a login is in flight.
	SessionAuthenticating
	// SessionAuthenticated means a user identity is established.
	SessionAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionBooting:
		return "booting"
	case SessionAnonymous:
		return "anonymous"
	case SessionAuthenticating:
		return "authenticating"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is a point-in-time snapshot of the lifecycle. IsLoading stays true
// until the first boot resolves, regardless of outcome.
type Session struct {
	State     SessionState
	User      *User
	IsLoading bool
	BootedAt  time.Time
}

// IsAuthenticated reports whether the snapshot carries an established
// identity.
func (s Session) IsAuthenticated() bool {
	return s.State == SessionAuthenticated && s.User != nil
}
