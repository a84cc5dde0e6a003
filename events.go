package fleetclient

import (
	"io"

	"github.com/printfleet/fleetclient/internal/events"
)

// Session event types emitted through the configured sink.
const (
	EventLogin              = "login"
	EventLoginFailed        = "login_failed"
	EventLogout             = "logout"
	EventSessionInvalidated = "session_invalidated"
	EventBootAuthenticated  = "boot_authenticated"
	EventBootAnonymous      = "boot_anonymous"
	EventBootRejected       = "boot_rejected"
)

// SessionEvent is one lifecycle event: a login, a logout, a boot outcome, or
// a forced invalidation.
type SessionEvent = events.Event

// EventSink receives session events from the async dispatcher.
type EventSink = events.Sink

// NoOpSink drops session events.
type NoOpSink = events.NoOpSink

// ChannelSink buffers session events in a channel for consumption by the
// application.
type ChannelSink = events.ChannelSink

// JSONWriterSink writes one JSON object per event line.
type JSONWriterSink = events.JSONWriterSink

func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}
