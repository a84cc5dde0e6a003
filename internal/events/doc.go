// Package events provides the session event model and an asynchronous
// dispatcher for the fleet client.
//
// The transport layer never touches navigation or session policy directly:
// a 401 becomes a session_invalidated event here, and the client reacts with
// its own logout transition. Sinks receive events off the hot path through a
// buffered dispatcher that can drop under pressure and drains on Close.
package events
