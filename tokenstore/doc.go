// Package tokenstore holds the single durable slot for the current bearer
// token.
//
// The slot stores no expiry or refresh metadata: validity is determined only
// by the backend's acceptance or rejection of the token on use. Absence of a
// token is a state, never an error.
//
// Three implementations cover the deployment shapes of the fleet client:
// [Memory] for tests and ephemeral agents, [File] for a per-install slot that
// survives process restarts, and [Redis] for shared kiosk and headless
// fleet-agent installs where the credential outlives any one process.
package tokenstore
