// Package fleetclient is the Go client SDK for the printer fleet management
// backend: it owns the client-side session lifecycle, the authenticated HTTP
// transport, and a request-deduplicating query cache, with typed printer,
// alert, and profile services layered on top.
//
// The package is designed for concurrent callers: Client methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// fleetclient is the public surface. It exposes [Client], [Builder], [Config],
// session snapshots, and value types. Token persistence lives in the
// tokenstore package, the HTTP chokepoint in transport, request caching in
// querycache; event dispatch internals live under internal/ and are never
// exported directly.
//
// # What this package must NOT do
//
//   - Mutate the token slot or session state outside the login/logout
//     transitions and the transport invalidation hook. Those two writers are
//     what keep the 401/boot/logout races tractable.
//   - Retry or re-issue failed requests on its own; callers own retry policy.
//   - Render, navigate, or otherwise assume a UI. Session invalidation is
//     surfaced as an event, never as a side effect on the embedder.
//
// # Session contract
//
// Exactly one session exists per Client. IsAuthenticated implies both a user
// and a token are present; IsLoading is true only between Boot and the first
// resolution of the stored token. Any 401 from any endpoint terminates the
// session through the same idempotent logout transition used everywhere else.
package fleetclient
