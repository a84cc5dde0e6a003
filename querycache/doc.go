// Package querycache is a keyed request cache with deduplication,
// stale-while-revalidate semantics, and coordinated invalidation.
//
// Per unique key, at most one fetch is in flight at any time: concurrent
// callers join the existing call and receive the same resolved value. Each
// fetch carries a monotonic per-key sequence number; a response that
// completes after a newer one has already been applied is discarded, so a
// slow early request can never overwrite fresher data.
//
// Invalidation marks a key (or a whole key-prefix family) stale and nudges
// active subscribers to refetch; previously cached data stays visible until
// the replacement lands. Purge drops every entry and bumps an epoch so the
// eventual results of still-running fetches are ignored. Purge is the logout
// path: nothing cached for one identity leaks into the next.
package querycache
