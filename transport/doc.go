// Package transport is the single chokepoint for calls to the fleet
// management backend.
//
// Every outbound request reads the token slot and attaches the bearer header
// when a token is present. Every 401 response, from any endpoint, clears the
// slot and fires the registered invalidation hook synchronously before the
// error returns to the caller. All other failures are normalized into one
// human-readable message: a structured "message" field wins over a structured
// "detail" field, then the transport error text, then "unknown error".
//
// A network failure that never reached the server surfaces as the transport
// error and leaves the token slot untouched; only an explicit 401 clears it.
package transport
