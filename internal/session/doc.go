// Package session resolves request credentials into an identity and its
// authorization claims.
//
// The Resolver is the single asynchronous boundary of an authorization
// check: it validates a bearer token, derives authz.Claims from its
// claims, and returns a Session. Failures are values, never panics: an
// absent credential yields ErrNoSession, an expired token
// ErrSessionExpired, and anything unparseable ErrSessionMalformed.
//
// Concurrent resolutions of the same credential are collapsed into one
// validation round-trip, and a short-TTL cache (in-memory or Redis)
// bounds how stale a session's claims may be. Claims derivation from a
// token is idempotent and side-effect-free, so re-resolution is always
// safe.
//
// The Watcher serializes out-of-band session changes (token refresh,
// sign-out elsewhere) for a single consumer: subscribers see the latest
// state only, stale in-flight resolutions are discarded, and a closed
// watcher never invokes a callback again.
package session
