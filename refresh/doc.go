// Package refresh rotates access tokens before they expire.
//
// The [Scheduler] watches the session store and arms a timer at expiry minus
// a configurable margin. When it fires, the refresh token is exchanged for a
// new session through the provider, retrying transient failures with
// exponential backoff. A rejected refresh token is final: the session is
// cleared and the store broadcasts a refresh-failure event so the state
// machine can drop to unauthenticated.
//
// Sessions written back after a successful rotation re-enter the store as
// token-refreshed events, which re-arms the scheduler for the next window.
// The loop continues until sign-out, rejection, or [Scheduler.Close].
//
// # Architecture boundaries
//
// The scheduler reads and writes the session store and calls the provider.
// It must not import the root package, decide authentication state, or
// navigate; it only keeps the current session fresh.
package refresh
