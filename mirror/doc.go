// Package mirror persists the current session outside process memory so a
// restart can resume an authenticated state without a provider round trip.
//
// A mirror is a cache, never the source of truth. The identity provider
// remains authoritative; a stale or corrupt mirror entry is discarded and the
// provider is asked again. Every backend stores a single versioned JSON
// document holding at most one session.
//
// Three backends ship with the package:
//
//   - [FileStore] writes the document under the user's home directory with
//     owner-only permissions, replacing it atomically via a temp file rename.
//   - [RedisStore] keeps the document under one key with a TTL, for clients
//     that share a Redis deployment with the rest of the stack.
//   - [MemoryStore] holds the document in process memory, for tests and
//     simulations.
//
// # Architecture boundaries
//
// This package depends only on the session package. It must not import the
// root package, the provider, or anything that decides authentication state.
//
// # What this package must NOT do
//
//   - Validate or refresh tokens. A mirrored session is returned as stored;
//     expiry checks belong to the caller.
//   - Treat a load miss as an error. An empty mirror is the normal state
//     before first sign-in.
package mirror
