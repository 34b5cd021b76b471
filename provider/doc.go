// Package provider talks to the identity provider that owns sessions.
//
// Two implementations ship with the package:
//
//   - [Client] is an HTTP client for a GoTrue-compatible auth endpoint, the
//     API surface the help-desk backend exposes. It covers the password
//     grant, refresh-token grant, and sign-out revocation.
//   - [Static] is an in-memory provider for tests, examples, and the
//     simulator. It mints real HS256-signed access tokens so token peeking
//     behaves exactly as it does against the live endpoint.
//
// Both return [session.Session] values and report failures through the
// package sentinels, so the state machine treats them interchangeably.
//
// # Architecture boundaries
//
// This package depends on session and token only. It must not import the
// root package, decide authentication state, or schedule refreshes; it
// executes single requests and reports what happened.
package provider
