// Package authgate is the client-side auth and session state core for a
// help-desk shell: one observable state machine over the provider session,
// the user's profile, role-gated routing, and consultant impersonation.
//
// The package is designed for event-driven client shells: a [Gate] is built
// once through [Builder.Build], started at bootstrap, and closed at
// shutdown. Gate methods are safe to call from multiple goroutines; state
// transitions are serialized and listeners observe every one of them.
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Gate], [Builder], [Config],
// and value types (StateChange, StatusReport, MetricsSnapshot, etc.).
// Collaborator packages hold the mechanics: session (observable store),
// provider (identity endpoints), profile (identity records), mirror (local
// session copy), nav (routing gateway), refresh (token refresh scheduler),
// guard (route decisions). Audit dispatch and metrics live under internal/
// and are never exported directly.
//
// # What this package must NOT do
//
//   - Issue or verify tokens. The provider owns credential cryptography;
//     the gate only holds what it is given.
//   - Write state outside a validated transition. Every path into a new
//     AuthState goes through the edge table, failures included.
//   - Block the caller on navigation. Redirects are instructions handed to
//     the nav gateway, never synchronous waits.
package authgate
