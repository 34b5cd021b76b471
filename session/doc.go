// Package session holds the provider-issued credential bundle and the
// observable store that is the single source of truth for it.
//
// # Event flow
//
// Provider-driven changes (sign-in, token refresh, sign-out, refresh failure)
// enter through [Store.Set] and fan out to subscribers as typed [Event]
// values. Listeners are invoked in registration order, and notification
// batches are serialized so every consumer observes events in the order they
// occurred.
//
// # Architecture boundaries
//
// This package owns the [Session] model and its observation surface. It does
// NOT talk to the identity provider, fetch profiles, or decide authentication
// state — those responsibilities belong to the Gate.
//
// # What this package must NOT do
//
//   - Import authgate, provider, or mirror (no upward imports).
//   - Construct sessions from raw credentials (provider boundary owns that).
//   - Block inside listener callbacks on behalf of consumers.
package session
