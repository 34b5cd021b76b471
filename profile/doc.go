// Package profile fetches help-desk user profiles and caches them.
//
// A profile is the directory record behind a user ID: display name, email,
// role, and company. The state machine needs one for every authenticated
// user and for every impersonation target, so fetches sit on the sign-in
// hot path.
//
// [REST] talks to a PostgREST-compatible endpoint under row-level security,
// authenticating with the caller-supplied bearer token. [Cached] wraps any
// [Store] with an expirable LRU so repeated lookups of the same target skip
// the network. [StaticStore] serves a fixed map for tests and simulations.
//
// # Architecture boundaries
//
// This package owns the Profile and Role types; the root package aliases
// them. It must not import the root package or the session store.
package profile
