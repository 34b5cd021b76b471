// Package nav decouples the auth machinery from whatever router the host
// application runs.
//
// The state machine and route guard express navigation as intents; the host
// registers a [RouterFunc] that executes them. Registration is
// last-writer-wins because hosts swap routers during startup and teardown,
// and intents raised before any router exists are held in a single pending
// slot. Only the most recent pre-registration intent survives; registering a
// router replays it exactly once.
//
// When a dispatch fails the gateway falls back to the hard-redirect hook, a
// process-level navigation that bypasses the router entirely. Sign-out and
// auth-reset recovery paths rely on that fallback, so hosts should always
// wire one.
//
// # What this package must NOT do
//
//   - Decide where to navigate. Policy lives in the guard and the state
//     machine; the gateway only delivers.
//   - Queue more than one intent. A backlog of stale redirects replaying
//     against a fresh router is worse than dropping all but the newest.
package nav
