// Package guard decides whether a route may render given the gate's current
// auth state.
//
// The decision procedure is fixed: a bootstrapping gate renders a loading
// placeholder, the sign-in route always renders, an unauthenticated state
// schedules one debounced redirect to sign-in carrying the requested path, the
// error state renders a recovery view, and the authenticated states render
// unless the route demands a role the active profile lacks.
//
// [Guard.Check] computes the decision purely; [Guard.Evaluate] applies its
// side effects through the navigation gateway. [Guard.Middleware] maps the
// same procedure onto plain HTTP for server-rendered embeddings.
//
// # Architecture boundaries
//
// This package translates gate state into render/redirect decisions. It does
// NOT mutate auth state — every state change flows through gate operations.
//
// # What this package must NOT do
//
//   - Call gate operations (SignIn, SignOut, ResetAuth) on its own.
//   - Redirect away from the sign-in route, whatever the state.
//   - Issue more than one redirect per debounce window for the same
//     unauthenticated condition.
package guard
