package authgate

// transition is one edge in the auth status machine.
type transition struct {
	from AuthState
	to   AuthState
}

// legalTransitions is the complete edge set of the machine. Every state
// change the gate performs is checked against this table first; anything
// absent is rejected with ErrStateConflict.
//
// StateError is reachable from every state because an unexpected profile or
// refresh failure can happen at any point. Its only exit is the reset edge
// back to StateInitializing.
var legalTransitions = map[transition]struct{}{
	{StateInitializing, StateUnauthenticated}: {},
	{StateInitializing, StateAuthenticated}:   {},
	{StateInitializing, StateError}:           {},

	{StateUnauthenticated, StateAuthenticated}: {},
	{StateUnauthenticated, StateError}:         {},

	{StateAuthenticated, StateUnauthenticated}: {},
	{StateAuthenticated, StateImpersonating}:   {},
	{StateAuthenticated, StateError}:           {},

	{StateImpersonating, StateAuthenticated}:   {},
	{StateImpersonating, StateUnauthenticated}: {},
	{StateImpersonating, StateError}:           {},

	{StateError, StateInitializing}: {},
}

func canTransition(from, to AuthState) bool {
	_, ok := legalTransitions[transition{from: from, to: to}]
	return ok
}
