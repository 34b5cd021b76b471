package authgate

import "testing"

func TestTransitionTableMatchesDocumentedEdges(t *testing.T) {
	allowed := map[transition]bool{
		{StateInitializing, StateAuthenticated}:    true,
		{StateInitializing, StateUnauthenticated}:  true,
		{StateInitializing, StateError}:            true,
		{StateUnauthenticated, StateAuthenticated}: true,
		{StateUnauthenticated, StateError}:         true,
		{StateAuthenticated, StateUnauthenticated}: true,
		{StateAuthenticated, StateImpersonating}:   true,
		{StateAuthenticated, StateError}:           true,
		{StateImpersonating, StateAuthenticated}:   true,
		{StateImpersonating, StateUnauthenticated}: true,
		{StateImpersonating, StateError}:           true,
		{StateError, StateInitializing}:            true,
	}

	states := []AuthState{
		StateInitializing,
		StateUnauthenticated,
		StateAuthenticated,
		StateImpersonating,
		StateError,
	}
	for _, from := range states {
		for _, to := range states {
			want := allowed[transition{from: from, to: to}]
			if got := canTransition(from, to); got != want {
				t.Errorf("canTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestErrorStateHasSingleExit(t *testing.T) {
	states := []AuthState{
		StateInitializing,
		StateUnauthenticated,
		StateAuthenticated,
		StateImpersonating,
		StateError,
	}
	for _, to := range states {
		want := to == StateInitializing
		if got := canTransition(StateError, to); got != want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", StateError, to, got, want)
		}
	}
}

func TestAuthStateStrings(t *testing.T) {
	cases := map[AuthState]string{
		StateInitializing:    "initializing",
		StateUnauthenticated: "unauthenticated",
		StateAuthenticated:   "authenticated",
		StateImpersonating:   "impersonating",
		StateError:           "error",
		AuthState(99):        "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("AuthState(%d).String() = %q, want %q", uint8(state), got, want)
		}
	}
}
