package authgate

import "errors"

var (
	// ErrProfileFetch reports that the identity record behind a session could
	// not be retrieved. Recoverable by retry or ResetAuth.
	ErrProfileFetch = errors.New("profile fetch failed")
	// ErrPermissionDenied reports a role check failure. The gate state is
	// unchanged when this is returned.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStateConflict reports a transition that the state machine does not
	// allow from the current state.
	ErrStateConflict = errors.New("auth state conflict")
	// ErrSessionFailure reports a provider-level failure. Unexpected session
	// failures drive the gate into StateError.
	ErrSessionFailure = errors.New("session failure")
	// ErrNoSession reports an operation that needs a live session while the
	// store holds none.
	ErrNoSession = errors.New("no active session")
	// ErrGateClosed reports use of a gate after Close.
	ErrGateClosed = errors.New("gate closed")
	// ErrNotStarted reports use of a gate before Start.
	ErrNotStarted = errors.New("gate not started")
	// ErrImpersonationDisabled reports an impersonation call while the
	// feature is switched off in config.
	ErrImpersonationDisabled = errors.New("impersonation disabled")
)
