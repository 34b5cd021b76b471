package session

// EventKind classifies a session transition observed by the store.
type EventKind uint8

const (
	// EventInitial is delivered once per subscription with the session that
	// was current at subscribe time, which may be nil.
	EventInitial EventKind = iota

	// EventSignedIn marks a fresh credential bundle after an interactive
	// sign-in or a restore from the mirror.
	EventSignedIn

	// EventTokenRefreshed marks a silent token rotation for the same user.
	EventTokenRefreshed

	// EventSignedOut marks the session being cleared, locally or remotely.
	EventSignedOut

	// EventRefreshFailed marks a rotation attempt that exhausted its retries.
	// The previous session is already gone when this fires.
	EventRefreshFailed
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventInitial:
		return "initial"
	case EventSignedIn:
		return "signed_in"
	case EventTokenRefreshed:
		return "token_refreshed"
	case EventSignedOut:
		return "signed_out"
	case EventRefreshFailed:
		return "refresh_failed"
	default:
		return "unknown"
	}
}

// Event is what subscribers receive. Session is a private clone; nil for
// EventSignedOut and EventRefreshFailed, and for EventInitial when nothing
// was stored yet.
type Event struct {
	Kind    EventKind
	Session *Session
}
