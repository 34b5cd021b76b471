package authgate

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/casedock/authgate/internal/audit"
	internalmetrics "github.com/casedock/authgate/internal/metrics"
	"github.com/casedock/authgate/profile"
	"github.com/casedock/authgate/session"
)

// AuthState is the closed set of session conditions a help-desk client can be
// in. Exactly one value is active at any time; the Gate owns the value and
// transitions are the only mutation path.
type AuthState uint8

const (
	// StateInitializing is the bootstrap condition before the first session
	// check completes. Guards render a loading placeholder and apply no
	// redirect logic.
	StateInitializing AuthState = iota
	// StateUnauthenticated means no live session exists. Guards schedule a
	// debounced redirect to the sign-in route.
	StateUnauthenticated
	// StateAuthenticated means a session and its profile resolved.
	StateAuthenticated
	// StateImpersonating means a consultant is acting as another user. The
	// gate holds a non-nil ImpersonationContext exactly while in this state.
	StateImpersonating
	// StateError means a profile fetch or session refresh failed
	// unexpectedly. The only exit is ResetAuth.
	StateError
)

// String returns the snake_case name used in logs and audit records.
func (s AuthState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateImpersonating:
		return "impersonating"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Profile is the identity record resolved for the signed-in user.
type Profile = profile.Profile

// Role is the closed role set carried by a [Profile].
type Role = profile.Role

const (
	// RoleConsultant marks help-desk staff. Consultants may impersonate.
	RoleConsultant = profile.RoleConsultant
	// RoleUser marks end customers.
	RoleUser = profile.RoleUser
)

// Session is the provider-issued credential bundle held by the session store.
type Session = session.Session

// ImpersonationContext records an active impersonation. It is non-nil exactly
// while the gate is in [StateImpersonating], and the original profile it
// carries must be restorable exactly when impersonation ends.
type ImpersonationContext struct {
	// ID correlates banner rendering and audit records for one
	// impersonation episode.
	ID string

	OriginalProfile     *Profile
	ImpersonatedProfile *Profile

	StartedAt time.Time
}

// Clone returns a deep copy so callers cannot mutate gate-held state.
func (ic *ImpersonationContext) Clone() *ImpersonationContext {
	if ic == nil {
		return nil
	}
	out := *ic
	out.OriginalProfile = ic.OriginalProfile.Clone()
	out.ImpersonatedProfile = ic.ImpersonatedProfile.Clone()
	return &out
}

// StateChange is the payload delivered to [Gate.OnStateChange] listeners
// after every completed transition. Profile and Impersonation reflect the
// new state, so shells can show or remove the impersonation banner
// synchronously.
type StateChange struct {
	From AuthState
	To   AuthState

	// Profile is the active profile after the transition: the impersonated
	// profile while impersonating, otherwise the signed-in user's own. Nil
	// outside StateAuthenticated and StateImpersonating.
	Profile *Profile

	// Impersonation is non-nil only when To == StateImpersonating.
	Impersonation *ImpersonationContext

	At time.Time
}

// Unsubscribe removes a state-change listener. Calling it more than once is
// a no-op.
type Unsubscribe func()

// IdentityProvider is the backend session authority. Implemented by
// [github.com/casedock/authgate/provider.Client] against GoTrue-style REST
// endpoints and by [github.com/casedock/authgate/provider.Static] for tests
// and simulations.
type IdentityProvider interface {
	// CurrentSession returns the provider's view of the live session, or
	// (nil, nil) when signed out. It must not block on network calls.
	CurrentSession(ctx context.Context) (*Session, error)

	// SignInWithPassword performs the password grant.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// RefreshSession exchanges a refresh token for a new session.
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)

	// SignOut revokes the session behind the access token.
	SignOut(ctx context.Context, accessToken string) error
}

// ProfileStore resolves identity records by user ID.
type ProfileStore = profile.Store

// AuditEvent is a structured audit record emitted by the gate.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the gate's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricSignInSuccess        = internalmetrics.MetricSignInSuccess
	MetricSignInFailure        = internalmetrics.MetricSignInFailure
	MetricSignOutSuccess       = internalmetrics.MetricSignOutSuccess
	MetricSignOutFallback      = internalmetrics.MetricSignOutFallback
	MetricSignOutFailure       = internalmetrics.MetricSignOutFailure
	MetricSessionRestored      = internalmetrics.MetricSessionRestored
	MetricRefreshSuccess       = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure       = internalmetrics.MetricRefreshFailure
	MetricProfileFetchSuccess  = internalmetrics.MetricProfileFetchSuccess
	MetricProfileFetchFailure  = internalmetrics.MetricProfileFetchFailure
	MetricImpersonationStarted = internalmetrics.MetricImpersonationStarted
	MetricImpersonationEnded   = internalmetrics.MetricImpersonationEnded
	MetricImpersonationDenied  = internalmetrics.MetricImpersonationDenied
	MetricImpersonationFailed  = internalmetrics.MetricImpersonationFailed
	MetricResetSuccess         = internalmetrics.MetricResetSuccess
	MetricResetFailure         = internalmetrics.MetricResetFailure
	MetricStateErrorEntered    = internalmetrics.MetricStateErrorEntered

	MetricGuardRedirectScheduled = internalmetrics.MetricGuardRedirectScheduled
	MetricGuardRedirectFired     = internalmetrics.MetricGuardRedirectFired
	MetricGuardRedirectCancelled = internalmetrics.MetricGuardRedirectCancelled
	MetricGuardRoleDenied        = internalmetrics.MetricGuardRoleDenied
	MetricGuardEvaluateLatency   = internalmetrics.MetricGuardEvaluateLatency

	MetricNavDispatched    = internalmetrics.MetricNavDispatched
	MetricNavQueued        = internalmetrics.MetricNavQueued
	MetricNavReplayed      = internalmetrics.MetricNavReplayed
	MetricNavSuperseded    = internalmetrics.MetricNavSuperseded
	MetricNavRouterFailure = internalmetrics.MetricNavRouterFailure
	MetricNavHardRedirect  = internalmetrics.MetricNavHardRedirect
)

// Metrics holds atomic counters and an optional latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
