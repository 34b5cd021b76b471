package authgate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/casedock/authgate/internal/audit"
	"github.com/casedock/authgate/mirror"
	"github.com/casedock/authgate/nav"
	"github.com/casedock/authgate/provider"
	"github.com/casedock/authgate/refresh"
	"github.com/casedock/authgate/session"
)

// Gate owns the auth status machine for one client shell. It is the only
// writer of [AuthState]: every operation validates its transition against
// the machine's edge table, so a Gate can never be observed in an undefined
// condition.
//
// Operations are serialized end to end. State-change listeners run
// synchronously after each completed transition and before the operation
// returns; they may read gate accessors but must not invoke gate operations,
// which would self-deadlock.
type Gate struct {
	config Config

	provider   IdentityProvider
	profiles   ProfileStore
	mirror     mirror.Store
	mirrorKind string

	store     *session.Store
	nav       *nav.Gateway
	refresher *refresh.Scheduler
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	log       zerolog.Logger

	// opMu serializes operations, transitions included.
	opMu sync.Mutex

	// mu guards the condition fields for concurrent readers.
	mu            sync.RWMutex
	state         AuthState
	profile       *Profile
	impersonation *ImpersonationContext
	lastErr       error

	subMu     sync.Mutex
	subs      []stateSubscription
	nextSubID uint64

	started bool
	closed  bool

	unsubscribeStore session.Unsubscribe
}

type stateSubscription struct {
	id uint64
	fn func(StateChange)
}

// Start bootstraps the gate: it begins watching session events, arms the
// refresh scheduler, and resolves the initial state. A live session with a
// resolvable profile lands in StateAuthenticated, an empty provider in
// StateUnauthenticated, and a provider or profile failure in StateError.
//
// Start may be called once per gate.
func (g *Gate) Start(ctx context.Context) error {
	if g == nil {
		return ErrNotStarted
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()

	if g.closed {
		return ErrGateClosed
	}
	if g.started {
		return fmt.Errorf("%w: gate already started", ErrStateConflict)
	}
	g.started = true

	g.unsubscribeStore = g.store.Subscribe(g.onSessionEvent)
	if g.refresher != nil {
		g.refresher.Start()
	}

	return g.bootstrap(ctx)
}

// bootstrap resolves the initial session and drives the transition out of
// StateInitializing. Callers hold opMu.
func (g *Gate) bootstrap(ctx context.Context) error {
	sess, restored, err := g.resolveSession(ctx)
	if err != nil {
		if terr := g.transitionTo(StateError, nil, nil, err); terr != nil {
			return terr
		}
		g.emitAudit(ctx, auditEventStateError, false, "", "", err, nil)
		return err
	}

	if sess == nil {
		return g.transitionTo(StateUnauthenticated, nil, nil, nil)
	}

	g.setSession(sess, session.EventSignedIn)
	g.mirrorSave(ctx, sess)

	prof, err := g.fetchProfile(ctx, sess.UserID)
	if err != nil {
		if terr := g.transitionTo(StateError, nil, nil, err); terr != nil {
			return terr
		}
		g.emitAudit(ctx, auditEventStateError, false, sess.UserID, "", err, nil)
		return err
	}

	if err := g.transitionTo(StateAuthenticated, prof, nil, nil); err != nil {
		return err
	}
	if restored {
		g.metrics.Inc(MetricSessionRestored)
		g.emitAudit(ctx, auditEventSessionRestored, true, prof.ID, "", nil, nil)
	}
	return nil
}

// resolveSession asks the provider for the live session, falling back to the
// mirrored refresh token. The mirror is a hint: mirror failures degrade to
// "no session" rather than erroring the bootstrap. The returned bool reports
// whether the session came back through a refresh grant.
func (g *Gate) resolveSession(ctx context.Context) (*session.Session, bool, error) {
	now := time.Now()

	sess, err := g.provider.CurrentSession(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrSessionFailure, err)
	}
	if sess != nil && !sess.IsExpired(now) {
		return sess, false, nil
	}

	if sess != nil && sess.RefreshToken != "" {
		next, err := g.provider.RefreshSession(ctx, sess.RefreshToken)
		if err == nil {
			return next, true, nil
		}
		if !errors.Is(err, provider.ErrRefreshRejected) {
			return nil, false, fmt.Errorf("%w: %w", ErrSessionFailure, err)
		}
	}

	if g.mirror == nil {
		return nil, false, nil
	}

	mirrored, err := g.mirror.Load(ctx)
	if err != nil {
		if errors.Is(err, mirror.ErrMirrorCorrupt) {
			g.log.Warn().Err(err).Msg("clearing corrupt session mirror")
			_ = g.mirrorClear(ctx)
			return nil, false, nil
		}
		g.log.Warn().Err(err).Msg("session mirror unavailable")
		return nil, false, nil
	}
	if mirrored == nil || mirrored.RefreshToken == "" {
		return nil, false, nil
	}

	next, err := g.provider.RefreshSession(ctx, mirrored.RefreshToken)
	if err != nil {
		if errors.Is(err, provider.ErrRefreshRejected) {
			// the mirrored token is stale; drop it
			_ = g.mirrorClear(ctx)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %w", ErrSessionFailure, err)
	}
	return next, true, nil
}

// transitionTo validates the edge, applies the new condition, and notifies
// state-change listeners. Callers hold opMu.
func (g *Gate) transitionTo(to AuthState, prof *Profile, imp *ImpersonationContext, cause error) error {
	from := g.state
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrStateConflict, from, to)
	}
	if (to == StateImpersonating) != (imp != nil) {
		return fmt.Errorf("%w: impersonation context must exist exactly in %s", ErrStateConflict, StateImpersonating)
	}
	if (prof != nil) != (to == StateAuthenticated || to == StateImpersonating) {
		return fmt.Errorf("%w: profile must exist exactly in authenticated states", ErrStateConflict)
	}

	g.mu.Lock()
	g.state = to
	g.profile = prof
	g.impersonation = imp
	if to == StateError {
		g.lastErr = cause
	} else {
		g.lastErr = nil
	}
	g.mu.Unlock()

	g.log.Debug().Stringer("from", from).Stringer("to", to).Msg("auth state changed")
	if to == StateError {
		g.metrics.Inc(MetricStateErrorEntered)
	}

	active := prof
	if imp != nil {
		active = imp.ImpersonatedProfile
	}
	g.notify(StateChange{
		From:          from,
		To:            to,
		Profile:       active.Clone(),
		Impersonation: imp.Clone(),
		At:            time.Now().UTC(),
	})
	return nil
}

func (g *Gate) notify(change StateChange) {
	g.subMu.Lock()
	targets := make([]stateSubscription, len(g.subs))
	copy(targets, g.subs)
	g.subMu.Unlock()

	for _, sub := range targets {
		sub.fn(change)
	}
}

// onSessionEvent reacts to store events raised by the background refresh
// scheduler. Sign-in and sign-out mutations are performed by gate operations
// and handled inline there, so their kinds are ignored here.
func (g *Gate) onSessionEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventTokenRefreshed:
		ctx := context.Background()
		g.mirrorSave(ctx, ev.Session)
		userID := ""
		if ev.Session != nil {
			userID = ev.Session.UserID
		}
		g.emitAudit(ctx, auditEventTokenRefreshed, true, userID, "", nil, nil)
	case session.EventRefreshFailed:
		// the scheduler fires inside the store's notification lock; taking
		// opMu here would invert the gate's lock order, so hand off
		go g.handleRefreshFailure()
	}
}

// handleRefreshFailure moves the gate into StateError after the scheduler
// exhausts its refresh attempts.
func (g *Gate) handleRefreshFailure() {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	if g.closed {
		return
	}
	if g.state != StateAuthenticated && g.state != StateImpersonating {
		return
	}

	userID := ""
	if g.profile != nil {
		userID = g.profile.ID
	}

	err := fmt.Errorf("%w: token refresh exhausted", ErrSessionFailure)
	if terr := g.transitionTo(StateError, nil, nil, err); terr != nil {
		g.log.Error().Err(terr).Msg("refresh failure transition rejected")
		return
	}
	// the scheduler already counted the refresh failure
	g.emitAudit(context.Background(), auditEventRefreshFailed, false, userID, "", err, nil)
}

// fetchProfile resolves and validates the identity record for a user.
func (g *Gate) fetchProfile(ctx context.Context, userID string) (*Profile, error) {
	prof, err := g.profiles.ProfileByID(ctx, userID)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrProfileFetch, err)
		g.metrics.Inc(MetricProfileFetchFailure)
		g.emitAudit(ctx, auditEventProfileFetch, false, userID, "", err, nil)
		return nil, err
	}
	if !prof.Role.Valid() {
		err = fmt.Errorf("%w: unknown role %q", ErrProfileFetch, prof.Role)
		g.metrics.Inc(MetricProfileFetchFailure)
		g.emitAudit(ctx, auditEventProfileFetch, false, userID, "", err, nil)
		return nil, err
	}

	g.metrics.Inc(MetricProfileFetchSuccess)
	return prof, nil
}

// setSession is the gate's single entry point into the session store.
func (g *Gate) setSession(sess *session.Session, kind session.EventKind) {
	if sess == nil {
		g.store.Clear(kind)
		return
	}
	g.store.Set(sess, kind)
}

func (g *Gate) mirrorSave(ctx context.Context, sess *session.Session) {
	if g.mirror == nil || sess == nil {
		return
	}
	if err := g.mirror.Save(ctx, sess); err != nil {
		g.log.Warn().Err(err).Msg("session mirror save failed")
	}
}

func (g *Gate) mirrorClear(ctx context.Context) error {
	if g.mirror == nil {
		return nil
	}
	if err := g.mirror.Clear(ctx); err != nil {
		g.log.Warn().Err(err).Msg("session mirror clear failed")
		return err
	}
	return nil
}

// OnStateChange registers a listener for completed transitions. Listeners
// run synchronously in registration order; they may read gate accessors but
// must not invoke gate operations. The returned handle is idempotent.
func (g *Gate) OnStateChange(fn func(StateChange)) Unsubscribe {
	if g == nil || fn == nil {
		return func() {}
	}

	g.subMu.Lock()
	g.nextSubID++
	id := g.nextSubID
	g.subs = append(g.subs, stateSubscription{id: id, fn: fn})
	g.subMu.Unlock()

	return func() {
		g.subMu.Lock()
		defer g.subMu.Unlock()
		for i, sub := range g.subs {
			if sub.id == id {
				g.subs = append(g.subs[:i], g.subs[i+1:]...)
				return
			}
		}
	}
}

// State returns the current auth condition.
func (g *Gate) State() AuthState {
	if g == nil {
		return StateInitializing
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Profile returns the signed-in user's own profile, or nil outside the
// authenticated states. During impersonation this is the original profile.
func (g *Gate) Profile() *Profile {
	if g == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.profile.Clone()
}

// ActiveProfile returns the profile the shell should render as: the
// impersonated profile while impersonating, otherwise the user's own.
func (g *Gate) ActiveProfile() *Profile {
	if g == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.impersonation != nil {
		return g.impersonation.ImpersonatedProfile.Clone()
	}
	return g.profile.Clone()
}

// Impersonation returns the active impersonation context, or nil.
func (g *Gate) Impersonation() *ImpersonationContext {
	if g == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.impersonation.Clone()
}

// LastError returns the failure that drove the gate into StateError, or nil
// in any other state. Recovery views render it next to the reset action.
func (g *Gate) LastError() error {
	if g == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastErr
}

// CurrentSession returns a clone of the stored session, or nil.
func (g *Gate) CurrentSession() *Session {
	if g == nil {
		return nil
	}
	return g.store.Current()
}

// Navigator exposes the navigation gateway so the shell can register its
// router and guards can issue redirects.
func (g *Gate) Navigator() *nav.Gateway {
	if g == nil {
		return nil
	}
	return g.nav
}

// SignInRoute returns the configured sign-in path.
func (g *Gate) SignInRoute() string {
	if g == nil {
		return ""
	}
	return g.config.Routes.SignInPath
}

// DefaultRoute returns the configured landing path for role denials.
func (g *Gate) DefaultRoute() string {
	if g == nil {
		return ""
	}
	return g.config.Routes.DefaultPath
}

// RedirectDebounce returns the guard's redirect debounce window.
func (g *Gate) RedirectDebounce() time.Duration {
	if g == nil {
		return 0
	}
	return g.config.Redirect.DebounceWindow
}

// Metrics exposes the gate's metric registry for collaborating packages.
func (g *Gate) Metrics() *Metrics {
	if g == nil {
		return nil
	}
	return g.metrics
}

// MetricsSnapshot returns a point-in-time copy of all metrics.
func (g *Gate) MetricsSnapshot() MetricsSnapshot {
	if g == nil || g.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return g.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (g *Gate) AuditDropped() uint64 {
	if g == nil {
		return 0
	}
	return g.audit.Dropped()
}

// Close tears down the refresh scheduler, the store subscription, and the
// audit dispatcher. Safe to call more than once.
func (g *Gate) Close() {
	if g == nil {
		return
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()

	if g.closed {
		return
	}
	g.closed = true

	if g.refresher != nil {
		g.refresher.Close()
	}
	if g.unsubscribeStore != nil {
		g.unsubscribeStore()
	}
	g.audit.Close()
	g.log.Debug().Msg("gate closed")
}
