package authgate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/casedock/authgate/mirror"
	"github.com/casedock/authgate/profile"
	"github.com/casedock/authgate/provider"
)

const (
	consultantID       = "usr-consultant-01"
	consultantEmail    = "nora@alderhelp.test"
	consultantPassword = "blue-ladder-9"

	customerID       = "usr-customer-07"
	customerEmail    = "theo@brightco.test"
	customerPassword = "green-door-4"
)

type mockAccount struct {
	userID   string
	password string
}

// mockProvider is a scriptable identity provider. Error fields, when set,
// take precedence over the normal behavior of the matching method.
type mockProvider struct {
	mu sync.Mutex

	current  *Session
	accounts map[string]mockAccount
	refresh  map[string]*Session

	currentErr error
	signInErr  error
	refreshErr error
	signOutErr error

	signOuts int
	seq      int
}

func (m *mockProvider) setCurrent(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = sess.Clone()
}

func (m *mockProvider) registerRefresh(refreshToken string, next *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[refreshToken] = next.Clone()
}

func (m *mockProvider) signOutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOuts
}

func (m *mockProvider) CurrentSession(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentErr != nil {
		return nil, m.currentErr
	}
	return m.current.Clone(), nil
}

func (m *mockProvider) SignInWithPassword(_ context.Context, email, password string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	acct, ok := m.accounts[email]
	if !ok || acct.password != password {
		return nil, provider.ErrInvalidCredentials
	}
	m.seq++
	now := time.Now().UTC()
	sess := &Session{
		AccessToken:  fmt.Sprintf("access-%s-%d", acct.userID, m.seq),
		RefreshToken: fmt.Sprintf("refresh-%s-%d", acct.userID, m.seq),
		TokenType:    "bearer",
		UserID:       acct.userID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Hour),
	}
	m.current = sess.Clone()
	return sess, nil
}

func (m *mockProvider) RefreshSession(_ context.Context, refreshToken string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	next, ok := m.refresh[refreshToken]
	if !ok {
		return nil, provider.ErrRefreshRejected
	}
	m.current = next.Clone()
	return next.Clone(), nil
}

func (m *mockProvider) SignOut(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signOuts++
	if m.signOutErr != nil {
		return m.signOutErr
	}
	m.current = nil
	return nil
}

// failingMirror wraps an in-memory mirror and fails selected operations.
type failingMirror struct {
	inner    *mirror.MemoryStore
	loadErr  error
	saveErr  error
	clearErr error
	clears   int
}

func newFailingMirror() *failingMirror {
	return &failingMirror{inner: mirror.NewMemoryStore()}
}

func (m *failingMirror) Load(ctx context.Context) (*Session, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.inner.Load(ctx)
}

func (m *failingMirror) Save(ctx context.Context, sess *Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	return m.inner.Save(ctx, sess)
}

func (m *failingMirror) Clear(ctx context.Context) error {
	m.clears++
	if m.clearErr != nil {
		return m.clearErr
	}
	return m.inner.Clear(ctx)
}

type redirectRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *redirectRecorder) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *redirectRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}

func (r *redirectRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []StateChange
}

func (r *changeRecorder) capture(change StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *changeRecorder) list() []StateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StateChange, len(r.changes))
	copy(out, r.changes)
	return out
}

type gateFixture struct {
	gate      *Gate
	provider  *mockProvider
	profiles  *profile.StaticStore
	mirror    mirror.Store
	sink      *ChannelSink
	redirects *redirectRecorder
}

func newGateFixture(t *testing.T, mutate func(*Config)) *gateFixture {
	t.Helper()
	return newGateFixtureWithMirror(t, mirror.NewMemoryStore(), mutate)
}

func newGateFixtureWithMirror(t *testing.T, mir mirror.Store, mutate func(*Config)) *gateFixture {
	t.Helper()

	prov := &mockProvider{
		accounts: map[string]mockAccount{
			consultantEmail: {userID: consultantID, password: consultantPassword},
			customerEmail:   {userID: customerID, password: customerPassword},
		},
		refresh: map[string]*Session{},
	}
	profiles := profile.NewStaticStore(
		&Profile{ID: consultantID, Name: "Nora Voss", Email: consultantEmail, Role: RoleConsultant, CompanyID: "alderhelp"},
		&Profile{ID: customerID, Name: "Theo Brand", Email: customerEmail, Role: RoleUser, CompanyID: "brightco"},
	)
	sink := NewChannelSink(64)
	redirects := &redirectRecorder{}

	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	gate, err := New().
		WithConfig(cfg).
		WithProvider(prov).
		WithProfileStore(profiles).
		WithMirror(mir).
		WithAuditSink(sink).
		WithHardRedirect(redirects.record).
		Build()
	if err != nil {
		t.Fatalf("build gate: %v", err)
	}
	t.Cleanup(gate.Close)

	return &gateFixture{
		gate:      gate,
		provider:  prov,
		profiles:  profiles,
		mirror:    mir,
		sink:      sink,
		redirects: redirects,
	}
}

func startGate(t *testing.T, f *gateFixture) {
	t.Helper()
	if err := f.gate.Start(context.Background()); err != nil {
		t.Fatalf("start gate: %v", err)
	}
}

func signIn(t *testing.T, f *gateFixture, email, password string) {
	t.Helper()
	if err := f.gate.SignIn(context.Background(), email, password); err != nil {
		t.Fatalf("sign in %s: %v", email, err)
	}
}

// awaitAudit reads from the audit sink until an event of the wanted type
// arrives. The dispatcher delivers asynchronously, hence the deadline.
func awaitAudit(t *testing.T, f *gateFixture, eventType string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-f.sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("audit event %q not observed", eventType)
			return AuditEvent{}
		}
	}
}

func counterValue(f *gateFixture, id MetricID) uint64 {
	return f.gate.Metrics().Value(id)
}

func liveSession(userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		TokenType:    "bearer",
		UserID:       userID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Hour),
	}
}

func expiredSession(userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		AccessToken:  "stale-access-" + userID,
		RefreshToken: "stale-refresh-" + userID,
		TokenType:    "bearer",
		UserID:       userID,
		IssuedAt:     now.Add(-2 * time.Hour),
		ExpiresAt:    now.Add(-time.Minute),
	}
}

func TestStartWithoutSessionLandsUnauthenticated(t *testing.T) {
	f := newGateFixture(t, nil)

	startGate(t, f)

	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("expected %s, got %s", StateUnauthenticated, got)
	}
	if f.gate.Profile() != nil {
		t.Fatalf("expected no profile before sign-in")
	}
	if f.gate.CurrentSession() != nil {
		t.Fatalf("expected no session before sign-in")
	}
}

func TestStartWithLiveProviderSessionLandsAuthenticated(t *testing.T) {
	f := newGateFixture(t, nil)
	f.provider.setCurrent(liveSession(consultantID))

	startGate(t, f)

	if got := f.gate.State(); got != StateAuthenticated {
		t.Fatalf("expected %s, got %s", StateAuthenticated, got)
	}
	prof := f.gate.Profile()
	if prof == nil || prof.ID != consultantID {
		t.Fatalf("expected profile %s, got %+v", consultantID, prof)
	}
	if got := counterValue(f, MetricSessionRestored); got != 0 {
		t.Fatalf("a live session is not a restore, counter = %d", got)
	}
}

func TestStartRefreshesExpiredProviderSession(t *testing.T) {
	f := newGateFixture(t, nil)
	stale := expiredSession(consultantID)
	fresh := liveSession(consultantID)
	fresh.AccessToken = "access-after-refresh"
	f.provider.setCurrent(stale)
	f.provider.registerRefresh(stale.RefreshToken, fresh)

	startGate(t, f)

	if got := f.gate.State(); got != StateAuthenticated {
		t.Fatalf("expected %s, got %s", StateAuthenticated, got)
	}
	sess := f.gate.CurrentSession()
	if sess == nil || sess.AccessToken != "access-after-refresh" {
		t.Fatalf("expected refreshed access token, got %+v", sess)
	}
	if got := counterValue(f, MetricSessionRestored); got != 1 {
		t.Fatalf("expected one restored session, got %d", got)
	}
	ev := awaitAudit(t, f, auditEventSessionRestored)
	if !ev.Success || ev.UserID != consultantID {
		t.Fatalf("unexpected restore audit event %+v", ev)
	}
}

func TestStartRestoresSessionFromMirror(t *testing.T) {
	f := newGateFixture(t, nil)
	mirrored := expiredSession(consultantID)
	mirrored.RefreshToken = "refresh-mirrored"
	if err := f.mirror.Save(context.Background(), mirrored); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}
	fresh := liveSession(consultantID)
	fresh.AccessToken = "access-from-mirror-grant"
	f.provider.registerRefresh("refresh-mirrored", fresh)

	startGate(t, f)

	if got := f.gate.State(); got != StateAuthenticated {
		t.Fatalf("expected %s, got %s", StateAuthenticated, got)
	}
	if sess := f.gate.CurrentSession(); sess == nil || sess.AccessToken != "access-from-mirror-grant" {
		t.Fatalf("expected session from mirror grant, got %+v", sess)
	}
	stored, err := f.mirror.Load(context.Background())
	if err != nil {
		t.Fatalf("load mirror: %v", err)
	}
	if stored == nil || stored.AccessToken != "access-from-mirror-grant" {
		t.Fatalf("expected refreshed session written back to the mirror, got %+v", stored)
	}
}

func TestStartClearsRejectedMirrorToken(t *testing.T) {
	f := newGateFixture(t, nil)
	mirrored := expiredSession(consultantID)
	mirrored.RefreshToken = "refresh-revoked"
	if err := f.mirror.Save(context.Background(), mirrored); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}

	startGate(t, f)

	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("expected %s after rejected grant, got %s", StateUnauthenticated, got)
	}
	stored, err := f.mirror.Load(context.Background())
	if err != nil {
		t.Fatalf("load mirror: %v", err)
	}
	if stored != nil {
		t.Fatalf("expected mirror cleared after rejected grant, got %+v", stored)
	}
}

func TestStartSurvivesMirrorOutage(t *testing.T) {
	mir := newFailingMirror()
	mir.loadErr = mirror.ErrMirrorUnavailable
	f := newGateFixtureWithMirror(t, mir, nil)

	startGate(t, f)

	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("a mirror outage must degrade to %s, got %s", StateUnauthenticated, got)
	}
}

func TestStartClearsCorruptMirror(t *testing.T) {
	mir := newFailingMirror()
	mir.loadErr = fmt.Errorf("%w: unreadable payload", mirror.ErrMirrorCorrupt)
	f := newGateFixtureWithMirror(t, mir, nil)

	startGate(t, f)

	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("expected %s, got %s", StateUnauthenticated, got)
	}
	if mir.clears == 0 {
		t.Fatalf("expected the corrupt mirror to be cleared")
	}
}

func TestStartProviderOutageLandsError(t *testing.T) {
	f := newGateFixture(t, nil)
	f.provider.currentErr = provider.ErrProviderUnavailable

	err := f.gate.Start(context.Background())
	if !errors.Is(err, ErrSessionFailure) {
		t.Fatalf("expected ErrSessionFailure, got %v", err)
	}
	if !errors.Is(err, provider.ErrProviderUnavailable) {
		t.Fatalf("expected the provider cause preserved, got %v", err)
	}
	if got := f.gate.State(); got != StateError {
		t.Fatalf("expected %s, got %s", StateError, got)
	}
	if lastErr := f.gate.LastError(); !errors.Is(lastErr, ErrSessionFailure) {
		t.Fatalf("expected LastError to carry the failure, got %v", lastErr)
	}
}

func TestStartProfileFailureLandsError(t *testing.T) {
	f := newGateFixture(t, nil)
	f.provider.setCurrent(liveSession(consultantID))
	f.profiles.Remove(consultantID)

	err := f.gate.Start(context.Background())
	if !errors.Is(err, ErrProfileFetch) {
		t.Fatalf("expected ErrProfileFetch, got %v", err)
	}
	if got := f.gate.State(); got != StateError {
		t.Fatalf("expected %s, got %s", StateError, got)
	}
	// the credentials survive so a reset can retry without a fresh sign-in
	if f.gate.CurrentSession() == nil {
		t.Fatalf("expected the session kept while in %s", StateError)
	}
}

func TestStartTwiceIsRejected(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)

	if err := f.gate.Start(context.Background()); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
}

func TestOperationsBeforeStartAreRejected(t *testing.T) {
	f := newGateFixture(t, nil)
	ctx := context.Background()

	if err := f.gate.SignIn(ctx, consultantEmail, consultantPassword); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted from SignIn, got %v", err)
	}
	if err := f.gate.SignOut(ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted from SignOut, got %v", err)
	}
	if err := f.gate.StartImpersonation(ctx, customerID); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted from StartImpersonation, got %v", err)
	}
	if err := f.gate.ResetAuth(ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted from ResetAuth, got %v", err)
	}
}

func TestStateChangeListenersObserveTransitions(t *testing.T) {
	f := newGateFixture(t, nil)
	rec := &changeRecorder{}
	unsubscribe := f.gate.OnStateChange(rec.capture)

	startGate(t, f)
	signIn(t, f, consultantEmail, consultantPassword)

	changes := rec.list()
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(changes), changes)
	}
	if changes[0].From != StateInitializing || changes[0].To != StateUnauthenticated {
		t.Fatalf("unexpected first change %+v", changes[0])
	}
	if changes[1].From != StateUnauthenticated || changes[1].To != StateAuthenticated {
		t.Fatalf("unexpected second change %+v", changes[1])
	}
	if changes[1].Profile == nil || changes[1].Profile.ID != consultantID {
		t.Fatalf("expected the change to carry the active profile, got %+v", changes[1].Profile)
	}
	if changes[1].At.IsZero() {
		t.Fatalf("expected a change timestamp")
	}

	unsubscribe()
	unsubscribe()
	if err := f.gate.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if got := len(rec.list()); got != 2 {
		t.Fatalf("unsubscribed listener still notified, saw %d changes", got)
	}
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	f := newGateFixture(t, nil)
	var order []int
	f.gate.OnStateChange(func(StateChange) { order = append(order, 1) })
	f.gate.OnStateChange(func(StateChange) { order = append(order, 2) })

	startGate(t, f)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected listeners in registration order, got %v", order)
	}
}

func TestCloseIsIdempotentAndFinal(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)

	f.gate.Close()
	f.gate.Close()

	if err := f.gate.SignIn(context.Background(), consultantEmail, consultantPassword); !errors.Is(err, ErrGateClosed) {
		t.Fatalf("expected ErrGateClosed, got %v", err)
	}
}

func TestNilGateAccessorsAreSafe(t *testing.T) {
	var g *Gate

	if got := g.State(); got != StateInitializing {
		t.Fatalf("expected %s on nil gate, got %s", StateInitializing, got)
	}
	if g.Profile() != nil || g.ActiveProfile() != nil || g.Impersonation() != nil {
		t.Fatalf("expected nil identity on nil gate")
	}
	if g.LastError() != nil || g.CurrentSession() != nil {
		t.Fatalf("expected empty condition on nil gate")
	}
}
