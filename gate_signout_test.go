package authgate

import (
	"context"
	"errors"
	"testing"

	"github.com/casedock/authgate/mirror"
	"github.com/casedock/authgate/provider"
)

func TestSignOutClearsEverything(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)
	signIn(t, f, consultantEmail, consultantPassword)

	if err := f.gate.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("expected %s, got %s", StateUnauthenticated, got)
	}
	if f.gate.Profile() != nil || f.gate.CurrentSession() != nil {
		t.Fatalf("expected identity and session cleared")
	}
	stored, err := f.mirror.Load(context.Background())
	if err != nil {
		t.Fatalf("load mirror: %v", err)
	}
	if stored != nil {
		t.Fatalf("expected mirror cleared, got %+v", stored)
	}
	if got := f.provider.signOutCount(); got != 1 {
		t.Fatalf("expected one provider revocation, got %d", got)
	}
	if got := counterValue(f, MetricSignOutSuccess); got != 1 {
		t.Fatalf("expected one sign-out success, got %d", got)
	}

	ev := awaitAudit(t, f, auditEventSignOut)
	if !ev.Success || ev.UserID != consultantID {
		t.Fatalf("unexpected sign-out audit event %+v", ev)
	}
}

func TestSignOutSurvivesProviderFailure(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)
	signIn(t, f, consultantEmail, consultantPassword)
	f.provider.signOutErr = provider.ErrSignOutRejected

	if err := f.gate.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out with one dead leg must still succeed, got %v", err)
	}

	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("expected %s, got %s", StateUnauthenticated, got)
	}
	if got := counterValue(f, MetricSignOutFallback); got != 1 {
		t.Fatalf("expected one fallback sign-out, got %d", got)
	}
	ev := awaitAudit(t, f, auditEventSignOutFallback)
	if !ev.Success {
		t.Fatalf("a fallback sign-out still counts as success, got %+v", ev)
	}
}

func TestSignOutSurvivesMirrorFailure(t *testing.T) {
	mir := newFailingMirror()
	f := newGateFixtureWithMirror(t, mir, nil)
	startGate(t, f)
	signIn(t, f, consultantEmail, consultantPassword)
	mir.clearErr = mirror.ErrMirrorUnavailable

	if err := f.gate.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out with one dead leg must still succeed, got %v", err)
	}
	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("expected %s, got %s", StateUnauthenticated, got)
	}
	if got := f.provider.signOutCount(); got != 1 {
		t.Fatalf("expected the provider leg attempted, got %d", got)
	}
}

func TestSignOutReportsDoubleFailure(t *testing.T) {
	mir := newFailingMirror()
	f := newGateFixtureWithMirror(t, mir, nil)
	startGate(t, f)
	signIn(t, f, consultantEmail, consultantPassword)
	mir.clearErr = mirror.ErrMirrorUnavailable
	f.provider.signOutErr = provider.ErrProviderUnavailable

	err := f.gate.SignOut(context.Background())
	if !errors.Is(err, ErrSessionFailure) {
		t.Fatalf("expected ErrSessionFailure, got %v", err)
	}
	if !errors.Is(err, mirror.ErrMirrorUnavailable) || !errors.Is(err, provider.ErrProviderUnavailable) {
		t.Fatalf("expected both leg failures joined, got %v", err)
	}
	// local credentials are dropped even when both legs fail
	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("expected %s, got %s", StateUnauthenticated, got)
	}
	if f.gate.CurrentSession() != nil {
		t.Fatalf("expected the in-memory session dropped")
	}
	if got := counterValue(f, MetricSignOutFailure); got != 1 {
		t.Fatalf("expected one sign-out failure, got %d", got)
	}
}

func TestSignOutWhenUnauthenticatedIsNoOp(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)

	if err := f.gate.SignOut(context.Background()); err != nil {
		t.Fatalf("expected a no-op, got %v", err)
	}
	if got := f.provider.signOutCount(); got != 0 {
		t.Fatalf("expected no provider call, got %d", got)
	}
}

func TestSignOutDuringImpersonationClearsContext(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)
	signIn(t, f, consultantEmail, consultantPassword)
	if err := f.gate.StartImpersonation(context.Background(), customerID); err != nil {
		t.Fatalf("start impersonation: %v", err)
	}

	if err := f.gate.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("expected %s, got %s", StateUnauthenticated, got)
	}
	if f.gate.Impersonation() != nil {
		t.Fatalf("expected the impersonation context discarded")
	}
	ev := awaitAudit(t, f, auditEventSignOut)
	if ev.UserID != consultantID {
		t.Fatalf("sign-out must be attributed to the consultant, got %+v", ev)
	}
}
