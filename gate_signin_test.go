package authgate

import (
	"context"
	"errors"
	"testing"

	"github.com/casedock/authgate/provider"
)

func TestSignInSucceeds(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	ctx = WithRoutePath(ctx, "/auth")
	ctx = WithUserAgent(ctx, "casedock-shell/2.4")
	if err := f.gate.SignIn(ctx, consultantEmail, consultantPassword); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	if got := f.gate.State(); got != StateAuthenticated {
		t.Fatalf("expected %s, got %s", StateAuthenticated, got)
	}
	prof := f.gate.Profile()
	if prof == nil || prof.ID != consultantID || prof.Role != RoleConsultant {
		t.Fatalf("unexpected profile %+v", prof)
	}
	sess := f.gate.CurrentSession()
	if sess == nil || sess.UserID != consultantID {
		t.Fatalf("unexpected session %+v", sess)
	}

	stored, err := f.mirror.Load(context.Background())
	if err != nil {
		t.Fatalf("load mirror: %v", err)
	}
	if stored == nil || stored.AccessToken != sess.AccessToken {
		t.Fatalf("expected the new session mirrored, got %+v", stored)
	}
	if got := counterValue(f, MetricSignInSuccess); got != 1 {
		t.Fatalf("expected one sign-in success, got %d", got)
	}

	ev := awaitAudit(t, f, auditEventSignIn)
	if !ev.Success || ev.UserID != consultantID {
		t.Fatalf("unexpected sign-in audit event %+v", ev)
	}
	if ev.IP != "203.0.113.9" || ev.Path != "/auth" {
		t.Fatalf("expected request context on the audit event, got %+v", ev)
	}
	if ev.Metadata["user_agent"] != "casedock-shell/2.4" {
		t.Fatalf("expected the user agent recorded, got %v", ev.Metadata)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)

	err := f.gate.SignIn(context.Background(), consultantEmail, "wrong-password")
	if !errors.Is(err, ErrSessionFailure) {
		t.Fatalf("expected ErrSessionFailure, got %v", err)
	}
	if !errors.Is(err, provider.ErrInvalidCredentials) {
		t.Fatalf("expected the credential cause preserved, got %v", err)
	}
	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("a rejected grant must stay in %s, got %s", StateUnauthenticated, got)
	}
	if got := counterValue(f, MetricSignInFailure); got != 1 {
		t.Fatalf("expected one sign-in failure, got %d", got)
	}

	ev := awaitAudit(t, f, auditEventSignIn)
	if ev.Success {
		t.Fatalf("expected a failed audit event, got %+v", ev)
	}
	if ev.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("expected error code %q, got %q", auditErrInvalidCredentials, ev.Error)
	}
	if ev.Metadata["email"] != consultantEmail {
		t.Fatalf("expected the attempted email recorded, got %v", ev.Metadata)
	}
}

func TestSignInProviderOutageStaysUnauthenticated(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)
	f.provider.signInErr = provider.ErrProviderUnavailable

	err := f.gate.SignIn(context.Background(), consultantEmail, consultantPassword)
	if !errors.Is(err, ErrSessionFailure) || !errors.Is(err, provider.ErrProviderUnavailable) {
		t.Fatalf("expected a wrapped provider outage, got %v", err)
	}
	if got := f.gate.State(); got != StateUnauthenticated {
		t.Fatalf("expected %s, got %s", StateUnauthenticated, got)
	}
}

func TestSignInProfileFailureDrivesError(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)
	f.profiles.Remove(consultantID)

	err := f.gate.SignIn(context.Background(), consultantEmail, consultantPassword)
	if !errors.Is(err, ErrProfileFetch) {
		t.Fatalf("expected ErrProfileFetch, got %v", err)
	}
	if got := f.gate.State(); got != StateError {
		t.Fatalf("expected %s, got %s", StateError, got)
	}
	if f.gate.Profile() != nil {
		t.Fatalf("expected no profile in %s", StateError)
	}
	if f.gate.CurrentSession() == nil {
		t.Fatalf("expected the granted session kept for a later reset")
	}
	if lastErr := f.gate.LastError(); !errors.Is(lastErr, ErrProfileFetch) {
		t.Fatalf("expected LastError to carry the fetch failure, got %v", lastErr)
	}
}

func TestSignInFromAuthenticatedIsRejected(t *testing.T) {
	f := newGateFixture(t, nil)
	startGate(t, f)
	signIn(t, f, consultantEmail, consultantPassword)

	err := f.gate.SignIn(context.Background(), customerEmail, customerPassword)
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
	if prof := f.gate.Profile(); prof == nil || prof.ID != consultantID {
		t.Fatalf("the signed-in identity must be untouched, got %+v", prof)
	}
}
