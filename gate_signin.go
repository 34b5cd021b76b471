package authgate

import (
	"context"
	"fmt"

	"github.com/casedock/authgate/session"
)

// SignIn performs the password grant and, on success, resolves the profile
// and transitions to StateAuthenticated.
//
// A rejected or failed grant leaves the gate in StateUnauthenticated. A
// grant that succeeds but whose profile cannot be resolved drives the gate
// into StateError: the session exists, but the shell has no identity to
// render.
func (g *Gate) SignIn(ctx context.Context, email, password string) error {
	if g == nil {
		return ErrNotStarted
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()

	if g.closed {
		return ErrGateClosed
	}
	if !g.started {
		return ErrNotStarted
	}
	if g.state != StateUnauthenticated {
		return fmt.Errorf("%w: sign-in from %s", ErrStateConflict, g.state)
	}

	sess, err := g.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSessionFailure, err)
		g.metrics.Inc(MetricSignInFailure)
		g.emitAudit(ctx, auditEventSignIn, false, "", "", err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return err
	}

	g.setSession(sess, session.EventSignedIn)
	g.mirrorSave(ctx, sess)

	prof, err := g.fetchProfile(ctx, sess.UserID)
	if err != nil {
		if terr := g.transitionTo(StateError, nil, nil, err); terr != nil {
			return terr
		}
		g.metrics.Inc(MetricSignInFailure)
		g.emitAudit(ctx, auditEventSignIn, false, sess.UserID, "", err, nil)
		return err
	}

	if err := g.transitionTo(StateAuthenticated, prof, nil, nil); err != nil {
		return err
	}
	g.metrics.Inc(MetricSignInSuccess)
	g.emitAudit(ctx, auditEventSignIn, true, prof.ID, "", nil, nil)
	return nil
}
