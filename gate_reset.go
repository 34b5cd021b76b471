package authgate

import (
	"context"
	"fmt"

	"github.com/casedock/authgate/session"
)

// ResetAuth is the only exit from StateError. It clears every piece of local
// state the gate owns, then re-runs the bootstrap so the user lands in a
// live condition again.
//
// A reset that cannot clear local state is terminal for the session: the
// gate issues a hard-redirect instruction through the navigation gateway and
// returns the failure. A reset whose re-initialization lands back in
// StateError does the same.
func (g *Gate) ResetAuth(ctx context.Context) error {
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
	if g.state != StateError {
		return fmt.Errorf("%w: reset from %s", ErrStateConflict, g.state)
	}

	g.setSession(nil, session.EventSignedOut)
	if err := g.mirrorClear(ctx); err != nil {
		err = fmt.Errorf("%w: reset could not clear local state: %w", ErrSessionFailure, err)
		g.metrics.Inc(MetricResetFailure)
		g.emitAudit(ctx, auditEventAuthReset, false, "", "", err, nil)
		g.hardRedirect(ctx, g.config.Routes.SignInPath)
		return err
	}

	if err := g.transitionTo(StateInitializing, nil, nil, nil); err != nil {
		return err
	}

	if err := g.bootstrap(ctx); err != nil {
		g.metrics.Inc(MetricResetFailure)
		g.emitAudit(ctx, auditEventAuthReset, false, "", "", err, nil)
		g.hardRedirect(ctx, g.config.Routes.SignInPath)
		return err
	}

	g.metrics.Inc(MetricResetSuccess)
	g.emitAudit(ctx, auditEventAuthReset, true, "", "", nil, nil)
	return nil
}
