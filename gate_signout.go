package authgate

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/casedock/authgate/session"
)

// SignOut revokes the session with the provider and clears the local
// credential mirror. The two legs run concurrently and the operation
// succeeds when either does: a dead network cannot keep the user signed in.
// The terminal state is StateUnauthenticated regardless of outcome.
//
// Calling SignOut while already unauthenticated is a no-op.
func (g *Gate) SignOut(ctx context.Context) error {
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

	switch g.state {
	case StateUnauthenticated:
		g.log.Debug().Msg("sign-out ignored: already unauthenticated")
		return nil
	case StateAuthenticated, StateImpersonating:
	default:
		return fmt.Errorf("%w: sign-out from %s", ErrStateConflict, g.state)
	}

	userID := ""
	if g.profile != nil {
		userID = g.profile.ID
	}
	accessToken := ""
	if sess := g.store.Current(); sess != nil {
		accessToken = sess.AccessToken
	}

	var eg errgroup.Group
	var localErr, remoteErr error
	eg.Go(func() error {
		localErr = g.mirrorClear(ctx)
		return nil
	})
	eg.Go(func() error {
		if accessToken == "" {
			return nil
		}
		remoteErr = g.provider.SignOut(ctx, accessToken)
		return nil
	})
	_ = eg.Wait()

	g.setSession(nil, session.EventSignedOut)

	if err := g.transitionTo(StateUnauthenticated, nil, nil, nil); err != nil {
		return err
	}

	switch {
	case localErr == nil && remoteErr == nil:
		g.metrics.Inc(MetricSignOutSuccess)
		g.emitAudit(ctx, auditEventSignOut, true, userID, "", nil, nil)
		return nil
	case localErr == nil || remoteErr == nil:
		// one leg failed; the other cleared credentials, so the sign-out
		// stands
		legErr := localErr
		if legErr == nil {
			legErr = remoteErr
		}
		g.log.Warn().Err(legErr).Msg("sign-out leg failed, fallback cleared credentials")
		g.metrics.Inc(MetricSignOutFallback)
		g.emitAudit(ctx, auditEventSignOutFallback, true, userID, "", legErr, nil)
		return nil
	default:
		err := fmt.Errorf("%w: %w", ErrSessionFailure, errors.Join(localErr, remoteErr))
		g.metrics.Inc(MetricSignOutFailure)
		g.emitAudit(ctx, auditEventSignOut, false, userID, "", err, nil)
		return err
	}
}
