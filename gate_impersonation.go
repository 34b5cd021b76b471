package authgate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartImpersonation switches the gate into StateImpersonating as the given
// target user. Only a consultant-role profile may impersonate; anyone else
// gets ErrPermissionDenied with the state unchanged. A target that does not
// resolve returns ErrProfileFetch, also with the state unchanged.
func (g *Gate) StartImpersonation(ctx context.Context, targetProfileID string) error {
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
	if !g.config.Impersonation.Enabled {
		g.metrics.Inc(MetricImpersonationDenied)
		g.emitAudit(ctx, auditEventImpersonationDenied, false, targetProfileID, "", ErrImpersonationDisabled, nil)
		return ErrImpersonationDisabled
	}
	if g.state != StateAuthenticated {
		// also rejects nesting a second impersonation on top of the first
		return fmt.Errorf("%w: impersonation from %s", ErrStateConflict, g.state)
	}

	actor := g.profile
	if !actor.IsConsultant() {
		err := fmt.Errorf("%w: role %q cannot impersonate", ErrPermissionDenied, actor.Role)
		g.metrics.Inc(MetricImpersonationDenied)
		g.emitAudit(ctx, auditEventImpersonationDenied, false, targetProfileID, actor.ID, err, nil)
		return err
	}

	target, err := g.fetchProfile(ctx, targetProfileID)
	if err != nil {
		g.metrics.Inc(MetricImpersonationFailed)
		g.emitAudit(ctx, auditEventImpersonationStarted, false, targetProfileID, actor.ID, err, nil)
		return err
	}

	imp := &ImpersonationContext{
		ID:                  uuid.NewString(),
		OriginalProfile:     actor.Clone(),
		ImpersonatedProfile: target,
		StartedAt:           time.Now().UTC(),
	}
	if err := g.transitionTo(StateImpersonating, actor, imp, nil); err != nil {
		return err
	}

	g.metrics.Inc(MetricImpersonationStarted)
	g.emitAudit(ctx, auditEventImpersonationStarted, true, target.ID, actor.ID, nil, func() map[string]string {
		return map[string]string{"impersonation_id": imp.ID}
	})
	return nil
}

// EndImpersonation restores the original profile captured when impersonation
// started and returns the gate to StateAuthenticated. Calling it while not
// impersonating is a logged no-op.
//
// The original account must still resolve before the restoration is trusted.
// When it does not, the gate lands in StateError, issues the hard-redirect
// fallback through the navigation gateway, and returns ErrStateConflict so
// the shell never renders stale impersonated state.
func (g *Gate) EndImpersonation(ctx context.Context) error {
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
	if g.state != StateImpersonating {
		g.log.Debug().Msg("end impersonation ignored: not impersonating")
		return nil
	}

	imp := g.impersonation
	original := imp.OriginalProfile

	if _, err := g.fetchProfile(ctx, original.ID); err != nil {
		err = fmt.Errorf("%w: original profile not restorable: %w", ErrStateConflict, err)
		g.metrics.Inc(MetricImpersonationFailed)
		g.emitAudit(ctx, auditEventImpersonationEnded, false, imp.ImpersonatedProfile.ID, original.ID, err, func() map[string]string {
			return map[string]string{"impersonation_id": imp.ID}
		})
		if terr := g.transitionTo(StateError, nil, nil, err); terr != nil {
			g.log.Error().Err(terr).Msg("impersonation failure transition rejected")
		}
		g.hardRedirect(ctx, g.config.Routes.DefaultPath)
		return err
	}

	// restore the exact profile captured at start; the fetch above only
	// confirms the account still resolves
	if err := g.transitionTo(StateAuthenticated, original, nil, nil); err != nil {
		return err
	}

	g.metrics.Inc(MetricImpersonationEnded)
	g.emitAudit(ctx, auditEventImpersonationEnded, true, original.ID, "", nil, func() map[string]string {
		return map[string]string{"impersonation_id": imp.ID}
	})
	return nil
}

// hardRedirect issues the full-reload fallback instruction and audits it.
func (g *Gate) hardRedirect(ctx context.Context, path string) {
	g.nav.HardRedirect(path)
	g.emitAudit(ctx, auditEventHardRedirect, true, "", "", nil, func() map[string]string {
		return map[string]string{"path": path}
	})
}
