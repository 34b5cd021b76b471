package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/casedock/authgate/mirror"
	"github.com/casedock/authgate/profile"
	"github.com/casedock/authgate/provider"
)

const (
	auditEventSignIn               = "sign_in"
	auditEventSignOut              = "sign_out"
	auditEventSignOutFallback      = "sign_out_fallback"
	auditEventSessionRestored      = "session_restored"
	auditEventTokenRefreshed       = "token_refreshed"
	auditEventRefreshFailed        = "refresh_failed"
	auditEventProfileFetch         = "profile_fetch"
	auditEventImpersonationStarted = "impersonation_started"
	auditEventImpersonationEnded   = "impersonation_ended"
	auditEventImpersonationDenied  = "impersonation_denied"
	auditEventAuthReset            = "auth_reset"
	auditEventStateError           = "state_error"
	auditEventHardRedirect         = "hard_redirect"
)

// AuditErrorCode is the stable machine-readable failure code recorded on
// audit events, derived from the error chain rather than its message text.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrProviderUnavailable AuditErrorCode = "provider_unavailable"
	auditErrRefreshRejected     AuditErrorCode = "refresh_rejected"
	auditErrSignOutRejected     AuditErrorCode = "sign_out_rejected"
	auditErrProfileNotFound     AuditErrorCode = "profile_not_found"
	auditErrProfileForbidden    AuditErrorCode = "profile_forbidden"
	auditErrProfileFetch        AuditErrorCode = "profile_fetch_failed"
	auditErrPermissionDenied    AuditErrorCode = "permission_denied"
	auditErrStateConflict       AuditErrorCode = "state_conflict"
	auditErrSessionFailure      AuditErrorCode = "session_failure"
	auditErrMirrorUnavailable   AuditErrorCode = "mirror_unavailable"
	auditErrMirrorCorrupt       AuditErrorCode = "mirror_corrupt"
	auditErrNoSession           AuditErrorCode = "no_session"
	auditErrDisabled            AuditErrorCode = "feature_disabled"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (g *Gate) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	actorID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if g == nil || g.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		ActorID:   actorID,
		Path:      routePathFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	g.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, provider.ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, provider.ErrProviderUnavailable):
		return auditErrProviderUnavailable
	case errors.Is(err, provider.ErrRefreshRejected):
		return auditErrRefreshRejected
	case errors.Is(err, provider.ErrSignOutRejected):
		return auditErrSignOutRejected
	case errors.Is(err, profile.ErrNotFound):
		return auditErrProfileNotFound
	case errors.Is(err, profile.ErrForbidden):
		return auditErrProfileForbidden
	case errors.Is(err, ErrProfileFetch),
		errors.Is(err, profile.ErrStoreUnavailable):
		return auditErrProfileFetch
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrStateConflict):
		return auditErrStateConflict
	case errors.Is(err, mirror.ErrMirrorCorrupt):
		return auditErrMirrorCorrupt
	case errors.Is(err, mirror.ErrMirrorUnavailable):
		return auditErrMirrorUnavailable
	case errors.Is(err, ErrNoSession):
		return auditErrNoSession
	case errors.Is(err, ErrImpersonationDisabled):
		return auditErrDisabled
	case errors.Is(err, ErrSessionFailure):
		return auditErrSessionFailure
	default:
		return auditErrInternal
	}
}
