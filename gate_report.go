package authgate

import "time"

// StatusReport is a read-only snapshot of the gate's posture, returned by
// [Gate.StatusReport]. Shells surface it on diagnostics pages; simulations
// print it after a lifecycle run.
type StatusReport struct {
	State         AuthState
	ActiveRole    Role
	Impersonating bool

	AutoRefreshEnabled bool
	RefreshMargin      time.Duration
	RefreshArmed       bool

	SignInRoute    string
	DefaultRoute   string
	DebounceWindow time.Duration
	RouterAttached bool

	MirrorBackend string

	ImpersonationEnabled bool
	AuditEnabled         bool
	AuditDropped         uint64
	MetricsEnabled       bool
}

func (g *Gate) StatusReport() StatusReport {
	if g == nil {
		return StatusReport{}
	}

	g.mu.RLock()
	state := g.state
	impersonating := g.impersonation != nil
	var role Role
	if g.impersonation != nil {
		role = g.impersonation.ImpersonatedProfile.Role
	} else if g.profile != nil {
		role = g.profile.Role
	}
	g.mu.RUnlock()

	mirrorBackend := g.mirrorKind
	if g.mirror == nil {
		mirrorBackend = "none"
	}

	return StatusReport{
		State:         state,
		ActiveRole:    role,
		Impersonating: impersonating,

		AutoRefreshEnabled: g.refresher != nil,
		RefreshMargin:      g.config.Session.RefreshMargin,
		RefreshArmed:       g.refresher.Armed(),

		SignInRoute:    g.config.Routes.SignInPath,
		DefaultRoute:   g.config.Routes.DefaultPath,
		DebounceWindow: g.config.Redirect.DebounceWindow,
		RouterAttached: g.nav.HasRouter(),

		MirrorBackend: mirrorBackend,

		ImpersonationEnabled: g.config.Impersonation.Enabled,
		AuditEnabled:         g.config.Audit.Enabled,
		AuditDropped:         g.audit.Dropped(),
		MetricsEnabled:       g.metrics.Enabled(),
	}
}
