package guard

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	authgate "github.com/casedock/authgate"
	"github.com/casedock/authgate/nav"
)

// Decision is the outcome of evaluating a route against the gate's state.
type Decision uint8

const (
	// DecisionLoading means the gate is still bootstrapping. Render a
	// placeholder and apply no redirect logic.
	DecisionLoading Decision = iota
	// DecisionRender means the route may show its content.
	DecisionRender
	// DecisionRedirectPending means a debounced redirect to the sign-in
	// route has been (or will be) scheduled. Render nothing meaningful.
	DecisionRedirectPending
	// DecisionRecover means the gate sits in its error state. Render the
	// recovery view offering a reset; never auto-redirect.
	DecisionRecover
	// DecisionDenied means the route's role requirement failed. The guard
	// redirects to the default route and raises the permission notice.
	DecisionDenied
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionRender:
		return "render"
	case DecisionRedirectPending:
		return "redirect_pending"
	case DecisionRecover:
		return "recover"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Route describes the navigation target about to render.
type Route struct {
	Path string

	// RequiredRole restricts the route to one role. Empty admits any
	// authenticated user.
	RequiredRole authgate.Role
}

// Config wires a Guard. Zero path and debounce fields inherit the gate's
// configured values.
type Config struct {
	Gate *authgate.Gate

	// SignInPath and DefaultPath override the gate's routes when non-empty.
	SignInPath  string
	DefaultPath string

	// Debounce overrides the gate's redirect debounce window when > 0.
	Debounce time.Duration

	// Notice is invoked with a short message when a role check denies a
	// route. Absent, denials are only logged.
	Notice func(message string)

	Logger zerolog.Logger
}

// Guard turns gate state into render/redirect decisions for one navigation
// surface. Evaluate is called on every route change; the pending sign-in
// redirect is debounced so state flaps during bootstrap do not bounce the
// user.
type Guard struct {
	gate    *authgate.Gate
	nav     *nav.Gateway
	metrics *authgate.Metrics
	log     zerolog.Logger
	notice  func(message string)

	signInPath  string
	defaultPath string
	debounce    time.Duration

	mu          sync.Mutex
	gen         uint64
	timer       *time.Timer
	pendingPath string
	closed      bool
}

// New builds a Guard over a built gate.
func New(cfg Config) (*Guard, error) {
	if cfg.Gate == nil {
		return nil, errors.New("guard requires a gate")
	}

	signInPath := cfg.SignInPath
	if signInPath == "" {
		signInPath = cfg.Gate.SignInRoute()
	}
	defaultPath := cfg.DefaultPath
	if defaultPath == "" {
		defaultPath = cfg.Gate.DefaultRoute()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = cfg.Gate.RedirectDebounce()
	}

	return &Guard{
		gate:        cfg.Gate,
		nav:         cfg.Gate.Navigator(),
		metrics:     cfg.Gate.Metrics(),
		log:         cfg.Logger.With().Str("component", "guard").Logger(),
		notice:      cfg.Notice,
		signInPath:  signInPath,
		defaultPath: defaultPath,
		debounce:    debounce,
	}, nil
}

// Check returns the decision for route without side effects: no timers, no
// navigation, no metrics. Evaluate applies the effects.
//
// The sign-in route always renders once the bootstrap finished, whatever the
// state, so the entry point can never redirect-loop onto itself.
func (g *Guard) Check(route Route) Decision {
	state := g.gate.State()
	if state == authgate.StateInitializing {
		return DecisionLoading
	}
	if route.Path == g.signInPath {
		return DecisionRender
	}

	switch state {
	case authgate.StateUnauthenticated:
		return DecisionRedirectPending
	case authgate.StateError:
		return DecisionRecover
	}

	if route.RequiredRole != "" {
		active := g.gate.ActiveProfile()
		if active == nil || active.Role != route.RequiredRole {
			return DecisionDenied
		}
	}
	return DecisionRender
}

// Evaluate runs the decision procedure for a route change and applies its
// side effects: scheduling or cancelling the debounced sign-in redirect, and
// issuing the immediate default-route redirect on a role denial.
func (g *Guard) Evaluate(route Route) Decision {
	start := time.Now()
	decision := g.Check(route)
	g.metrics.Observe(authgate.MetricGuardEvaluateLatency, time.Since(start))

	switch decision {
	case DecisionRedirectPending:
		g.schedule(route.Path)
	case DecisionDenied:
		g.Cancel()
		g.metrics.Inc(authgate.MetricGuardRoleDenied)
		g.log.Warn().
			Str("path", route.Path).
			Str("required_role", string(route.RequiredRole)).
			Msg("route denied by role check")
		if g.notice != nil {
			g.notice("you do not have access to this section")
		}
		g.nav.Navigate(g.defaultPath, nav.Options{Replace: true})
	default:
		// any non-pending outcome abandons a redirect scheduled for an
		// earlier route
		g.Cancel()
	}
	return decision
}

// Cancel drops the pending sign-in redirect, if any. Shells call it when the
// guarded surface unmounts.
func (g *Guard) Cancel() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelLocked()
}

// Close cancels the pending redirect and rejects further scheduling.
func (g *Guard) Close() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.cancelLocked()
}

// Pending returns the requested path a scheduled redirect will carry, if one
// is pending. For introspection and tests.
func (g *Guard) Pending() (string, bool) {
	if g == nil {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingPath, g.timer != nil
}

// schedule arms the debounced redirect for path. A timer already pending for
// the same path is left alone; a different path supersedes it.
func (g *Guard) schedule(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	if g.timer != nil {
		if g.pendingPath == path {
			return
		}
		g.cancelLocked()
	}

	g.gen++
	gen := g.gen
	g.pendingPath = path
	g.timer = time.AfterFunc(g.debounce, func() { g.fire(gen) })
	g.metrics.Inc(authgate.MetricGuardRedirectScheduled)
	g.log.Debug().Str("path", path).Dur("debounce", g.debounce).Msg("sign-in redirect scheduled")
}

// fire delivers the debounced redirect. A stale generation means the route
// changed (or the guard closed) after this timer was armed.
func (g *Guard) fire(gen uint64) {
	g.mu.Lock()
	if g.closed || gen != g.gen {
		g.mu.Unlock()
		return
	}
	path := g.pendingPath
	g.timer = nil
	g.pendingPath = ""
	g.mu.Unlock()

	// the state may have moved on while the window ran
	if g.gate.State() != authgate.StateUnauthenticated {
		g.metrics.Inc(authgate.MetricGuardRedirectCancelled)
		g.log.Debug().Str("path", path).Msg("redirect abandoned, state moved on")
		return
	}

	g.metrics.Inc(authgate.MetricGuardRedirectFired)
	g.log.Debug().Str("path", path).Msg("redirecting to sign-in")
	g.nav.Navigate(g.signInPath, nav.Options{Replace: true, ReturnTo: path})
}

func (g *Guard) cancelLocked() {
	g.gen++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
		g.pendingPath = ""
		g.metrics.Inc(authgate.MetricGuardRedirectCancelled)
	}
}
