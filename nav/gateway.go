package nav

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/casedock/authgate/internal/metrics"
)

// Options carry per-dispatch routing hints.
type Options struct {
	// Replace asks the router to replace the current history entry instead
	// of pushing a new one.
	Replace bool

	// ReturnTo names the path to resume once the destination has served its
	// purpose. The guard sets it when redirecting to sign-in so a successful
	// grant can send the user back where they were headed.
	ReturnTo string
}

// RouterFunc executes a navigation. A non-nil error tells the gateway the
// router could not complete it.
type RouterFunc func(path string, opts Options) error

// Intent is a navigation that has been requested but not yet delivered.
type Intent struct {
	Path   string
	Opts   Options
	Raised time.Time
}

// Gateway routes navigation requests to the currently registered router,
// holding at most one pending intent while no router exists.
type Gateway struct {
	mu      sync.Mutex
	router  RouterFunc
	pending *Intent
	hard    func(path string)
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// GatewayConfig wires the gateway's collaborators.
type GatewayConfig struct {
	// HardRedirect performs a process-level navigation when the router
	// fails or is absent. A full page load in a browser host, an exec or
	// exit in a CLI host.
	HardRedirect func(path string)

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// NewGateway builds a gateway with no router registered.
func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		hard:    cfg.HardRedirect,
		log:     cfg.Logger.With().Str("component", "nav").Logger(),
		metrics: cfg.Metrics,
	}
}

// RegisterRouter installs router, replacing any previous one. If an intent
// was raised while no router existed, it is replayed exactly once; a failed
// replay falls back to a hard redirect rather than re-queueing.
func (g *Gateway) RegisterRouter(router RouterFunc) {
	if g == nil {
		return
	}

	g.mu.Lock()
	replaced := g.router != nil
	g.router = router
	replay := g.pending
	g.pending = nil
	g.mu.Unlock()

	if replaced {
		g.log.Debug().Msg("router replaced")
	}
	if router == nil || replay == nil {
		return
	}

	g.metrics.Inc(metrics.MetricNavReplayed)
	g.log.Debug().
		Str("path", replay.Path).
		Dur("queued_for", time.Since(replay.Raised)).
		Msg("replaying pending navigation")
	g.dispatch(router, replay.Path, replay.Opts)
}

// UnregisterRouter removes the current router. Subsequent intents queue
// until a new one registers.
func (g *Gateway) UnregisterRouter() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.router = nil
	g.mu.Unlock()
}

// Navigate delivers path to the router, or queues it as the single pending
// intent when no router is registered. Queueing supersedes any earlier
// pending intent.
func (g *Gateway) Navigate(path string, opts Options) {
	if g == nil {
		return
	}

	g.mu.Lock()
	router := g.router
	if router == nil {
		superseded := g.pending != nil
		g.pending = &Intent{Path: path, Opts: opts, Raised: time.Now()}
		g.mu.Unlock()

		g.metrics.Inc(metrics.MetricNavQueued)
		if superseded {
			g.metrics.Inc(metrics.MetricNavSuperseded)
		}
		g.log.Debug().Str("path", path).Bool("superseded_previous", superseded).
			Msg("no router registered, navigation queued")
		return
	}
	g.mu.Unlock()

	g.dispatch(router, path, opts)
}

// HardRedirect bypasses the router entirely.
func (g *Gateway) HardRedirect(path string) {
	if g == nil {
		return
	}
	g.metrics.Inc(metrics.MetricNavHardRedirect)

	g.mu.Lock()
	hard := g.hard
	g.mu.Unlock()

	if hard == nil {
		g.log.Error().Str("path", path).Msg("hard redirect requested but no hook wired")
		return
	}
	g.log.Info().Str("path", path).Msg("hard redirect")
	hard(path)
}

// Pending returns a copy of the queued intent, or nil. For introspection
// and tests.
func (g *Gateway) Pending() *Intent {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return nil
	}
	out := *g.pending
	return &out
}

// HasRouter reports whether a router is currently registered.
func (g *Gateway) HasRouter() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.router != nil
}

// dispatch runs the router outside the gateway lock so a router may call
// back into the gateway. Failures fall back to a hard redirect.
func (g *Gateway) dispatch(router RouterFunc, path string, opts Options) {
	if err := router(path, opts); err != nil {
		g.metrics.Inc(metrics.MetricNavRouterFailure)
		g.log.Warn().Err(err).Str("path", path).Msg("router failed, falling back to hard redirect")
		g.HardRedirect(path)
		return
	}
	g.metrics.Inc(metrics.MetricNavDispatched)
	g.log.Debug().Str("path", path).Bool("replace", opts.Replace).Msg("navigation dispatched")
}
