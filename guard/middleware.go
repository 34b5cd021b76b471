package guard

import (
	"context"
	"net/http"
	"net/url"
	"time"

	authgate "github.com/casedock/authgate"
)

type activeProfileContextKey struct{}

// ActiveProfileFromContext returns the profile injected by [Guard.Middleware]
// for a rendered request. ok is false on the sign-in route, where rendering
// needs no identity.
func ActiveProfileFromContext(ctx context.Context) (*authgate.Profile, bool) {
	prof, ok := ctx.Value(activeProfileContextKey{}).(*authgate.Profile)
	return prof, ok && prof != nil
}

// Middleware applies the decision procedure to plain HTTP traffic, for
// server-rendered or gateway embeddings of the same shell. There is no
// debounce here: an HTTP request cannot wait for a state flap, so pending
// redirects become immediate 302s carrying return_to, the loading and
// recovery outcomes become 503s, and a role denial 302s to the default
// route.
func (g *Guard) Middleware(requiredRole authgate.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := Route{Path: r.URL.Path, RequiredRole: requiredRole}

			start := time.Now()
			decision := g.Check(route)
			g.metrics.Observe(authgate.MetricGuardEvaluateLatency, time.Since(start))

			switch decision {
			case DecisionLoading:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "authentication initializing", http.StatusServiceUnavailable)
			case DecisionRedirectPending:
				g.metrics.Inc(authgate.MetricGuardRedirectFired)
				target := g.signInPath + "?return_to=" + url.QueryEscape(route.Path)
				http.Redirect(w, r, target, http.StatusFound)
			case DecisionRecover:
				http.Error(w, "authentication failed, reset required", http.StatusServiceUnavailable)
			case DecisionDenied:
				g.metrics.Inc(authgate.MetricGuardRoleDenied)
				g.log.Warn().
					Str("path", route.Path).
					Str("required_role", string(requiredRole)).
					Msg("request denied by role check")
				http.Redirect(w, r, g.defaultPath, http.StatusFound)
			default:
				ctx := r.Context()
				if prof := g.gate.ActiveProfile(); prof != nil {
					ctx = context.WithValue(ctx, activeProfileContextKey{}, prof)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// RequireConsultant guards consultant-only sections.
func (g *Guard) RequireConsultant() func(http.Handler) http.Handler {
	return g.Middleware(authgate.RoleConsultant)
}

// RequireSignedIn guards routes any authenticated user may see.
func (g *Guard) RequireSignedIn() func(http.Handler) http.Handler {
	return g.Middleware("")
}
