package authgate

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	internalaudit "github.com/casedock/authgate/internal/audit"
	internalmetrics "github.com/casedock/authgate/internal/metrics"
	"github.com/casedock/authgate/mirror"
	"github.com/casedock/authgate/nav"
	"github.com/casedock/authgate/profile"
	"github.com/casedock/authgate/provider"
	"github.com/casedock/authgate/refresh"
	"github.com/casedock/authgate/session"
)

// Builder assembles a [Gate]. Collaborators injected through WithX calls
// take precedence over the corresponding config sections; anything not
// injected is constructed from config during Build.
type Builder struct {
	config Config

	provider IdentityProvider
	profiles ProfileStore
	mirror   mirror.Store

	auditSink    AuditSink
	logger       zerolog.Logger
	hardRedirect func(path string)

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider injects the identity provider, overriding the Provider
// config section.
func (b *Builder) WithProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithProfileStore injects the profile store, overriding the Profiles
// config section.
func (b *Builder) WithProfileStore(s ProfileStore) *Builder {
	b.profiles = s
	return b
}

// WithMirror injects the session mirror, overriding the Mirror config
// section.
func (b *Builder) WithMirror(m mirror.Store) *Builder {
	b.mirror = m
	return b
}

// WithAuditSink sets the destination for audit events. Without a sink,
// enabled auditing falls back to a NoOpSink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the base logger. The default discards everything.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = log
	return b
}

// WithHardRedirect sets the process-level navigation fallback invoked when
// the router fails or local state cannot be cleared.
func (b *Builder) WithHardRedirect(fn func(path string)) *Builder {
	b.hardRedirect = fn
	return b
}

// WithMetricsEnabled toggles the metrics system.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the guard evaluation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, constructs any collaborator that was
// not injected, and wires the gate. A Builder can build once.
func (b *Builder) Build() (*Gate, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.logger.With().Str("component", "gate").Logger()

	// -------- SESSION STORE --------
	store := session.NewStore()

	// -------- IDENTITY PROVIDER --------
	idp := b.provider
	if idp == nil {
		if cfg.Provider.BaseURL == "" {
			return nil, errors.New("identity provider required: inject one or set Provider BaseURL")
		}
		var httpClient *http.Client
		if cfg.Provider.Timeout > 0 {
			httpClient = &http.Client{Timeout: cfg.Provider.Timeout}
		}
		client, err := provider.NewClient(provider.ClientConfig{
			BaseURL:    cfg.Provider.BaseURL,
			APIKey:     cfg.Provider.APIKey,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		idp = client
	}

	// -------- PROFILE STORE --------
	profiles := b.profiles
	if profiles == nil {
		if cfg.Profiles.BaseURL == "" {
			return nil, errors.New("profile store required: inject one or set Profiles BaseURL")
		}
		rest, err := profile.NewREST(profile.RESTConfig{
			BaseURL: cfg.Profiles.BaseURL,
			APIKey:  cfg.Profiles.APIKey,
			Table:   cfg.Profiles.Table,
			BearerSource: func() string {
				if sess := store.Current(); sess != nil {
					return sess.AccessToken
				}
				return ""
			},
		})
		if err != nil {
			return nil, err
		}
		profiles = rest
		if cfg.Profiles.CacheSize > 0 {
			profiles = profile.NewCached(profiles, cfg.Profiles.CacheSize, cfg.Profiles.CacheTTL)
		}
	}

	// -------- SESSION MIRROR --------
	mir := b.mirror
	mirrorKind := "injected"
	if mir == nil {
		mirrorKind = cfg.Mirror.Backend
		switch cfg.Mirror.Backend {
		case "file":
			fileStore, err := mirror.NewFileStore(cfg.Mirror.Path)
			if err != nil {
				return nil, err
			}
			mir = fileStore
		case "redis":
			client := redis.NewClient(&redis.Options{Addr: cfg.Mirror.RedisAddr})
			mir = mirror.NewRedisStore(client, cfg.Mirror.RedisKey, cfg.Mirror.TTL)
		case "memory":
			mir = mirror.NewMemoryStore()
		case "none":
			// run without a mirror
		}
	}

	// -------- METRICS --------
	metrics := internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Metrics.Enabled,
		EnableLatency: cfg.Metrics.EnableLatencyHistograms,
	})

	// -------- NAVIGATION GATEWAY --------
	gateway := nav.NewGateway(nav.GatewayConfig{
		HardRedirect: b.hardRedirect,
		Logger:       b.logger,
		Metrics:      metrics,
	})

	// -------- AUDIT DISPATCHER --------
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// -------- REFRESH SCHEDULER --------
	var refresher *refresh.Scheduler
	if cfg.Session.AutoRefresh {
		refresher = refresh.NewScheduler(refresh.Config{
			Store:     store,
			Refresher: idp,
			Margin:    cfg.Session.RefreshMargin,
			MaxTries:  uint(cfg.Session.MaxRefreshTries),
			Logger:    b.logger,
			Metrics:   metrics,
		})
	}

	gate := &Gate{
		config:     cfg,
		provider:   idp,
		profiles:   profiles,
		mirror:     mir,
		mirrorKind: mirrorKind,
		store:      store,
		nav:        gateway,
		refresher:  refresher,
		audit:      dispatcher,
		metrics:    metrics,
		log:        log,
		state:      StateInitializing,
	}

	b.built = true
	return gate, nil
}
