package authgate

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full gate configuration. Zero values are not usable
// directly; start from DefaultConfig or LoadConfig and override per section.
type Config struct {
	Provider      ProviderConfig
	Profiles      ProfilesConfig
	Mirror        MirrorConfig
	Session       SessionConfig
	Routes        RoutesConfig
	Redirect      RedirectConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Impersonation ImpersonationConfig
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig points the gate at the identity provider's REST surface.
// Ignored when an IdentityProvider is injected through the builder.
type ProviderConfig struct {
	// BaseURL is the auth endpoint root, e.g. https://api.example.com/auth/v1.
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

/*
====================================
PROFILES CONFIG
====================================
*/

// ProfilesConfig points the gate at the profile table and sizes the
// read-through cache in front of it. Ignored when a ProfileStore is injected
// through the builder.
type ProfilesConfig struct {
	// BaseURL is the data endpoint root, e.g. https://api.example.com/rest/v1.
	BaseURL string
	APIKey  string
	Table   string

	// CacheSize is the LRU entry cap. 0 disables the cache wrapper.
	CacheSize int
	CacheTTL  time.Duration
}

/*
====================================
MIRROR CONFIG
====================================
*/

// MirrorConfig selects where the local session mirror lives. The mirror is a
// bootstrap hint and emergency-clear target, never the source of truth.
type MirrorConfig struct {
	// Backend is one of "file", "redis", "memory", "none".
	Backend string

	// Path is the file backend location. Empty means the per-user default.
	Path string

	RedisAddr string
	RedisKey  string

	// TTL expires redis-mirrored sessions server-side. 0 keeps them until
	// cleared.
	TTL time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes the automatic token refresh loop.
type SessionConfig struct {
	AutoRefresh bool

	// RefreshMargin is how long before expiry the refresh fires.
	RefreshMargin time.Duration

	// MaxRefreshTries bounds attempts per refresh window, transient
	// failures included.
	MaxRefreshTries int
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig names the two routes the gate must know about: where
// unauthenticated users are sent, and where role-denied users land.
type RoutesConfig struct {
	SignInPath  string
	DefaultPath string
}

/*
====================================
REDIRECT CONFIG
====================================
*/

// RedirectConfig tunes the guard's debounced redirect.
type RedirectConfig struct {
	// DebounceWindow delays the unauthenticated redirect so transient state
	// flaps during bootstrap do not bounce the user. 0 redirects
	// immediately.
	DebounceWindow time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
IMPERSONATION CONFIG
====================================
*/

// ImpersonationConfig switches the impersonation controller on or off.
type ImpersonationConfig struct {
	Enabled bool
}

/*
====================================
DEFAULTS
====================================
*/

func defaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Timeout: 10 * time.Second,
		},
		Profiles: ProfilesConfig{
			Table:     "profiles",
			CacheSize: 256,
			CacheTTL:  5 * time.Minute,
		},
		Mirror: MirrorConfig{
			Backend:  "file",
			RedisKey: "authgate:mirror",
		},
		Session: SessionConfig{
			AutoRefresh:     true,
			RefreshMargin:   time.Minute,
			MaxRefreshTries: 4,
		},
		Routes: RoutesConfig{
			SignInPath:  "/auth",
			DefaultPath: "/",
		},
		Redirect: RedirectConfig{
			DebounceWindow: 300 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Impersonation: ImpersonationConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the stock configuration: file mirror, auto refresh
// one minute before expiry, 300ms redirect debounce, sign-in at /auth.
func DefaultConfig() Config {
	return defaultConfig()
}

// cloneConfig exists so builder snapshots stay independent of later caller
// mutation. Config carries no reference fields, so a value copy is deep.
func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

func (c *Config) Validate() error {
	// Provider
	if c.Provider.Timeout < 0 {
		return errors.New("Provider Timeout must be >= 0")
	}

	// Profiles
	if c.Profiles.CacheSize < 0 {
		return errors.New("Profiles CacheSize must be >= 0")
	}
	if c.Profiles.CacheTTL < 0 {
		return errors.New("Profiles CacheTTL must be >= 0")
	}
	if c.Profiles.Table == "" {
		return errors.New("Profiles Table must not be empty")
	}

	// Mirror
	switch c.Mirror.Backend {
	case "file", "redis", "memory", "none":
	default:
		return errors.New("unsupported mirror backend")
	}
	if c.Mirror.Backend == "redis" && c.Mirror.RedisAddr == "" {
		return errors.New("Mirror RedisAddr required for redis backend")
	}
	if c.Mirror.TTL < 0 {
		return errors.New("Mirror TTL must be >= 0")
	}

	// Session
	if c.Session.RefreshMargin <= 0 {
		return errors.New("Session RefreshMargin must be > 0")
	}
	if c.Session.MaxRefreshTries <= 0 {
		return errors.New("Session MaxRefreshTries must be > 0")
	}

	// Routes
	if !strings.HasPrefix(c.Routes.SignInPath, "/") {
		return errors.New("Routes SignInPath must start with /")
	}
	if !strings.HasPrefix(c.Routes.DefaultPath, "/") {
		return errors.New("Routes DefaultPath must start with /")
	}

	// Redirect
	if c.Redirect.DebounceWindow < 0 {
		return errors.New("Redirect DebounceWindow must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

/*
====================================
FILE LOADING
====================================
*/

// fileConfig is the YAML shape of a config file. Durations are integral
// milliseconds; optional booleans are pointers so an absent key keeps the
// default instead of forcing false.
type fileConfig struct {
	Provider struct {
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		TimeoutMS int    `yaml:"timeout_ms"`
	} `yaml:"provider"`

	Profiles struct {
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		Table      string `yaml:"table"`
		CacheSize  *int   `yaml:"cache_size"`
		CacheTTLMS int    `yaml:"cache_ttl_ms"`
	} `yaml:"profiles"`

	Mirror struct {
		Backend   string `yaml:"backend"`
		Path      string `yaml:"path"`
		RedisAddr string `yaml:"redis_addr"`
		RedisKey  string `yaml:"redis_key"`
		TTLMS     int    `yaml:"ttl_ms"`
	} `yaml:"mirror"`

	Session struct {
		AutoRefresh     *bool `yaml:"auto_refresh"`
		RefreshMarginMS int   `yaml:"refresh_margin_ms"`
		MaxRefreshTries int   `yaml:"max_refresh_tries"`
	} `yaml:"session"`

	Routes struct {
		SignInPath  string `yaml:"sign_in_path"`
		DefaultPath string `yaml:"default_path"`
	} `yaml:"routes"`

	Redirect struct {
		DebounceWindowMS *int `yaml:"debounce_window_ms"`
	} `yaml:"redirect"`

	Audit struct {
		Enabled    *bool `yaml:"enabled"`
		BufferSize int   `yaml:"buffer_size"`
		DropIfFull *bool `yaml:"drop_if_full"`
	} `yaml:"audit"`

	Metrics struct {
		Enabled           *bool `yaml:"enabled"`
		LatencyHistograms *bool `yaml:"latency_histograms"`
	} `yaml:"metrics"`

	Impersonation struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"impersonation"`
}

// LoadConfig reads a YAML config file, expands ${ENV} references, overlays
// the values onto the defaults, and validates the result.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := defaultConfig()

	// Provider
	if fc.Provider.BaseURL != "" {
		cfg.Provider.BaseURL = fc.Provider.BaseURL
	}
	if fc.Provider.APIKey != "" {
		cfg.Provider.APIKey = fc.Provider.APIKey
	}
	if fc.Provider.TimeoutMS > 0 {
		cfg.Provider.Timeout = time.Duration(fc.Provider.TimeoutMS) * time.Millisecond
	}

	// Profiles
	if fc.Profiles.BaseURL != "" {
		cfg.Profiles.BaseURL = fc.Profiles.BaseURL
	}
	if fc.Profiles.APIKey != "" {
		cfg.Profiles.APIKey = fc.Profiles.APIKey
	}
	if fc.Profiles.Table != "" {
		cfg.Profiles.Table = fc.Profiles.Table
	}
	if fc.Profiles.CacheSize != nil {
		cfg.Profiles.CacheSize = *fc.Profiles.CacheSize
	}
	if fc.Profiles.CacheTTLMS > 0 {
		cfg.Profiles.CacheTTL = time.Duration(fc.Profiles.CacheTTLMS) * time.Millisecond
	}

	// Mirror
	if fc.Mirror.Backend != "" {
		cfg.Mirror.Backend = fc.Mirror.Backend
	}
	if fc.Mirror.Path != "" {
		cfg.Mirror.Path = fc.Mirror.Path
	}
	if fc.Mirror.RedisAddr != "" {
		cfg.Mirror.RedisAddr = fc.Mirror.RedisAddr
	}
	if fc.Mirror.RedisKey != "" {
		cfg.Mirror.RedisKey = fc.Mirror.RedisKey
	}
	if fc.Mirror.TTLMS > 0 {
		cfg.Mirror.TTL = time.Duration(fc.Mirror.TTLMS) * time.Millisecond
	}

	// Session
	if fc.Session.AutoRefresh != nil {
		cfg.Session.AutoRefresh = *fc.Session.AutoRefresh
	}
	if fc.Session.RefreshMarginMS > 0 {
		cfg.Session.RefreshMargin = time.Duration(fc.Session.RefreshMarginMS) * time.Millisecond
	}
	if fc.Session.MaxRefreshTries > 0 {
		cfg.Session.MaxRefreshTries = fc.Session.MaxRefreshTries
	}

	// Routes
	if fc.Routes.SignInPath != "" {
		cfg.Routes.SignInPath = fc.Routes.SignInPath
	}
	if fc.Routes.DefaultPath != "" {
		cfg.Routes.DefaultPath = fc.Routes.DefaultPath
	}

	// Redirect
	if fc.Redirect.DebounceWindowMS != nil {
		cfg.Redirect.DebounceWindow = time.Duration(*fc.Redirect.DebounceWindowMS) * time.Millisecond
	}

	// Audit
	if fc.Audit.Enabled != nil {
		cfg.Audit.Enabled = *fc.Audit.Enabled
	}
	if fc.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = fc.Audit.BufferSize
	}
	if fc.Audit.DropIfFull != nil {
		cfg.Audit.DropIfFull = *fc.Audit.DropIfFull
	}

	// Metrics
	if fc.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *fc.Metrics.Enabled
	}
	if fc.Metrics.LatencyHistograms != nil {
		cfg.Metrics.EnableLatencyHistograms = *fc.Metrics.LatencyHistograms
	}

	// Impersonation
	if fc.Impersonation.Enabled != nil {
		cfg.Impersonation.Enabled = *fc.Impersonation.Enabled
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
