package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/casedock/authgate/internal/metrics"
	"github.com/casedock/authgate/provider"
	"github.com/casedock/authgate/session"
)

const (
	defaultMargin   = time.Minute
	defaultMinDelay = time.Second
	defaultMaxTries = 4
)

// Refresher exchanges a refresh token for a new session. Both provider
// implementations satisfy it.
type Refresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*session.Session, error)
}

// Config wires the scheduler's collaborators.
type Config struct {
	Store     *session.Store
	Refresher Refresher

	// Margin is how long before expiry the refresh fires. Default 1m.
	Margin time.Duration

	// MinDelay floors the arm delay so an already expired session does not
	// spin the scheduler. Default 1s.
	MinDelay time.Duration

	// MaxTries bounds attempts per refresh window, transient failures
	// included. Default 4.
	MaxTries uint

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Scheduler keeps the stored session's tokens fresh. Construct with
// [NewScheduler], activate with [Scheduler.Start], stop with
// [Scheduler.Close].
type Scheduler struct {
	store     *session.Store
	refresher Refresher
	margin    time.Duration
	minDelay  time.Duration
	maxTries  uint
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	unsub   session.Unsubscribe
	started bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewScheduler builds a scheduler. It does nothing until Start.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Margin <= 0 {
		cfg.Margin = defaultMargin
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = defaultMinDelay
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = defaultMaxTries
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:     cfg.Store,
		refresher: cfg.Refresher,
		margin:    cfg.Margin,
		minDelay:  cfg.MinDelay,
		maxTries:  cfg.MaxTries,
		log:       cfg.Logger.With().Str("component", "refresh").Logger(),
		metrics:   cfg.Metrics,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the session store and arms from the current session.
// Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	if s == nil || s.store == nil || s.refresher == nil {
		return
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.unsub = s.store.Subscribe(s.onEvent)
}

// Close cancels the timer and any in-flight refresh. The store keeps
// whatever session it holds.
func (s *Scheduler) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.cancel()
		if s.unsub != nil {
			s.unsub()
		}
		s.disarm()
	})
}

// TriggerNow fires a refresh immediately, superseding the armed timer.
func (s *Scheduler) TriggerNow() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(0, func() { s.fire(gen) })
	s.mu.Unlock()
}

// Armed reports whether a refresh timer is pending. For introspection and
// tests.
func (s *Scheduler) Armed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) onEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventSignedOut, session.EventRefreshFailed:
		s.disarm()
	default:
		if ev.Session == nil {
			s.disarm()
			return
		}
		s.arm(ev.Session)
	}
}

func (s *Scheduler) arm(sess *session.Session) {
	if sess.RefreshToken == "" || sess.ExpiresAt.IsZero() {
		s.log.Debug().Msg("session has no refresh token or expiry, not arming")
		s.disarm()
		return
	}

	delay := time.Until(sess.ExpiresAt) - s.margin
	if delay < s.minDelay {
		delay = s.minDelay
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, func() { s.fire(gen) })
	s.mu.Unlock()

	s.log.Debug().Dur("delay", delay).Time("expires_at", sess.ExpiresAt).Msg("refresh armed")
}

func (s *Scheduler) disarm() {
	s.mu.Lock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
}

// fire exchanges the current refresh token. A stale generation means the
// session changed (or the scheduler closed) after this timer was armed.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	sess := s.store.Current()
	if sess == nil || sess.RefreshToken == "" {
		return
	}
	refreshToken := sess.RefreshToken

	op := func() (*session.Session, error) {
		next, err := s.refresher.RefreshSession(s.ctx, refreshToken)
		if err != nil {
			if errors.Is(err, provider.ErrRefreshRejected) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return next, nil
	}

	next, err := backoff.Retry(s.ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.log.Debug().Err(err).Dur("retry_in", wait).Msg("refresh attempt failed")
		}),
	)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.metrics.Inc(metrics.MetricRefreshFailure)
		s.log.Warn().Err(err).Msg("token refresh exhausted, clearing session")
		s.store.Clear(session.EventRefreshFailed)
		return
	}

	s.metrics.Inc(metrics.MetricRefreshSuccess)
	s.log.Debug().Str("user_id", next.UserID).Time("expires_at", next.ExpiresAt).Msg("token refreshed")
	s.store.Set(next, session.EventTokenRefreshed)
}
