// Package main exercises a full gate lifecycle against in-memory backends.
//
// Nothing here touches the network: the identity provider and profile store
// are the library's static implementations and the mirror lives in memory.
// The tool exists to watch the state machine, audit stream, and metrics move
// under realistic sequences.
//
// Run:
//
//	go run ./cmd/authgate-sim walk
//	go run ./cmd/authgate-sim refresh --access-ttl 3s --margin 2s --cycles 2
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	authgate "github.com/casedock/authgate"
	"github.com/casedock/authgate/metrics/export/internaldefs"
	"github.com/casedock/authgate/profile"
	"github.com/casedock/authgate/provider"
)

const (
	consultantID       = "usr-consultant-01"
	consultantEmail    = "nora@alderhelp.test"
	consultantPassword = "blue-ladder-9"
	customerID         = "usr-customer-07"
	customerEmail      = "theo@brightco.test"
	customerPassword   = "green-door-4"
)

var (
	version = "dev"
	cli     struct {
		Walk    WalkCmd    `cmd:"" help:"Walk the session lifecycle: bootstrap, sign-in, impersonation, sign-out."`
		Refresh RefreshCmd `cmd:"" help:"Sign in with a short-lived token and watch the background refresh rotate it."`
		Debug   bool       `help:"Enable debug logging."`
		Version kong.VersionFlag
	}
)

// Globals carries the flags every command shares.
type Globals struct {
	Log zerolog.Logger
}

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)))

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	err := cmd.Run(&Globals{Log: log})
	cmd.FatalIfErrorf(err)
}

// simGate bundles a built gate with the doubles behind it and a goroutine
// that narrates the audit stream.
type simGate struct {
	gate     *authgate.Gate
	provider *provider.Static
	sink     *authgate.ChannelSink
	quit     chan struct{}
	done     chan struct{}
}

func buildGate(log zerolog.Logger, mutate func(*authgate.Config)) (*simGate, error) {
	idp, err := provider.NewStatic([]provider.Account{
		{UserID: consultantID, Email: consultantEmail, Password: consultantPassword, Role: "consultant"},
		{UserID: customerID, Email: customerEmail, Password: customerPassword, Role: "user"},
	})
	if err != nil {
		return nil, fmt.Errorf("seed provider: %w", err)
	}

	profiles := profile.NewStaticStore(
		&profile.Profile{ID: consultantID, Name: "Nora Voss", Email: consultantEmail, Role: profile.RoleConsultant, CompanyID: "alderhelp"},
		&profile.Profile{ID: customerID, Name: "Theo Brand", Email: customerEmail, Role: profile.RoleUser, CompanyID: "brightco"},
	)

	cfg := authgate.DefaultConfig()
	cfg.Mirror.Backend = "memory"
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	if mutate != nil {
		mutate(&cfg)
	}

	sink := authgate.NewChannelSink(64)

	gate, err := authgate.New().
		WithConfig(cfg).
		WithProvider(idp).
		WithProfileStore(profiles).
		WithAuditSink(sink).
		WithHardRedirect(func(path string) {
			log.Warn().Str("path", path).Msg("hard redirect requested")
		}).
		WithLogger(log).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build gate: %w", err)
	}

	sg := &simGate{
		gate:     gate,
		provider: idp,
		sink:     sink,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	gate.OnStateChange(func(change authgate.StateChange) {
		entry := log.Info().
			Str("from", change.From.String()).
			Str("to", change.To.String())
		if change.Profile != nil {
			entry = entry.Str("profile", change.Profile.Name)
		}
		if change.Impersonation != nil {
			entry = entry.Str("impersonation_id", change.Impersonation.ID)
		}
		entry.Msg("state change")
	})

	go sg.narrateAudit(log)
	return sg, nil
}

func (s *simGate) narrateAudit(log zerolog.Logger) {
	defer close(s.done)
	print := func(ev authgate.AuditEvent) {
		entry := log.Info()
		if !ev.Success {
			entry = log.Warn()
		}
		entry = entry.Str("audit", ev.EventType)
		if ev.UserID != "" {
			entry = entry.Str("user", ev.UserID)
		}
		if ev.ActorID != "" {
			entry = entry.Str("actor", ev.ActorID)
		}
		if ev.Error != "" {
			entry = entry.Str("error", ev.Error)
		}
		entry.Msg("audit event")
	}

	for {
		select {
		case ev := <-s.sink.Events():
			print(ev)
		case <-s.quit:
			// The dispatcher drained into the sink on close; flush the rest.
			for {
				select {
				case ev := <-s.sink.Events():
					print(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *simGate) finish() {
	s.gate.Close()
	close(s.quit)
	<-s.done
}

func report(log zerolog.Logger, gate *authgate.Gate) {
	r := gate.StatusReport()
	log.Info().
		Str("state", r.State.String()).
		Str("active_role", string(r.ActiveRole)).
		Bool("impersonating", r.Impersonating).
		Bool("refresh_armed", r.RefreshArmed).
		Str("mirror", r.MirrorBackend).
		Msg("status report")
}

func dumpMetrics(gate *authgate.Gate) {
	snapshot := gate.MetricsSnapshot()
	fmt.Println("---- metrics ----")
	for _, def := range internaldefs.CounterDefs {
		if v := snapshot.Counters[def.ID]; v > 0 {
			fmt.Printf("%-44s %d\n", def.Name, v)
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		buckets := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		total := internaldefs.CumulativeBuckets(buckets)[7]
		if total > 0 {
			fmt.Printf("%-44s %d samples\n", def.Name, total)
		}
	}
}

// WalkCmd drives one complete lifecycle and prints everything the gate
// observes along the way.
type WalkCmd struct {
	Impersonate bool `help:"Include the impersonation leg." default:"true" negatable:""`
}

func (w *WalkCmd) Run(ctx context.Context, globals *Globals) error {
	log := globals.Log

	sg, err := buildGate(log, nil)
	if err != nil {
		return err
	}
	defer sg.finish()
	gate := sg.gate

	log.Info().Msg("bootstrapping with no stored session")
	if err := gate.Start(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	report(log, gate)

	reqCtx := authgate.WithClientIP(authgate.WithRoutePath(ctx, "/auth"), "203.0.113.9")
	log.Info().Str("email", consultantEmail).Msg("signing in")
	if err := gate.SignIn(reqCtx, consultantEmail, consultantPassword); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	report(log, gate)

	if w.Impersonate {
		log.Info().Str("target", customerID).Msg("starting impersonation")
		if err := gate.StartImpersonation(ctx, customerID); err != nil {
			return fmt.Errorf("start impersonation: %w", err)
		}
		report(log, gate)

		log.Info().Msg("ending impersonation")
		if err := gate.EndImpersonation(ctx); err != nil {
			return fmt.Errorf("end impersonation: %w", err)
		}
		report(log, gate)
	}

	log.Info().Msg("signing out")
	if err := gate.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	report(log, gate)

	dumpMetrics(gate)
	return nil
}

// RefreshCmd shortens the access token lifetime so the refresh scheduler
// fires within seconds instead of hours.
type RefreshCmd struct {
	AccessTTL time.Duration `help:"Access token lifetime." default:"3s"`
	Margin    time.Duration `help:"How long before expiry the refresh fires." default:"2s"`
	Cycles    int           `help:"Refresh rotations to watch before signing out." default:"2"`
}

func (r *RefreshCmd) Run(ctx context.Context, globals *Globals) error {
	log := globals.Log

	if r.Cycles <= 0 {
		return fmt.Errorf("cycles must be > 0")
	}
	if r.Margin <= 0 || r.Margin >= r.AccessTTL {
		return fmt.Errorf("margin must sit between 0 and the access TTL")
	}

	sg, err := buildGate(log, func(cfg *authgate.Config) {
		cfg.Session.RefreshMargin = r.Margin
	})
	if err != nil {
		return err
	}
	defer sg.finish()
	gate := sg.gate
	sg.provider.SetAccessTTL(r.AccessTTL)

	if err := gate.Start(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := gate.SignIn(ctx, consultantEmail, consultantPassword); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	log.Info().
		Dur("access_ttl", r.AccessTTL).
		Dur("margin", r.Margin).
		Int("cycles", r.Cycles).
		Msg("signed in, watching for rotations")

	deadline := time.Now().Add(time.Duration(r.Cycles)*r.AccessTTL + 10*time.Second)
	for {
		refreshed := gate.Metrics().Value(authgate.MetricRefreshSuccess)
		if refreshed >= uint64(r.Cycles) {
			log.Info().Uint64("rotations", refreshed).Msg("refresh cycles observed")
			break
		}
		if gate.State() == authgate.StateError {
			return fmt.Errorf("gate entered error state: %w", gate.LastError())
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no refresh after %d rotations within deadline", refreshed)
		}
		time.Sleep(200 * time.Millisecond)
	}

	if err := gate.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	dumpMetrics(gate)
	return nil
}
