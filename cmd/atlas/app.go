package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"atlas-g/protocol/pkg/agent"
	"atlas-g/protocol/pkg/config"
	"atlas-g/protocol/pkg/evidence"
	"atlas-g/protocol/pkg/evidence/recorder"
	"atlas-g/protocol/pkg/evidence/retention"
	"atlas-g/protocol/pkg/evidence/storage"
	"atlas-g/protocol/pkg/generation"
	"atlas-g/protocol/pkg/governance/heuristics"
	"atlas-g/protocol/pkg/knowledge"
	"atlas-g/protocol/pkg/leads"
	"atlas-g/protocol/pkg/limits/ratelimit"
	"atlas-g/protocol/pkg/session"
	"atlas-g/protocol/pkg/telemetry/metrics"
	"atlas-g/protocol/pkg/telemetry/tracing"
)

// app owns the long-lived components of one command invocation. close
// releases them in reverse order of construction.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	tracer   *tracing.Tracer
	metrics  *metrics.Collector
	sessions session.Store
	library  *heuristics.Library
	watcher  *heuristics.Watcher
	evidence evidence.Storage
	recorder *recorder.Recorder
	pruner   *retention.Pruner
	leads    *leads.SQLiteStore

	orchestrator *agent.Orchestrator

	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newApp builds the full agent runtime.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, logger: slog.Default().With("component", "atlas")}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	if err := a.initTelemetry(ctx); err != nil {
		return nil, err
	}

	source, err := knowledge.LoadFile(cfg.Knowledge.DocumentPath)
	if err != nil {
		return nil, err
	}
	if a.library, err = loadLibrary(cfg.Governance.PatternsFile); err != nil {
		return nil, err
	}
	if cfg.Governance.WatchPatterns && cfg.Governance.PatternsFile != "" {
		a.watcher, err = heuristics.NewWatcher(cfg.Governance.PatternsFile, a.library, cfg.Governance.WatchDebounce, slog.Default())
		if err != nil {
			return nil, err
		}
		a.onClose(a.watcher.Stop)
	}

	if a.sessions, err = openSessions(ctx, cfg.Sessions); err != nil {
		return nil, err
	}
	a.onClose(a.sessions.Close)

	if err := a.initEvidence(ctx); err != nil {
		return nil, err
	}

	gen, err := generation.New(ctx, generation.ProviderConfig{
		Provider:        cfg.Generation.Provider,
		APIKey:          cfg.Generation.APIKey,
		BaseURL:         cfg.Generation.BaseURL,
		Model:           cfg.Generation.Model,
		ClassifierModel: cfg.Generation.ClassifierModel,
		Timeout:         cfg.Generation.Timeout,
	})
	if err != nil {
		return nil, err
	}

	opts := []agent.Option{
		agent.WithConfig(agent.Config{
			Subject:           cfg.Agent.Subject,
			AuditTail:         cfg.Agent.AuditTail,
			ThoughtChainLimit: cfg.Agent.ThoughtChainLimit,
			TurnTimeout:       cfg.Agent.TurnTimeout,
		}),
		agent.WithPersona(cfg.Agent.Persona),
		agent.WithContextLayers(contextLayers(cfg.Agent.ContextLayers)),
		agent.WithDomainRules(domainRules(cfg.Agent.DomainRules)),
		agent.WithSampling(generation.Sampling{
			Temperature:     cfg.Agent.Temperature,
			MaxOutputTokens: cfg.Agent.MaxOutputTokens,
		}),
		agent.WithMetrics(a.metrics),
		agent.WithTracer(a.tracer),
	}
	if a.recorder != nil {
		opts = append(opts, agent.WithRecorder(a.recorder))
	}
	if rl := cfg.Agent.RateLimit; rl.TurnsPerMinute > 0 || rl.TurnsPerHour > 0 {
		opts = append(opts, agent.WithRateLimiter(ratelimit.NewLimiter(ratelimit.Config{
			TurnsPerMinute: rl.TurnsPerMinute,
			TurnsPerHour:   rl.TurnsPerHour,
		})))
	}

	if cfg.Leads.Enabled {
		if a.leads, err = openLeads(cfg.Leads); err != nil {
			return nil, err
		}
		a.onClose(a.leads.Close)

		var notifier leads.Notifier
		if r := cfg.Notifications.Resend; r.APIKey != "" && r.To != "" {
			notifier = leads.NewResendNotifier(leads.ResendConfig{
				APIKey:    r.APIKey,
				From:      r.From,
				To:        r.To,
				Endpoint:  r.Endpoint,
				Timeout:   r.Timeout,
				FromLabel: cfg.Agent.Subject,
			})
		} else {
			a.logger.Info("lead notifications disabled: resend api key or recipient not set")
		}
		opts = append(opts, agent.WithLeads(a.leads, notifier))
	}

	a.orchestrator, err = agent.New(gen, a.library, source, a.sessions, opts...)
	if err != nil {
		return nil, err
	}

	a.logger.Info("agent ready",
		"provider", gen.Name(),
		"model", cfg.Generation.Model,
		"sessions", cfg.Sessions.Backend,
		"evidence", cfg.Evidence.Enabled,
		"leads", cfg.Leads.Enabled,
	)
	return a, nil
}

func (a *app) initTelemetry(ctx context.Context) error {
	t := a.cfg.Telemetry

	tracer, err := tracing.New(ctx, &tracing.Config{
		Enabled:     t.Tracing.Enabled,
		ServiceName: t.Tracing.ServiceName,
		Endpoint:    t.Tracing.Endpoint,
		Insecure:    t.Tracing.Insecure,
		Sampler:     t.Tracing.Sampler,
		SampleRatio: t.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tracer
	a.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return tracer.Shutdown(ctx)
	})

	a.metrics = metrics.NewCollector(&metrics.Config{
		Enabled:   t.Metrics.Enabled,
		Namespace: t.Metrics.Namespace,
	}, prometheus.NewRegistry())
	return nil
}

func (a *app) initEvidence(ctx context.Context) error {
	if !a.cfg.Evidence.Enabled {
		return nil
	}

	store, err := openEvidence(a.cfg.Evidence)
	if err != nil {
		return err
	}
	a.evidence = store
	a.onClose(store.Close)

	rc := a.cfg.Evidence.Recorder
	a.recorder = recorder.NewRecorder(store, &recorder.Config{
		Enabled:        true,
		AsyncBuffer:    rc.AsyncBuffer,
		WriteTimeout:   rc.WriteTimeout,
		MaxFieldLength: rc.MaxFieldLength,
	}, recorder.WithWriteObserver(a.metrics.RecordEvidenceWrite))
	a.onClose(a.recorder.Close)

	if a.cfg.Evidence.Retention.PruneSchedule == "" {
		return nil
	}
	a.pruner = newPruner(store, a.cfg.Evidence.Retention)
	if err := a.pruner.Start(ctx); err != nil {
		a.logger.Warn("failed to start evidence retention scheduler", "error", err)
		a.pruner = nil
		return nil
	}
	a.onClose(func() error {
		a.pruner.Stop()
		return nil
	})
	if next := a.pruner.NextPruning(); next != nil {
		a.logger.Debug("evidence retention scheduler started", "next_pruning", next)
	}
	return nil
}

// loadLibrary loads the heuristic tables from path, or the built-in tables
// when path is empty.
func loadLibrary(path string) (*heuristics.Library, error) {
	var (
		tables *heuristics.Tables
		err    error
	)
	if path == "" {
		tables, err = heuristics.LoadDefault()
	} else {
		tables, err = heuristics.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return heuristics.NewLibrary(tables), nil
}

func openSessions(ctx context.Context, cfg config.SessionsConfig) (session.Store, error) {
	switch cfg.Backend {
	case "memory":
		return session.NewMemoryStore(), nil
	case "sqlite":
		return session.NewSQLiteStore(&session.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
			WALMode:     cfg.SQLite.WALMode,
		})
	case "redis":
		return session.DialRedis(ctx, cfg.Redis.URL,
			session.WithKeyPrefix(cfg.Redis.KeyPrefix),
			session.WithTTL(cfg.Redis.TTL),
		)
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

func openEvidence(cfg config.EvidenceConfig) (evidence.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		return storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported evidence backend: %s", cfg.Backend)
	}
}

func openLeads(cfg config.LeadsConfig) (*leads.SQLiteStore, error) {
	return leads.NewSQLiteStore(leads.SQLiteConfig{
		Path:        cfg.SQLitePath,
		BusyTimeout: cfg.BusyTimeout,
	})
}

func newPruner(store evidence.Storage, cfg config.RetentionConfig) *retention.Pruner {
	days := cfg.Days
	if days < 0 {
		days = 0
	}
	return retention.NewPruner(store, &retention.Config{
		RetentionDays:       days,
		PruneSchedule:       cfg.PruneSchedule,
		ArchiveBeforeDelete: cfg.ArchiveBeforeDelete,
		ArchivePath:         cfg.ArchivePath,
		MaxRecords:          cfg.MaxRecords,
	})
}

func contextLayers(in []config.ContextLayerConfig) []agent.ContextLayer {
	if in == nil {
		return nil
	}
	out := make([]agent.ContextLayer, 0, len(in))
	for _, l := range in {
		out = append(out, agent.ContextLayer{Name: l.Name, Keywords: l.Keywords, Prompt: l.Prompt})
	}
	return out
}

func domainRules(in []config.DomainRuleConfig) []agent.DomainRule {
	if in == nil {
		return nil
	}
	out := make([]agent.DomainRule, 0, len(in))
	for _, r := range in {
		out = append(out, agent.DomainRule{Label: r.Label, Keywords: r.Keywords})
	}
	return out
}
