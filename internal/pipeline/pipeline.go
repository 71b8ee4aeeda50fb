// Package pipeline wires the change tracker, correlation hub, feedback store,
// priority engine and fix generator into one closed-loop analysis run.
package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"fip/internal/autofix"
	"fip/internal/config"
	"fip/internal/correlation"
	fiperrors "fip/internal/errors"
	"fip/internal/feedback"
	"fip/internal/incremental"
	"fip/internal/metrics"
	"fip/internal/paths"
	"fip/internal/priority"
	"fip/internal/producers"
	"fip/internal/secrets"
	"fip/internal/slogutil"
	"fip/internal/storage"
	"fip/internal/typemap"
)

// Pipeline owns the long-lived components of one repository.
type Pipeline struct {
	root   string
	cfg    *config.Config
	layout paths.Layout
	logger *slog.Logger
	now    func() time.Time

	normalizer *typemap.Normalizer
	tracker    *incremental.Tracker
	hub        *correlation.Hub
	store      *feedback.Store
	engine     *priority.Engine
	generator  *autofix.Generator
	producers  []producers.Producer

	db        *storage.DB
	noHistory bool
	metrics   *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProducers replaces the producers derived from configuration.
func WithProducers(ps ...producers.Producer) Option {
	return func(p *Pipeline) { p.producers = ps }
}

// WithHub shares a correlation hub across pipelines.
func WithHub(h *correlation.Hub) Option {
	return func(p *Pipeline) { p.hub = h }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithoutHistory disables the run history database.
func WithoutHistory() Option {
	return func(p *Pipeline) { p.noHistory = true }
}

// New builds a pipeline for root. Corrupt tracker or feedback state is
// logged and discarded; malformed override or rule files are errors.
func New(root string, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fiperrors.New(fiperrors.ConfigInvalid, "invalid configuration", err)
	}

	logger = slogutil.OrDiscard(logger)
	p := &Pipeline{
		root:   root,
		cfg:    cfg,
		layout: paths.For(root),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.normalizer = typemap.New()
	if path := p.optionalFile(cfg.Typemap.OverridesFile, p.layout.TypeOverrides()); path != "" {
		if err := p.normalizer.LoadOverrides(path); err != nil {
			return nil, fiperrors.New(fiperrors.ConfigInvalid, "load type overrides", err)
		}
	}

	if p.hub == nil {
		rules := correlation.BuiltinRules()
		if path := p.optionalFile(cfg.Correlation.RulesFile, p.layout.Rules()); path != "" {
			extra, err := correlation.LoadRules(path)
			if err != nil {
				return nil, fiperrors.New(fiperrors.ConfigInvalid, "load correlation rules", err)
			}
			rules = append(rules, extra...)
		}
		p.hub = correlation.NewHub(logger, correlation.WithRules(rules...), correlation.WithClock(p.now))
	}

	p.tracker = incremental.NewTracker(root, cfg.TrackerConfig(root), logger)
	p.tracker.SetClock(p.now)
	if err := p.tracker.Load(); err != nil {
		logger.Warn("Discarding tracker snapshot", "error", err.Error())
	}

	p.store = feedback.NewStore(cfg.FeedbackStoreConfig(root), logger)
	if err := p.store.Load(); err != nil {
		logger.Warn("Discarding feedback document", "error", err.Error())
	}

	p.engine = priority.New(
		priority.WithWeights(cfg.Priority.Weights),
		priority.WithFixability(p.normalizer.IsFixable),
		priority.WithLearned(p.store),
		priority.WithLogger(logger),
	)
	p.generator = autofix.NewGenerator(p.normalizer, logger)

	if p.producers == nil {
		p.producers = p.configuredProducers()
	}

	if !p.noHistory {
		db, err := storage.Open(p.layout.Database(), logger)
		if err != nil {
			return nil, fmt.Errorf("open run history: %w", err)
		}
		p.db = db
	}
	if cfg.Metrics.Enabled {
		p.metrics = metrics.New()
	}

	logger.Debug("Pipeline ready",
		"root", root,
		"producers", len(p.producers),
		"history", p.db != nil,
	)
	return p, nil
}

// configuredProducers returns the file producers found in the findings
// directory plus the builtin secret scanner when enabled.
func (p *Pipeline) configuredProducers() []producers.Producer {
	dir := config.ResolvePath(p.root, p.cfg.Producers.FindingsDir)
	if dir == "" {
		dir = p.layout.Findings()
	}

	var out []producers.Producer
	for _, fp := range producers.DiscoverFileProducers(dir) {
		out = append(out, fp)
	}
	if p.cfg.Producers.Secrets {
		out = append(out, producers.NewSecretProducer(secrets.DefaultOptions(), p.logger))
	}
	return out
}

// optionalFile returns the configured path, or fallback when nothing is
// configured and fallback exists.
func (p *Pipeline) optionalFile(configured, fallback string) string {
	if configured != "" {
		return config.ResolvePath(p.root, configured)
	}
	if _, err := os.Stat(fallback); err == nil {
		return fallback
	} else if !errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("Cannot stat optional file", "path", fallback, "error", err.Error())
	}
	return ""
}

// Root returns the repository root.
func (p *Pipeline) Root() string { return p.root }

// Tracker returns the change tracker.
func (p *Pipeline) Tracker() *incremental.Tracker { return p.tracker }

// Hub returns the correlation hub.
func (p *Pipeline) Hub() *correlation.Hub { return p.hub }

// Feedback returns the feedback store.
func (p *Pipeline) Feedback() *feedback.Store { return p.store }

// History returns the run history database, or nil when disabled.
func (p *Pipeline) History() *storage.DB { return p.db }

// Metrics returns the collectors, or nil when disabled.
func (p *Pipeline) Metrics() *metrics.Metrics { return p.metrics }

// Close stops feedback maintenance and closes the history database.
func (p *Pipeline) Close() error {
	p.store.StopMaintenance()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
