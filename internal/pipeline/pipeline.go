// Package pipeline runs one consolidation pass:
// load, merge, classify, assign.
//
// Run never emits a partial catalog. Assignment starts only after every
// record has a group, whether the oracle answered or the batch fell back.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/roach88/bookmerge/internal/assign"
	"github.com/roach88/bookmerge/internal/catalog"
	"github.com/roach88/bookmerge/internal/classify"
	"github.com/roach88/bookmerge/internal/merge"
	"github.com/roach88/bookmerge/internal/oracle"
	"github.com/roach88/bookmerge/internal/snapshot"
	"github.com/roach88/bookmerge/internal/taxonomy"
)

// Strategy selects the base classifier for records no override claims.
type Strategy string

const (
	StrategyRules  Strategy = "rules"
	StrategyOracle Strategy = "oracle"
	StrategySource Strategy = "source"
)

// ParseStrategy validates a strategy name. Empty means rules.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyRules:
		return StrategyRules, nil
	case StrategyOracle, StrategySource:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown classifier %q: must be one of rules, oracle, source", s)
}

// Input describes one run.
type Input struct {
	// Sources in site precedence order, highest first.
	Sources []snapshot.Source

	// ConfigPrecedence optionally reorders sources for config merging.
	ConfigPrecedence []string

	// Taxonomy defaults to taxonomy.Default().
	Taxonomy *taxonomy.Taxonomy

	Strategy Strategy

	// Oracle is required for StrategyOracle.
	Oracle oracle.Completer
}

// Stats summarizes a run.
type Stats struct {
	Sources     []merge.SourceStats `json:"sources"`
	Loaded      int                 `json:"loaded"`
	Merged      int                 `json:"merged"`
	Duplicates  int                 `json:"duplicates"`
	IconsFilled int                 `json:"icons_filled"`
	ByVia       map[catalog.Via]int `json:"by_via"`
	Groups      int                 `json:"groups"`
	Sites       int                 `json:"sites"`
	Configs     int                 `json:"configs"`
	Hash        string              `json:"hash"`
}

// Result is the outcome of Run.
type Result struct {
	Catalog *catalog.Catalog
	Stats   Stats
	RunID   string

	// Metrics gathers the counters recorded during the run.
	Metrics prometheus.Gatherer
}

type runner struct {
	log      *zap.Logger
	registry *prometheus.Registry
	sleep    oracle.SleepFunc
	runID    string
}

// Option configures Run.
type Option func(*runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *runner) { r.log = l }
}

// WithRegistry records metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(r *runner) { r.registry = reg }
}

// WithSleep replaces the oracle's backoff and rate-limit sleeper.
func WithSleep(fn oracle.SleepFunc) Option {
	return func(r *runner) { r.sleep = fn }
}

// WithRunID fixes the run id instead of generating a UUIDv7.
func WithRunID(id string) Option {
	return func(r *runner) { r.runID = id }
}

// Run executes the pipeline.
func Run(ctx context.Context, in Input, opts ...Option) (*Result, error) {
	r := &runner{log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}
	if r.runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generating run id: %w", err)
		}
		r.runID = id.String()
	}
	log := r.log.With(zap.String("run_id", r.runID))

	tx := in.Taxonomy
	if tx == nil {
		tx = taxonomy.Default()
	}
	strategy := in.Strategy
	if strategy == "" {
		strategy = StrategyRules
	}
	m := newMetrics(r.registry)

	// Load
	snaps, err := snapshot.LoadAll(in.Sources)
	if err != nil {
		return nil, err
	}
	for _, s := range snaps {
		log.Debug("snapshot loaded",
			zap.String("source", s.Name),
			zap.String("path", s.Path),
			zap.Int("records", len(s.Records)),
			zap.Int("configs", len(s.Configs)))
		if len(s.Records) == 0 {
			log.Warn("snapshot has no sites; only its configs are merged", zap.String("source", s.Name))
		}
	}

	// Merge
	merged, err := merge.Snapshots(snaps, in.ConfigPrecedence)
	if err != nil {
		return nil, err
	}
	stats := Stats{Sources: merged.Stats, Merged: len(merged.Records)}
	for _, s := range merged.Stats {
		stats.Loaded += s.Records
		stats.Duplicates += s.Duplicates
	}
	m.records.WithLabelValues("loaded").Add(float64(stats.Loaded))
	m.records.WithLabelValues("merged").Add(float64(stats.Merged))
	m.records.WithLabelValues("duplicate").Add(float64(stats.Duplicates))
	log.Info("snapshots merged",
		zap.Int("sources", len(snaps)),
		zap.Int("loaded", stats.Loaded),
		zap.Int("merged", stats.Merged),
		zap.Int("duplicates", stats.Duplicates))

	if tx.Icons.Fill {
		stats.IconsFilled = fillIcons(merged.Records, tx.Icons.API)
		m.iconsFilled.Add(float64(stats.IconsFilled))
		log.Debug("icons filled", zap.Int("count", stats.IconsFilled))
	}

	// Classify
	base, err := r.baseClassifier(strategy, tx, in.Oracle, m, log)
	if err != nil {
		return nil, err
	}
	composite := &classify.Composite{Overrides: tx.Overrides(), Base: base}
	classified, err := composite.Classify(ctx, merged.Records)
	if err != nil {
		return nil, err
	}
	stats.ByVia = make(map[catalog.Via]int)
	for _, c := range classified {
		stats.ByVia[c.Via]++
		m.classified.WithLabelValues(string(c.Via)).Inc()
	}
	log.Info("records classified",
		zap.String("strategy", string(strategy)),
		zap.Any("by_via", stats.ByVia))

	// Assign
	configs := merge.Configs(merged.Configs, tx.DefaultConfigs())
	cat, err := assign.Assign(classified, tx.AssignOptions(assign.VisibilityFrom(merged.Groups)), configs)
	if err != nil {
		return nil, err
	}
	hash, err := cat.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing catalog: %w", err)
	}

	stats.Groups = len(cat.Groups)
	stats.Sites = len(cat.Sites)
	stats.Configs = len(cat.Configs)
	stats.Hash = hash
	m.groups.Set(float64(stats.Groups))
	m.sites.Set(float64(stats.Sites))

	log.Info("catalog assigned",
		zap.Int("groups", stats.Groups),
		zap.Int("sites", stats.Sites),
		zap.Int("configs", stats.Configs),
		zap.String("hash", hash))

	return &Result{Catalog: cat, Stats: stats, RunID: r.runID, Metrics: r.registry}, nil
}

func (r *runner) baseClassifier(strategy Strategy, tx *taxonomy.Taxonomy, client oracle.Completer, m *metrics, log *zap.Logger) (classify.Classifier, error) {
	switch strategy {
	case StrategyRules:
		rc, err := tx.RuleClassifier()
		if err != nil {
			return nil, fmt.Errorf("compiling rules: %w", err)
		}
		return &classify.PerRecord{Labeler: rc, Via: catalog.ViaRule, DefaultLabel: tx.DefaultLabel}, nil
	case StrategySource:
		return &classify.PerRecord{Labeler: classify.SourceGroup{}, Via: catalog.ViaSource, DefaultLabel: tx.DefaultLabel}, nil
	case StrategyOracle:
		if client == nil {
			return nil, fmt.Errorf("oracle classifier requires a completer")
		}
		opts := []oracle.Option{oracle.WithLogger(log), oracle.WithMetrics(m.oracle)}
		if r.sleep != nil {
			opts = append(opts, oracle.WithSleep(r.sleep))
		}
		return oracle.New(client, tx.OracleConfig(), opts...)
	}
	return nil, fmt.Errorf("unknown classifier %q", strategy)
}

// fillIcons sets a favicon service URL on records without an icon and
// returns how many were filled.
func fillIcons(records []catalog.Record, api string) int {
	n := 0
	for i := range records {
		if records[i].Icon != "" {
			continue
		}
		if icon := catalog.FaviconURL(api, records[i].URL); icon != "" {
			records[i].Icon = icon
			n++
		}
	}
	return n
}
