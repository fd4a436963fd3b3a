package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/bookmerge/internal/catalog"
)

// Completer sends one system/user prompt pair to a text-classification
// service and returns the raw completion. Implementations make a single
// attempt; retrying is the Classifier's job.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Defaults used when a Config field is zero.
const (
	DefaultBatchSize   = 20
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
	DefaultDelay       = time.Second

	// MaxBackoff caps the wait before any single retry.
	MaxBackoff = time.Minute
)

// Config controls batching and recovery.
type Config struct {
	// Labels is the closed vocabulary. Answers outside it are coerced to
	// DefaultLabel.
	Labels       []string
	DefaultLabel string

	BatchSize   int
	MaxAttempts int

	// Backoff before retry n is Backoff * 2^(n-1), capped at MaxBackoff.
	Backoff time.Duration

	// Delay separates successive batch dispatches. Negative disables it.
	Delay time.Duration

	// Parallelism bounds concurrent batches. 0 or 1 is sequential.
	Parallelism int
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) { c.log = l }
}

// WithMetrics records outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// WithSleep replaces the timer used for backoff and inter-batch delay.
func WithSleep(fn SleepFunc) Option {
	return func(c *Classifier) { c.sleep = fn }
}

// Classifier labels records through a Completer.
type Classifier struct {
	client  Completer
	cfg     Config
	vocab   map[string]bool
	log     *zap.Logger
	metrics *Metrics
	sleep   SleepFunc
}

// New returns a Classifier. The default label is always part of the
// vocabulary.
func New(client Completer, cfg Config, opts ...Option) (*Classifier, error) {
	if client == nil {
		return nil, errors.New("oracle: nil completer")
	}
	if cfg.DefaultLabel == "" {
		cfg.DefaultLabel = catalog.DefaultLabel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}

	vocab := make(map[string]bool, len(cfg.Labels)+1)
	labels := make([]string, 0, len(cfg.Labels)+1)
	for _, l := range cfg.Labels {
		if l == "" {
			return nil, errors.New("oracle: empty label in vocabulary")
		}
		if !vocab[l] {
			vocab[l] = true
			labels = append(labels, l)
		}
	}
	if !vocab[cfg.DefaultLabel] {
		vocab[cfg.DefaultLabel] = true
		labels = append(labels, cfg.DefaultLabel)
	}
	cfg.Labels = labels

	c := &Classifier{
		client: client,
		cfg:    cfg,
		vocab:  vocab,
		log:    zap.NewNop(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Labels returns the vocabulary, default label included.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.cfg.Labels...)
}

// ClassifyBatch labels one batch. It always returns len(batch) labels, each
// from the vocabulary. Failures are absorbed into the default label.
func (c *Classifier) ClassifyBatch(ctx context.Context, batch []catalog.Record) []string {
	labels, _ := c.classifyBatch(ctx, 0, batch)
	return labels
}

// Classify chunks records into batches and labels them. The only error is
// ctx being done.
func (c *Classifier) Classify(ctx context.Context, records []catalog.Record) ([]catalog.Classified, error) {
	batches := chunk(records, c.cfg.BatchSize)
	results := make([][]catalog.Classified, len(batches))

	run := func(ctx context.Context, i int) {
		labels, via := c.classifyBatch(ctx, i, batches[i])
		out := make([]catalog.Classified, len(batches[i]))
		for j, rec := range batches[i] {
			out[j] = catalog.Classified{Record: rec, Group: labels[j], Via: via[j]}
		}
		results[i] = out
	}

	if c.cfg.Parallelism <= 1 {
		for i := range batches {
			if i > 0 {
				if err := c.pause(ctx); err != nil {
					return nil, err
				}
			}
			run(ctx, i)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.Parallelism)
		var dispatchErr error
		for i := range batches {
			if i > 0 {
				if err := c.pause(gctx); err != nil {
					dispatchErr = err
					break
				}
			}
			g.Go(func() error {
				run(gctx, i)
				return nil
			})
		}
		_ = g.Wait()
		if dispatchErr != nil {
			return nil, dispatchErr
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	out := make([]catalog.Classified, 0, len(records))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (c *Classifier) pause(ctx context.Context) error {
	if c.cfg.Delay < 0 {
		return ctx.Err()
	}
	return c.sleep(ctx, c.cfg.Delay)
}

// classifyBatch returns one label and one Via per record in batch.
func (c *Classifier) classifyBatch(ctx context.Context, n int, batch []catalog.Record) ([]string, []catalog.Via) {
	labels := make([]string, len(batch))
	via := make([]catalog.Via, len(batch))
	if len(batch) == 0 {
		return labels, via
	}

	log := c.log.With(zap.Int("batch", n), zap.Int("size", len(batch)))
	fallback := func(reason string, err error) ([]string, []catalog.Via) {
		log.Warn("oracle batch fell back to default label",
			zap.String("reason", reason),
			zap.String("label", c.cfg.DefaultLabel),
			zap.Error(err))
		c.metrics.batch(OutcomeFallback)
		for i := range labels {
			labels[i] = c.cfg.DefaultLabel
			via[i] = catalog.ViaFallback
		}
		return labels, via
	}

	system, user := BuildPrompt(batch, c.cfg.Labels, c.cfg.DefaultLabel)
	text, err := c.complete(ctx, log, system, user)
	if err != nil {
		return fallback("transport", err)
	}

	answers, err := ParseResponse(text)
	if err != nil {
		return fallback("parse", err)
	}

	var coerced int
	for _, a := range answers {
		i := a.Index - 1
		if i < 0 || i >= len(batch) || labels[i] != "" {
			continue
		}
		if !c.vocab[a.Label] {
			log.Debug("label outside vocabulary", zap.Int("index", a.Index), zap.String("label", a.Label))
			coerced++
			labels[i] = c.cfg.DefaultLabel
			via[i] = catalog.ViaDefault
			continue
		}
		labels[i] = a.Label
		via[i] = catalog.ViaOracle
	}

	var missing int
	for i := range labels {
		if labels[i] == "" {
			missing++
			labels[i] = c.cfg.DefaultLabel
			via[i] = catalog.ViaDefault
		}
	}

	c.metrics.coerced(coerced)
	c.metrics.missing(missing)
	c.metrics.batch(OutcomeOK)
	log.Debug("oracle batch classified", zap.Int("coerced", coerced), zap.Int("missing", missing))
	return labels, via
}

func (c *Classifier) complete(ctx context.Context, log *zap.Logger, system, user string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		text, err := c.client.Complete(ctx, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err
		log.Warn("oracle call failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == c.cfg.MaxAttempts {
			break
		}
		c.metrics.retry()
		if err := c.sleep(ctx, backoff(c.cfg.Backoff, attempt)); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("after %d attempt(s): %w", c.cfg.MaxAttempts, lastErr)
}

// backoff returns base * 2^(attempt-1), saturating at MaxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return base
	}
	d := base
	for i := 1; i < attempt && d < MaxBackoff; i++ {
		d *= 2
	}
	return min(d, MaxBackoff)
}

func chunk(records []catalog.Record, size int) [][]catalog.Record {
	var out [][]catalog.Record
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
