// Package checker runs grammar checks for a document and overlays the
// results, discarding results computed for text that has since changed.
package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/grammar-sentinel/internal/cache"
	"github.com/raaihank/grammar-sentinel/internal/client"
	"github.com/raaihank/grammar-sentinel/internal/history"
	"github.com/raaihank/grammar-sentinel/internal/logger"
	"github.com/raaihank/grammar-sentinel/internal/metrics"
	"github.com/raaihank/grammar-sentinel/internal/overlay"
	"github.com/raaihank/grammar-sentinel/internal/privacy"
)

// Checker coordinates the client, the overlay engine and the optional
// cache, history, metrics and publisher
type Checker struct {
	client   GrammarClient
	sessions Sessions
	engine   atomic.Pointer[overlay.Engine]

	cache     ResultCache
	history   HistoryRecorder
	redactor  *privacy.Redactor
	metrics   *metrics.Metrics
	publisher Publisher
	logger    *logger.Logger
}

// Option configures a Checker
type Option func(*Checker)

// WithEngine sets the overlay engine. A nil engine keeps the default.
func WithEngine(e *overlay.Engine) Option {
	return func(c *Checker) {
		if e != nil {
			c.engine.Store(e)
		}
	}
}

// WithCache enables result caching
func WithCache(rc ResultCache) Option {
	return func(c *Checker) { c.cache = rc }
}

// WithHistory records completed checks. A non-nil redactor masks the text
// before it is stored.
func WithHistory(h HistoryRecorder, redactor *privacy.Redactor) Option {
	return func(c *Checker) {
		c.history = h
		c.redactor = redactor
	}
}

// WithMetrics enables Prometheus reporting
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

// WithPublisher sends check and session events to p
func WithPublisher(p Publisher) Option {
	return func(c *Checker) { c.publisher = p }
}

// New creates a checker
func New(gc GrammarClient, sessions Sessions, log *logger.Logger, opts ...Option) *Checker {
	c := &Checker{
		client:   gc,
		sessions: sessions,
		logger:   log.WithComponent("checker"),
	}
	c.engine.Store(overlay.Default())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEngine swaps the overlay engine used by later checks. A nil engine is
// ignored.
func (c *Checker) SetEngine(e *overlay.Engine) {
	if e == nil {
		c.logger.Warn("Ignoring nil overlay engine")
		return
	}
	c.engine.Store(e)
	c.logger.Info("Overlay engine updated",
		zap.Int("tolerance", e.Tolerance()),
		zap.String("unit", string(e.Unit())),
	)
}

// Engine returns the engine currently in use
func (c *Checker) Engine() *overlay.Engine {
	return c.engine.Load()
}

// Check submits the document's current text and overlays the result.
// It returns ErrStale if the document changed before the result arrived.
func (c *Checker) Check(ctx context.Context, doc *Document) (*Report, error) {
	start := time.Now()
	text, version := doc.Snapshot()
	if strings.TrimSpace(text) == "" {
		return nil, client.ErrEmptyText
	}

	annotations, cached, err := c.annotate(ctx, text)
	if err != nil {
		return nil, err
	}

	if !doc.attach(version, annotations) {
		c.observe(metrics.OutcomeStale)
		c.logger.Debug("Discarding result for outdated text", zap.Uint64("version", version))
		return nil, ErrStale
	}

	res := c.Engine().Apply(text, annotations)
	for _, s := range res.Skipped {
		c.logger.Debug("Annotation skipped",
			zap.String("word", s.Annotation.Word),
			zap.Int("position", s.Annotation.Position),
			zap.String("reason", string(s.Reason)),
		)
	}

	outcome := metrics.OutcomeOK
	if cached {
		outcome = metrics.OutcomeCached
	}
	c.observe(outcome)
	if c.metrics != nil {
		c.metrics.ObserveOverlay(res)
	}

	c.record(ctx, text, annotations, res)

	report := &Report{
		Version:     version,
		Annotations: annotations,
		Segments:    res.Segments,
		Skipped:     res.Skipped,
		Cached:      cached,
		Duration:    time.Since(start),
	}

	if c.publisher != nil {
		c.publisher.PublishCheck(CheckEvent{
			Version:    version,
			Segments:   res.Segments,
			Skipped:    res.Skipped,
			Highlights: res.Highlights(),
			Cached:     cached,
			Duration:   report.Duration,
		})
	}

	c.logger.Info("Check completed",
		zap.Uint64("version", version),
		zap.Int("annotations", len(annotations)),
		zap.Int("highlights", res.Highlights()),
		zap.Int("skipped", len(res.Skipped)),
		zap.Bool("cached", cached),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// annotate returns annotations from the cache or the grammar service
func (c *Checker) annotate(ctx context.Context, text string) ([]overlay.Annotation, bool, error) {
	token, err := c.sessions.Token(ctx)
	if err != nil {
		c.observe(metrics.OutcomeUnauthorized)
		return nil, false, fmt.Errorf("check: %w", err)
	}

	if c.cache != nil {
		anns, hit := c.cache.Get(ctx, text)
		if c.metrics != nil {
			c.metrics.ObserveCache(hit)
		}
		if hit {
			return anns, true, nil
		}
	}

	anns, err := c.client.CheckGrammar(ctx, token, text)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			c.observe(metrics.OutcomeUnauthorized)
			c.expireSession(ctx)
			return nil, false, err
		}
		c.observe(metrics.OutcomeError)
		return nil, false, err
	}

	if c.cache != nil {
		if err := c.cache.Store(ctx, text, anns); err != nil {
			c.logger.Warn("Failed to cache check result", zap.Error(err))
		}
	}
	return anns, false, nil
}

// expireSession drops a token the service rejected
func (c *Checker) expireSession(ctx context.Context) {
	if err := c.sessions.Logout(ctx); err != nil {
		c.logger.Warn("Failed to clear rejected session", zap.Error(err))
	}
	c.logger.Warn("Session rejected by grammar service, logged out")
	if c.publisher != nil {
		c.publisher.PublishSession(false, "unauthorized")
	}
}

func (c *Checker) record(ctx context.Context, text string, annotations []overlay.Annotation, res overlay.Result) {
	if c.history == nil {
		return
	}

	stored := text
	if c.redactor != nil {
		stored = c.redactor.Redact(text).Text
	}

	rec := &history.Record{
		TextHash:    cache.HashText(text),
		Text:        stored,
		Annotations: annotations,
		Highlights:  res.Highlights(),
		Skipped:     len(res.Skipped),
	}
	if err := c.history.Insert(ctx, rec); err != nil {
		c.logger.Warn("Failed to record check", zap.Error(err))
	}
}

func (c *Checker) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.ObserveCheck(outcome)
	}
}

// Preview overlays the document's annotations if they belong to its current
// text. Otherwise the text is returned as a single plain segment.
func (c *Checker) Preview(doc *Document) (overlay.Result, uint64) {
	text, version, annotations := doc.current()
	return c.Engine().Apply(text, annotations), version
}

// OverlayOnly runs the engine without contacting the service
func (c *Checker) OverlayOnly(text string, annotations []overlay.Annotation) overlay.Result {
	return c.Engine().Apply(text, annotations)
}
