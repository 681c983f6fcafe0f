// Package engine wires the orchestrator's raw stream through the
// normalizer and exposes the canonical-listing stream downstream
// consumers (export, comparison) work from.
package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/domain"
	"github.com/user/importcars-service/internal/monitoring"
	"github.com/user/importcars-service/internal/normalizer"
	"github.com/user/importcars-service/internal/orchestrator"
)

type Engine struct {
	orch    *orchestrator.Orchestrator
	rates   map[string]float64
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func New(orch *orchestrator.Orchestrator, rates map[string]float64, m *monitoring.Metrics, logger *zap.Logger) *Engine {
	return &Engine{orch: orch, rates: rates, metrics: m, logger: logger}
}

// Result is a handle on one normalizing run. Listings is lazy and
// finite; Report blocks until the stream is closed.
type Result struct {
	listings chan domain.NormalizedListing
	done     chan struct{}

	mu     sync.Mutex
	report domain.Report
}

func (r *Result) Listings() <-chan domain.NormalizedListing { return r.listings }

func (r *Result) Report() domain.Report {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report
}

// Run launches the queries and streams canonical listings as pages
// arrive. Each run gets a fresh normalizer so de-duplication spans
// exactly one run's output.
func (e *Engine) Run(ctx context.Context, queries ...domain.ScrapeQuery) *Result {
	result := &Result{
		listings: make(chan domain.NormalizedListing, 64),
		done:     make(chan struct{}),
	}
	norm := normalizer.New(e.rates, e.metrics, e.logger)

	var run *orchestrator.Run
	if len(queries) == 1 {
		run = e.orch.Run(ctx, queries[0])
	} else {
		run = e.orch.RunAll(ctx, queries)
	}

	go func() {
		defer close(result.listings)
		defer close(result.done)

		dropped := make(map[domain.DropReason]int)
		emitted := 0

		for rec := range run.Records() {
			listing, err := norm.Normalize(rec, rec.SourceID())
			if err != nil {
				var ne *domain.NormalizationError
				if errors.As(err, &ne) {
					dropped[ne.Reason]++
					if ne.Reason != domain.DropDuplicate && ne.Reason != domain.DropSentinel {
						e.logger.Debug("record dropped",
							zap.String("source", ne.Source),
							zap.String("reason", string(ne.Reason)),
							zap.String("field", ne.Field))
					}
				}
				continue
			}
			select {
			case result.listings <- *listing:
				emitted++
			case <-ctx.Done():
				// Drain the rest so the orchestrator can finish its
				// accounting; records gathered so far stay delivered.
				for range run.Records() {
				}
			}
		}

		summary := run.Summary()
		result.mu.Lock()
		result.report = domain.Report{
			Summary: summary,
			Normalization: domain.NormalizationStats{
				Emitted: emitted,
				Dropped: dropped,
			},
		}
		result.mu.Unlock()

		e.logger.Info("run finished",
			zap.String("status", string(summary.Status)),
			zap.Int("pages_fetched", summary.PagesFetched),
			zap.Int("pages_failed", summary.PagesFailed),
			zap.Int("listings", emitted))
	}()

	return result
}

// Collect is the convenience form for callers that want everything in
// memory: it drains the stream and returns listings plus the report.
func (e *Engine) Collect(ctx context.Context, queries ...domain.ScrapeQuery) ([]domain.NormalizedListing, domain.Report) {
	result := e.Run(ctx, queries...)
	var listings []domain.NormalizedListing
	for l := range result.Listings() {
		listings = append(listings, l)
	}
	return listings, result.Report()
}
