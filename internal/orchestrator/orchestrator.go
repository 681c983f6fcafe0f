// Package orchestrator drives source adapters page-by-page under
// concurrency and throttle limits, aggregating raw records and partial
// failures into a single lazy stream per run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/domain"
	"github.com/user/importcars-service/internal/monitoring"
	"github.com/user/importcars-service/internal/scraper"
)

// After this many pages in a row fail on an offset-addressable source,
// the run stops probing further indexes.
const maxConsecutivePageFailures = 3

type Orchestrator struct {
	adapters map[string]scraper.Adapter
	workers  int
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

func New(adapters []scraper.Adapter, workers int, m *monitoring.Metrics, logger *zap.Logger) *Orchestrator {
	bySource := make(map[string]scraper.Adapter, len(adapters))
	for _, a := range adapters {
		bySource[a.Source()] = a
	}
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{adapters: bySource, workers: workers, metrics: m, logger: logger}
}

// Run starts one acquisition job. The returned Run yields a finite,
// non-restartable stream of raw records; Summary blocks until the
// stream is closed.
func (o *Orchestrator) Run(ctx context.Context, q domain.ScrapeQuery) *Run {
	run := newRun(q.MaxRecords)

	ad, ok := o.adapters[q.Source]
	if !ok {
		run.finishFailed(fmt.Sprintf("unknown source %q", q.Source))
		return run
	}

	go func() {
		defer run.close()
		switch ad.Paging() {
		case scraper.PagingIndexed:
			o.runIndexed(ctx, ad, q, run)
		default:
			o.runSequential(ctx, ad, q, run)
		}
	}()
	return run
}

// RunAll fans one run out per query, interleaving their records into a
// single stream. Queries are how callers partition work across sources
// or across disjoint filter sets of one source.
func (o *Orchestrator) RunAll(ctx context.Context, queries []domain.ScrapeQuery) *Run {
	merged := newRun(0)

	go func() {
		defer merged.close()
		var wg sync.WaitGroup
		var mu sync.Mutex
		summaries := make([]domain.Summary, 0, len(queries))

		for _, q := range queries {
			sub := o.Run(ctx, q)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for rec := range sub.Records() {
					merged.forward(rec)
				}
				s := sub.Summary()
				mu.Lock()
				summaries = append(summaries, s)
				mu.Unlock()
			}()
		}
		wg.Wait()
		merged.mergeSummaries(summaries)
	}()
	return merged
}

// runSequential walks a cursor chain page by page. The chain is broken
// by the first page that fails after all retries: without its cursor no
// later page is addressable, so the run reports partial instead of
// guessing.
func (o *Orchestrator) runSequential(ctx context.Context, ad scraper.Adapter, q domain.ScrapeQuery, run *Run) {
	cursor := ""
	for {
		if ctx.Err() != nil {
			run.finishCancelled()
			return
		}

		res, err, fatal := o.fetchPage(ctx, ad, q, cursor)
		if err != nil {
			if ctx.Err() != nil {
				run.finishCancelled()
				return
			}
			run.pageFailed()
			o.metrics.IncPagesFailed(q.Source, failureReason(err))
			if fatal {
				o.logger.Error("run terminated early",
					zap.String("source", q.Source), zap.Error(err))
				run.finishTerminated(err)
				return
			}
			o.logger.Warn("page failed, ending cursor chain",
				zap.String("source", q.Source), zap.Error(err))
			run.finishTerminated(err)
			return
		}

		run.pageFetched()
		o.metrics.IncPagesFetched(q.Source)

		for _, rec := range res.RawRecords {
			if !run.emit(ctx, rec) {
				run.finishCancelled()
				return
			}
			if run.limitReached() {
				run.finishComplete()
				return
			}
		}

		if res.Exhausted {
			run.finishComplete()
			return
		}
		cursor = res.NextCursor
	}
}

// runIndexed fetches offset-addressable pages with a bounded worker
// pool and reassembles them by page index before emission, so output
// order matches page order even when fetches complete out of order.
func (o *Orchestrator) runIndexed(ctx context.Context, ad scraper.Adapter, q domain.ScrapeQuery, run *Run) {
	type pageOut struct {
		index int
		res   *domain.PageResult
		err   error
	}

	var (
		mu       sync.Mutex
		next     = 1
		lastPage int // highest index worth processing; 0 = unknown
		stopped  bool
		termErr  error
	)

	takeIndex := func() int {
		mu.Lock()
		defer mu.Unlock()
		if stopped || ctx.Err() != nil {
			return 0
		}
		if lastPage > 0 && next > lastPage {
			return 0
		}
		i := next
		next++
		return i
	}
	noteLastPage := func(i int) {
		mu.Lock()
		if lastPage == 0 || i < lastPage {
			lastPage = i
		}
		mu.Unlock()
	}
	stop := func(err error) {
		mu.Lock()
		stopped = true
		if termErr == nil {
			termErr = err
		}
		mu.Unlock()
	}

	results := make(chan pageOut, o.workers)
	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := takeIndex()
				if idx == 0 {
					return
				}
				res, err, fatal := o.fetchPage(ctx, ad, q, scraper.EncodePageCursor(idx))
				if fatal {
					stop(err)
					results <- pageOut{index: idx, err: err}
					return
				}
				if err == nil && res.Exhausted {
					noteLastPage(idx)
				}
				results <- pageOut{index: idx, res: res, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]pageOut)
	emitNext := 1
	consecutiveFailures := 0

	for out := range results {
		pending[out.index] = out
		for {
			cur, ok := pending[emitNext]
			if !ok {
				break
			}
			delete(pending, emitNext)
			emitNext++

			mu.Lock()
			last := lastPage
			mu.Unlock()
			if last > 0 && cur.index > last {
				continue // fetched past the end before it was known
			}

			if cur.err != nil {
				run.pageFailed()
				o.metrics.IncPagesFailed(q.Source, failureReason(cur.err))
				consecutiveFailures++
				if consecutiveFailures >= maxConsecutivePageFailures {
					stop(cur.err)
				}
				continue
			}
			consecutiveFailures = 0
			run.pageFetched()
			o.metrics.IncPagesFetched(q.Source)

			for _, rec := range cur.res.RawRecords {
				if !run.emit(ctx, rec) {
					stop(ctx.Err())
					break
				}
				if run.limitReached() {
					stop(nil)
					break
				}
			}
		}
	}

	mu.Lock()
	finalErr := termErr
	mu.Unlock()

	switch {
	case ctx.Err() != nil:
		run.finishCancelled()
	case finalErr != nil:
		run.finishTerminated(finalErr)
	default:
		run.finishComplete()
	}
}

// fetchPage calls the adapter and applies the anti-bot recovery policy:
// the first rejection invalidates the profile (done by the transport),
// so the page is resubmitted exactly once with a fresh bootstrap. A
// second rejection, or a bootstrap failure, is fatal for the run.
func (o *Orchestrator) fetchPage(ctx context.Context, ad scraper.Adapter, q domain.ScrapeQuery, cursor string) (res *domain.PageResult, err error, fatal bool) {
	res, err = ad.FetchPage(ctx, q, cursor)
	if err == nil {
		return res, nil, false
	}

	var be *domain.BootstrapError
	if errors.As(err, &be) {
		return nil, err, true
	}

	if domain.IsTransportKind(err, domain.TransportAntiBotRejected) {
		o.logger.Warn("anti-bot rejection, resubmitting page with fresh profile",
			zap.String("source", q.Source), zap.String("cursor", cursor))
		res, err = ad.FetchPage(ctx, q, cursor)
		if err == nil {
			return res, nil, false
		}
		if errors.As(err, &be) || domain.IsTransportKind(err, domain.TransportAntiBotRejected) {
			return nil, &domain.OrchestrationError{
				Kind:   domain.OrchestrationEarlyTermination,
				Source: q.Source,
				Err:    err,
			}, true
		}
	}
	return nil, err, false
}

func failureReason(err error) string {
	var te *domain.TransportError
	if errors.As(err, &te) {
		return string(te.Kind)
	}
	var oe *domain.OrchestrationError
	if errors.As(err, &oe) {
		return string(oe.Kind)
	}
	return "error"
}
