package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/domain"
	"github.com/user/importcars-service/internal/scraper"
)

type fetchResult struct {
	res   *domain.PageResult
	err   error
	delay time.Duration
}

// fakeAdapter replays a per-cursor script; the last entry repeats once
// the script is exhausted. Unscripted cursors return an empty exhausted
// page, mimicking a source that ran out of results.
type fakeAdapter struct {
	source string
	mode   scraper.PagingMode

	mu    sync.Mutex
	calls map[string]int
	pages map[string][]fetchResult
}

func newFakeAdapter(source string, mode scraper.PagingMode) *fakeAdapter {
	return &fakeAdapter{
		source: source,
		mode:   mode,
		calls:  make(map[string]int),
		pages:  make(map[string][]fetchResult),
	}
}

func (a *fakeAdapter) Source() string             { return a.source }
func (a *fakeAdapter) Paging() scraper.PagingMode { return a.mode }

func (a *fakeAdapter) FetchPage(ctx context.Context, q domain.ScrapeQuery, cursor string) (*domain.PageResult, error) {
	a.mu.Lock()
	a.calls[cursor]++
	script := a.pages[cursor]
	n := a.calls[cursor]
	a.mu.Unlock()

	if len(script) == 0 {
		return &domain.PageResult{Exhausted: true}, nil
	}
	step := script[min(n, len(script))-1]
	if step.delay > 0 {
		time.Sleep(step.delay)
	}
	return step.res, step.err
}

func (a *fakeAdapter) callCount(cursor string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[cursor]
}

func records(ids ...string) []domain.RawRecord {
	out := make([]domain.RawRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.RawRecord{"listing_id": id})
	}
	return out
}

func page(next string, ids ...string) fetchResult {
	return fetchResult{res: &domain.PageResult{RawRecords: records(ids...), NextCursor: next}}
}

func lastPage(ids ...string) fetchResult {
	return fetchResult{res: &domain.PageResult{RawRecords: records(ids...), Exhausted: true}}
}

func retriesExhausted(source string) fetchResult {
	return fetchResult{err: &domain.OrchestrationError{
		Kind:   domain.OrchestrationRetriesExhausted,
		Source: source,
		Err:    &domain.TransportError{Kind: domain.TransportTransient, Source: source},
	}}
}

func antiBot(source string) fetchResult {
	return fetchResult{err: &domain.TransportError{
		Kind:   domain.TransportAntiBotRejected,
		Source: source,
	}}
}

func collect(run *Run) ([]string, domain.Summary) {
	var ids []string
	for rec := range run.Records() {
		id, _ := rec["listing_id"].(string)
		ids = append(ids, id)
	}
	return ids, run.Summary()
}

func newTestOrchestrator(adapters ...scraper.Adapter) *Orchestrator {
	return New(adapters, 4, nil, zap.NewNop())
}

func TestRunSequentialComplete(t *testing.T) {
	ad := newFakeAdapter(domain.SourceMobileDe, scraper.PagingSequential)
	ad.pages[""] = []fetchResult{page("2", "101", "102")}
	ad.pages["2"] = []fetchResult{lastPage("103")}

	run := newTestOrchestrator(ad).Run(context.Background(), domain.ScrapeQuery{Source: domain.SourceMobileDe})
	ids, summary := collect(run)

	require.Equal(t, []string{"101", "102", "103"}, ids)
	require.Equal(t, domain.RunComplete, summary.Status)
	require.Equal(t, 2, summary.PagesFetched)
	require.Equal(t, 0, summary.PagesFailed)
	require.Equal(t, 3, summary.RecordsYielded)
}

func TestRunSequentialPartialOnPageFailure(t *testing.T) {
	ad := newFakeAdapter(domain.SourceMobileDe, scraper.PagingSequential)
	ad.pages[""] = []fetchResult{page("2", "101", "102")}
	ad.pages["2"] = []fetchResult{page("3", "103")}
	ad.pages["3"] = []fetchResult{retriesExhausted(domain.SourceMobileDe)}

	run := newTestOrchestrator(ad).Run(context.Background(), domain.ScrapeQuery{Source: domain.SourceMobileDe})
	ids, summary := collect(run)

	require.Equal(t, []string{"101", "102", "103"}, ids, "records gathered before the failure survive")
	require.Equal(t, domain.RunPartial, summary.Status)
	require.Equal(t, 2, summary.PagesFetched)
	require.Equal(t, 1, summary.PagesFailed)
	require.Zero(t, ad.callCount("4"), "no page past the broken cursor chain")
}

func TestRunSequentialFailedWithoutOutput(t *testing.T) {
	ad := newFakeAdapter(domain.SourceMobileDe, scraper.PagingSequential)
	ad.pages[""] = []fetchResult{retriesExhausted(domain.SourceMobileDe)}

	run := newTestOrchestrator(ad).Run(context.Background(), domain.ScrapeQuery{Source: domain.SourceMobileDe})
	ids, summary := collect(run)

	require.Empty(t, ids)
	require.Equal(t, domain.RunFailed, summary.Status)
}

func TestRunSequentialMaxRecords(t *testing.T) {
	ad := newFakeAdapter(domain.SourceMobileDe, scraper.PagingSequential)
	ad.pages[""] = []fetchResult{page("2", "101", "102")}
	ad.pages["2"] = []fetchResult{page("3", "103", "104")}
	ad.pages["3"] = []fetchResult{lastPage("105")}

	run := newTestOrchestrator(ad).Run(context.Background(), domain.ScrapeQuery{
		Source:     domain.SourceMobileDe,
		MaxRecords: 3,
	})
	ids, summary := collect(run)

	require.Equal(t, []string{"101", "102", "103"}, ids)
	require.Equal(t, domain.RunComplete, summary.Status)
	require.Zero(t, ad.callCount("3"), "limit reached, no further page requested")
}

func TestRunSequentialCancelled(t *testing.T) {
	ad := newFakeAdapter(domain.SourceMobileDe, scraper.PagingSequential)
	ad.pages[""] = []fetchResult{page("2", "101")}
	ad.pages["2"] = []fetchResult{{
		res:   &domain.PageResult{RawRecords: records("102"), NextCursor: "3"},
		delay: 100 * time.Millisecond,
	}}

	ctx, cancel := context.WithCancel(context.Background())
	run := newTestOrchestrator(ad).Run(ctx, domain.ScrapeQuery{Source: domain.SourceMobileDe})

	time.AfterFunc(20*time.Millisecond, cancel)
	_, summary := collect(run)

	require.Equal(t, domain.RunCancelled, summary.Status)
}

func TestRunAntiBotResubmittedOnce(t *testing.T) {
	ad := newFakeAdapter(domain.SourceMobileDe, scraper.PagingSequential)
	ad.pages[""] = []fetchResult{antiBot(domain.SourceMobileDe), lastPage("101")}

	run := newTestOrchestrator(ad).Run(context.Background(), domain.ScrapeQuery{Source: domain.SourceMobileDe})
	ids, summary := collect(run)

	require.Equal(t, []string{"101"}, ids)
	require.Equal(t, domain.RunComplete, summary.Status)
	require.Equal(t, 2, ad.callCount(""), "page resubmitted once after the rejection")
}

func TestRunAntiBotTwiceTerminatesEarly(t *testing.T) {
	ad := newFakeAdapter(domain.SourceMobileDe, scraper.PagingSequential)
	ad.pages[""] = []fetchResult{antiBot(domain.SourceMobileDe), antiBot(domain.SourceMobileDe), lastPage("101")}

	run := newTestOrchestrator(ad).Run(context.Background(), domain.ScrapeQuery{Source: domain.SourceMobileDe})
	ids, summary := collect(run)

	require.Empty(t, ids)
	require.Equal(t, domain.RunFailed, summary.Status)
	require.Contains(t, summary.Reason, "early_termination")
	require.Equal(t, 2, ad.callCount(""), "a second rejection is never resubmitted again")
}

func TestRunBootstrapFailureFatal(t *testing.T) {
	ad := newFakeAdapter(domain.SourceMobileDe, scraper.PagingSequential)
	ad.pages[""] = []fetchResult{page("2", "101")}
	ad.pages["2"] = []fetchResult{{err: &domain.BootstrapError{Source: domain.SourceMobileDe}}}

	run := newTestOrchestrator(ad).Run(context.Background(), domain.ScrapeQuery{Source: domain.SourceMobileDe})
	ids, summary := collect(run)

	require.Equal(t, []string{"101"}, ids)
	require.Equal(t, domain.RunPartial, summary.Status)
	require.Contains(t, summary.Reason, "bootstrap failed")
}

func TestRunIndexedReassemblesPageOrder(t *testing.T) {
	ad := newFakeAdapter(domain.SourceCochesNet, scraper.PagingIndexed)
	// Page 1 finishes last; output must still lead with it.
	ad.pages["1"] = []fetchResult{{
		res:   &domain.PageResult{RawRecords: records("201", "202")},
		delay: 50 * time.Millisecond,
	}}
	ad.pages["2"] = []fetchResult{page("", "203")}
	ad.pages["3"] = []fetchResult{page("", "204")}
	ad.pages["4"] = []fetchResult{lastPage("205")}

	run := newTestOrchestrator(ad).Run(context.Background(), domain.ScrapeQuery{Source: domain.SourceCochesNet})
	ids, summary := collect(run)

	require.Equal(t, []string{"201", "202", "203", "204", "205"}, ids)
	require.Equal(t, domain.RunComplete, summary.Status)
	require.Equal(t, 4, summary.PagesFetched)
}

func TestRunIndexedContinuesPastFailedPage(t *testing.T) {
	ad := newFakeAdapter(domain.SourceCochesNet, scraper.PagingIndexed)
	ad.pages["1"] = []fetchResult{page("", "201")}
	ad.pages["2"] = []fetchResult{retriesExhausted(domain.SourceCochesNet)}
	ad.pages["3"] = []fetchResult{page("", "203")}
	ad.pages["4"] = []fetchResult{lastPage("204")}

	run := newTestOrchestrator(ad).Run(context.Background(), domain.ScrapeQuery{Source: domain.SourceCochesNet})
	ids, summary := collect(run)

	require.Equal(t, []string{"201", "203", "204"}, ids, "one failed page does not end an indexed run")
	require.Equal(t, domain.RunPartial, summary.Status)
	require.Equal(t, 3, summary.PagesFetched)
	require.Equal(t, 1, summary.PagesFailed)
}

func TestRunIndexedStopsAfterConsecutiveFailures(t *testing.T) {
	ad := newFakeAdapter(domain.SourceCochesNet, scraper.PagingIndexed)
	ad.pages["1"] = []fetchResult{page("", "201")}
	for _, cursor := range []string{"2", "3", "4", "5", "6", "7", "8"} {
		ad.pages[cursor] = []fetchResult{retriesExhausted(domain.SourceCochesNet)}
	}

	run := newTestOrchestrator(ad).Run(context.Background(), domain.ScrapeQuery{Source: domain.SourceCochesNet})
	ids, summary := collect(run)

	require.Equal(t, []string{"201"}, ids)
	require.Equal(t, domain.RunPartial, summary.Status)
	require.GreaterOrEqual(t, summary.PagesFailed, maxConsecutivePageFailures)
}

func TestRunUnknownSource(t *testing.T) {
	run := newTestOrchestrator().Run(context.Background(), domain.ScrapeQuery{Source: "autoscout24"})
	ids, summary := collect(run)

	require.Empty(t, ids)
	require.Equal(t, domain.RunFailed, summary.Status)
	require.Contains(t, summary.Reason, "unknown source")
}

func TestRunAllMergesSources(t *testing.T) {
	de := newFakeAdapter(domain.SourceMobileDe, scraper.PagingSequential)
	de.pages[""] = []fetchResult{lastPage("101", "102")}
	es := newFakeAdapter(domain.SourceCochesNet, scraper.PagingIndexed)
	es.pages["1"] = []fetchResult{lastPage("201")}

	run := newTestOrchestrator(de, es).RunAll(context.Background(), []domain.ScrapeQuery{
		{Source: domain.SourceMobileDe},
		{Source: domain.SourceCochesNet},
	})
	ids, summary := collect(run)

	require.ElementsMatch(t, []string{"101", "102", "201"}, ids)
	require.Equal(t, domain.RunComplete, summary.Status)
	require.Equal(t, 2, summary.PagesFetched)
	require.Equal(t, 3, summary.RecordsYielded)
}

func TestRunAllWorstStatusWins(t *testing.T) {
	de := newFakeAdapter(domain.SourceMobileDe, scraper.PagingSequential)
	de.pages[""] = []fetchResult{lastPage("101")}
	es := newFakeAdapter(domain.SourceCochesNet, scraper.PagingIndexed)
	es.pages["1"] = []fetchResult{page("", "201")}
	es.pages["2"] = []fetchResult{retriesExhausted(domain.SourceCochesNet)}
	es.pages["3"] = []fetchResult{lastPage("202")}

	run := newTestOrchestrator(de, es).RunAll(context.Background(), []domain.ScrapeQuery{
		{Source: domain.SourceMobileDe},
		{Source: domain.SourceCochesNet},
	})
	_, summary := collect(run)

	require.Equal(t, domain.RunPartial, summary.Status)
	require.True(t, strings.Contains(summary.Reason, "retries_exhausted") ||
		strings.Contains(summary.Reason, "some pages failed"))
}

func TestPageCursorRoundTrip(t *testing.T) {
	first, err := scraper.DecodePageCursor("")
	require.NoError(t, err)
	require.Equal(t, 1, first)

	cursor := scraper.EncodePageCursor(7)
	page, err := scraper.DecodePageCursor(cursor)
	require.NoError(t, err)
	require.Equal(t, 7, page)

	_, err = scraper.DecodePageCursor("not-a-page")
	require.Error(t, err)
}
