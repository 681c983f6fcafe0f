package orchestrator

import (
	"context"
	"strings"
	"sync"

	"github.com/user/importcars-service/internal/domain"
)

// Run is a handle on one in-flight acquisition job. Records is a lazy,
// finite, non-restartable stream; Summary blocks until it is closed.
type Run struct {
	records chan domain.RawRecord
	done    chan struct{}

	maxRecords int

	mu       sync.Mutex
	summary  domain.Summary
	finished bool
}

func newRun(maxRecords int) *Run {
	return &Run{
		records:    make(chan domain.RawRecord, 64),
		done:       make(chan struct{}),
		maxRecords: maxRecords,
	}
}

func (r *Run) Records() <-chan domain.RawRecord { return r.records }

// Summary blocks until the record stream is closed, then returns the
// final accounting.
func (r *Run) Summary() domain.Summary {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// emit pushes one record downstream. It returns false when the context
// is cancelled before the record could be handed off.
func (r *Run) emit(ctx context.Context, rec domain.RawRecord) bool {
	select {
	case r.records <- rec:
		r.mu.Lock()
		r.summary.RecordsYielded++
		r.mu.Unlock()
		return true
	case <-ctx.Done():
		return false
	}
}

// forward re-emits a record from a sub-run without recounting limits.
func (r *Run) forward(rec domain.RawRecord) {
	r.records <- rec
}

func (r *Run) limitReached() bool {
	if r.maxRecords <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary.RecordsYielded >= r.maxRecords
}

func (r *Run) pageFetched() {
	r.mu.Lock()
	r.summary.PagesFetched++
	r.mu.Unlock()
}

func (r *Run) pageFailed() {
	r.mu.Lock()
	r.summary.PagesFailed++
	r.mu.Unlock()
}

func (r *Run) finishComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	if r.summary.PagesFailed > 0 {
		r.summary.Status = domain.RunPartial
		r.summary.Reason = "some pages failed"
		return
	}
	r.summary.Status = domain.RunComplete
}

// finishTerminated records a run cut short by an error. Records already
// gathered are never discarded: with output the run is partial, without
// any it is failed.
func (r *Run) finishTerminated(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	if r.summary.RecordsYielded > 0 {
		r.summary.Status = domain.RunPartial
	} else {
		r.summary.Status = domain.RunFailed
	}
	if err != nil {
		r.summary.Reason = err.Error()
	}
}

func (r *Run) finishCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	r.summary.Status = domain.RunCancelled
	r.summary.Reason = "cancelled"
}

func (r *Run) finishFailed(reason string) {
	r.mu.Lock()
	r.finished = true
	r.summary.Status = domain.RunFailed
	r.summary.Reason = reason
	r.mu.Unlock()
	r.close()
}

func (r *Run) close() {
	close(r.records)
	close(r.done)
}

// mergeSummaries folds sub-run summaries into this run's summary, the
// worst status winning.
func (r *Run) mergeSummaries(summaries []domain.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true

	status := domain.RunComplete
	var reasons []string
	for _, s := range summaries {
		r.summary.PagesFetched += s.PagesFetched
		r.summary.PagesFailed += s.PagesFailed
		r.summary.RecordsYielded += s.RecordsYielded
		if statusRank(s.Status) > statusRank(status) {
			status = s.Status
		}
		if s.Reason != "" {
			reasons = append(reasons, s.Reason)
		}
	}
	r.summary.Status = status
	r.summary.Reason = strings.Join(reasons, "; ")
}

func statusRank(s domain.RunStatus) int {
	switch s {
	case domain.RunComplete:
		return 0
	case domain.RunPartial:
		return 1
	case domain.RunCancelled:
		return 2
	default: // failed
		return 3
	}
}
