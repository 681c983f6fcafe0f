package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/user/importcars-service/internal/domain"
	"github.com/user/importcars-service/internal/engine"
)

// runState accumulates one run's output so clients can poll for it.
// Listing data lives only for the process lifetime; persistence is the
// caller's business.
type runState struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`

	mu       sync.Mutex
	running  bool
	listings []domain.NormalizedListing
	report   domain.Report
}

func (r *runState) snapshot() (bool, domain.Report, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running, r.report, len(r.listings)
}

func (r *runState) listingsCopy() []domain.NormalizedListing {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.NormalizedListing, len(r.listings))
	copy(out, r.listings)
	return out
}

type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*runState
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*runState)}
}

func (reg *runRegistry) get(id string) *runState {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.runs[id]
}

// start launches the queries in the background and registers a state
// handle for polling.
func (reg *runRegistry) start(e *engine.Engine, queries []domain.ScrapeQuery) *runState {
	state := &runState{
		ID:        newRunID(),
		StartedAt: time.Now().UTC(),
		running:   true,
	}
	reg.mu.Lock()
	reg.runs[state.ID] = state
	reg.mu.Unlock()

	go func() {
		result := e.Run(context.Background(), queries...)
		for listing := range result.Listings() {
			state.mu.Lock()
			state.listings = append(state.listings, listing)
			state.mu.Unlock()
		}
		report := result.Report()
		state.mu.Lock()
		state.report = report
		state.running = false
		state.mu.Unlock()
	}()

	return state
}

func newRunID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
