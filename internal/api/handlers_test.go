package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/config"
	"github.com/user/importcars-service/internal/domain"
	"github.com/user/importcars-service/internal/engine"
	"github.com/user/importcars-service/internal/orchestrator"
	"github.com/user/importcars-service/internal/scraper"
)

type stubAdapter struct{}

func (a *stubAdapter) Source() string             { return domain.SourceMobileDe }
func (a *stubAdapter) Paging() scraper.PagingMode { return scraper.PagingSequential }

func (a *stubAdapter) FetchPage(ctx context.Context, q domain.ScrapeQuery, cursor string) (*domain.PageResult, error) {
	return &domain.PageResult{
		RawRecords: []domain.RawRecord{{
			"source":         domain.SourceMobileDe,
			"listing_id":     "101",
			"title":          "BMW 320d",
			"price_amount":   21500.0,
			"price_currency": "EUR",
		}},
		Exhausted: true,
	}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		ServerPort:        "0",
		DefaultPageSize:   24,
		DefaultMaxRecords: 500,
	}
	orch := orchestrator.New([]scraper.Adapter{&stubAdapter{}}, 2, nil, zap.NewNop())
	eng := engine.New(orch, nil, nil, zap.NewNop())
	return NewServer(cfg, eng, zap.NewNop())
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStartRunAndPoll(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(startRunRequest{Queries: []domain.ScrapeQuery{
		{Source: domain.SourceMobileDe},
	}})
	req := httptest.NewRequest(http.MethodPost, "/api/runs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	runID := started["run_id"]
	require.NotEmpty(t, runID)

	// Poll until the background run finishes.
	deadline := time.Now().Add(2 * time.Second)
	var status map[string]any
	for {
		req = httptest.NewRequest(http.MethodGet, "/api/runs/"+runID, nil)
		rec = httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		if status["running"] == false {
			break
		}
		require.True(t, time.Now().Before(deadline), "run did not finish in time")
		time.Sleep(10 * time.Millisecond)
	}

	report := status["report"].(map[string]any)
	summary := report["summary"].(map[string]any)
	require.Equal(t, "complete", summary["status"])

	req = httptest.NewRequest(http.MethodGet, "/api/runs/"+runID+"/listings", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listings []domain.NormalizedListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	require.Len(t, listings, 1)
	require.Equal(t, "101", listings[0].ListingID)
}

func TestStartRunValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty queries", `{"queries": []}`},
		{"unknown source", `{"queries": [{"source": "autoscout24"}]}`},
		{"bad json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/runs", bytes.NewReader([]byte(tc.body)))
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRunNotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/deadbeef00000000", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
