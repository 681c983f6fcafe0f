package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/importcars-service/internal/domain"
)

type startRunRequest struct {
	Queries []domain.ScrapeQuery `json:"queries"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Queries) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "Queries list cannot be empty")
		return
	}
	for i := range req.Queries {
		q := &req.Queries[i]
		if q.Source != domain.SourceMobileDe && q.Source != domain.SourceCochesNet {
			s.respondWithError(w, http.StatusBadRequest, "Unknown source: "+q.Source)
			return
		}
		if q.PageSize <= 0 {
			q.PageSize = s.config.DefaultPageSize
		}
		if q.MaxRecords <= 0 {
			q.MaxRecords = s.config.DefaultMaxRecords
		}
	}

	state := s.runs.start(s.engine, req.Queries)
	s.respondWithJSON(w, http.StatusAccepted, map[string]string{
		"run_id": state.ID,
	})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	state := s.runs.get(chi.URLParam(r, "runID"))
	if state == nil {
		s.respondWithError(w, http.StatusNotFound, "Run not found")
		return
	}
	running, report, count := state.snapshot()
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"id":         state.ID,
		"started_at": state.StartedAt,
		"running":    running,
		"listings":   count,
		"report":     report,
	})
}

func (s *Server) handleRunListings(w http.ResponseWriter, r *http.Request) {
	state := s.runs.get(chi.URLParam(r, "runID"))
	if state == nil {
		s.respondWithError(w, http.StatusNotFound, "Run not found")
		return
	}
	s.respondWithJSON(w, http.StatusOK, state.listingsCopy())
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
