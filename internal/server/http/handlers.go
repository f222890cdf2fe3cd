package httpserver

import (
	"net/http"
	"time"
)

// healthHandler returns basic liveness status. The process is alive as long
// as it can answer.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports ready once the orchestrator has started and,
// when the database mirror is enabled, the pool is healthy.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	current := s.tracker.Current()
	if current.State == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"run":    stateIdle,
		})
		return
	}

	if s.db != nil {
		health := s.db.Health(r.Context())
		if health.Status != "healthy" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "not_ready",
				"run":      string(current.State),
				"database": health.Status,
				"error":    health.Error,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"run":    string(current.State),
	})
}

// statusHandler handles GET /status. Dataset counters are read from the
// store so they are fresher than the last published progress.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := progressToStatusResponse(s.tracker.Current(), time.Now().UTC())

	if s.papers != nil {
		stats := s.papers.Stats()
		resp.Dataset = &datasetResponse{
			Papers:             stats.Papers,
			PapersResolved:     stats.PapersResolved,
			ReferencesResolved: stats.ReferencesResolved,
			UnknownPublishers:  stats.UnknownPublishers,
		}
	}
	if s.db != nil {
		health := s.db.Health(r.Context())
		resp.Database = &databaseResponse{Status: health.Status, Error: health.Error}
	}

	writeJSON(w, http.StatusOK, resp)
}
