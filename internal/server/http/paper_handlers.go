package httpserver

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// maxIDLength bounds the identifier accepted by the paper endpoint.
const maxIDLength = 512

// getPaper handles GET /papers/{id}. Identifiers are DOIs and contain
// slashes, so the route uses a wildcard; resolver prefixes are accepted.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	if s.papers == nil {
		writeError(w, http.StatusServiceUnavailable, "dataset not available")
		return
	}

	raw := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "paper id is required")
		return
	}
	if len(raw) > maxIDLength {
		writeError(w, http.StatusBadRequest, "paper id is too long")
		return
	}

	id := domain.CanonicalID(raw)
	rec, ok := s.papers.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "paper not found")
		return
	}

	writeJSON(w, http.StatusOK, domainPaperToResponse(rec))
}
