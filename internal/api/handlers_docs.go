package api

import (
	"net/http"
	"strconv"

	"github.com/dgallion1/hansardgest/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// handleListDocuments lists stored transcripts, newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	docs, err := s.orchestrator.Store().ListDocuments(r.Context(), limit)
	if err != nil {
		s.log.Error("list documents failed", "error", err)
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []store.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}
