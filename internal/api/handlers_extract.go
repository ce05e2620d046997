package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dgallion1/hansardgest/internal/extract"
)

// handleExtract runs the engine synchronously on the request body and
// returns the chamber results. Nothing is stored.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if int64(len(raw)) > s.cfg.MaxUploadBytes {
		jsonError(w, "body exceeds max size", http.StatusRequestEntityTooLarge)
		return
	}

	q := r.URL.Query()
	dateHint, house := q.Get("date"), q.Get("house")
	if err := validateHints(dateHint, house); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	results, err := s.orchestrator.Engine().Extract(extract.RawTranscript{
		Text:      string(raw),
		DateHint:  dateHint,
		HouseHint: house,
	})
	elapsed := time.Since(start)
	s.orchestrator.Metrics().RecordExtraction(r.Context(), elapsed, results, err)

	if err != nil {
		s.orchestrator.Stats().RecordFailure(elapsed)
		var extractErr *extract.Error
		if errors.As(err, &extractErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": err.Error(),
				"kind":  extractErr.Kind,
			})
			return
		}
		s.log.Error("extract failed", "error", err)
		jsonError(w, "extraction failed", http.StatusInternalServerError)
		return
	}

	utterances := extract.CountUtterances(results)
	s.orchestrator.Stats().Record(elapsed, utterances)
	writeJSON(w, http.StatusOK, map[string]any{
		"results":    results,
		"utterances": utterances,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}
