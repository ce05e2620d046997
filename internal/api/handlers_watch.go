package api

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

const defaultWatchInterval = 250 * time.Millisecond

// handleIngestWatch upgrades to a WebSocket and pushes the job snapshot
// every time it changes. The server closes the socket once the job reaches
// a terminal status, with the status as the close reason.
func (s *Server) handleIngestWatch(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("watch upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.CloseNow()

	// Client frames are ignored; CloseRead cancels ctx when the client goes
	// away.
	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	var sent bool
	var last time.Time
	var lastStatus string
	for {
		snap := job.Snapshot()
		if !sent || !snap.UpdatedAt.Equal(last) || string(snap.Status) != lastStatus {
			if err := wsjson.Write(ctx, conn, snap); err != nil {
				s.log.Debug("watch write failed", "job_id", jobID, "error", err)
				return
			}
			sent, last, lastStatus = true, snap.UpdatedAt, string(snap.Status)
		}
		if snap.Status.Terminal() {
			conn.Close(websocket.StatusNormalClosure, string(snap.Status))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
