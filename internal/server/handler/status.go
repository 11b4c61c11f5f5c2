package handler

import (
	"net/http"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/pipeline"
)

// SyncStatusSource reports the latest sync outcome. Nil when the process does
// not run the worker.
type SyncStatusSource interface {
	Status() pipeline.SyncStatus
}

// ClientCounter reports connected WebSocket clients.
type ClientCounter interface {
	ClientCount() int
}

// StatusHandler serves the backend status for the dashboard. It is the REST
// fallback for the scanner_status WebSocket greeting.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	sync      SyncStatusSource
	clients   ClientCounter
}

// NewStatusHandler creates a StatusHandler. sync and clients may be nil.
func NewStatusHandler(mode string, sync SyncStatusSource, clients ClientCounter) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: time.Now().UTC(), sync: sync, clients: clients}
}

// GetStatus responds with the mode, uptime and the latest sync outcome.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"mode":          h.mode,
		"startedAt":     h.startedAt.Format(time.RFC3339),
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.clients != nil {
		body["wsClients"] = h.clients.ClientCount()
	}
	if h.sync != nil {
		body["sync"] = h.sync.Status()
	}
	writeJSON(w, http.StatusOK, body)
}
