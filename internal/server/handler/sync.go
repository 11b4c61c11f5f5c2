package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// SyncHandler lets operators request an immediate sync cycle.
type SyncHandler struct {
	trigger chan<- struct{}
	logger  *slog.Logger
}

// NewSyncHandler creates a SyncHandler. trigger is nil when this process
// does not run the sync worker.
func NewSyncHandler(trigger chan<- struct{}, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{trigger: trigger, logger: logger.With(slog.String("handler", "sync"))}
}

// Trigger queues one cycle. A request made while a trigger is already
// pending is coalesced into it.
// POST /api/sync/trigger
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeMessage(w, http.StatusServiceUnavailable, "sync worker is not running in this process")
		return
	}

	queued := true
	select {
	case h.trigger <- struct{}{}:
	default:
		queued = false
	}
	h.logger.InfoContext(r.Context(), "sync trigger requested", slog.Bool("queued", queued))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "accepted",
		"queued":      queued,
		"requestedAt": time.Now().UTC().Format(time.RFC3339),
	})
}
