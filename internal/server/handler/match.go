package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/FilipeRosar/oddsscanner/internal/service"
)

// MatchLister returns the filtered match views.
type MatchLister interface {
	List(ctx context.Context, filter service.MatchFilter) ([]domain.MatchView, error)
}

// MatchHandler serves the match list.
type MatchHandler struct {
	matches MatchLister
	logger  *slog.Logger
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(matches MatchLister, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{matches: matches, logger: logger.With(slog.String("handler", "matches"))}
}

// ListMatches returns every match, optionally narrowed by the surebetOnly
// and valueBetOnly query flags.
// GET /api/matches
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	filter := service.MatchFilter{
		SurebetOnly:  queryBool(r, "surebetOnly"),
		ValueBetOnly: queryBool(r, "valueBetOnly"),
	}

	views, err := h.matches.List(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list matches failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load matches"})
		return
	}
	writeJSON(w, http.StatusOK, views)
}
