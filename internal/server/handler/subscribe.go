package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// Subscriber registers alert e-mail subscribers.
type Subscriber interface {
	Subscribe(ctx context.Context, email string) (alreadySubscribed bool, err error)
}

// SubscribeHandler serves the e-mail subscription endpoint.
type SubscribeHandler struct {
	subscribers Subscriber
	logger      *slog.Logger
}

// NewSubscribeHandler creates a SubscribeHandler.
func NewSubscribeHandler(subscribers Subscriber, logger *slog.Logger) *SubscribeHandler {
	return &SubscribeHandler{subscribers: subscribers, logger: logger.With(slog.String("handler", "subscribe"))}
}

type subscribeRequest struct {
	Email string `json:"email"`
}

// Subscribe registers the posted address.
// POST /api/subscribe
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Email inválido")
		return
	}

	already, err := h.subscribers.Subscribe(r.Context(), req.Email)
	switch {
	case errors.Is(err, domain.ErrInvalidEmail):
		writeMessage(w, http.StatusBadRequest, "Email inválido")
	case err != nil:
		h.logger.ErrorContext(r.Context(), "subscribe failed", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Erro interno. Tente novamente mais tarde.")
	case already:
		writeJSON(w, http.StatusOK, map[string]any{"message": "Você já está inscrito!", "alreadySubscribed": true})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"message":           "Inscrito com sucesso! Você receberá alertas de surebets.",
			"alreadySubscribed": false,
		})
	}
}
