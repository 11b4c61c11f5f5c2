package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// SubscriberService registers alert e-mail subscribers.
type SubscriberService struct {
	store  domain.SubscriberStore
	logger *slog.Logger
	now    func() time.Time
}

// NewSubscriberService creates a SubscriberService.
func NewSubscriberService(store domain.SubscriberStore, logger *slog.Logger) *SubscriberService {
	return &SubscriberService{
		store:  store,
		logger: logger.With(slog.String("component", "subscriber_service")),
		now:    time.Now,
	}
}

// Subscribe stores email. It reports alreadySubscribed instead of failing
// when the address is known, and returns domain.ErrInvalidEmail for a
// malformed address.
func (s *SubscriberService) Subscribe(ctx context.Context, email string) (alreadySubscribed bool, err error) {
	sub, err := domain.NewSubscriber(email, s.now().UTC())
	if err != nil {
		return false, err
	}

	if _, err := s.store.GetByEmail(ctx, sub.Email); err == nil {
		return true, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("subscriber_service: lookup: %w", err)
	}

	if err := s.store.Add(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return true, nil
		}
		return false, fmt.Errorf("subscriber_service: add: %w", err)
	}

	s.logger.InfoContext(ctx, "new subscriber", slog.String("email", sub.Email))
	return false, nil
}
