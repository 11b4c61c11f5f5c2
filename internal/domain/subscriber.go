package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subscriber is an e-mail address that receives alert e-mails.
type Subscriber struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewSubscriber validates and normalises email.
func NewSubscriber(email string, now time.Time) (Subscriber, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return Subscriber{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return Subscriber{
		ID:           uuid.New().String(),
		Email:        normalized,
		SubscribedAt: now,
	}, nil
}
