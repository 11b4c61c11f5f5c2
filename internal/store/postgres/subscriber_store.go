package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// uniqueViolation is the SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// SubscriberStore implements domain.SubscriberStore using PostgreSQL.
type SubscriberStore struct {
	pool *pgxpool.Pool
}

// NewSubscriberStore creates a new SubscriberStore backed by the given pool.
func NewSubscriberStore(pool *pgxpool.Pool) *SubscriberStore {
	return &SubscriberStore{pool: pool}
}

// Add stores a subscriber. It returns domain.ErrAlreadyExists when the
// address is already subscribed.
func (s *SubscriberStore) Add(ctx context.Context, sub domain.Subscriber) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscribers (id, email, subscribed_at) VALUES ($1, $2, $3)`,
		sub.ID, sub.Email, sub.SubscribedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: add subscriber: %w", err)
	}
	return nil
}

// GetByEmail looks up a subscriber by normalised address.
func (s *SubscriberStore) GetByEmail(ctx context.Context, email string) (domain.Subscriber, error) {
	var sub domain.Subscriber
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, subscribed_at FROM subscribers WHERE email = $1`, email,
	).Scan(&sub.ID, &sub.Email, &sub.SubscribedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscriber{}, domain.ErrNotFound
		}
		return domain.Subscriber{}, fmt.Errorf("postgres: get subscriber: %w", err)
	}
	return sub, nil
}

// ListEmails returns every subscribed address in subscription order.
func (s *SubscriberStore) ListEmails(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT email FROM subscribers ORDER BY subscribed_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list subscribers: %w", err)
	}
	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan subscribers: %w", err)
	}
	return emails, nil
}
