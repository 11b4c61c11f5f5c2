package domain

import (
	"context"
	"time"
)

// MatchesAllKey identifies the cached "all matches" read view.
const MatchesAllKey = "matches_all"

// CacheInvalidator evicts cached read views by key.
type CacheInvalidator interface {
	Evict(ctx context.Context, key string) error
}

// MatchCache holds the read view of all matches. Every Evict advances a
// generation counter so a view built before the eviction cannot be written
// back after it.
type MatchCache interface {
	CacheInvalidator
	// GetAll returns ErrNotFound on a cache miss.
	GetAll(ctx context.Context) ([]MatchView, error)
	// Generation returns the eviction generation to pass to SetAll. Read it
	// before loading the data the view is built from.
	Generation(ctx context.Context) (int64, error)
	// SetAll stores views unless an eviction happened after gen was read.
	// It reports whether the views were stored.
	SetAll(ctx context.Context, views []MatchView, gen int64) (bool, error)
}

// RateLimiter provides distributed fixed-window rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub for alert fan-out.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
