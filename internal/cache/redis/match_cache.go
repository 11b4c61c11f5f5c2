package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultMatchTTL bounds how stale the cached read view can get if an
// eviction is ever missed.
const DefaultMatchTTL = 10 * time.Minute

// setIfGenLua writes KEYS[1] only while the generation in KEYS[2] still
// equals ARGV[2]. A missing generation counts as 0.
const setIfGenLua = `
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[2] then
    return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`

// MatchCache implements domain.MatchCache. The whole read view is stored as
// one JSON string under domain.MatchesAllKey, next to a generation counter
// that Evict increments.
type MatchCache struct {
	rdb      *redis.Client
	ttl      time.Duration
	setIfGen *redis.Script
}

func generationKey(key string) string {
	return key + ":gen"
}

// NewMatchCache creates a MatchCache backed by the given Client. A ttl of
// zero uses DefaultMatchTTL.
func NewMatchCache(c *Client, ttl time.Duration) *MatchCache {
	if ttl <= 0 {
		ttl = DefaultMatchTTL
	}
	return &MatchCache{
		rdb:      c.Underlying(),
		ttl:      ttl,
		setIfGen: redis.NewScript(setIfGenLua),
	}
}

// GetAll returns the cached read view or domain.ErrNotFound on a miss.
func (mc *MatchCache) GetAll(ctx context.Context) ([]domain.MatchView, error) {
	data, err := mc.rdb.Get(ctx, domain.MatchesAllKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s: %w", domain.MatchesAllKey, err)
	}

	var views []domain.MatchView
	if err := json.Unmarshal(data, &views); err != nil {
		return nil, fmt.Errorf("redis: unmarshal %s: %w", domain.MatchesAllKey, err)
	}
	return views, nil
}

// Generation returns the current eviction generation of the read view.
func (mc *MatchCache) Generation(ctx context.Context) (int64, error) {
	gen, err := mc.rdb.Get(ctx, generationKey(domain.MatchesAllKey)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis: get generation of %s: %w", domain.MatchesAllKey, err)
	}
	return gen, nil
}

// SetAll stores the read view with the configured TTL unless Evict ran
// after gen was read.
func (mc *MatchCache) SetAll(ctx context.Context, views []domain.MatchView, gen int64) (bool, error) {
	if views == nil {
		views = []domain.MatchView{}
	}
	data, err := json.Marshal(views)
	if err != nil {
		return false, fmt.Errorf("redis: marshal %s: %w", domain.MatchesAllKey, err)
	}
	keys := []string{domain.MatchesAllKey, generationKey(domain.MatchesAllKey)}
	stored, err := mc.setIfGen.Run(ctx, mc.rdb, keys,
		data, strconv.FormatInt(gen, 10), mc.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis: set %s: %w", domain.MatchesAllKey, err)
	}
	return stored == 1, nil
}

// Evict deletes a cached entry and advances its generation. Deleting a
// missing key is not an error.
func (mc *MatchCache) Evict(ctx context.Context, key string) error {
	pipe := mc.rdb.TxPipeline()
	pipe.Incr(ctx, generationKey(key))
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: evict %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MatchCache = (*MatchCache)(nil)
