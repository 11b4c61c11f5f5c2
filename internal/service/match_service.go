package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// CatalogReader loads the persisted catalog.
type CatalogReader interface {
	LoadAllWithOddsAndBookmakers(ctx context.Context) (domain.Catalog, error)
}

// MatchFilter narrows the match list.
type MatchFilter struct {
	SurebetOnly  bool
	ValueBetOnly bool
}

// MatchService serves the match read views, cache-aside over the catalog.
type MatchService struct {
	catalog CatalogReader
	cache   domain.MatchCache
	views   *ViewBuilder
	logger  *slog.Logger
	now     func() time.Time
}

// NewMatchService creates a MatchService. cache may be nil.
func NewMatchService(catalog CatalogReader, cache domain.MatchCache, views *ViewBuilder, logger *slog.Logger) *MatchService {
	return &MatchService{
		catalog: catalog,
		cache:   cache,
		views:   views,
		logger:  logger.With(slog.String("component", "match_service")),
		now:     time.Now,
	}
}

// List returns the match views that pass filter. IsLive is evaluated at read
// time, so cached views never serve a stale flag.
func (s *MatchService) List(ctx context.Context, filter MatchFilter) ([]domain.MatchView, error) {
	views, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]domain.MatchView, 0, len(views))
	for _, v := range views {
		if filter.SurebetOnly && v.SurebetProfit == nil {
			continue
		}
		if filter.ValueBetOnly && !v.HasValueBet {
			continue
		}
		v.IsLive = !now.Before(v.StartTime)
		out = append(out, v)
	}
	return out, nil
}

func (s *MatchService) all(ctx context.Context) ([]domain.MatchView, error) {
	gen, cacheable := int64(0), false
	if s.cache != nil {
		views, err := s.cache.GetAll(ctx)
		if err == nil {
			return views, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "match cache read failed", slog.String("error", err.Error()))
		}
		if gen, err = s.cache.Generation(ctx); err != nil {
			s.logger.WarnContext(ctx, "match cache generation unavailable", slog.String("error", err.Error()))
		} else {
			cacheable = true
		}
	}

	catalog, err := s.catalog.LoadAllWithOddsAndBookmakers(ctx)
	if err != nil {
		return nil, fmt.Errorf("match_service: load catalog: %w", err)
	}
	views := s.views.Build(catalog, s.now().UTC())

	if cacheable {
		stored, err := s.cache.SetAll(ctx, views, gen)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "match cache write failed", slog.String("error", err.Error()))
		case !stored:
			s.logger.DebugContext(ctx, "match view superseded by a newer sync, not cached")
		}
	}
	return views, nil
}
