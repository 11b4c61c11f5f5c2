// Package enrich attaches head-to-head history, recent form, scoring
// averages and team logos to matches. Enrichment is best effort: a failed
// provider call leaves its own field empty, and a match whose calls all fail
// or run out of quota is retried on a later cycle.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/FilipeRosar/oddsscanner/internal/platform/apifootball"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// StatsSource is the statistics provider.
type StatsSource interface {
	BuildMapping(ctx context.Context, leagueIDs []int, season int) (*apifootball.Mapping, error)
	HeadToHead(ctx context.Context, homeID, awayID, last int) ([]domain.H2HGame, error)
	RecentForm(ctx context.Context, teamID, leagueID, season, last int) ([]domain.FormGame, error)
	TeamStatistics(ctx context.Context, teamID, leagueID, season int) (apifootball.TeamStats, error)
}

// Config controls enrichment.
type Config struct {
	LeagueIDs []int
	// Season defaults to the current UTC year.
	Season int
	// MaxMatches bounds how many matches are enriched per cycle. Zero means
	// no bound.
	MaxMatches int
	// Last is the number of past games fetched for h2h and form.
	Last int
}

// Enricher fetches statistics for matches that have none.
type Enricher struct {
	src    StatsSource
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Enricher.
func New(src StatsSource, cfg Config, logger *slog.Logger) *Enricher {
	if cfg.Last <= 0 {
		cfg.Last = 5
	}
	return &Enricher{
		src:    src,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "enricher")),
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (e *Enricher) WithClock(now func() time.Time) *Enricher {
	e.now = now
	return e
}

// Enrich returns stats for the upcoming matches that lack them,
// nearest kickoff first. It never fails; problems are logged and the
// affected matches are left for the next cycle. Enrich stops early when ctx
// is done or the provider quota runs out.
func (e *Enricher) Enrich(ctx context.Context, matches []domain.Match) []domain.MatchStatsUpdate {
	now := e.now().UTC()
	pending := make([]domain.Match, 0)
	for _, m := range matches {
		if !m.HasStats() && !m.IsLive(now) {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].StartTime.Before(pending[j].StartTime)
	})
	if e.cfg.MaxMatches > 0 && len(pending) > e.cfg.MaxMatches {
		pending = pending[:e.cfg.MaxMatches]
	}

	season := e.cfg.Season
	if season == 0 {
		season = now.Year()
	}

	mapping, err := e.src.BuildMapping(ctx, e.cfg.LeagueIDs, season)
	if err != nil {
		e.logger.WarnContext(ctx, "enrichment skipped: mapping unavailable",
			slog.String("error", err.Error()),
		)
		return nil
	}

	var updates []domain.MatchStatsUpdate
	for i, m := range pending {
		if ctx.Err() != nil {
			e.logger.InfoContext(ctx, "enrichment budget spent",
				slog.Int("deferred", len(pending)-i),
			)
			break
		}
		stats, err := e.enrichMatch(ctx, mapping, m)
		if errors.Is(err, domain.ErrRateLimited) {
			e.logger.InfoContext(ctx, "enrichment quota exhausted",
				slog.Int("deferred", len(pending)-i),
				slog.String("error", err.Error()),
			)
			break
		}
		if err != nil {
			e.logger.WarnContext(ctx, "enrichment failed",
				slog.String("match", m.HomeTeam+" x "+m.AwayTeam),
				slog.String("error", err.Error()),
			)
			continue
		}
		if stats == nil {
			continue
		}
		updates = append(updates, domain.MatchStatsUpdate{MatchID: m.ID, Stats: *stats})
		e.logger.InfoContext(ctx, "match enriched",
			slog.String("match", m.HomeTeam+" x "+m.AwayTeam),
			slog.Int("h2h_games", len(stats.HeadToHead)),
		)
	}
	return updates
}

// Provider calls made for one match, in errs order.
var callNames = [...]string{"head_to_head", "home_form", "away_form", "home_statistics", "away_statistics"}

// enrichMatch runs the five provider calls for one match in parallel. It
// returns nil stats when either team is not in the mapping. A failed call
// leaves its field empty. The match is rejected when every call fails, when
// ctx ends first, or when the quota runs out, so it is retried whole.
func (e *Enricher) enrichMatch(ctx context.Context, mapping *apifootball.Mapping, m domain.Match) (*domain.MatchStats, error) {
	home, okHome := mapping.Team(m.HomeTeam)
	away, okAway := mapping.Team(m.AwayTeam)
	if !okHome || !okAway {
		e.logger.DebugContext(ctx, "team not mapped",
			slog.String("match", m.HomeTeam+" x "+m.AwayTeam),
			slog.Bool("home_mapped", okHome),
			slog.Bool("away_mapped", okAway),
		)
		return nil, nil
	}

	leagueID, ok := mapping.League(m.League)
	if !ok {
		leagueID = home.LeagueID
	}
	season := mapping.Season

	var (
		h2h                  []domain.H2HGame
		homeForm, awayForm   []domain.FormGame
		homeStats, awayStats apifootball.TeamStats
		errs                 [len(callNames)]error
	)

	// No shared cancellation: one failing call must not abort its siblings.
	var g errgroup.Group
	g.Go(func() error {
		h2h, errs[0] = e.src.HeadToHead(ctx, home.ID, away.ID, e.cfg.Last)
		return errs[0]
	})
	g.Go(func() error {
		homeForm, errs[1] = e.src.RecentForm(ctx, home.ID, leagueID, season, e.cfg.Last)
		return errs[1]
	})
	g.Go(func() error {
		awayForm, errs[2] = e.src.RecentForm(ctx, away.ID, leagueID, season, e.cfg.Last)
		return errs[2]
	})
	g.Go(func() error {
		homeStats, errs[3] = e.src.TeamStatistics(ctx, home.ID, leagueID, season)
		return errs[3]
	})
	g.Go(func() error {
		awayStats, errs[4] = e.src.TeamStatistics(ctx, away.ID, leagueID, season)
		return errs[4]
	})
	if g.Wait() == nil {
		return buildStats(h2h, homeForm, awayForm, []apifootball.TeamStats{homeStats, awayStats}, home, away), nil
	}

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if errors.Is(err, domain.ErrRateLimited) {
			return nil, fmt.Errorf("%s: %w", callNames[i], err)
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("enrich: %w", ctxErr)
	}
	if failed == len(errs) {
		return nil, fmt.Errorf("enrich: every provider call failed: %w", errors.Join(errs[:]...))
	}

	for i, err := range errs {
		if err != nil {
			e.logger.WarnContext(ctx, "enrichment call failed",
				slog.String("match", m.HomeTeam+" x "+m.AwayTeam),
				slog.String("call", callNames[i]),
				slog.String("error", err.Error()),
			)
		}
	}

	var teamStats []apifootball.TeamStats
	if errs[3] == nil {
		teamStats = append(teamStats, homeStats)
	}
	if errs[4] == nil {
		teamStats = append(teamStats, awayStats)
	}
	return buildStats(h2h, homeForm, awayForm, teamStats, home, away), nil
}

// buildStats averages the team statistics that were fetched. With none,
// goals are zero and corners use apifootball.DefaultAvgCorners.
func buildStats(h2h []domain.H2HGame, homeForm, awayForm []domain.FormGame, teamStats []apifootball.TeamStats, home, away apifootball.Team) *domain.MatchStats {
	s := &domain.MatchStats{
		AvgGoals:   decimal.Zero,
		AvgCorners: apifootball.DefaultAvgCorners,
		HeadToHead: h2h,
		HomeForm:   homeForm,
		AwayForm:   awayForm,
		HomeLogo:   home.Logo,
		AwayLogo:   away.Logo,
	}
	if len(teamStats) == 0 {
		return s
	}
	goals, corners := decimal.Zero, decimal.Zero
	for _, ts := range teamStats {
		goals = goals.Add(ts.AvgGoals)
		corners = corners.Add(ts.AvgCorners)
	}
	n := decimal.NewFromInt(int64(len(teamStats)))
	s.AvgGoals = goals.Div(n)
	s.AvgCorners = corners.Div(n)
	return s
}
