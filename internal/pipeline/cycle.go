// Package pipeline runs the periodic odds sync: fetch the feed, reconcile it
// into the catalog, enrich, commit, invalidate the read cache and dispatch
// alerts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/FilipeRosar/oddsscanner/internal/reconcile"
)

// DefaultFetchTimeout bounds the primary odds fetch.
const DefaultFetchTimeout = 30 * time.Second

// DefaultEnrichBudget bounds the enrichment step of one cycle.
const DefaultEnrichBudget = 2 * time.Minute

// Enricher attaches best-effort statistics to matches.
type Enricher interface {
	Enrich(ctx context.Context, matches []domain.Match) []domain.MatchStatsUpdate
}

// CycleDeps groups the collaborators of a SyncCycle. Archiver and Enricher
// are optional.
type CycleDeps struct {
	Source     domain.OddsSource
	Catalog    domain.MatchCatalog
	Reconciler *reconcile.Reconciler
	Cache      domain.CacheInvalidator
	Alerts     domain.AlertSink
	Archiver   domain.FeedArchiver
	Enricher   Enricher
}

// CycleReport summarises one completed cycle.
type CycleReport struct {
	Fetched        int           `json:"fetched"`
	MatchesCreated int           `json:"matchesCreated"`
	MatchesChanged int           `json:"matchesChanged"`
	OddsCreated    int           `json:"oddsCreated"`
	OddsUpdated    int           `json:"oddsUpdated"`
	Enriched       int           `json:"enriched"`
	Alerts         int           `json:"alerts"`
	Committed      bool          `json:"committed"`
	SnapshotPath   string        `json:"snapshotPath,omitempty"`
	Duration       time.Duration `json:"durationNs"`
}

// SyncCycle executes one sync pass.
type SyncCycle struct {
	deps         CycleDeps
	sportKeys    []string
	fetchTimeout time.Duration
	enrichBudget time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewSyncCycle creates a SyncCycle for the given sport keys.
func NewSyncCycle(deps CycleDeps, sportKeys []string, fetchTimeout time.Duration, logger *slog.Logger) *SyncCycle {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &SyncCycle{
		deps:         deps,
		sportKeys:    sportKeys,
		fetchTimeout: fetchTimeout,
		enrichBudget: DefaultEnrichBudget,
		logger:       logger.With(slog.String("component", "sync_cycle")),
		now:          time.Now,
	}
}

// WithEnrichBudget sets the longest time enrichment may take per cycle.
func (c *SyncCycle) WithEnrichBudget(d time.Duration) *SyncCycle {
	if d > 0 {
		c.enrichBudget = d
	}
	return c
}

// Run executes the cycle. A fetch, load or commit failure aborts it with an
// error and nothing is evicted or dispatched. Archiving, enrichment,
// eviction and alert delivery are best effort. Enrichment never takes more
// than half of the time left before ctx's deadline, so the commit always
// keeps the other half.
func (c *SyncCycle) Run(ctx context.Context) (CycleReport, error) {
	start := c.now()
	var report CycleReport

	feed, err := c.fetch(ctx)
	if err != nil {
		return report, err
	}
	report.Fetched = len(feed)

	if c.deps.Archiver != nil {
		path, err := c.deps.Archiver.ArchiveFeed(ctx, start, feed)
		if err != nil {
			c.logger.WarnContext(ctx, "feed snapshot failed", slog.String("error", err.Error()))
		} else {
			report.SnapshotPath = path
		}
	}

	catalog, err := c.deps.Catalog.LoadAllWithOddsAndBookmakers(ctx)
	if err != nil {
		return report, fmt.Errorf("pipeline: load catalog: %w", err)
	}

	result := c.deps.Reconciler.Reconcile(ctx, catalog, feed)
	for _, m := range result.Matches {
		if m.Created {
			report.MatchesCreated++
		}
		report.OddsCreated += m.OddsCreated
		report.OddsUpdated += m.OddsUpdated
	}
	report.MatchesChanged = result.ChangedMatches()

	if c.deps.Enricher != nil {
		enrichCtx, cancel := c.enrichContext(ctx)
		updates := c.deps.Enricher.Enrich(enrichCtx, result.Catalog.Matches)
		cancel()
		result.Batch.MatchStats = append(result.Batch.MatchStats, updates...)
		report.Enriched = len(updates)
	}

	if !result.Batch.Empty() {
		if err := c.deps.Catalog.Commit(ctx, result.Batch); err != nil {
			return report, fmt.Errorf("pipeline: commit: %w", err)
		}
		report.Committed = true
	}

	// Once per successful cycle, committed or not.
	if err := c.deps.Cache.Evict(ctx, domain.MatchesAllKey); err != nil {
		c.logger.WarnContext(ctx, "cache eviction failed",
			slog.String("key", domain.MatchesAllKey),
			slog.String("error", err.Error()),
		)
	}

	for _, alert := range result.Alerts {
		c.deps.Alerts.Dispatch(ctx, alert)
	}
	report.Alerts = len(result.Alerts)
	report.Duration = c.now().Sub(start)

	c.logger.InfoContext(ctx, "sync cycle complete",
		slog.Int("fetched", report.Fetched),
		slog.Int("matches_created", report.MatchesCreated),
		slog.Int("matches_changed", report.MatchesChanged),
		slog.Int("odds_created", report.OddsCreated),
		slog.Int("odds_updated", report.OddsUpdated),
		slog.Int("enriched", report.Enriched),
		slog.Int("alerts", report.Alerts),
		slog.Bool("committed", report.Committed),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// enrichContext derives the enrichment deadline: the configured budget,
// capped at half of what remains of ctx.
func (c *SyncCycle) enrichContext(ctx context.Context) (context.Context, context.CancelFunc) {
	budget := c.enrichBudget
	if deadline, ok := ctx.Deadline(); ok {
		budget = min(budget, time.Until(deadline)/2)
	}
	return context.WithTimeout(ctx, budget)
}

func (c *SyncCycle) fetch(ctx context.Context) ([]domain.ExternalMatch, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	feed, err := c.deps.Source.FetchOdds(fetchCtx, c.sportKeys)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetch odds: %w", err)
	}
	return feed, nil
}
