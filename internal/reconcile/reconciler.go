// Package reconcile merges odds observed on the external feed into the
// persisted match catalog. It creates unseen matches, bookmakers and odds,
// updates moved odds while keeping their history, and runs the signal
// detector over every match it touches. All mutations are collected in a
// single domain.CommitBatch.
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/detector"
	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/shopspring/decimal"
)

// Config controls reconciliation.
type Config struct {
	// Epsilon is the smallest price movement treated as a change.
	Epsilon decimal.Decimal
	// DefaultLeague labels new matches whose feed record has no sport title.
	DefaultLeague string
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Epsilon:       decimal.RequireFromString("0.001"),
		DefaultLeague: "Brasileirão Série A",
	}
}

// MatchResult summarises what happened to one match during a cycle.
type MatchResult struct {
	MatchID           string
	HomeTeam          string
	AwayTeam          string
	Created           bool
	Changed           bool
	OddsCreated       int
	OddsUpdated       int
	OddsSkipped       int
	SkippedBookmakers int
	Surebet           detector.Transition
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Catalog is the merged in-memory state after the pass.
	Catalog domain.Catalog
	// Batch holds the mutations to persist.
	Batch domain.CommitBatch
	// Alerts are the notifications to send once Batch is committed.
	Alerts []domain.Alert
	// Matches has one entry per reconciled feed record.
	Matches []MatchResult
}

// ChangedMatches counts the matches with at least one mutation.
func (r *Result) ChangedMatches() int {
	n := 0
	for _, m := range r.Matches {
		if m.Changed {
			n++
		}
	}
	return n
}

// Reconciler merges feed observations into the catalog.
type Reconciler struct {
	cfg      Config
	detector *detector.Detector
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Reconciler.
func New(cfg Config, det *detector.Detector, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		cfg:      cfg,
		detector: det,
		logger:   logger.With(slog.String("component", "reconciler")),
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile merges feed into catalog. The catalog is not modified; the merged
// state is returned in Result.Catalog. Malformed bookmaker blocks and invalid
// prices are skipped individually and never abort the pass.
func (r *Reconciler) Reconcile(ctx context.Context, catalog domain.Catalog, feed []domain.ExternalMatch) *Result {
	now := r.now().UTC()
	deduped := Dedup(feed)
	if dropped := len(feed) - len(deduped); dropped > 0 {
		r.logger.DebugContext(ctx, "collapsed duplicate feed records", slog.Int("dropped", dropped))
	}

	matches := make([]*domain.Match, 0, len(catalog.Matches)+len(deduped))
	byKey := make(map[string]*domain.Match, len(catalog.Matches)+len(deduped))
	for i := range catalog.Matches {
		m := cloneMatch(catalog.Matches[i])
		matches = append(matches, m)
		byKey[m.Key()] = m
	}

	books := newBookmakerCache(catalog.Bookmakers, now)
	tr := newChangeTracker()
	res := &Result{}

	for _, ext := range deduped {
		if strings.TrimSpace(ext.HomeTeam) == "" || strings.TrimSpace(ext.AwayTeam) == "" {
			r.logger.WarnContext(ctx, "skipping feed record without team names",
				slog.String("feed_id", ext.ID),
			)
			continue
		}

		key := domain.MatchKey(ext.HomeTeam, ext.AwayTeam)
		m, ok := byKey[key]
		if !ok {
			league := strings.TrimSpace(ext.SportTitle)
			if league == "" {
				league = r.cfg.DefaultLeague
			}
			nm := domain.NewMatch(ext.HomeTeam, ext.AwayTeam, ext.CommenceTime, league, now)
			m = &nm
			matches = append(matches, m)
			byKey[key] = m
			tr.newMatches[m.ID] = true
		}

		mr, alerts := r.reconcileMatch(ctx, m, ext, books, tr, now)
		mr.Created = !ok
		mr.Changed = mr.Changed || mr.Created
		res.Matches = append(res.Matches, mr)
		res.Alerts = append(res.Alerts, alerts...)

		if mr.Changed {
			r.logger.InfoContext(ctx, "match reconciled",
				slog.String("match", m.HomeTeam+" x "+m.AwayTeam),
				slog.Bool("created", mr.Created),
				slog.Int("odds_created", mr.OddsCreated),
				slog.Int("odds_updated", mr.OddsUpdated),
				slog.String("surebet", mr.Surebet.String()),
			)
		}
	}

	res.Catalog = domain.Catalog{
		Matches:    make([]domain.Match, 0, len(matches)),
		Bookmakers: books.all(),
	}
	for _, m := range matches {
		res.Catalog.Matches = append(res.Catalog.Matches, *m)
	}
	res.Batch = tr.batch(matches, books.created)
	return res
}

// reconcileMatch upserts the h2h odds of every bookmaker in ext into m and
// then evaluates the surebet lifecycle.
func (r *Reconciler) reconcileMatch(
	ctx context.Context,
	m *domain.Match,
	ext domain.ExternalMatch,
	books *bookmakerCache,
	tr *changeTracker,
	now time.Time,
) (MatchResult, []domain.Alert) {
	mr := MatchResult{MatchID: m.ID, HomeTeam: m.HomeTeam, AwayTeam: m.AwayTeam}
	var alerts []domain.Alert

	for _, eb := range ext.Bookmakers {
		name := strings.TrimSpace(eb.Title)
		if name == "" {
			name = strings.TrimSpace(eb.Key)
		}
		market, ok := eb.Market(domain.MarketKeyH2H)
		if name == "" || !ok || len(market.Outcomes) == 0 {
			r.logger.WarnContext(ctx, "skipping bookmaker without h2h market",
				slog.String("match", m.HomeTeam+" x "+m.AwayTeam),
				slog.String("bookmaker", name),
			)
			mr.SkippedBookmakers++
			continue
		}

		bk, created := books.resolve(name)
		if created {
			r.logger.InfoContext(ctx, "new bookmaker",
				slog.String("bookmaker", bk.Name),
				slog.String("website", bk.WebsiteURL),
			)
		}

		for _, oc := range market.Outcomes {
			sel := MapSelection(oc.Name, ext.HomeTeam, ext.AwayTeam)

			existing := m.FindOdd(bk.ID, sel)
			if existing == nil {
				odd, err := domain.NewOdd(m.ID, bk.ID, sel, oc.Price, now)
				if err != nil {
					r.logger.WarnContext(ctx, "skipping invalid odd",
						slog.String("match", m.HomeTeam+" x "+m.AwayTeam),
						slog.String("bookmaker", bk.Name),
						slog.String("outcome", oc.Name),
						slog.String("error", err.Error()),
					)
					mr.OddsSkipped++
					continue
				}
				m.Odds = append(m.Odds, odd)
				tr.oddCreated(odd)
				mr.OddsCreated++
				continue
			}

			if existing.Value.Sub(oc.Price).Abs().LessThan(r.cfg.Epsilon) {
				continue
			}

			prev := existing.Value
			h, err := existing.UpdateValue(oc.Price, now)
			if err != nil {
				r.logger.WarnContext(ctx, "skipping invalid odd update",
					slog.String("match", m.HomeTeam+" x "+m.AwayTeam),
					slog.String("bookmaker", bk.Name),
					slog.String("outcome", oc.Name),
					slog.String("error", err.Error()),
				)
				mr.OddsSkipped++
				continue
			}
			tr.oddUpdated(existing.ID, h)
			mr.OddsUpdated++

			if alert := r.checkDrop(ctx, m, existing, prev, bk.Name, now); alert != nil {
				alerts = append(alerts, alert)
			}
		}
	}

	out := r.detector.EvaluateSurebet(m, now)
	mr.Surebet = out.Transition
	switch out.Transition {
	case detector.TransitionCreated:
		tr.newSurebets[out.Surebet.ID] = true
		alerts = append(alerts, out.Alert)
		r.logger.WarnContext(ctx, "surebet detected",
			slog.String("match", m.HomeTeam+" x "+m.AwayTeam),
			slog.String("profit_percent", out.Arbitrage.ProfitPercent.StringFixed(2)),
		)
	case detector.TransitionUpdated, detector.TransitionDeactivated:
		tr.touchedSurebets[out.Surebet.ID] = true
	}

	mr.Changed = mr.OddsCreated > 0 || mr.OddsUpdated > 0 || out.Transition != detector.TransitionNone
	return mr, alerts
}

// checkDrop evaluates a single odd update and returns an alert when the drop
// crosses the notify threshold.
func (r *Reconciler) checkDrop(
	ctx context.Context,
	m *domain.Match,
	odd *domain.Odd,
	prev decimal.Decimal,
	bookmaker string,
	now time.Time,
) domain.Alert {
	drop := r.detector.EvaluateDrop(prev, odd.Value)
	if drop.Level == detector.DropNone {
		return nil
	}

	r.logger.WarnContext(ctx, "dropping odds",
		slog.String("match", m.HomeTeam+" x "+m.AwayTeam),
		slog.String("selection", string(odd.Selection)),
		slog.String("bookmaker", bookmaker),
		slog.String("previous", prev.String()),
		slog.String("current", odd.Value.String()),
		slog.String("drop_percent", drop.Percent.StringFixed(1)),
	)

	if drop.Level != detector.DropNotify {
		return nil
	}
	return domain.DroppingOdds{
		MatchID:     m.ID,
		HomeTeam:    m.HomeTeam,
		AwayTeam:    m.AwayTeam,
		Selection:   odd.Selection,
		Previous:    prev,
		Current:     odd.Value,
		DropPercent: drop.Percent,
		Bookmaker:   bookmaker,
		DetectedAt:  now,
	}
}

// cloneMatch deep-copies the mutable parts of a match so reconciliation never
// writes through to the caller's catalog.
func cloneMatch(src domain.Match) *domain.Match {
	m := src
	m.Odds = make([]domain.Odd, len(src.Odds))
	for i, o := range src.Odds {
		o.History = append([]domain.OddHistory(nil), o.History...)
		m.Odds[i] = o
	}
	m.Surebets = append([]domain.Surebet(nil), src.Surebets...)
	if src.Stats != nil {
		stats := *src.Stats
		m.Stats = &stats
	}
	return &m
}
