package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// DefaultHistoryDepth is the number of history entries loaded per odd.
const DefaultHistoryDepth = 20

// CatalogStore implements domain.MatchCatalog using PostgreSQL.
type CatalogStore struct {
	pool         *pgxpool.Pool
	historyDepth int
}

// NewCatalogStore creates a new CatalogStore backed by the given connection
// pool. historyDepth bounds the odd history loaded per odd; values below one
// use DefaultHistoryDepth.
func NewCatalogStore(pool *pgxpool.Pool, historyDepth int) *CatalogStore {
	if historyDepth < 1 {
		historyDepth = DefaultHistoryDepth
	}
	return &CatalogStore{pool: pool, historyDepth: historyDepth}
}

// LoadAllWithOddsAndBookmakers reads every match with its odds, recent odd
// history and surebets, plus all bookmakers, from one consistent snapshot.
func (s *CatalogStore) LoadAllWithOddsAndBookmakers(ctx context.Context) (domain.Catalog, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("postgres: begin catalog snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	bookmakers, err := loadBookmakers(ctx, tx)
	if err != nil {
		return domain.Catalog{}, err
	}
	matches, err := loadMatches(ctx, tx)
	if err != nil {
		return domain.Catalog{}, err
	}

	index := make(map[string]int, len(matches))
	for i := range matches {
		index[matches[i].ID] = i
	}

	odds, err := loadOdds(ctx, tx)
	if err != nil {
		return domain.Catalog{}, err
	}
	history, err := loadHistory(ctx, tx, s.historyDepth)
	if err != nil {
		return domain.Catalog{}, err
	}
	for _, o := range odds {
		i, ok := index[o.MatchID]
		if !ok {
			continue
		}
		o.History = history[o.ID]
		matches[i].Odds = append(matches[i].Odds, o)
	}

	surebets, err := loadSurebets(ctx, tx)
	if err != nil {
		return domain.Catalog{}, err
	}
	for _, sb := range surebets {
		if i, ok := index[sb.MatchID]; ok {
			matches[i].Surebets = append(matches[i].Surebets, sb)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Catalog{}, fmt.Errorf("postgres: end catalog snapshot: %w", err)
	}
	return domain.Catalog{Matches: matches, Bookmakers: bookmakers}, nil
}

func loadBookmakers(ctx context.Context, tx pgx.Tx) ([]domain.Bookmaker, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, name, website_url, affiliate_url, created_at FROM bookmakers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load bookmakers: %w", err)
	}
	defer rows.Close()

	var out []domain.Bookmaker
	for rows.Next() {
		var b domain.Bookmaker
		if err := rows.Scan(&b.ID, &b.Name, &b.WebsiteURL, &b.AffiliateURL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bookmaker: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate bookmakers: %w", err)
	}
	return out, nil
}

const matchCols = `id, home_team, away_team, start_time, league,
	avg_goals, avg_corners, head_to_head, home_form, away_form,
	home_logo, away_logo, stats_updated_at, created_at, updated_at`

func loadMatches(ctx context.Context, tx pgx.Tx) ([]domain.Match, error) {
	rows, err := tx.Query(ctx, `SELECT `+matchCols+` FROM matches ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load matches: %w", err)
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate matches: %w", err)
	}
	return out, nil
}

// scanMatch scans a single match row. Stats are attached only when the
// match has been enriched.
func scanMatch(row pgx.Row) (domain.Match, error) {
	var (
		m                  domain.Match
		avgGoals, avgCorns decimal.NullDecimal
		h2h, homeF, awayF  []byte
		homeLogo, awayLogo string
		statsAt            *time.Time
	)
	err := row.Scan(
		&m.ID, &m.HomeTeam, &m.AwayTeam, &m.StartTime, &m.League,
		&avgGoals, &avgCorns, &h2h, &homeF, &awayF,
		&homeLogo, &awayLogo, &statsAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Match{}, err
	}
	m.StartTime = m.StartTime.UTC()
	if statsAt == nil {
		return m, nil
	}

	stats := &domain.MatchStats{
		AvgGoals:   avgGoals.Decimal,
		AvgCorners: avgCorns.Decimal,
		HomeLogo:   homeLogo,
		AwayLogo:   awayLogo,
	}
	if err := unmarshalOptional(h2h, &stats.HeadToHead); err != nil {
		return domain.Match{}, fmt.Errorf("decode head_to_head of %s: %w", m.ID, err)
	}
	if err := unmarshalOptional(homeF, &stats.HomeForm); err != nil {
		return domain.Match{}, fmt.Errorf("decode home_form of %s: %w", m.ID, err)
	}
	if err := unmarshalOptional(awayF, &stats.AwayForm); err != nil {
		return domain.Match{}, fmt.Errorf("decode away_form of %s: %w", m.ID, err)
	}
	m.Stats = stats
	return m, nil
}

func unmarshalOptional(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func loadOdds(ctx context.Context, tx pgx.Tx) ([]domain.Odd, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, match_id, bookmaker_id, value, market, selection, updated_at
		 FROM odds ORDER BY match_id, bookmaker_id, selection`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load odds: %w", err)
	}
	defer rows.Close()

	var out []domain.Odd
	for rows.Next() {
		var (
			o   domain.Odd
			sel string
		)
		if err := rows.Scan(&o.ID, &o.MatchID, &o.BookmakerID, &o.Value, &o.Market, &sel, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan odd: %w", err)
		}
		if o.Selection, err = domain.ParseSelection(sel); err != nil {
			return nil, fmt.Errorf("postgres: odd %s: %w", o.ID, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate odds: %w", err)
	}
	return out, nil
}

// loadHistory returns the newest depth entries of every odd, oldest first.
func loadHistory(ctx context.Context, tx pgx.Tx, depth int) (map[string][]domain.OddHistory, error) {
	const query = `
		SELECT odd_id, value, recorded_at FROM (
			SELECT odd_id, value, recorded_at, id,
				ROW_NUMBER() OVER (PARTITION BY odd_id ORDER BY recorded_at DESC, id DESC) AS rn
			FROM odd_history
		) h
		WHERE rn <= $1
		ORDER BY odd_id, recorded_at ASC, id ASC`

	rows, err := tx.Query(ctx, query, depth)
	if err != nil {
		return nil, fmt.Errorf("postgres: load odd history: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.OddHistory)
	for rows.Next() {
		var h domain.OddHistory
		if err := rows.Scan(&h.OddID, &h.Value, &h.RecordedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan odd history: %w", err)
		}
		out[h.OddID] = append(out[h.OddID], h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate odd history: %w", err)
	}
	return out, nil
}

func loadSurebets(ctx context.Context, tx pgx.Tx) ([]domain.Surebet, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, match_id, profit_percent, detected_at, updated_at, active
		 FROM surebets ORDER BY detected_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load surebets: %w", err)
	}
	defer rows.Close()

	var out []domain.Surebet
	for rows.Next() {
		var sb domain.Surebet
		if err := rows.Scan(&sb.ID, &sb.MatchID, &sb.ProfitPercent, &sb.DetectedAt, &sb.UpdatedAt, &sb.Active); err != nil {
			return nil, fmt.Errorf("postgres: scan surebet: %w", err)
		}
		out = append(out, sb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate surebets: %w", err)
	}
	return out, nil
}

// Commit writes every mutation of batch in a single transaction. Nothing is
// written when any statement fails.
func (s *CatalogStore) Commit(ctx context.Context, batch domain.CommitBatch) error {
	if batch.Empty() {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	var steps []batchStep

	queue := func(label string, mustAffect bool, query string, args ...any) {
		b.Queue(query, args...)
		steps = append(steps, batchStep{label: label, mustAffect: mustAffect})
	}

	for _, bk := range batch.NewBookmakers {
		queue("insert bookmaker "+bk.Name, false,
			`INSERT INTO bookmakers (id, name, website_url, affiliate_url, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			bk.ID, bk.Name, bk.WebsiteURL, bk.AffiliateURL, bk.CreatedAt)
	}
	for _, m := range batch.NewMatches {
		queue("insert match "+m.ID, false,
			`INSERT INTO matches (id, home_team, away_team, start_time, league, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.ID, m.HomeTeam, m.AwayTeam, m.StartTime.UTC(), m.League, m.CreatedAt, m.UpdatedAt)
	}
	for _, o := range batch.NewOdds {
		queue("insert odd "+o.ID, false,
			`INSERT INTO odds (id, match_id, bookmaker_id, value, market, selection, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, o.MatchID, o.BookmakerID, o.Value, o.Market, string(o.Selection), o.UpdatedAt)
	}
	for _, o := range batch.UpdatedOdds {
		queue("update odd "+o.ID, true,
			`UPDATE odds SET value = $2, updated_at = $3 WHERE id = $1`,
			o.ID, o.Value, o.UpdatedAt)
	}
	for _, h := range batch.NewHistory {
		queue("insert odd history "+h.OddID, false,
			`INSERT INTO odd_history (odd_id, value, recorded_at) VALUES ($1, $2, $3)`,
			h.OddID, h.Value, h.RecordedAt)
	}
	// Deactivations run before inserts so a re-detected surebet never
	// collides with the one-active-per-match index.
	for _, sb := range batch.UpdatedSurebets {
		queue("update surebet "+sb.ID, true,
			`UPDATE surebets SET profit_percent = $2, updated_at = $3, active = $4 WHERE id = $1`,
			sb.ID, sb.ProfitPercent, sb.UpdatedAt, sb.Active)
	}
	for _, sb := range batch.NewSurebets {
		queue("insert surebet "+sb.ID, false,
			`INSERT INTO surebets (id, match_id, profit_percent, detected_at, updated_at, active)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			sb.ID, sb.MatchID, sb.ProfitPercent, sb.DetectedAt, sb.UpdatedAt, sb.Active)
	}
	for _, u := range batch.MatchStats {
		h2h, homeF, awayF, err := encodeStats(u.Stats)
		if err != nil {
			return fmt.Errorf("postgres: encode stats of %s: %w", u.MatchID, err)
		}
		queue("update match stats "+u.MatchID, true,
			`UPDATE matches SET
				avg_goals        = $2,
				avg_corners      = $3,
				head_to_head     = $4,
				home_form        = $5,
				away_form        = $6,
				home_logo        = $7,
				away_logo        = $8,
				stats_updated_at = NOW(),
				updated_at       = NOW()
			 WHERE id = $1`,
			u.MatchID, u.Stats.AvgGoals, u.Stats.AvgCorners, h2h, homeF, awayF,
			u.Stats.HomeLogo, u.Stats.AwayLogo)
	}

	if err := execBatch(ctx, tx, b, steps); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

type batchStep struct {
	label      string
	mustAffect bool
}

// execBatch sends b on tx and checks every result. Updates flagged
// mustAffect fail when no row matched.
func execBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch, steps []batchStep) error {
	br := tx.SendBatch(ctx, b)
	for _, step := range steps {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: %s: %w", step.label, err)
		}
		if step.mustAffect && tag.RowsAffected() == 0 {
			_ = br.Close()
			return fmt.Errorf("postgres: %s: %w", step.label, domain.ErrNotFound)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close batch: %w", err)
	}
	return nil
}

func encodeStats(s domain.MatchStats) (h2h, homeForm, awayForm []byte, err error) {
	if h2h, err = json.Marshal(nonNil(s.HeadToHead)); err != nil {
		return nil, nil, nil, err
	}
	if homeForm, err = json.Marshal(nonNil(s.HomeForm)); err != nil {
		return nil, nil, nil, err
	}
	if awayForm, err = json.Marshal(nonNil(s.AwayForm)); err != nil {
		return nil, nil, nil, err
	}
	return h2h, homeForm, awayForm, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
