package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Catalog is the full persisted state loaded at the start of a sync cycle.
type Catalog struct {
	Matches    []Match
	Bookmakers []Bookmaker
}

// MatchStatsUpdate attaches enrichment to an existing or newly created match.
type MatchStatsUpdate struct {
	MatchID string
	Stats   MatchStats
}

// CommitBatch holds every mutation produced by one sync cycle. It is written
// in a single transaction.
type CommitBatch struct {
	NewBookmakers   []Bookmaker
	NewMatches      []Match
	NewOdds         []Odd
	UpdatedOdds     []Odd
	NewHistory      []OddHistory
	NewSurebets     []Surebet
	UpdatedSurebets []Surebet
	MatchStats      []MatchStatsUpdate
}

// Empty reports whether the batch carries no mutations.
func (b *CommitBatch) Empty() bool {
	return len(b.NewBookmakers) == 0 &&
		len(b.NewMatches) == 0 &&
		len(b.NewOdds) == 0 &&
		len(b.UpdatedOdds) == 0 &&
		len(b.NewHistory) == 0 &&
		len(b.NewSurebets) == 0 &&
		len(b.UpdatedSurebets) == 0 &&
		len(b.MatchStats) == 0
}

// MatchCatalog is the durable store of matches, odds, odd history,
// bookmakers and surebets.
type MatchCatalog interface {
	LoadAllWithOddsAndBookmakers(ctx context.Context) (Catalog, error)
	Commit(ctx context.Context, batch CommitBatch) error
}

// SubscriberStore persists alert e-mail subscribers.
type SubscriberStore interface {
	// Add returns ErrAlreadyExists when the e-mail is already subscribed.
	Add(ctx context.Context, sub Subscriber) error
	GetByEmail(ctx context.Context, email string) (Subscriber, error)
	ListEmails(ctx context.Context) ([]string, error)
}

// OddView is one odd as exposed by the read API.
type OddView struct {
	BookmakerName string           `json:"bookmakerName"`
	Value         decimal.Decimal  `json:"value"`
	Selection     Selection        `json:"selection"`
	BookmakerURL  string           `json:"bookmakerUrl"`
	AffiliateURL  string           `json:"affiliateUrl,omitempty"`
	History       []OddHistoryView `json:"history,omitempty"`
}

// OddHistoryView is one prior value in the rolling odd history.
type OddHistoryView struct {
	Value      decimal.Decimal `json:"value"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// MatchView is the read-side projection of a Match served by the API and
// held in the "matches_all" cache entry.
type MatchView struct {
	ID            string      `json:"id"`
	HomeTeam      string      `json:"homeTeam"`
	AwayTeam      string      `json:"awayTeam"`
	StartTime     time.Time   `json:"startTime"`
	League        string      `json:"league"`
	Odds          []OddView   `json:"odds"`
	IsLive        bool        `json:"isLive"`
	SurebetProfit *string     `json:"surebetProfit"`
	HasValueBet   bool        `json:"hasValueBet"`
	Stats         *MatchStats `json:"stats,omitempty"`
}
