package domain

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// MarketKeyH2H is the feed market key of the three-way moneyline market. All
// other market keys are ignored by the reconciler.
const MarketKeyH2H = "h2h"

// ExternalMatch is one fixture as reported by the odds feed.
type ExternalMatch struct {
	ID           string              `json:"id"`
	SportKey     string              `json:"sport_key"`
	SportTitle   string              `json:"sport_title"`
	CommenceTime time.Time           `json:"commence_time"`
	HomeTeam     string              `json:"home_team"`
	AwayTeam     string              `json:"away_team"`
	Bookmakers   []ExternalBookmaker `json:"bookmakers"`
}

// ExternalBookmaker is one bookmaker's quotes for an ExternalMatch.
type ExternalBookmaker struct {
	Key        string           `json:"key"`
	Title      string           `json:"title"`
	LastUpdate time.Time        `json:"last_update"`
	Markets    []ExternalMarket `json:"markets"`
}

// Market returns the market with the given key, if present.
func (b ExternalBookmaker) Market(key string) (ExternalMarket, bool) {
	for _, m := range b.Markets {
		if m.Key == key {
			return m, true
		}
	}
	return ExternalMarket{}, false
}

// ExternalMarket is a market block inside an ExternalBookmaker.
type ExternalMarket struct {
	Key      string            `json:"key"`
	Outcomes []ExternalOutcome `json:"outcomes"`
}

// ExternalOutcome is a single priced outcome. Point is only set for line
// markets such as spreads and totals.
type ExternalOutcome struct {
	Name  string           `json:"name"`
	Price decimal.Decimal  `json:"price"`
	Point *decimal.Decimal `json:"point,omitempty"`
}

// OddsSource fetches the current fixtures and quotes for the given sport keys.
type OddsSource interface {
	FetchOdds(ctx context.Context, sportKeys []string) ([]ExternalMatch, error)
}

// FeedArchiver stores the raw feed fetched by a sync cycle.
type FeedArchiver interface {
	ArchiveFeed(ctx context.Context, fetchedAt time.Time, matches []ExternalMatch) (string, error)
}

// SnapshotWriter is the object storage a FeedArchiver writes through. Large
// snapshots go through the multipart path.
type SnapshotWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}
