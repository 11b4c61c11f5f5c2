package oddsapi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/shopspring/decimal"
)

// APIEvent is a fixture as returned by GET /v4/sports/{sport}/odds. The
// bookmaker blocks stay raw so one malformed block can be dropped without
// losing the rest of the event.
type APIEvent struct {
	ID           string            `json:"id"`
	SportKey     string            `json:"sport_key"`
	SportTitle   string            `json:"sport_title"`
	CommenceTime time.Time         `json:"commence_time"`
	HomeTeam     string            `json:"home_team"`
	AwayTeam     string            `json:"away_team"`
	Bookmakers   []json.RawMessage `json:"bookmakers"`
}

// APIBookmaker is one bookmaker block of an APIEvent.
type APIBookmaker struct {
	Key        string      `json:"key"`
	Title      string      `json:"title"`
	LastUpdate time.Time   `json:"last_update"`
	Markets    []APIMarket `json:"markets"`
}

// APIMarket is a market block inside an APIBookmaker.
type APIMarket struct {
	Key        string       `json:"key"`
	LastUpdate time.Time    `json:"last_update"`
	Outcomes   []APIOutcome `json:"outcomes"`
}

// APIOutcome is one priced outcome. Point is only present on spreads and
// totals.
type APIOutcome struct {
	Name  string           `json:"name"`
	Price decimal.Decimal  `json:"price"`
	Point *decimal.Decimal `json:"point"`
}

// APISport is an entry of GET /v4/sports.
type APISport struct {
	Key          string `json:"key"`
	Group        string `json:"group"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Active       bool   `json:"active"`
	HasOutrights bool   `json:"has_outrights"`
}

// decodeBookmaker parses one raw bookmaker block.
func decodeBookmaker(raw json.RawMessage) (domain.ExternalBookmaker, error) {
	var b APIBookmaker
	if err := json.Unmarshal(raw, &b); err != nil {
		return domain.ExternalBookmaker{}, err
	}
	if strings.TrimSpace(b.Key) == "" && strings.TrimSpace(b.Title) == "" {
		return domain.ExternalBookmaker{}, fmt.Errorf("bookmaker block without key or title")
	}
	return b.toDomain(), nil
}

func (b APIBookmaker) toDomain() domain.ExternalBookmaker {
	out := domain.ExternalBookmaker{
		Key:        b.Key,
		Title:      b.Title,
		LastUpdate: b.LastUpdate.UTC(),
		Markets:    make([]domain.ExternalMarket, 0, len(b.Markets)),
	}
	for _, m := range b.Markets {
		em := domain.ExternalMarket{
			Key:      m.Key,
			Outcomes: make([]domain.ExternalOutcome, 0, len(m.Outcomes)),
		}
		for _, o := range m.Outcomes {
			em.Outcomes = append(em.Outcomes, domain.ExternalOutcome{
				Name:  o.Name,
				Price: o.Price,
				Point: o.Point,
			})
		}
		out.Markets = append(out.Markets, em)
	}
	return out
}
