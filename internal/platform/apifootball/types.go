package apifootball

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// envelope is the wrapper every API-Football response shares. Errors is an
// empty array on success and an object keyed by error type otherwise, even
// on HTTP 200.
type envelope struct {
	Errors   json.RawMessage `json:"errors"`
	Results  int             `json:"results"`
	Response json.RawMessage `json:"response"`
}

func (e envelope) err() error {
	raw := bytes.TrimSpace(e.Errors)
	if len(raw) == 0 || bytes.Equal(raw, []byte("[]")) || bytes.Equal(raw, []byte("{}")) || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return fmt.Errorf("api error: %s", raw)
}

// APITeamEntry is an element of GET /teams.
type APITeamEntry struct {
	Team APITeam `json:"team"`
}

// APITeam is a team reference.
type APITeam struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Logo   string `json:"logo"`
	Winner *bool  `json:"winner"`
}

// APILeagueEntry is an element of GET /leagues.
type APILeagueEntry struct {
	League struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"league"`
	Country struct {
		Name string `json:"name"`
	} `json:"country"`
}

// APIFixture is an element of GET /fixtures and GET /fixtures/headtohead.
type APIFixture struct {
	Fixture struct {
		ID   int       `json:"id"`
		Date time.Time `json:"date"`
	} `json:"fixture"`
	Teams struct {
		Home APITeam `json:"home"`
		Away APITeam `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

// APITeamStatistics is the response of GET /teams/statistics. The average
// values arrive as strings.
type APITeamStatistics struct {
	Goals struct {
		For struct {
			Average struct {
				Total *decimal.Decimal `json:"total"`
			} `json:"average"`
		} `json:"for"`
	} `json:"goals"`
	Corners *struct {
		Average struct {
			Total *decimal.Decimal `json:"total"`
		} `json:"average"`
	} `json:"corners"`
}

// TeamStats holds the per-team averages used for enrichment.
type TeamStats struct {
	AvgGoals   decimal.Decimal
	AvgCorners decimal.Decimal
}
