package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Match is a single fixture together with the odds quoted for it and its
// surebet records. A Match owns its Odds and Surebets.
type Match struct {
	ID        string      `json:"id"`
	HomeTeam  string      `json:"home_team"`
	AwayTeam  string      `json:"away_team"`
	StartTime time.Time   `json:"start_time"`
	League    string      `json:"league"`
	Odds      []Odd       `json:"odds"`
	Surebets  []Surebet   `json:"surebets"`
	Stats     *MatchStats `json:"stats,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewMatch creates a Match with a fresh identity. The start time is stored in
// UTC.
func NewMatch(home, away string, start time.Time, league string, now time.Time) Match {
	return Match{
		ID:        uuid.New().String(),
		HomeTeam:  home,
		AwayTeam:  away,
		StartTime: start.UTC(),
		League:    league,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsLive reports whether the match has kicked off at the given instant.
func (m *Match) IsLive(now time.Time) bool {
	return !now.Before(m.StartTime)
}

// Key returns the case-insensitive natural key of the match.
func (m *Match) Key() string {
	return MatchKey(m.HomeTeam, m.AwayTeam)
}

// MatchKey builds the natural key used to recognise the same fixture across
// feed observations.
func MatchKey(home, away string) string {
	return strings.ToLower(strings.TrimSpace(home)) + "|" + strings.ToLower(strings.TrimSpace(away))
}

// FindOdd returns the odd quoted by bookmakerID for sel, or nil.
func (m *Match) FindOdd(bookmakerID string, sel Selection) *Odd {
	for i := range m.Odds {
		if m.Odds[i].BookmakerID == bookmakerID && m.Odds[i].Selection == sel {
			return &m.Odds[i]
		}
	}
	return nil
}

// ActiveSurebet returns the currently active surebet, or nil.
func (m *Match) ActiveSurebet() *Surebet {
	for i := range m.Surebets {
		if m.Surebets[i].Active {
			return &m.Surebets[i]
		}
	}
	return nil
}

// HasStats reports whether the match has been enriched.
func (m *Match) HasStats() bool {
	return m.Stats != nil
}

// MatchStats is the optional enrichment attached to a match from the
// statistics provider.
type MatchStats struct {
	AvgGoals   decimal.Decimal `json:"avg_goals"`
	AvgCorners decimal.Decimal `json:"avg_corners"`
	HeadToHead []H2HGame       `json:"head_to_head"`
	HomeForm   []FormGame      `json:"home_form"`
	AwayForm   []FormGame      `json:"away_form"`
	HomeLogo   string          `json:"home_logo,omitempty"`
	AwayLogo   string          `json:"away_logo,omitempty"`
}

// H2HWinner identifies the winning side of a past meeting.
type H2HWinner string

const (
	WinnerHome H2HWinner = "home"
	WinnerAway H2HWinner = "away"
	WinnerDraw H2HWinner = "draw"
)

// H2HGame is one past meeting between the two teams.
type H2HGame struct {
	Date      time.Time `json:"date"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	Winner    H2HWinner `json:"winner"`
}

// FormResult is a W/D/L result from the team's point of view.
type FormResult string

const (
	FormWin  FormResult = "W"
	FormDraw FormResult = "D"
	FormLoss FormResult = "L"
)

// FormGame is one recent result for a team.
type FormGame struct {
	Result   FormResult `json:"result"`
	Opponent string     `json:"opponent"`
}
