package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Surebet records a period during which the best odds of a match summed to a
// guaranteed profit. Once deactivated a record is never reused.
type Surebet struct {
	ID            string          `json:"id"`
	MatchID       string          `json:"match_id"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
	DetectedAt    time.Time       `json:"detected_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Active        bool            `json:"active"`
}

// NewSurebet creates an active surebet record.
func NewSurebet(matchID string, profit decimal.Decimal, now time.Time) Surebet {
	return Surebet{
		ID:            uuid.New().String(),
		MatchID:       matchID,
		ProfitPercent: profit,
		DetectedAt:    now,
		UpdatedAt:     now,
		Active:        true,
	}
}

// UpdateProfit replaces the stored profit of an active record.
func (s *Surebet) UpdateProfit(profit decimal.Decimal, now time.Time) {
	s.ProfitPercent = profit
	s.UpdatedAt = now
}

// Deactivate moves the record to its terminal state.
func (s *Surebet) Deactivate(now time.Time) {
	s.Active = false
	s.UpdatedAt = now
}
