package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Selection is one side of the three-way moneyline market.
type Selection string

const (
	SelectionHome Selection = "Home"
	SelectionDraw Selection = "Draw"
	SelectionAway Selection = "Away"
)

// Selections lists every selection in display order.
var Selections = [3]Selection{SelectionHome, SelectionDraw, SelectionAway}

// ParseSelection converts a stored selection tag back into a Selection.
func ParseSelection(s string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home":
		return SelectionHome, nil
	case "draw":
		return SelectionDraw, nil
	case "away":
		return SelectionAway, nil
	default:
		return "", fmt.Errorf("unknown selection %q", s)
	}
}

// MarketMoneyLine is the market type of every odd the engine tracks.
const MarketMoneyLine = "MoneyLine"

// minOddValue is the exclusive lower bound for a decimal odd. MaxOddValue is
// the largest odd the catalog schema can store (NUMERIC(10,3)).
var (
	minOddValue = decimal.NewFromInt(1)
	MaxOddValue = decimal.RequireFromString("9999999.999")
)

// Odd is the current price a bookmaker quotes for one selection of a match.
type Odd struct {
	ID          string          `json:"id"`
	MatchID     string          `json:"match_id"`
	BookmakerID string          `json:"bookmaker_id"`
	Value       decimal.Decimal `json:"value"`
	Market      string          `json:"market"`
	Selection   Selection       `json:"selection"`
	UpdatedAt   time.Time       `json:"updated_at"`
	History     []OddHistory    `json:"history,omitempty"`
}

// OddHistory is an immutable snapshot of a prior odd value.
type OddHistory struct {
	OddID      string          `json:"odd_id"`
	Value      decimal.Decimal `json:"value"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// ValidateOddValue rejects decimal odds that are not strictly above 1.0 or
// that exceed MaxOddValue.
func ValidateOddValue(v decimal.Decimal) error {
	if !v.GreaterThan(minOddValue) || v.GreaterThan(MaxOddValue) {
		return fmt.Errorf("%w: %s", ErrInvalidOdd, v.String())
	}
	return nil
}

// NewOdd creates an odd and seeds its history with the initial value.
func NewOdd(matchID, bookmakerID string, sel Selection, value decimal.Decimal, now time.Time) (Odd, error) {
	if err := ValidateOddValue(value); err != nil {
		return Odd{}, err
	}
	id := uuid.New().String()
	return Odd{
		ID:          id,
		MatchID:     matchID,
		BookmakerID: bookmakerID,
		Value:       value,
		Market:      MarketMoneyLine,
		Selection:   sel,
		UpdatedAt:   now,
		History:     []OddHistory{{OddID: id, Value: value, RecordedAt: now}},
	}, nil
}

// UpdateValue records the current value in history and then replaces it. The
// returned entry is the one appended to History.
func (o *Odd) UpdateValue(v decimal.Decimal, now time.Time) (OddHistory, error) {
	if err := ValidateOddValue(v); err != nil {
		return OddHistory{}, err
	}
	h := OddHistory{OddID: o.ID, Value: o.Value, RecordedAt: now}
	o.History = append(o.History, h)
	o.Value = v
	o.UpdatedAt = now
	return h, nil
}
