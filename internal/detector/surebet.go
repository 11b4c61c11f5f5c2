package detector

import (
	"fmt"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/shopspring/decimal"
)

// Arbitrage is the result of combining the best odd of every selection.
type Arbitrage struct {
	Best          map[domain.Selection]decimal.Decimal
	Index         decimal.Decimal
	ProfitPercent decimal.Decimal
	IsSurebet     bool
}

// BestOdds returns the highest value quoted for each selection. Selections
// without any odd are absent from the map.
func BestOdds(odds []domain.Odd) map[domain.Selection]decimal.Decimal {
	best := make(map[domain.Selection]decimal.Decimal, len(domain.Selections))
	for _, o := range odds {
		if cur, ok := best[o.Selection]; !ok || o.Value.GreaterThan(cur) {
			best[o.Selection] = o.Value
		}
	}
	return best
}

// Arbitrage computes the arbitrage index 1/home + 1/draw + 1/away over the
// best odds. It returns domain.ErrNoOdds when a selection has no usable odd.
func (d *Detector) Arbitrage(odds []domain.Odd) (Arbitrage, error) {
	best := BestOdds(odds)

	index := decimal.Zero
	for _, sel := range domain.Selections {
		v, ok := best[sel]
		if !ok || !v.IsPositive() {
			return Arbitrage{Best: best}, fmt.Errorf("%w: %s", domain.ErrNoOdds, sel)
		}
		index = index.Add(one.Div(v))
	}

	arb := Arbitrage{Best: best, Index: index}
	if index.LessThan(d.cfg.SurebetThreshold) {
		arb.IsSurebet = true
		arb.ProfitPercent = ProfitPercent(index)
	}
	return arb, nil
}

// ProfitPercent converts an arbitrage index into the guaranteed profit
// percentage (1/index - 1) * 100.
func ProfitPercent(index decimal.Decimal) decimal.Decimal {
	return one.Div(index).Sub(one).Mul(hundred)
}

// Transition describes what happened to a match's surebet state.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionCreated
	TransitionUpdated
	TransitionDeactivated
)

func (t Transition) String() string {
	switch t {
	case TransitionCreated:
		return "created"
	case TransitionUpdated:
		return "updated"
	case TransitionDeactivated:
		return "deactivated"
	default:
		return "none"
	}
}

// SurebetOutcome reports the lifecycle step applied to a match. Alert is set
// only on TransitionCreated.
type SurebetOutcome struct {
	Transition Transition
	Surebet    domain.Surebet
	Arbitrage  Arbitrage
	Alert      domain.Alert
}

// EvaluateSurebet applies the surebet lifecycle to m in place:
//
//	NoSurebet -> Active(p) -> Active(p') -> Inactive
//
// A match whose odds do not cover all three selections produces no signal
// and keeps its current state.
func (d *Detector) EvaluateSurebet(m *domain.Match, now time.Time) SurebetOutcome {
	arb, err := d.Arbitrage(m.Odds)
	if err != nil {
		return SurebetOutcome{Transition: TransitionNone, Arbitrage: arb}
	}

	active := m.ActiveSurebet()
	switch {
	case arb.IsSurebet && active == nil:
		sb := domain.NewSurebet(m.ID, arb.ProfitPercent, now)
		m.Surebets = append(m.Surebets, sb)
		return SurebetOutcome{
			Transition: TransitionCreated,
			Surebet:    sb,
			Arbitrage:  arb,
			Alert: domain.SurebetDetected{
				MatchID:       m.ID,
				HomeTeam:      m.HomeTeam,
				AwayTeam:      m.AwayTeam,
				ProfitPercent: arb.ProfitPercent,
				DetectedAt:    now,
			},
		}

	case arb.IsSurebet:
		if active.ProfitPercent.Sub(arb.ProfitPercent).Abs().GreaterThan(d.cfg.ProfitTolerance) {
			active.UpdateProfit(arb.ProfitPercent, now)
			return SurebetOutcome{Transition: TransitionUpdated, Surebet: *active, Arbitrage: arb}
		}

	case active != nil:
		active.Deactivate(now)
		return SurebetOutcome{Transition: TransitionDeactivated, Surebet: *active, Arbitrage: arb}
	}

	return SurebetOutcome{Transition: TransitionNone, Arbitrage: arb}
}
