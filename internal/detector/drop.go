package detector

import (
	"github.com/shopspring/decimal"
)

// DropLevel classifies a single odd movement.
type DropLevel int

const (
	// DropNone covers rises, flat moves and drops up to the log threshold.
	DropNone DropLevel = iota
	// DropReportable is logged but does not alert.
	DropReportable
	// DropNotify is logged and alerts.
	DropNotify
)

// Drop is the evaluation of one odd update.
type Drop struct {
	Percent decimal.Decimal
	Level   DropLevel
}

// DropPercent returns (prev - next) / prev * 100. A rise yields a negative
// value. A non-positive prev yields zero.
func DropPercent(prev, next decimal.Decimal) decimal.Decimal {
	if !prev.IsPositive() {
		return decimal.Zero
	}
	return prev.Sub(next).Div(prev).Mul(hundred)
}

// EvaluateDrop compares the value an odd had before an update with its new
// value. Both thresholds are exclusive.
func (d *Detector) EvaluateDrop(prev, next decimal.Decimal) Drop {
	pct := DropPercent(prev, next)
	switch {
	case pct.GreaterThan(d.cfg.DropNotifyPercent):
		return Drop{Percent: pct, Level: DropNotify}
	case pct.GreaterThan(d.cfg.DropLogPercent):
		return Drop{Percent: pct, Level: DropReportable}
	default:
		return Drop{Percent: pct, Level: DropNone}
	}
}
