// Package detector computes the two market signals the scanner tracks:
// three-way arbitrage (surebets) across bookmakers and sharp drops of a single
// odd. It also owns the surebet lifecycle of a match.
package detector

import (
	"github.com/shopspring/decimal"
)

// Config holds the detection thresholds. All percentages are expressed in
// percentage points (15 means 15%).
type Config struct {
	// SurebetThreshold is the arbitrage index below which a match is a
	// surebet. 1.0 is the break-even point.
	SurebetThreshold decimal.Decimal
	// ProfitTolerance is the minimum profit change that updates an active
	// surebet record.
	ProfitTolerance decimal.Decimal
	// DropLogPercent is the exclusive bound above which a drop is reported.
	DropLogPercent decimal.Decimal
	// DropNotifyPercent is the exclusive bound above which a drop alerts.
	DropNotifyPercent decimal.Decimal
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		SurebetThreshold:  decimal.RequireFromString("0.98"),
		ProfitTolerance:   decimal.RequireFromString("0.1"),
		DropLogPercent:    decimal.NewFromInt(10),
		DropNotifyPercent: decimal.NewFromInt(15),
	}
}

// Detector evaluates surebet and drop signals with a fixed Config.
type Detector struct {
	cfg Config
}

// New creates a Detector.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Config returns the thresholds in use.
func (d *Detector) Config() Config {
	return d.cfg
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)
