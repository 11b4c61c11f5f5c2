package service

import (
	"sort"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/detector"
	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultValueBetEdge is the margin above the cross-bookmaker mean at which
// an odd counts as a value bet (5%).
var DefaultValueBetEdge = decimal.RequireFromString("0.05")

// ViewBuilder projects catalog matches into read views.
type ViewBuilder struct {
	detector *detector.Detector
	edge     decimal.Decimal
}

// NewViewBuilder creates a ViewBuilder. A non-positive edge uses
// DefaultValueBetEdge.
func NewViewBuilder(det *detector.Detector, edge decimal.Decimal) *ViewBuilder {
	if !edge.IsPositive() {
		edge = DefaultValueBetEdge
	}
	return &ViewBuilder{detector: det, edge: edge}
}

// Build returns one view per match, ordered by kickoff.
func (b *ViewBuilder) Build(catalog domain.Catalog, now time.Time) []domain.MatchView {
	books := make(map[string]domain.Bookmaker, len(catalog.Bookmakers))
	for _, bk := range catalog.Bookmakers {
		books[bk.ID] = bk
	}

	views := make([]domain.MatchView, 0, len(catalog.Matches))
	for i := range catalog.Matches {
		views = append(views, b.view(&catalog.Matches[i], books, now))
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].StartTime.Before(views[j].StartTime)
	})
	return views
}

func (b *ViewBuilder) view(m *domain.Match, books map[string]domain.Bookmaker, now time.Time) domain.MatchView {
	v := domain.MatchView{
		ID:        m.ID,
		HomeTeam:  m.HomeTeam,
		AwayTeam:  m.AwayTeam,
		StartTime: m.StartTime,
		League:    m.League,
		Odds:      make([]domain.OddView, 0, len(m.Odds)),
		IsLive:    m.IsLive(now),
		Stats:     m.Stats,
	}

	for _, o := range m.Odds {
		bk, ok := books[o.BookmakerID]
		name := "Desconhecido"
		if ok {
			name = bk.Name
		}
		ov := domain.OddView{
			BookmakerName: name,
			Value:         o.Value,
			Selection:     o.Selection,
			BookmakerURL:  bk.WebsiteURL,
			AffiliateURL:  bk.AffiliateURL,
		}
		for _, h := range o.History {
			ov.History = append(ov.History, domain.OddHistoryView{Value: h.Value, RecordedAt: h.RecordedAt})
		}
		v.Odds = append(v.Odds, ov)
	}

	if profit, ok := b.surebetProfit(m); ok {
		s := profit.StringFixed(2)
		v.SurebetProfit = &s
	}
	v.HasValueBet = HasValueBet(m.Odds, b.edge)
	return v
}

// surebetProfit prefers the persisted active surebet and otherwise evaluates
// the current odds.
func (b *ViewBuilder) surebetProfit(m *domain.Match) (decimal.Decimal, bool) {
	if sb := m.ActiveSurebet(); sb != nil {
		return sb.ProfitPercent, true
	}
	arb, err := b.detector.Arbitrage(m.Odds)
	if err != nil || !arb.IsSurebet {
		return decimal.Zero, false
	}
	return arb.ProfitPercent, true
}

// HasValueBet reports whether any odd is at least edge above the mean of its
// selection across bookmakers. Selections quoted by a single bookmaker are
// not compared.
func HasValueBet(odds []domain.Odd, edge decimal.Decimal) bool {
	sums := make(map[domain.Selection]decimal.Decimal, len(domain.Selections))
	counts := make(map[domain.Selection]int64, len(domain.Selections))
	for _, o := range odds {
		sums[o.Selection] = sums[o.Selection].Add(o.Value)
		counts[o.Selection]++
	}

	factor := decimal.NewFromInt(1).Add(edge)
	for _, o := range odds {
		n := counts[o.Selection]
		if n < 2 {
			continue
		}
		mean := sums[o.Selection].Div(decimal.NewFromInt(n))
		if o.Value.GreaterThanOrEqual(mean.Mul(factor)) {
			return true
		}
	}
	return false
}
