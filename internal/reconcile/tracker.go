package reconcile

import "github.com/FilipeRosar/oddsscanner/internal/domain"

// changeTracker records which entities a pass created or mutated so the
// final state of each can be emitted once, however many times it changed.
type changeTracker struct {
	newMatches      map[string]bool
	newOdds         map[string]bool
	updatedOdds     map[string]bool
	newSurebets     map[string]bool
	touchedSurebets map[string]bool
	history         []domain.OddHistory
}

func newChangeTracker() *changeTracker {
	return &changeTracker{
		newMatches:      make(map[string]bool),
		newOdds:         make(map[string]bool),
		updatedOdds:     make(map[string]bool),
		newSurebets:     make(map[string]bool),
		touchedSurebets: make(map[string]bool),
	}
}

func (t *changeTracker) oddCreated(o domain.Odd) {
	t.newOdds[o.ID] = true
	t.history = append(t.history, o.History...)
}

func (t *changeTracker) oddUpdated(id string, h domain.OddHistory) {
	if !t.newOdds[id] {
		t.updatedOdds[id] = true
	}
	t.history = append(t.history, h)
}

// batch assembles the commit batch from the final in-memory state.
func (t *changeTracker) batch(matches []*domain.Match, newBookmakers []domain.Bookmaker) domain.CommitBatch {
	b := domain.CommitBatch{
		NewBookmakers: append([]domain.Bookmaker(nil), newBookmakers...),
		NewHistory:    t.history,
	}
	for _, m := range matches {
		if t.newMatches[m.ID] {
			b.NewMatches = append(b.NewMatches, *m)
		}
		for _, o := range m.Odds {
			switch {
			case t.newOdds[o.ID]:
				b.NewOdds = append(b.NewOdds, o)
			case t.updatedOdds[o.ID]:
				b.UpdatedOdds = append(b.UpdatedOdds, o)
			}
		}
		for _, s := range m.Surebets {
			switch {
			case t.newSurebets[s.ID]:
				b.NewSurebets = append(b.NewSurebets, s)
			case t.touchedSurebets[s.ID]:
				b.UpdatedSurebets = append(b.UpdatedSurebets, s)
			}
		}
	}
	return b
}
