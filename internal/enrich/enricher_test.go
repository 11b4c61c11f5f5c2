package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/FilipeRosar/oddsscanner/internal/platform/apifootball"
	"github.com/shopspring/decimal"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type fakeStats struct {
	mu         sync.Mutex
	mapping    *apifootball.Mapping
	mappingErr error
	failTeam   int
	statsFail  int
	h2hErr     error
	failAll    bool
	stats      map[int]apifootball.TeamStats
	calls      int
	seasons    []int
}

var errUpstream = errors.New("upstream timeout")

func (f *fakeStats) BuildMapping(_ context.Context, _ []int, season int) (*apifootball.Mapping, error) {
	f.mu.Lock()
	f.seasons = append(f.seasons, season)
	f.mu.Unlock()
	if f.mappingErr != nil {
		return nil, f.mappingErr
	}
	return f.mapping, nil
}

func (f *fakeStats) HeadToHead(_ context.Context, homeID, awayID, last int) ([]domain.H2HGame, error) {
	f.count()
	if f.failAll {
		return nil, errUpstream
	}
	if f.h2hErr != nil {
		return nil, f.h2hErr
	}
	return []domain.H2HGame{{HomeScore: 2, AwayScore: 1, Winner: domain.WinnerHome}}, nil
}

func (f *fakeStats) RecentForm(_ context.Context, teamID, _, _, _ int) ([]domain.FormGame, error) {
	f.count()
	if f.failAll || teamID == f.failTeam {
		return nil, errUpstream
	}
	return []domain.FormGame{{Result: domain.FormWin, Opponent: "X"}}, nil
}

func (f *fakeStats) TeamStatistics(_ context.Context, teamID, _, _ int) (apifootball.TeamStats, error) {
	f.count()
	if f.failAll || teamID == f.statsFail {
		return apifootball.TeamStats{}, errUpstream
	}
	return f.stats[teamID], nil
}

func (f *fakeStats) count() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func newFake() *fakeStats {
	m := apifootball.NewMapping(2025)
	m.AddTeam(apifootball.Team{ID: 1, Name: "Flamengo", Logo: "fla.png", LeagueID: 71})
	m.AddTeam(apifootball.Team{ID: 2, Name: "Palmeiras", Logo: "pal.png", LeagueID: 71})
	m.AddTeam(apifootball.Team{ID: 3, Name: "São Paulo", Logo: "spfc.png", LeagueID: 71})
	m.AddTeam(apifootball.Team{ID: 4, Name: "Santos", Logo: "san.png", LeagueID: 71})
	return &fakeStats{
		mapping: m,
		stats: map[int]apifootball.TeamStats{
			1: {AvgGoals: decimal.RequireFromString("2.0"), AvgCorners: decimal.RequireFromString("6")},
			2: {AvgGoals: decimal.RequireFromString("1.0"), AvgCorners: decimal.RequireFromString("5")},
			3: {AvgGoals: decimal.RequireFromString("1.4"), AvgCorners: apifootball.DefaultAvgCorners},
			4: {AvgGoals: decimal.RequireFromString("1.2"), AvgCorners: apifootball.DefaultAvgCorners},
		},
	}
}

func newEnricher(src StatsSource, cfg Config) *Enricher {
	return New(src, cfg, slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(func() time.Time { return now })
}

func match(home, away string, start time.Time) domain.Match {
	return domain.NewMatch(home, away, start, "Brazil Série A", now)
}

func TestEnrichComputesAverages(t *testing.T) {
	src := newFake()
	m := match("Flamengo", "Palmeiras", now.Add(48*time.Hour))

	updates := newEnricher(src, Config{LeagueIDs: []int{71}}).Enrich(context.Background(), []domain.Match{m})

	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	s := updates[0].Stats
	if updates[0].MatchID != m.ID {
		t.Errorf("MatchID = %s, want %s", updates[0].MatchID, m.ID)
	}
	if !s.AvgGoals.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("AvgGoals = %s, want 1.5", s.AvgGoals)
	}
	if !s.AvgCorners.Equal(decimal.RequireFromString("5.5")) {
		t.Errorf("AvgCorners = %s, want 5.5", s.AvgCorners)
	}
	if s.HomeLogo != "fla.png" || s.AwayLogo != "pal.png" {
		t.Errorf("logos = %s/%s", s.HomeLogo, s.AwayLogo)
	}
	if len(s.HeadToHead) != 1 || len(s.HomeForm) != 1 || len(s.AwayForm) != 1 {
		t.Errorf("stats = %+v", s)
	}
	if src.calls != 5 {
		t.Errorf("provider calls = %d, want 5", src.calls)
	}
	if len(src.seasons) != 1 || src.seasons[0] != 2025 {
		t.Errorf("season = %v, want current year", src.seasons)
	}
}

func TestEnrichSelectsPendingMatches(t *testing.T) {
	src := newFake()
	enriched := match("Flamengo", "Palmeiras", now.Add(24*time.Hour))
	enriched.Stats = &domain.MatchStats{}
	live := match("Santos", "Palmeiras", now.Add(-time.Hour))
	later := match("São Paulo", "Santos", now.Add(72*time.Hour))
	sooner := match("Flamengo", "Santos", now.Add(36*time.Hour))

	updates := newEnricher(src, Config{MaxMatches: 1}).
		Enrich(context.Background(), []domain.Match{enriched, live, later, sooner})

	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].MatchID != sooner.ID {
		t.Errorf("enriched %s, want the nearest kickoff", updates[0].MatchID)
	}
}

func TestEnrichSkipsUnmappedTeams(t *testing.T) {
	src := newFake()
	m := match("Flamengo", "Cuiabá", now.Add(24*time.Hour))

	updates := newEnricher(src, Config{}).Enrich(context.Background(), []domain.Match{m})

	if len(updates) != 0 {
		t.Errorf("updates = %d, want 0", len(updates))
	}
	if src.calls != 0 {
		t.Errorf("provider calls = %d, want 0", src.calls)
	}
}

func TestEnrichKeepsFieldsOfSuccessfulCalls(t *testing.T) {
	src := newFake()
	src.failTeam = 2
	partial := match("Flamengo", "Palmeiras", now.Add(24*time.Hour))
	full := match("São Paulo", "Santos", now.Add(48*time.Hour))

	updates := newEnricher(src, Config{}).Enrich(context.Background(), []domain.Match{partial, full})

	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	s := updates[0].Stats
	if updates[0].MatchID != partial.ID {
		t.Fatalf("first update = %s, want %s", updates[0].MatchID, partial.ID)
	}
	if s.AwayForm != nil {
		t.Errorf("AwayForm = %+v, want empty after a failed call", s.AwayForm)
	}
	if len(s.HomeForm) != 1 || len(s.HeadToHead) != 1 {
		t.Errorf("successful fields lost: %+v", s)
	}
	if !s.AvgGoals.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("AvgGoals = %s, want 1.5", s.AvgGoals)
	}
	if len(updates[1].Stats.AwayForm) != 1 {
		t.Errorf("second match AwayForm = %+v", updates[1].Stats.AwayForm)
	}
}

func TestEnrichAveragesFetchedStatistics(t *testing.T) {
	tests := []struct {
		name        string
		statsFail   int
		wantGoals   string
		wantCorners string
	}{
		{name: "both teams", wantGoals: "1.5", wantCorners: "5.5"},
		{name: "home only", statsFail: 2, wantGoals: "2", wantCorners: "6"},
		{name: "away only", statsFail: 1, wantGoals: "1", wantCorners: "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFake()
			src.statsFail = tt.statsFail
			m := match("Flamengo", "Palmeiras", now.Add(24*time.Hour))

			updates := newEnricher(src, Config{}).Enrich(context.Background(), []domain.Match{m})
			if len(updates) != 1 {
				t.Fatalf("updates = %d, want 1", len(updates))
			}
			s := updates[0].Stats
			if !s.AvgGoals.Equal(decimal.RequireFromString(tt.wantGoals)) {
				t.Errorf("AvgGoals = %s, want %s", s.AvgGoals, tt.wantGoals)
			}
			if !s.AvgCorners.Equal(decimal.RequireFromString(tt.wantCorners)) {
				t.Errorf("AvgCorners = %s, want %s", s.AvgCorners, tt.wantCorners)
			}
		})
	}
}

func TestEnrichSkipsMatchWhenEveryCallFails(t *testing.T) {
	src := newFake()
	src.failAll = true
	m := match("Flamengo", "Palmeiras", now.Add(24*time.Hour))

	if updates := newEnricher(src, Config{}).Enrich(context.Background(), []domain.Match{m}); len(updates) != 0 {
		t.Errorf("updates = %+v, want none", updates)
	}
}

func TestEnrichStopsWhenQuotaRunsOut(t *testing.T) {
	src := newFake()
	src.h2hErr = fmt.Errorf("%w: limiter wait exceeds deadline", domain.ErrRateLimited)
	first := match("Flamengo", "Palmeiras", now.Add(24*time.Hour))
	second := match("São Paulo", "Santos", now.Add(48*time.Hour))

	updates := newEnricher(src, Config{}).Enrich(context.Background(), []domain.Match{first, second})

	if len(updates) != 0 {
		t.Errorf("updates = %+v, want none", updates)
	}
	if src.calls != 5 {
		t.Errorf("provider calls = %d, want 5 (second match deferred)", src.calls)
	}
}

func TestEnrichStopsWhenContextEnds(t *testing.T) {
	src := newFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	updates := newEnricher(src, Config{}).
		Enrich(ctx, []domain.Match{match("Flamengo", "Palmeiras", now.Add(24*time.Hour))})

	if len(updates) != 0 || src.calls != 0 {
		t.Errorf("updates = %d, calls = %d, want none", len(updates), src.calls)
	}
}

func TestEnrichWithProviderRateLimit(t *testing.T) {
	routes := map[string]string{
		"/leagues": `{"errors":[],"response":[{"league":{"id":71,"name":"Serie A"}}]}`,
		"/teams": `{"errors":[],"response":[
			{"team":{"id":1,"name":"Flamengo","logo":"fla.png"}},
			{"team":{"id":2,"name":"Palmeiras","logo":"pal.png"}}
		]}`,
		"/fixtures/headtohead": `{"errors":[],"response":[]}`,
		"/fixtures":            `{"errors":[],"response":[]}`,
		"/teams/statistics":    `{"errors":[],"response":{"goals":{"for":{"average":{"total":"1.5"}}}}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := apifootball.NewClient(apifootball.Options{
		BaseURL:           srv.URL,
		APIKey:            "k",
		Timeout:           10 * time.Second,
		RequestsPerMinute: 10,
	}, logger)
	e := New(client, Config{LeagueIDs: []int{71}, Season: 2025}, logger).
		WithClock(func() time.Time { return now })

	start := time.Now()
	updates := e.Enrich(context.Background(), []domain.Match{match("Flamengo", "Palmeiras", now.Add(24*time.Hour))})

	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if !updates[0].Stats.AvgGoals.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("AvgGoals = %s, want 1.5", updates[0].Stats.AvgGoals)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("enrichment took %s", elapsed)
	}
}

func TestEnrichWithoutMapping(t *testing.T) {
	src := newFake()
	src.mappingErr = errors.New("quota exhausted")
	m := match("Flamengo", "Palmeiras", now.Add(24*time.Hour))

	if updates := newEnricher(src, Config{}).Enrich(context.Background(), []domain.Match{m}); updates != nil {
		t.Errorf("updates = %+v, want nil", updates)
	}
}

func TestEnrichNothingPending(t *testing.T) {
	src := newFake()
	m := match("Flamengo", "Palmeiras", now.Add(24*time.Hour))
	m.Stats = &domain.MatchStats{}

	newEnricher(src, Config{}).Enrich(context.Background(), []domain.Match{m})

	if len(src.seasons) != 0 {
		t.Error("mapping was built with nothing to enrich")
	}
}
