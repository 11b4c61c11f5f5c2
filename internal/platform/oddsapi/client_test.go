package oddsapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/shopspring/decimal"
)

const brazilOdds = `[
  {
    "id": "e1",
    "sport_key": "soccer_brazil_campeonato",
    "sport_title": "Brazil Série A",
    "commence_time": "2025-06-14T19:00:00Z",
    "home_team": "Flamengo",
    "away_team": "Palmeiras",
    "bookmakers": [
      {
        "key": "bet365",
        "title": "Bet365",
        "last_update": "2025-06-10T11:58:00Z",
        "markets": [
          {
            "key": "h2h",
            "outcomes": [
              {"name": "Flamengo", "price": 2.10},
              {"name": "Draw", "price": 3.20},
              {"name": "Palmeiras", "price": 3.50}
            ]
          }
        ]
      },
      {
        "key": "broken",
        "title": "Broken",
        "markets": [{"key": "h2h", "outcomes": [{"name": "Flamengo", "price": "n/a"}]}]
      },
      {
        "key": "pinnacle",
        "title": "Pinnacle",
        "markets": [
          {"key": "totals", "outcomes": [{"name": "Over", "price": 1.91, "point": 2.5}]}
        ]
      }
    ]
  }
]`

func newTestClient(url string) *Client {
	return NewClient(Options{BaseURL: url, APIKey: "secret"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetOdds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/sports/soccer_brazil_campeonato/odds/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{
			"apiKey":     "secret",
			"regions":    "eu,uk,au",
			"markets":    "h2h",
			"oddsFormat": "decimal",
			"dateFormat": "iso",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("query %s = %q, want %q", k, got, v)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, brazilOdds)
	}))
	defer srv.Close()

	matches, err := newTestClient(srv.URL).GetOdds(context.Background(), "soccer_brazil_campeonato")
	if err != nil {
		t.Fatalf("GetOdds: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("len = %d, want 1", len(matches))
	}
	m := matches[0]
	if m.HomeTeam != "Flamengo" || m.AwayTeam != "Palmeiras" || m.SportTitle != "Brazil Série A" {
		t.Errorf("match = %+v", m)
	}
	if len(m.Bookmakers) != 2 {
		t.Fatalf("bookmakers = %d, want 2 (malformed block dropped)", len(m.Bookmakers))
	}

	h2h, ok := m.Bookmakers[0].Market(domain.MarketKeyH2H)
	if !ok {
		t.Fatal("h2h market missing")
	}
	if !h2h.Outcomes[0].Price.Equal(decimal.RequireFromString("2.10")) {
		t.Errorf("price = %s, want 2.10", h2h.Outcomes[0].Price)
	}

	totals, ok := m.Bookmakers[1].Market("totals")
	if !ok || totals.Outcomes[0].Point == nil {
		t.Fatal("totals point missing")
	}
	if !totals.Outcomes[0].Point.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("point = %s, want 2.5", totals.Outcomes[0].Point)
	}
}

func TestFetchOddsSkipsFailingKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "unknown") {
			http.Error(w, `{"message":"Unknown sport"}`, http.StatusNotFound)
			return
		}
		io.WriteString(w, brazilOdds)
	}))
	defer srv.Close()

	matches, err := newTestClient(srv.URL).FetchOdds(context.Background(),
		[]string{"soccer_unknown", "soccer_brazil_campeonato"})
	if err != nil {
		t.Fatalf("FetchOdds: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("len = %d, want 1", len(matches))
	}
}

func TestFetchOddsFailsWhenEveryKeyFails(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "quota exhausted", status: http.StatusTooManyRequests, wantErr: domain.ErrRateLimited},
		{name: "unknown sport", status: http.StatusNotFound, wantErr: domain.ErrNotFound},
		{name: "server error", status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).FetchOdds(context.Background(), []string{"a", "b"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetchOddsRejectsEmptyKeys(t *testing.T) {
	if _, err := newTestClient("http://unused").FetchOdds(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty key list")
	}
}

func TestRedactKey(t *testing.T) {
	err := redactKey(errors.New(`Get "https://host/odds?apiKey=secret": timeout`), "secret")
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("key leaked: %v", err)
	}
}
