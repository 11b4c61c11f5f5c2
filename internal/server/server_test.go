package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/FilipeRosar/oddsscanner/internal/pipeline"
	"github.com/FilipeRosar/oddsscanner/internal/server/handler"
	"github.com/FilipeRosar/oddsscanner/internal/service"
	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMatches struct {
	got  service.MatchFilter
	err  error
	list []domain.MatchView
}

func (f *fakeMatches) List(_ context.Context, filter service.MatchFilter) ([]domain.MatchView, error) {
	f.got = filter
	return f.list, f.err
}

type fakeSubscriber struct {
	known map[string]bool
	err   error
}

func (f *fakeSubscriber) Subscribe(_ context.Context, email string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	email = domain.NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return false, domain.ErrInvalidEmail
	}
	if f.known[email] {
		return true, nil
	}
	f.known[email] = true
	return false, nil
}

type fixedStatus struct{}

func (fixedStatus) Status() pipeline.SyncStatus {
	return pipeline.SyncStatus{
		LastRunAt:  time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC),
		Attempts:   2,
		LastReport: pipeline.CycleReport{Fetched: 10, Alerts: 1, Committed: true},
	}
}

type fixedClients int

func (c fixedClients) ClientCount() int { return int(c) }

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (c *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key] <= limit, nil
}

type testServer struct {
	handler http.Handler
	matches *fakeMatches
	subs    *fakeSubscriber
	limiter *countingLimiter
	trigger chan struct{}
}

func newTestServer(checks map[string]handler.HealthCheck) *testServer {
	logger := discardLogger()
	profit := "3.09"
	ts := &testServer{
		matches: &fakeMatches{list: []domain.MatchView{{
			ID: "m1", HomeTeam: "Flamengo", AwayTeam: "Palmeiras", League: "Brasileirão Série A",
			Odds:          []domain.OddView{{BookmakerName: "Bet365", Value: decimal.RequireFromString("2.10"), Selection: domain.SelectionHome, BookmakerURL: "https://www.bet365.com"}},
			SurebetProfit: &profit,
		}}},
		subs:    &fakeSubscriber{known: map[string]bool{}},
		limiter: &countingLimiter{counts: map[string]int{}},
		trigger: make(chan struct{}, 1),
	}
	ts.handler = Routes(Config{
		CORSOrigins:     []string{"https://oddsscanner.com.br"},
		AdminAPIKey:     "s3cret",
		SubscribeLimit:  2,
		SubscribeWindow: time.Minute,
	}, Handlers{
		Health:    handler.NewHealthHandler(checks, logger),
		Status:    handler.NewStatusHandler("full", fixedStatus{}, fixedClients(2)),
		Matches:   handler.NewMatchHandler(ts.matches, logger),
		Subscribe: handler.NewSubscribeHandler(ts.subs, logger),
		Sync:      handler.NewSyncHandler(ts.trigger, logger),
	}, ts.limiter, nil, logger)
	return ts
}

func (ts *testServer) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.9:5555"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestListMatches(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(http.MethodGet, "/api/matches?surebetOnly=true&valueBetOnly=nope", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !ts.matches.got.SurebetOnly || ts.matches.got.ValueBetOnly {
		t.Errorf("filter = %+v", ts.matches.got)
	}

	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body[0]["homeTeam"] != "Flamengo" || body[0]["surebetProfit"] != "3.09" {
		t.Errorf("body = %v", body)
	}
	odd := body[0]["odds"].([]any)[0].(map[string]any)
	if odd["bookmakerName"] != "Bet365" || odd["bookmakerUrl"] != "https://www.bet365.com" || odd["selection"] != "Home" {
		t.Errorf("odd = %v", odd)
	}
}

func TestListMatchesError(t *testing.T) {
	ts := newTestServer(nil)
	ts.matches.err = errors.New("db down")
	if rec := ts.do(http.MethodGet, "/api/matches", "", nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSubscribe(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantAlready any
	}{
		{"new address", `{"email":"Torcedor@Example.com"}`, http.StatusOK, false},
		{"already subscribed", `{"email":"torcedor@example.com "}`, http.StatusOK, true},
	}

	ts := newTestServer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/subscribe", tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			var body map[string]any
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			if body["alreadySubscribed"] != tt.wantAlready {
				t.Errorf("alreadySubscribed = %v, want %v", body["alreadySubscribed"], tt.wantAlready)
			}
		})
	}
}

func TestSubscribeRejectsInvalid(t *testing.T) {
	for _, body := range []string{`{"email":"no-at"}`, `not json`, `{"email":""}`} {
		ts := newTestServer(nil)
		if rec := ts.do(http.MethodPost, "/api/subscribe", body, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSubscribeRateLimited(t *testing.T) {
	ts := newTestServer(nil)
	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, ts.do(http.MethodPost, "/api/subscribe", `{"email":"a@b.com"}`, nil).Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
	if ts.limiter.counts["subscribe:203.0.113.9"] != 3 {
		t.Errorf("limiter keys = %v", ts.limiter.counts)
	}

	// a separate client behind a proxy has its own budget
	rec := ts.do(http.MethodPost, "/api/subscribe", `{"email":"c@d.com"}`, map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"})
	if rec.Code != http.StatusOK {
		t.Errorf("proxied client status = %d", rec.Code)
	}
}

func TestSubscribeFailsOpenWhenLimiterDown(t *testing.T) {
	ts := newTestServer(nil)
	ts.limiter.err = errors.New("redis down")
	if rec := ts.do(http.MethodPost, "/api/subscribe", `{"email":"a@b.com"}`, nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]handler.HealthCheck
		wantStatus int
		wantBody   string
	}{
		{"no checks", nil, http.StatusOK, `"status":"ok"`},
		{
			"redis down",
			map[string]handler.HealthCheck{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("dial tcp") },
			},
			http.StatusServiceUnavailable,
			`"redis":"down"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestServer(tt.checks).do(http.MethodGet, "/api/health", "", nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", rec.Body, tt.wantBody)
			}
		})
	}
}

func TestSyncTriggerRequiresAPIKey(t *testing.T) {
	ts := newTestServer(nil)

	if rec := ts.do(http.MethodPost, "/api/sync/trigger", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/sync/trigger", "", map[string]string{"X-API-Key": "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d", rec.Code)
	}

	rec := ts.do(http.MethodPost, "/api/sync/trigger", "", map[string]string{"Authorization": "Bearer s3cret"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case <-ts.trigger:
	default:
		t.Error("trigger not queued")
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(http.MethodOptions, "/api/subscribe", "", map[string]string{
		"Origin":                        "https://oddsscanner.com.br",
		"Access-Control-Request-Method": http.MethodPost,
	})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://oddsscanner.com.br" {
		t.Errorf("allowed origin = %q", got)
	}

	rec = ts.do(http.MethodGet, "/api/matches", "", map[string]string{"Origin": "https://evil.example"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	ts := newTestServer(nil)
	if rec := ts.do(http.MethodDelete, "/api/matches", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	rec := newTestServer(nil).do(http.MethodGet, "/api/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Mode      string `json:"mode"`
		WSClients int    `json:"wsClients"`
		Sync      struct {
			Attempts   int `json:"attempts"`
			LastReport struct {
				Fetched   int  `json:"fetched"`
				Committed bool `json:"committed"`
			} `json:"lastReport"`
		} `json:"sync"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Mode != "full" || body.WSClients != 2 {
		t.Errorf("mode %q clients %d", body.Mode, body.WSClients)
	}
	if body.Sync.Attempts != 2 || body.Sync.LastReport.Fetched != 10 || !body.Sync.LastReport.Committed {
		t.Errorf("sync = %+v", body.Sync)
	}
}
