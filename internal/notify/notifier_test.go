package notify

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
	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	name string
	err  error
	mu   sync.Mutex
	sent []Message
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

type memBus struct {
	channel  string
	payloads [][]byte
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.channel = channel
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

type staticRecipients []string

func (s staticRecipients) ListEmails(context.Context) ([]string, error) { return s, nil }

var (
	at      = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	surebet = domain.SurebetDetected{
		MatchID: "m1", HomeTeam: "Flamengo", AwayTeam: "Palmeiras",
		ProfitPercent: decimal.RequireFromString("3.0927835"), DetectedAt: at,
	}
	drop = domain.DroppingOdds{
		MatchID: "m1", HomeTeam: "Flamengo", AwayTeam: "Palmeiras",
		Selection: domain.SelectionDraw, Previous: decimal.RequireFromString("3.40"),
		Current: decimal.RequireFromString("2.80"), DropPercent: decimal.RequireFromString("17.647"),
		Bookmaker: "Pinnacle", DetectedAt: at,
	}
)

func TestRender(t *testing.T) {
	tests := []struct {
		name      string
		alert     domain.Alert
		wantTitle string
		wantBody  string
	}{
		{"surebet", surebet, surebetTitle, "Flamengo x Palmeiras: +3.09%"},
		{"drop on draw", drop, dropTitle, "Flamengo x Palmeiras (Empate): ↓17.6% na Pinnacle"},
		{
			"drop on away",
			domain.DroppingOdds{HomeTeam: "Santos", AwayTeam: "Corinthians", Selection: domain.SelectionAway,
				DropPercent: decimal.RequireFromString("20"), Bookmaker: "Bet365"},
			dropTitle,
			"Santos x Corinthians (Corinthians): ↓20.0% na Bet365",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Render(tt.alert, "https://odds.example")
			if msg.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", msg.Title, tt.wantTitle)
			}
			if msg.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", msg.Body, tt.wantBody)
			}
			if msg.Event != string(tt.alert.Kind()) {
				t.Errorf("Event = %q", msg.Event)
			}
			if !strings.Contains(msg.HTML, `href="https://odds.example"`) {
				t.Errorf("HTML missing site link: %s", msg.HTML)
			}
		})
	}
}

func TestNotifierFiltersAndJoinsErrors(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	n := NewNotifier([]Sender{bad, ok}, []string{" dropping_odds "}, discardLogger())

	if err := n.Notify(context.Background(), Message{Event: "surebet_detected"}); err != nil {
		t.Fatalf("filtered event returned %v", err)
	}
	if len(ok.sent) != 0 {
		t.Fatal("filtered event was delivered")
	}

	err := n.Notify(context.Background(), Message{Event: "dropping_odds", Title: "t"})
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Fatalf("err = %v, want bad sender failure", err)
	}
	if len(ok.sent) != 1 {
		t.Errorf("healthy sender got %d messages, want 1", len(ok.sent))
	}
}

func TestAlertDispatcherPublishesAndNotifies(t *testing.T) {
	sender := &recordingSender{name: "rec", err: errors.New("down")}
	bus := &memBus{}
	d := NewAlertDispatcher(NewNotifier([]Sender{sender}, nil, discardLogger()), bus, "", discardLogger())

	d.Dispatch(context.Background(), surebet)

	if bus.channel != AlertChannel || len(bus.payloads) != 1 {
		t.Fatalf("bus got channel %q with %d payloads", bus.channel, len(bus.payloads))
	}
	got, err := domain.UnmarshalAlert(bus.payloads[0])
	if err != nil {
		t.Fatalf("UnmarshalAlert: %v", err)
	}
	if sb, ok := got.(domain.SurebetDetected); !ok || sb.MatchID != "m1" {
		t.Errorf("decoded %#v", got)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sender got %d messages, want 1", len(sender.sent))
	}
}

func TestSendersPostExpectedPayloads(t *testing.T) {
	type captured struct {
		path string
		auth string
		body map[string]any
	}
	var mu sync.Mutex
	var reqs []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		reqs = append(reqs, captured{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	push := NewOneSignalSender("app-1", "os-key", "")
	push.endpoint = srv.URL + "/onesignal"
	mail := NewResendSender("re-key", "", staticRecipients{"a@x.com", "b@y.com"})
	mail.endpoint = srv.URL + "/resend"
	tg := NewTelegramSender("tok", "42")
	tg.apiBase = srv.URL
	dc := NewDiscordSender(srv.URL + "/discord")

	msg := Render(drop, "https://odds.example")
	for _, s := range []Sender{push, mail, tg, dc} {
		if err := s.Send(context.Background(), msg); err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
	}

	if len(reqs) != 4 {
		t.Fatalf("got %d requests, want 4", len(reqs))
	}

	pr := reqs[0]
	if pr.auth != "Basic os-key" || pr.body["app_id"] != "app-1" {
		t.Errorf("onesignal request = %+v", pr)
	}
	if pr.body["contents"].(map[string]any)["en"] != msg.Body {
		t.Errorf("onesignal contents = %v", pr.body["contents"])
	}

	re := reqs[1]
	if re.auth != "Bearer re-key" || re.body["from"] != DefaultEmailFrom {
		t.Errorf("resend request = %+v", re)
	}
	if to := re.body["to"].([]any); len(to) != 2 {
		t.Errorf("resend to = %v", to)
	}

	if reqs[2].path != "/bottok/sendMessage" || reqs[2].body["chat_id"] != "42" {
		t.Errorf("telegram request = %+v", reqs[2])
	}
	if !strings.Contains(reqs[3].body["content"].(string), msg.Body) {
		t.Errorf("discord content = %v", reqs[3].body["content"])
	}
}

func TestResendSkipsWithoutSubscribers(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	mail := NewResendSender("key", "", staticRecipients{})
	mail.endpoint = srv.URL
	if err := mail.Send(context.Background(), Message{Title: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if called {
		t.Error("resend was called with no recipients")
	}
}

func TestPostJSONReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid app_id", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := postJSON(context.Background(), srv.Client(), srv.URL, "", map[string]string{})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("err = %v, want status 400", err)
	}
}
