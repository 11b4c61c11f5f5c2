package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubStreamsAlerts(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 4)}
	hub := NewHub(bus, "alerts", "full", slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	all, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer all.Close()
	dropsOnly, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer dropsOnly.Close()
	waitForClients(t, hub, 2)

	if status := readJSON(t, all); status["type"] != "scanner_status" {
		t.Fatalf("first message = %v", status)
	}
	readJSON(t, dropsOnly)

	if err := dropsOnly.WriteJSON(map[string]any{"action": "subscribe", "kinds": []string{"dropping_odds"}}); err != nil {
		t.Fatalf("write filter: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	surebet, _ := domain.MarshalAlert(domain.SurebetDetected{MatchID: "m1", HomeTeam: "Flamengo", AwayTeam: "Palmeiras", ProfitPercent: decimal.NewFromInt(3)})
	drop, _ := domain.MarshalAlert(domain.DroppingOdds{MatchID: "m2", HomeTeam: "Santos", AwayTeam: "Corinthians", Selection: domain.SelectionHome, DropPercent: decimal.NewFromInt(20)})
	_ = bus.Publish(ctx, "alerts", surebet)
	_ = bus.Publish(ctx, "alerts", drop)

	if got := readJSON(t, all); got["type"] != string(domain.AlertSurebetDetected) {
		t.Errorf("all client first alert = %v", got["type"])
	}
	if got := readJSON(t, all); got["type"] != string(domain.AlertDroppingOdds) {
		t.Errorf("all client second alert = %v", got["type"])
	}
	if got := readJSON(t, dropsOnly); got["type"] != string(domain.AlertDroppingOdds) {
		t.Errorf("filtered client got %v, want only dropping_odds", got["type"])
	}
}

func TestEnvelopeKind(t *testing.T) {
	if k := envelopeKind([]byte(`{"type":"surebet_detected","payload":{}}`)); k != domain.AlertSurebetDetected {
		t.Errorf("kind = %q", k)
	}
	if k := envelopeKind([]byte(`garbage`)); k != "" {
		t.Errorf("kind of garbage = %q", k)
	}
}
