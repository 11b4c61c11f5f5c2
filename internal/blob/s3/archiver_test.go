package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/shopspring/decimal"
)

type memWriter struct {
	objects   map[string][]byte
	multipart map[string]bool
	err       error
}

func newMemWriter() *memWriter {
	return &memWriter{objects: map[string][]byte{}, multipart: map[string]bool{}}
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(data)
	m.objects[path] = b
	return err
}

func (m *memWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(data)
	m.objects[path] = b
	m.multipart[path] = true
	return err
}

func TestSnapshotPath(t *testing.T) {
	a := NewFeedArchiver(newMemWriter(), "")
	ts := time.Date(2025, 3, 7, 23, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	want := "feeds/2025/03/08/1741401000.jsonl"
	if got := a.SnapshotPath(ts); got != want {
		t.Errorf("SnapshotPath = %q, want %q", got, want)
	}
}

func TestArchiveFeedWritesOneLinePerMatch(t *testing.T) {
	w := newMemWriter()
	a := NewFeedArchiver(w, "snapshots")
	feed := []domain.ExternalMatch{
		{ID: "a", HomeTeam: "Flamengo", AwayTeam: "Palmeiras", Bookmakers: []domain.ExternalBookmaker{{
			Key: "bet365", Title: "Bet365",
			Markets: []domain.ExternalMarket{{Key: "h2h", Outcomes: []domain.ExternalOutcome{
				{Name: "Flamengo", Price: decimal.RequireFromString("2.10")},
			}}},
		}}},
		{ID: "b", HomeTeam: "Santos", AwayTeam: "Corinthians"},
	}

	key, err := a.ArchiveFeed(context.Background(), time.Unix(1700000000, 0), feed)
	if err != nil {
		t.Fatalf("ArchiveFeed: %v", err)
	}
	if key != "snapshots/2023/11/14/1700000000.jsonl" {
		t.Errorf("key = %q", key)
	}
	if w.multipart[key] {
		t.Error("small snapshot used multipart upload")
	}

	sc := bufio.NewScanner(bytes.NewReader(w.objects[key]))
	var ids []string
	for sc.Scan() {
		var m domain.ExternalMatch
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %d: %v", len(ids)+1, err)
		}
		ids = append(ids, m.ID)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v, want [a b]", ids)
	}
}

func TestArchiveFeedUsesMultipartForLargeSnapshots(t *testing.T) {
	w := newMemWriter()
	a := NewFeedArchiver(w, "")
	a.multipart = 64

	key, err := a.ArchiveFeed(context.Background(), time.Now(), []domain.ExternalMatch{
		{ID: "1", HomeTeam: "Atlético Mineiro", AwayTeam: "Cruzeiro", SportTitle: "Brazil Série A"},
	})
	if err != nil {
		t.Fatalf("ArchiveFeed: %v", err)
	}
	if !w.multipart[key] {
		t.Error("large snapshot did not use multipart upload")
	}
}

func TestArchiveFeedPropagatesWriteErrors(t *testing.T) {
	w := newMemWriter()
	w.err = errors.New("bucket gone")
	if _, err := NewFeedArchiver(w, "").ArchiveFeed(context.Background(), time.Now(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		ssl      bool
		want     string
	}{
		{"https://xyz.supabase.co/storage/v1/s3", false, "https://xyz.supabase.co/storage/v1/s3"},
		{"minio:9000", false, "http://minio:9000"},
		{"localhost:9000", true, "https://localhost:9000"},
		{"http://minio:9000", true, "http://minio:9000"},
		{"r2.example.com", true, "https://r2.example.com"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.endpoint, tt.ssl); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.endpoint, tt.ssl, got, tt.want)
		}
	}
}
