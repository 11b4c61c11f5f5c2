package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// FeedArchiver implements domain.FeedArchiver. Every fetched feed is written
// as JSONL, one fixture per line, to
//
//	{prefix}/{yyyy}/{mm}/{dd}/{unix}.jsonl
//
// Snapshots at or above the multipart threshold are uploaded in parts.
type FeedArchiver struct {
	writer    domain.SnapshotWriter
	prefix    string
	multipart int64
}

// NewFeedArchiver creates a FeedArchiver. An empty prefix defaults to
// "feeds".
func NewFeedArchiver(writer domain.SnapshotWriter, prefix string) *FeedArchiver {
	if prefix == "" {
		prefix = "feeds"
	}
	return &FeedArchiver{writer: writer, prefix: prefix, multipart: minPartSize}
}

// SnapshotPath returns the object key of a snapshot fetched at t.
func (a *FeedArchiver) SnapshotPath(t time.Time) string {
	t = t.UTC()
	return path.Join(a.prefix, t.Format("2006"), t.Format("01"), t.Format("02"),
		strconv.FormatInt(t.Unix(), 10)+".jsonl")
}

// ArchiveFeed uploads matches and returns the object key.
func (a *FeedArchiver) ArchiveFeed(ctx context.Context, fetchedAt time.Time, matches []domain.ExternalMatch) (string, error) {
	data, err := encodeJSONL(matches)
	if err != nil {
		return "", fmt.Errorf("s3blob: encode feed snapshot: %w", err)
	}

	key := a.SnapshotPath(fetchedAt)
	if int64(len(data)) >= a.multipart {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(data), a.multipart)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(data), "application/x-ndjson")
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

// encodeJSONL serialises each record as one JSON line.
func encodeJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.FeedArchiver = (*FeedArchiver)(nil)
