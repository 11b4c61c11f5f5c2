package reconcile

import (
	"strings"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// Dedup collapses feed records that describe the same fixture. Records are
// grouped by (home, away, UTC kickoff date), case-insensitively, and only the
// record with the latest kickoff survives. On equal kickoffs the record
// reported later in the feed wins. Output order follows the first appearance
// of each group.
func Dedup(feed []domain.ExternalMatch) []domain.ExternalMatch {
	latest := make(map[string]domain.ExternalMatch, len(feed))
	order := make([]string, 0, len(feed))

	for _, ext := range feed {
		key := dedupKey(ext)
		cur, ok := latest[key]
		if !ok {
			order = append(order, key)
		}
		if !ok || !ext.CommenceTime.Before(cur.CommenceTime) {
			latest[key] = ext
		}
	}

	out := make([]domain.ExternalMatch, 0, len(order))
	for _, key := range order {
		out = append(out, latest[key])
	}
	return out
}

func dedupKey(ext domain.ExternalMatch) string {
	return strings.ToLower(strings.TrimSpace(ext.HomeTeam)) + "|" +
		strings.ToLower(strings.TrimSpace(ext.AwayTeam)) + "|" +
		ext.CommenceTime.UTC().Format("2006-01-02")
}
