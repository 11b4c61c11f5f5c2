package reconcile

import (
	"strings"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

type bookmakerURLs struct {
	website   string
	affiliate string
}

// knownBookmakers maps lower-cased bookmaker names to their site and
// affiliate links.
var knownBookmakers = map[string]bookmakerURLs{
	"betano":       {"https://www.betano.com", "https://www.betano.com/?aff=oddsscanner"},
	"bet365":       {"https://www.bet365.com", "https://www.bet365.com/?affiliate=oddsscanner"},
	"pinnacle":     {"https://www.pinnacle.com", "https://www.pinnacle.com/?tag=oddsscanner"},
	"betfair":      {"https://www.betfair.com", "https://www.betfair.com/exchange/plus/?aff=oddsscanner"},
	"william hill": {"https://sports.williamhill.com", "https://sports.williamhill.com/betting/en-gb?aff=oddsscanner"},
	"betway":       {"https://betway.com", "https://betway.com/?aff=oddsscanner"},
	"888sport":     {"https://www.888sport.com", "https://www.888sport.com/?aff=oddsscanner"},
}

var slugReplacer = strings.NewReplacer(" ", "", ".", "", "&", "")

// Slug lower-cases name and strips spaces, dots and ampersands.
func Slug(name string) string {
	return slugReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}

// BookmakerURLs returns the website and affiliate link for a bookmaker. An
// unknown name falls back to https://www.{slug}.com for both.
func BookmakerURLs(name string) (website, affiliate string) {
	if u, ok := knownBookmakers[domain.BookmakerKey(name)]; ok {
		return u.website, u.affiliate
	}
	guess := "https://www." + Slug(name) + ".com"
	return guess, guess
}

// bookmakerCache resolves bookmaker names for one sync cycle. It is seeded
// from the catalog and creates each unknown bookmaker at most once.
type bookmakerCache struct {
	byName  map[string]domain.Bookmaker
	created []domain.Bookmaker
	now     time.Time
}

func newBookmakerCache(existing []domain.Bookmaker, now time.Time) *bookmakerCache {
	c := &bookmakerCache{
		byName: make(map[string]domain.Bookmaker, len(existing)),
		now:    now,
	}
	for _, b := range existing {
		c.byName[domain.BookmakerKey(b.Name)] = b
	}
	return c
}

// resolve returns the bookmaker called name, creating it on first sight.
func (c *bookmakerCache) resolve(name string) (domain.Bookmaker, bool) {
	key := domain.BookmakerKey(name)
	if b, ok := c.byName[key]; ok {
		return b, false
	}
	website, affiliate := BookmakerURLs(name)
	b := domain.NewBookmaker(strings.TrimSpace(name), website, affiliate, c.now)
	c.byName[key] = b
	c.created = append(c.created, b)
	return b, true
}

func (c *bookmakerCache) all() []domain.Bookmaker {
	out := make([]domain.Bookmaker, 0, len(c.byName))
	for _, b := range c.byName {
		out = append(out, b)
	}
	return out
}
