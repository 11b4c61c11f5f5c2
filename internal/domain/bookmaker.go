package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bookmaker is a betting house. Its name is the case-insensitive natural key.
type Bookmaker struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	WebsiteURL   string    `json:"website_url"`
	AffiliateURL string    `json:"affiliate_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewBookmaker creates a Bookmaker with a fresh identity.
func NewBookmaker(name, websiteURL, affiliateURL string, now time.Time) Bookmaker {
	if affiliateURL == "" {
		affiliateURL = websiteURL
	}
	return Bookmaker{
		ID:           uuid.New().String(),
		Name:         name,
		WebsiteURL:   websiteURL,
		AffiliateURL: affiliateURL,
		CreatedAt:    now,
	}
}

// BookmakerKey normalises a bookmaker name for lookups.
func BookmakerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
