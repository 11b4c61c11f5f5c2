// Package oddsapi is the REST client for The Odds API v4, the feed the sync
// cycle reconciles against.
package oddsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.the-odds-api.com"

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	// Regions is the comma-separated bookmaker region list, e.g. "eu,uk,au".
	Regions string
	Timeout time.Duration
}

// Client fetches upcoming fixtures with their h2h quotes.
type Client struct {
	baseURL    string
	apiKey     string
	regions    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Odds API client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Regions == "" {
		opts.Regions = "eu,uk,au"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		regions: opts.Regions,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger.With(slog.String("component", "oddsapi")),
	}
}

// FetchOdds returns the fixtures of every sport key, in key order. Keys are
// fetched one after another. A failing key is logged and skipped; the call
// only fails when every key fails.
func (c *Client) FetchOdds(ctx context.Context, sportKeys []string) ([]domain.ExternalMatch, error) {
	if len(sportKeys) == 0 {
		return nil, fmt.Errorf("oddsapi: no sport keys configured")
	}

	var (
		out  []domain.ExternalMatch
		errs []error
	)
	for _, key := range sportKeys {
		matches, err := c.GetOdds(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("oddsapi: fetch odds: %w", ctx.Err())
			}
			c.logger.WarnContext(ctx, "sport key fetch failed",
				slog.String("sport_key", key),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		out = append(out, matches...)
	}

	if len(errs) == len(sportKeys) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// GetOdds returns the upcoming fixtures of one sport with their h2h quotes.
func (c *Client) GetOdds(ctx context.Context, sportKey string) ([]domain.ExternalMatch, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("regions", c.regions)
	params.Set("markets", domain.MarketKeyH2H)
	params.Set("oddsFormat", "decimal")
	params.Set("dateFormat", "iso")

	path := fmt.Sprintf("/v4/sports/%s/odds/?%s", url.PathEscape(sportKey), params.Encode())

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("oddsapi: get odds %s: %w", sportKey, err)
	}

	var events []APIEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("oddsapi: decode odds %s: %w", sportKey, err)
	}

	matches := make([]domain.ExternalMatch, 0, len(events))
	for _, ev := range events {
		matches = append(matches, c.toDomain(ctx, ev))
	}
	return matches, nil
}

// GetSports lists the sports the account can query.
func (c *Client) GetSports(ctx context.Context) ([]APISport, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)

	body, err := c.doGet(ctx, "/v4/sports/?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("oddsapi: get sports: %w", err)
	}

	var sports []APISport
	if err := json.Unmarshal(body, &sports); err != nil {
		return nil, fmt.Errorf("oddsapi: decode sports: %w", err)
	}
	return sports, nil
}

func (c *Client) toDomain(ctx context.Context, ev APIEvent) domain.ExternalMatch {
	m := domain.ExternalMatch{
		ID:           ev.ID,
		SportKey:     ev.SportKey,
		SportTitle:   ev.SportTitle,
		CommenceTime: ev.CommenceTime.UTC(),
		HomeTeam:     ev.HomeTeam,
		AwayTeam:     ev.AwayTeam,
		Bookmakers:   make([]domain.ExternalBookmaker, 0, len(ev.Bookmakers)),
	}
	for i, raw := range ev.Bookmakers {
		b, err := decodeBookmaker(raw)
		if err != nil {
			c.logger.WarnContext(ctx, "dropping malformed bookmaker block",
				slog.String("event_id", ev.ID),
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		m.Bookmakers = append(m.Bookmakers, b)
	}
	return m
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	if remaining := resp.Header.Get("x-requests-remaining"); remaining != "" {
		c.logger.DebugContext(ctx, "quota",
			slog.String("remaining", remaining),
			slog.String("used", resp.Header.Get("x-requests-used")),
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := strings.TrimSpace(string(body))
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// redactKey strips the API key from transport errors, which embed the URL.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, key) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, key, "REDACTED"))
}
