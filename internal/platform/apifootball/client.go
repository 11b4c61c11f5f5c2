// Package apifootball is the REST client for API-Football v3, the
// statistics provider used to enrich matches with head-to-head history,
// recent form, scoring averages and team logos.
package apifootball

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://v3.football.api-sports.io"

// DefaultAvgCorners is used when the provider has no corner data for a team.
var DefaultAvgCorners = decimal.RequireFromString("9.5")

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	// Timeout bounds one HTTP round trip. Time spent waiting for the rate
	// limiter is bounded by the caller's context only.
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client talks to API-Football. Requests are paced by a token bucket holding
// one minute of quota, so a cycle may spend the whole minute at once and then
// waits for refills.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a new API-Football client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
		burst = opts.RequestsPerMinute
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(slog.String("component", "apifootball")),
	}
}

// BuildMapping loads the names of leagueIDs and every team playing in them
// for season. A league that fails to load is logged and skipped.
func (c *Client) BuildMapping(ctx context.Context, leagueIDs []int, season int) (*Mapping, error) {
	m := NewMapping(season)
	loaded := 0
	for _, id := range leagueIDs {
		if err := c.loadLeague(ctx, m, id, season); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("apifootball: build mapping: %w", ctx.Err())
			}
			c.logger.WarnContext(ctx, "league mapping failed",
				slog.Int("league_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		loaded++
	}
	if loaded == 0 && len(leagueIDs) > 0 {
		return nil, fmt.Errorf("apifootball: build mapping: no league could be loaded")
	}
	c.logger.InfoContext(ctx, "mapping built",
		slog.Int("leagues", loaded),
		slog.Int("teams", m.Teams()),
	)
	return m, nil
}

func (c *Client) loadLeague(ctx context.Context, m *Mapping, leagueID, season int) error {
	params := url.Values{}
	params.Set("id", strconv.Itoa(leagueID))

	var leagues []APILeagueEntry
	if err := c.get(ctx, "/leagues", params, &leagues); err != nil {
		return fmt.Errorf("get league %d: %w", leagueID, err)
	}
	for _, l := range leagues {
		m.AddLeague(l.League.Name, l.League.ID)
	}

	params = url.Values{}
	params.Set("league", strconv.Itoa(leagueID))
	params.Set("season", strconv.Itoa(season))

	var teams []APITeamEntry
	if err := c.get(ctx, "/teams", params, &teams); err != nil {
		return fmt.Errorf("get teams of league %d: %w", leagueID, err)
	}
	for _, t := range teams {
		m.AddTeam(Team{ID: t.Team.ID, Name: t.Team.Name, Logo: t.Team.Logo, LeagueID: leagueID})
	}
	return nil
}

// HeadToHead returns the last meetings between two teams.
func (c *Client) HeadToHead(ctx context.Context, homeID, awayID, last int) ([]domain.H2HGame, error) {
	params := url.Values{}
	params.Set("h2h", fmt.Sprintf("%d-%d", homeID, awayID))
	params.Set("last", strconv.Itoa(last))

	var fixtures []APIFixture
	if err := c.get(ctx, "/fixtures/headtohead", params, &fixtures); err != nil {
		return nil, fmt.Errorf("apifootball: head to head %d-%d: %w", homeID, awayID, err)
	}

	games := make([]domain.H2HGame, 0, len(fixtures))
	for _, f := range fixtures {
		g := domain.H2HGame{Date: f.Fixture.Date.UTC(), Winner: winner(f)}
		if f.Goals.Home != nil {
			g.HomeScore = *f.Goals.Home
		}
		if f.Goals.Away != nil {
			g.AwayScore = *f.Goals.Away
		}
		games = append(games, g)
	}
	return games, nil
}

// RecentForm returns the last results of teamID in a league, from the
// team's point of view.
func (c *Client) RecentForm(ctx context.Context, teamID, leagueID, season, last int) ([]domain.FormGame, error) {
	params := url.Values{}
	params.Set("team", strconv.Itoa(teamID))
	params.Set("league", strconv.Itoa(leagueID))
	params.Set("season", strconv.Itoa(season))
	params.Set("last", strconv.Itoa(last))

	var fixtures []APIFixture
	if err := c.get(ctx, "/fixtures", params, &fixtures); err != nil {
		return nil, fmt.Errorf("apifootball: form of team %d: %w", teamID, err)
	}

	games := make([]domain.FormGame, 0, len(fixtures))
	for _, f := range fixtures {
		isHome := f.Teams.Home.ID == teamID
		w := winner(f)

		g := domain.FormGame{Result: domain.FormDraw}
		switch {
		case w == domain.WinnerHome && isHome, w == domain.WinnerAway && !isHome:
			g.Result = domain.FormWin
		case w != domain.WinnerDraw:
			g.Result = domain.FormLoss
		}
		if isHome {
			g.Opponent = f.Teams.Away.Name
		} else {
			g.Opponent = f.Teams.Home.Name
		}
		games = append(games, g)
	}
	return games, nil
}

// TeamStatistics returns the scoring and corner averages of a team. Missing
// values fall back to zero goals and DefaultAvgCorners.
func (c *Client) TeamStatistics(ctx context.Context, teamID, leagueID, season int) (TeamStats, error) {
	params := url.Values{}
	params.Set("team", strconv.Itoa(teamID))
	params.Set("league", strconv.Itoa(leagueID))
	params.Set("season", strconv.Itoa(season))

	var s APITeamStatistics
	if err := c.get(ctx, "/teams/statistics", params, &s); err != nil {
		return TeamStats{}, fmt.Errorf("apifootball: statistics of team %d: %w", teamID, err)
	}

	out := TeamStats{AvgGoals: decimal.Zero, AvgCorners: DefaultAvgCorners}
	if v := s.Goals.For.Average.Total; v != nil {
		out.AvgGoals = *v
	}
	if s.Corners != nil && s.Corners.Average.Total != nil {
		out.AvgCorners = *s.Corners.Average.Total
	}
	return out, nil
}

func winner(f APIFixture) domain.H2HWinner {
	switch {
	case f.Teams.Home.Winner != nil && *f.Teams.Home.Winner:
		return domain.WinnerHome
	case f.Teams.Away.Winner != nil && *f.Teams.Away.Winner:
		return domain.WinnerAway
	default:
		return domain.WinnerDraw
	}
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// get waits for the rate limiter, performs the request and decodes the
// envelope's response field into dst. A wait that cannot finish before ctx
// expires fails at once with domain.ErrRateLimited.
func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-apisports-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.err(); err != nil {
		return err
	}
	if err := json.Unmarshal(env.Response, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
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
