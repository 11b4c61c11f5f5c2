// Package config defines the top-level configuration for the odds scanner
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ODDSSCANNER_* environment variables.
type Config struct {
	OddsAPI     OddsAPIConfig     `toml:"odds_api"`
	FootballAPI FootballAPIConfig `toml:"football_api"`
	Supabase    SupabaseConfig    `toml:"supabase"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Sync        SyncConfig        `toml:"sync"`
	Signals     SignalsConfig     `toml:"signals"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// OddsAPIConfig holds The Odds API feed parameters.
type OddsAPIConfig struct {
	BaseURL   string   `toml:"base_url"`
	APIKey    string   `toml:"api_key"`
	SportKeys []string `toml:"sport_keys"`
	Regions   string   `toml:"regions"`
	Timeout   duration `toml:"timeout"`
}

// FootballAPIConfig holds API-Football enrichment parameters.
type FootballAPIConfig struct {
	Enabled           bool     `toml:"enabled"`
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	LeagueIDs         []int    `toml:"league_ids"`
	Season            int      `toml:"season"`
	Timeout           duration `toml:"timeout"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
	MaxMatches        int      `toml:"max_matches_per_cycle"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	// HistoryDepth is the number of prior values kept per odd.
	HistoryDepth int `toml:"history_depth"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	URL             string `toml:"url"`
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// S3Config holds the feed snapshot archive parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	SnapshotPrefix string `toml:"snapshot_prefix"`
}

// SyncConfig holds the sync scheduler parameters.
type SyncConfig struct {
	Interval       duration `toml:"interval"`
	CycleTimeout   duration `toml:"cycle_timeout"`
	MaxRetries     int      `toml:"max_retries"`
	RetryBaseDelay duration `toml:"retry_base_delay"`
	LockTTL        duration `toml:"lock_ttl"`
	// EnrichBudget caps the statistics step of a cycle. The cycle also
	// limits it to half of its remaining time.
	EnrichBudget duration `toml:"enrich_budget"`
	// League labels new matches whose feed record carries no league title.
	League string `toml:"league"`
}

// SignalsConfig holds the detector thresholds.
type SignalsConfig struct {
	SurebetThreshold  float64 `toml:"surebet_threshold"`
	ProfitTolerance   float64 `toml:"profit_tolerance"`
	DropLogPercent    float64 `toml:"drop_log_percent"`
	DropNotifyPercent float64 `toml:"drop_notify_percent"`
	OddEpsilon        float64 `toml:"odd_epsilon"`
	ValueBetEdge      float64 `toml:"value_bet_edge"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "30m", "5s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// SubscribeRateLimit is the number of subscribe calls per client IP per
	// SubscribeRateWindow. Zero disables the limit.
	SubscribeRateLimit  int      `toml:"subscribe_rate_limit"`
	SubscribeRateWindow duration `toml:"subscribe_rate_window"`
	// AdminAPIKey guards POST /api/sync/trigger. Empty keeps the route closed.
	AdminAPIKey string `toml:"admin_api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	OneSignalAppID    string   `toml:"onesignal_app_id"`
	OneSignalAPIKey   string   `toml:"onesignal_api_key"`
	OneSignalIconURL  string   `toml:"onesignal_icon_url"`
	ResendAPIKey      string   `toml:"resend_api_key"`
	EmailFrom         string   `toml:"email_from"`
	SiteURL           string   `toml:"site_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		OddsAPI: OddsAPIConfig{
			BaseURL:   "https://api.the-odds-api.com",
			SportKeys: []string{"soccer_brazil_campeonato"},
			Regions:   "eu,uk,au",
			Timeout:   duration{30 * time.Second},
		},
		FootballAPI: FootballAPIConfig{
			Enabled:           false,
			BaseURL:           "https://v3.football.api-sports.io",
			LeagueIDs:         []int{71},
			Timeout:           duration{10 * time.Second},
			RequestsPerMinute: 10,
			MaxMatches:        10,
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
			HistoryDepth:  10,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			PoolSize:        20,
			MaxRetries:      3,
			CacheTTLMinutes: 5,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "oddsscanner-feeds",
			ForcePathStyle: true,
			SnapshotPrefix: "feeds",
		},
		Sync: SyncConfig{
			Interval:       duration{30 * time.Minute},
			CycleTimeout:   duration{5 * time.Minute},
			MaxRetries:     3,
			RetryBaseDelay: duration{5 * time.Second},
			LockTTL:        duration{10 * time.Minute},
			EnrichBudget:   duration{2 * time.Minute},
			League:         "Brasileirão Série A",
		},
		Signals: SignalsConfig{
			SurebetThreshold:  0.98,
			ProfitTolerance:   0.1,
			DropLogPercent:    10,
			DropNotifyPercent: 15,
			OddEpsilon:        0.001,
			ValueBetEdge:      0.05,
		},
		Server: ServerConfig{
			Enabled:             true,
			Port:                8000,
			CORSOrigins:         []string{"http://localhost:3000", "http://localhost:5173"},
			SubscribeRateLimit:  5,
			SubscribeRateWindow: duration{15 * time.Minute},
		},
		Notify: NotifyConfig{
			SiteURL: "https://oddsscanner.com.br",
			Events:  []string{"surebet_detected", "dropping_odds"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"worker": true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validEvents enumerates the notification event names.
var validEvents = map[string]bool{
	"surebet_detected": true,
	"dropping_odds":    true,
}

// RunsWorker reports whether the mode runs the sync scheduler.
func (c *Config) RunsWorker() bool {
	m := strings.ToLower(c.Mode)
	return m == "worker" || m == "full"
}

// RunsServer reports whether the mode serves HTTP.
func (c *Config) RunsServer() bool {
	m := strings.ToLower(c.Mode)
	return (m == "server" || m == "full") && c.Server.Enabled
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: worker, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed, only needed where the scheduler runs.
	if c.RunsWorker() {
		if c.OddsAPI.APIKey == "" {
			errs = append(errs, "odds_api: api_key is required for mode "+c.Mode)
		}
		if len(c.OddsAPI.SportKeys) == 0 {
			errs = append(errs, "odds_api: sport_keys must not be empty")
		}
		if c.Sync.Interval.Duration <= 0 {
			errs = append(errs, "sync: interval must be > 0")
		}
		if c.Sync.CycleTimeout.Duration <= 0 {
			errs = append(errs, "sync: cycle_timeout must be > 0")
		}
		if c.Sync.MaxRetries < 0 {
			errs = append(errs, "sync: max_retries must be >= 0")
		}
		if c.Sync.LockTTL.Duration < c.Sync.CycleTimeout.Duration {
			errs = append(errs, "sync: lock_ttl must not be shorter than cycle_timeout")
		}
		if c.Sync.EnrichBudget.Duration < 0 {
			errs = append(errs, "sync: enrich_budget must be >= 0")
		}
	}

	if c.FootballAPI.Enabled {
		if c.FootballAPI.APIKey == "" {
			errs = append(errs, "football_api: api_key is required when enabled")
		}
		if len(c.FootballAPI.LeagueIDs) == 0 {
			errs = append(errs, "football_api: league_ids must not be empty when enabled")
		}
		if c.FootballAPI.RequestsPerMinute < 0 {
			errs = append(errs, "football_api: requests_per_minute must be >= 0")
		}
	}

	// Supabase
	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}
	if c.Supabase.HistoryDepth < 1 {
		errs = append(errs, "supabase: history_depth must be >= 1")
	}

	// Redis
	if c.Redis.URL == "" && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty (or set redis.url)")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.CacheTTLMinutes < 1 {
		errs = append(errs, "redis: cache_ttl_minutes must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Signals
	if c.Signals.SurebetThreshold <= 0 || c.Signals.SurebetThreshold > 1 {
		errs = append(errs, fmt.Sprintf("signals: surebet_threshold must be in (0, 1], got %g", c.Signals.SurebetThreshold))
	}
	if c.Signals.ProfitTolerance < 0 {
		errs = append(errs, "signals: profit_tolerance must be >= 0")
	}
	if c.Signals.DropLogPercent < 0 || c.Signals.DropNotifyPercent < 0 {
		errs = append(errs, "signals: drop percentages must be >= 0")
	}
	if c.Signals.DropNotifyPercent < c.Signals.DropLogPercent {
		errs = append(errs, "signals: drop_notify_percent must not be below drop_log_percent")
	}
	if c.Signals.OddEpsilon <= 0 {
		errs = append(errs, "signals: odd_epsilon must be > 0")
	}
	if c.Signals.ValueBetEdge < 0 {
		errs = append(errs, "signals: value_bet_edge must be >= 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.SubscribeRateLimit > 0 && c.Server.SubscribeRateWindow.Duration <= 0 {
			errs = append(errs, "server: subscribe_rate_window must be > 0 when subscribe_rate_limit is set")
		}
	}

	// Notify
	for _, ev := range c.Notify.Events {
		if !validEvents[strings.TrimSpace(ev)] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q (valid: surebet_detected, dropping_odds)", ev))
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if (c.Notify.OneSignalAppID == "") != (c.Notify.OneSignalAPIKey == "") {
		errs = append(errs, "notify: onesignal_app_id and onesignal_api_key must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
