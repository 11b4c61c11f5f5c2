package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// envPrefix namespaces every environment override.
const envPrefix = "ODDSSCANNER_"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ODDSSCANNER_* environment variable overrides, and
// returns the final Config. A missing file leaves the defaults in place so the
// scanner can be configured from the environment alone. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ODDSSCANNER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Odds API ──
	setStr(&cfg.OddsAPI.BaseURL, "ODDS_API_BASE_URL")
	setStr(&cfg.OddsAPI.APIKey, "ODDS_API_KEY")
	setStringSlice(&cfg.OddsAPI.SportKeys, "ODDS_API_SPORT_KEYS")
	setStr(&cfg.OddsAPI.Regions, "ODDS_API_REGIONS")
	setDuration(&cfg.OddsAPI.Timeout, "ODDS_API_TIMEOUT")

	// ── API-Football ──
	setBool(&cfg.FootballAPI.Enabled, "FOOTBALL_API_ENABLED")
	setStr(&cfg.FootballAPI.BaseURL, "FOOTBALL_API_BASE_URL")
	setStr(&cfg.FootballAPI.APIKey, "FOOTBALL_API_KEY")
	setIntSlice(&cfg.FootballAPI.LeagueIDs, "FOOTBALL_API_LEAGUE_IDS")
	setInt(&cfg.FootballAPI.Season, "FOOTBALL_API_SEASON")
	setDuration(&cfg.FootballAPI.Timeout, "FOOTBALL_API_TIMEOUT")
	setInt(&cfg.FootballAPI.RequestsPerMinute, "FOOTBALL_API_REQUESTS_PER_MINUTE")
	setInt(&cfg.FootballAPI.MaxMatches, "FOOTBALL_API_MAX_MATCHES_PER_CYCLE")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "SUPABASE_RUN_MIGRATIONS")
	setInt(&cfg.Supabase.HistoryDepth, "SUPABASE_HISTORY_DEPTH")

	// ── Redis ──
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLMinutes, "REDIS_CACHE_TTL_MINUTES")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.SnapshotPrefix, "S3_SNAPSHOT_PREFIX")

	// ── Sync ──
	setDuration(&cfg.Sync.Interval, "SYNC_INTERVAL")
	setDuration(&cfg.Sync.CycleTimeout, "SYNC_CYCLE_TIMEOUT")
	setInt(&cfg.Sync.MaxRetries, "SYNC_MAX_RETRIES")
	setDuration(&cfg.Sync.RetryBaseDelay, "SYNC_RETRY_BASE_DELAY")
	setDuration(&cfg.Sync.LockTTL, "SYNC_LOCK_TTL")
	setDuration(&cfg.Sync.EnrichBudget, "SYNC_ENRICH_BUDGET")
	setStr(&cfg.Sync.League, "SYNC_LEAGUE")

	// ── Signals ──
	setFloat64(&cfg.Signals.SurebetThreshold, "SIGNALS_SUREBET_THRESHOLD")
	setFloat64(&cfg.Signals.ProfitTolerance, "SIGNALS_PROFIT_TOLERANCE")
	setFloat64(&cfg.Signals.DropLogPercent, "SIGNALS_DROP_LOG_PERCENT")
	setFloat64(&cfg.Signals.DropNotifyPercent, "SIGNALS_DROP_NOTIFY_PERCENT")
	setFloat64(&cfg.Signals.OddEpsilon, "SIGNALS_ODD_EPSILON")
	setFloat64(&cfg.Signals.ValueBetEdge, "SIGNALS_VALUE_BET_EDGE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // platform-assigned port wins
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.SubscribeRateLimit, "SERVER_SUBSCRIBE_RATE_LIMIT")
	setDuration(&cfg.Server.SubscribeRateWindow, "SERVER_SUBSCRIBE_RATE_WINDOW")
	setStr(&cfg.Server.AdminAPIKey, "SERVER_ADMIN_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.OneSignalAppID, "NOTIFY_ONESIGNAL_APP_ID")
	setStr(&cfg.Notify.OneSignalAPIKey, "NOTIFY_ONESIGNAL_API_KEY")
	setStr(&cfg.Notify.OneSignalIconURL, "NOTIFY_ONESIGNAL_ICON_URL")
	setStr(&cfg.Notify.ResendAPIKey, "NOTIFY_RESEND_API_KEY")
	setStr(&cfg.Notify.EmailFrom, "NOTIFY_EMAIL_FROM")
	setStr(&cfg.Notify.SiteURL, "NOTIFY_SITE_URL")
	setStringSlice(&cfg.Notify.Events, "NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty. Keys are given without envPrefix, except
// for the few platform-wide names looked up bare.
// ---------------------------------------------------------------------------

func lookup(key string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	if key == "PORT" || key == "DATABASE_URL" || key == "REDIS_URL" {
		return os.Getenv(key)
	}
	return ""
}

func setStr(dst *string, key string) {
	if v := lookup(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := lookup(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := lookup(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}

func setStringSlice(dst *[]string, key string) {
	if v := lookup(key); v != "" {
		if cleaned := splitList(v); len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

func setIntSlice(dst *[]int, key string) {
	v := lookup(key)
	if v == "" {
		return
	}
	var ids []int
	for _, p := range splitList(v) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return
		}
		ids = append(ids, n)
	}
	if len(ids) > 0 {
		*dst = ids
	}
}
