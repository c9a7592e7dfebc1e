package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TOKENSENTRY_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TOKENSENTRY_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Provider.BaseURL, "TOKENSENTRY_PROVIDER_BASE_URL")
	setInt(&cfg.Provider.BatchSize, "TOKENSENTRY_PROVIDER_BATCH_SIZE")

	setInt(&cfg.Monitor.PollingIntervalMs, "TOKENSENTRY_MONITOR_POLLING_INTERVAL_MS")
	setFloat64(&cfg.Monitor.MinTokenAgeHours, "TOKENSENTRY_MONITOR_MIN_TOKEN_AGE_HOURS")
	setFloat64(&cfg.Monitor.MaxMarketCap, "TOKENSENTRY_MONITOR_MAX_MARKET_CAP")
	setFloat64(&cfg.Monitor.MinLiquidityUSD, "TOKENSENTRY_MONITOR_MIN_LIQUIDITY_USD")

	setFloat64(&cfg.Dormancy.VolatilityThresholdPct, "TOKENSENTRY_DORMANCY_VOLATILITY_THRESHOLD_PCT")
	setFloat64(&cfg.Dormancy.VolumeCeilingUSD, "TOKENSENTRY_DORMANCY_VOLUME_CEILING_USD")
	setInt(&cfg.Dormancy.BaselineWindowMinutes, "TOKENSENTRY_DORMANCY_BASELINE_WINDOW_MINUTES")

	setBool(&cfg.Alerts.Tier25Enabled, "TOKENSENTRY_ALERTS_TIER25_ENABLED")
	setBool(&cfg.Alerts.Tier50Enabled, "TOKENSENTRY_ALERTS_TIER50_ENABLED")
	setInt64(&cfg.Alerts.CooldownMs, "TOKENSENTRY_ALERTS_COOLDOWN_MS")

	setInt64(&cfg.Discovery.IntervalMs, "TOKENSENTRY_DISCOVERY_INTERVAL_MS")
	setInt64(&cfg.Cleanup.IntervalMs, "TOKENSENTRY_CLEANUP_INTERVAL_MS")
	setFloat64(&cfg.Cleanup.MaxIdleHours, "TOKENSENTRY_CLEANUP_MAX_IDLE_HOURS")

	setInt(&cfg.RateLimit.MaxRequests, "TOKENSENTRY_RATE_LIMIT_MAX_REQUESTS")
	setInt64(&cfg.RateLimit.WindowMs, "TOKENSENTRY_RATE_LIMIT_WINDOW_MS")
	setInt(&cfg.Retry.MaxAttempts, "TOKENSENTRY_RETRY_MAX_ATTEMPTS")
	setInt64(&cfg.Retry.BaseDelayMs, "TOKENSENTRY_RETRY_BASE_DELAY_MS")

	setStr(&cfg.Notify.TelegramToken, "TOKENSENTRY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TOKENSENTRY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "TOKENSENTRY_DISCORD_WEBHOOK")

	setStr(&cfg.Postgres.DSN, "TOKENSENTRY_POSTGRES_DSN")
	setBool(&cfg.Postgres.RunMigrations, "TOKENSENTRY_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "TOKENSENTRY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TOKENSENTRY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TOKENSENTRY_REDIS_DB")

	setStr(&cfg.S3.Endpoint, "TOKENSENTRY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TOKENSENTRY_S3_REGION")
	setStr(&cfg.S3.Bucket, "TOKENSENTRY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TOKENSENTRY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TOKENSENTRY_S3_SECRET_KEY")

	setStr(&cfg.Server.Addr, "TOKENSENTRY_SERVER_ADDR")
	setStr(&cfg.LogLevel, "TOKENSENTRY_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
