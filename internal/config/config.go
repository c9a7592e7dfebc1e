// Package config defines the top-level configuration for tokensentry and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TOKENSENTRY_* environment
// variables.
type Config struct {
	Provider  ProviderConfig  `toml:"provider"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Dormancy  DormancyConfig  `toml:"dormancy"`
	Alerts    AlertsConfig    `toml:"alerts"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Cleanup   CleanupConfig   `toml:"cleanup"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Retry     RetryConfig     `toml:"retry"`
	Notify    NotifyConfig    `toml:"notify"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	LogLevel  string          `toml:"log_level"`
}

// ProviderConfig holds market-data provider parameters.
type ProviderConfig struct {
	BaseURL   string `toml:"base_url"`
	BatchSize int    `toml:"batch_size"` // provider bulk-lookup cap
}

// MonitorConfig holds the monitor cycle and eligibility parameters.
type MonitorConfig struct {
	PollingIntervalMs int     `toml:"polling_interval_ms"`
	MinTokenAgeHours  float64 `toml:"min_token_age_hours"`
	MaxMarketCap      float64 `toml:"max_market_cap"`
	MinLiquidityUSD   float64 `toml:"min_liquidity_usd"`
	SnapshotCapacity  int     `toml:"snapshot_capacity"`
	InterAlertDelayMs int     `toml:"inter_alert_delay_ms"`
}

// DormancyConfig holds the baseline-window dormancy classification
// parameters.
type DormancyConfig struct {
	BaselineWindowMinutes  int     `toml:"baseline_window_minutes"`
	VolatilityThresholdPct float64 `toml:"volatility_threshold_pct"`
	VolumeCeilingUSD       float64 `toml:"volume_ceiling_usd"`
}

// AlertsConfig holds tier enablement and cooldown parameters.
type AlertsConfig struct {
	Tier25Enabled bool  `toml:"tier25_enabled"`
	Tier50Enabled bool  `toml:"tier50_enabled"`
	CooldownMs    int64 `toml:"cooldown_ms"`
}

// DiscoveryConfig holds the discovery cycle parameters. Queries are the
// keyword hints searched per source on every discovery run.
type DiscoveryConfig struct {
	IntervalMs int64    `toml:"interval_ms"`
	Queries    []string `toml:"queries"`
}

// CleanupConfig holds the cleanup cycle parameters.
type CleanupConfig struct {
	IntervalMs   int64   `toml:"interval_ms"`
	MaxIdleHours float64 `toml:"max_idle_hours"`
}

// RateLimitConfig holds sliding-window admission control parameters for
// outbound provider calls.
type RateLimitConfig struct {
	MaxRequests int   `toml:"max_requests"`
	WindowMs    int64 `toml:"window_ms"`
}

// RetryConfig holds the bounded exponential backoff parameters.
type RetryConfig struct {
	MaxAttempts int   `toml:"max_attempts"`
	BaseDelayMs int64 `toml:"base_delay_ms"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken  string `toml:"telegram_token"`
	TelegramChatID string `toml:"telegram_chat_id"`
	DiscordWebhook string `toml:"discord_webhook"`
}

// PostgresConfig holds optional alert-history persistence parameters.
// Persistence is disabled when DSN is empty.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	MaxConns      int    `toml:"max_conns"`
	MinConns      int    `toml:"min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds optional alert-bus parameters. The bus is disabled when
// Addr is empty.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// S3Config holds optional cold-storage parameters for evicted asset state.
// Archival is disabled when Bucket is empty.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the optional status/control HTTP surface parameters.
// The server is disabled when Addr is empty.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Defaults returns the built-in configuration. The 30-minute alert cooldown
// is the documented default; it is fully configurable.
func Defaults() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:   "https://api.dexscreener.com",
			BatchSize: 30,
		},
		Monitor: MonitorConfig{
			PollingIntervalMs: 60_000,
			MinTokenAgeHours:  24,
			MaxMarketCap:      100_000,
			MinLiquidityUSD:   2_000,
			SnapshotCapacity:  100,
			InterAlertDelayMs: 500,
		},
		Dormancy: DormancyConfig{
			BaselineWindowMinutes:  60,
			VolatilityThresholdPct: 5,
			VolumeCeilingUSD:       500,
		},
		Alerts: AlertsConfig{
			Tier25Enabled: true,
			Tier50Enabled: true,
			CooldownMs:    (30 * time.Minute).Milliseconds(),
		},
		Discovery: DiscoveryConfig{
			IntervalMs: (1 * time.Hour).Milliseconds(),
			Queries:    []string{"raydium", "pump"},
		},
		Cleanup: CleanupConfig{
			IntervalMs:   (6 * time.Hour).Milliseconds(),
			MaxIdleHours: 24,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 30,
			WindowMs:    60_000,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMs: 1_000,
		},
		Postgres: PostgresConfig{
			MaxConns:      4,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   8,
			MaxRetries: 3,
		},
		LogLevel: "info",
	}
}

// Validate checks that the configuration is internally consistent and that
// every required external credential is present. A failure here is fatal at
// startup; the process does not run with a partial configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider.BaseURL) == "" {
		return fmt.Errorf("config: provider.base_url is required")
	}
	if c.Provider.BatchSize <= 0 {
		return fmt.Errorf("config: provider.batch_size must be positive")
	}
	if c.Monitor.PollingIntervalMs <= 0 {
		return fmt.Errorf("config: monitor.polling_interval_ms must be positive")
	}
	if c.Monitor.SnapshotCapacity <= 0 {
		return fmt.Errorf("config: monitor.snapshot_capacity must be positive")
	}
	if c.Dormancy.BaselineWindowMinutes <= 0 {
		return fmt.Errorf("config: dormancy.baseline_window_minutes must be positive")
	}
	if c.Alerts.CooldownMs <= 0 {
		return fmt.Errorf("config: alerts.cooldown_ms must be positive")
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.WindowMs <= 0 {
		return fmt.Errorf("config: rate_limit.max_requests and rate_limit.window_ms must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config: retry.max_attempts must be positive")
	}
	if len(c.Discovery.Queries) == 0 {
		return fmt.Errorf("config: discovery.queries must not be empty")
	}

	// Telegram credentials come as a pair or not at all.
	hasToken := strings.TrimSpace(c.Notify.TelegramToken) != ""
	hasChat := strings.TrimSpace(c.Notify.TelegramChatID) != ""
	if hasToken != hasChat {
		return fmt.Errorf("config: notify.telegram_token and notify.telegram_chat_id must be set together")
	}
	if !hasToken && strings.TrimSpace(c.Notify.DiscordWebhook) == "" {
		return fmt.Errorf("config: at least one notification channel (telegram or discord) is required")
	}

	return nil
}

// PollingInterval returns the monitor cycle interval as a duration.
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.Monitor.PollingIntervalMs) * time.Millisecond
}

// DiscoveryInterval returns the discovery cycle interval as a duration.
func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.Discovery.IntervalMs) * time.Millisecond
}

// CleanupInterval returns the cleanup cycle interval as a duration.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Cleanup.IntervalMs) * time.Millisecond
}
