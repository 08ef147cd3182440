package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETPULSE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETPULSE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "MARKETPULSE_MODE")
	setStr(&cfg.LogLevel, "MARKETPULSE_LOG_LEVEL")

	setStr(&cfg.Postgres.DSN, "MARKETPULSE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MARKETPULSE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MARKETPULSE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MARKETPULSE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MARKETPULSE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MARKETPULSE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MARKETPULSE_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "MARKETPULSE_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "MARKETPULSE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETPULSE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETPULSE_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "MARKETPULSE_REDIS_TLS_ENABLED")

	setBool(&cfg.S3.Enabled, "MARKETPULSE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MARKETPULSE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MARKETPULSE_S3_REGION")
	setStr(&cfg.S3.Bucket, "MARKETPULSE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MARKETPULSE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MARKETPULSE_S3_SECRET_KEY")

	setStr(&cfg.Upstream.GammaHost, "MARKETPULSE_UPSTREAM_GAMMA_HOST")
	setInt(&cfg.Upstream.ScanTarget, "MARKETPULSE_UPSTREAM_SCAN_TARGET")

	setInt(&cfg.Engine.IntervalMinutes, "MARKETPULSE_ENGINE_INTERVAL_MINUTES")

	setFloat(&cfg.Dedup.MaterialityPoints, "MARKETPULSE_DEDUP_MATERIALITY_POINTS")
	setInt(&cfg.Dedup.RecentWindowHours, "MARKETPULSE_DEDUP_RECENT_WINDOW_HOURS")
	setInt(&cfg.Dedup.CapPerFamily, "MARKETPULSE_DEDUP_CAP_PER_FAMILY")

	setStr(&cfg.Delivery.Mode, "MARKETPULSE_DELIVERY_MODE")
	setStr(&cfg.Delivery.Channel, "MARKETPULSE_DELIVERY_CHANNEL")

	setStr(&cfg.Notify.TelegramToken, "MARKETPULSE_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.DiscordWebhook, "MARKETPULSE_DISCORD_WEBHOOK")
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

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}
