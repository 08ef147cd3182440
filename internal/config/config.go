// Package config defines the top-level configuration for marketpulse and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKETPULSE_* environment
// variables.
type Config struct {
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Upstream  UpstreamConfig  `toml:"upstream"`
	Engine    EngineConfig    `toml:"engine"`
	Detectors DetectorsConfig `toml:"detectors"`
	Dedup     DedupConfig     `toml:"dedup"`
	Delivery  DeliveryConfig  `toml:"delivery"`
	Retention RetentionConfig `toml:"retention"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds parameters for the optional snapshot archive target.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// UpstreamConfig holds the listings API parameters.
type UpstreamConfig struct {
	GammaHost  string `toml:"gamma_host"`
	PageSize   int    `toml:"page_size"`
	ScanTarget int    `toml:"scan_target"`
}

// EngineConfig holds cycle cadence and shared pre-filter parameters.
type EngineConfig struct {
	IntervalMinutes int      `toml:"interval_minutes"`
	ResolvedBand    float64  `toml:"resolved_band"` // price points from 0/100 treated as decided
	ExcludedSlugs   []string `toml:"excluded_slug_patterns"`
	ExcludedTitles  []string `toml:"excluded_title_keywords"`
	SpamPhrases     []string `toml:"spam_phrases"`
}

// DetectorsConfig groups per-family detector thresholds.
type DetectorsConfig struct {
	Milestone   MilestoneConfig   `toml:"milestone"`
	Discovery   DiscoveryConfig   `toml:"discovery"`
	Velocity    VelocityConfig    `toml:"velocity"`
	Wakeup      WakeupConfig      `toml:"wakeup"`
	FastMover   FastMoverConfig   `toml:"fast_mover"`
	BigSwing    BigSwingConfig    `toml:"big_swing"`
	EarlyHeat   EarlyHeatConfig   `toml:"early_heat"`
	ClosingSoon ClosingSoonConfig `toml:"closing_soon"`
	Underdog    UnderdogConfig    `toml:"underdog"`
}

// MilestoneConfig lists the ordered volume thresholds that trigger a
// milestone alert on first crossing.
type MilestoneConfig struct {
	Thresholds []float64 `toml:"thresholds"`
}

// DiscoveryConfig bounds which first-seen markets count as launches.
type DiscoveryConfig struct {
	MinVolume    float64 `toml:"min_volume"`
	RecencyHours int     `toml:"recency_hours"`
}

// VelocityConfig is the dollars-per-hour ladder for the velocity spike
// detector; the alert carries the highest rung reached.
type VelocityConfig struct {
	Rungs       []float64 `toml:"rungs"`
	WindowHours int       `toml:"window_hours"`
}

// WakeupConfig defines the quiet-then-hot transition.
type WakeupConfig struct {
	QuietWindowHours int     `toml:"quiet_window_hours"`
	HotWindowHours   int     `toml:"hot_window_hours"`
	QuietPctPerHour  float64 `toml:"quiet_pct_per_hour"`
	HotPctPerHour    float64 `toml:"hot_pct_per_hour"`
}

// FastMoverConfig requires a price move with volume confirmation. Markets
// with total volume at or above BypassVolume skip the volume-delta check.
type FastMoverConfig struct {
	PricePoints  float64 `toml:"price_points"`
	VolumeDelta  float64 `toml:"volume_delta"`
	WindowHours  int     `toml:"window_hours"`
	BypassVolume float64 `toml:"bypass_volume"`
}

// BigSwingConfig is a pure price swing over a short window, no volume gate.
type BigSwingConfig struct {
	PricePoints float64 `toml:"price_points"`
	WindowHours int     `toml:"window_hours"`
}

// EarlyHeatConfig targets small young markets gaining traction fast.
type EarlyHeatConfig struct {
	MaxAgeHours    int     `toml:"max_age_hours"`
	MaxVolume      float64 `toml:"max_volume"`
	MinVelocityPct float64 `toml:"min_velocity_pct"`
}

// ClosingSoonConfig alerts on active markets near their close time.
type ClosingSoonConfig struct {
	WindowHours int     `toml:"window_hours"`
	MinVelocity float64 `toml:"min_velocity"`
}

// UnderdogConfig looks for cheap markets with real volume whose price is
// rising.
type UnderdogConfig struct {
	MaxPrice  float64 `toml:"max_price"`
	MinVolume float64 `toml:"min_volume"`
	MinRise   float64 `toml:"min_rise"` // price points over 24h, rising only
}

// DedupConfig controls the ledger's re-alert override and batching.
type DedupConfig struct {
	MaterialityPoints float64 `toml:"materiality_points"`
	RecentWindowHours int     `toml:"recent_window_hours"`
	CapPerFamily      int     `toml:"cap_per_family"`
}

// DeliveryConfig selects broadcast or per-user fan-out. In broadcast mode
// Channel is the single shared recipient; otherwise Recipients lists
// individual subscriber identities.
type DeliveryConfig struct {
	Mode       string   `toml:"mode"` // "broadcast" or "per_user"
	Channel    string   `toml:"channel"`
	Recipients []string `toml:"recipients"`
}

// RetentionConfig controls the snapshot retention sweep.
type RetentionConfig struct {
	Days int    `toml:"days"`
	Cron string `toml:"cron"` // 5-field cron, UTC
}

// NotifyConfig holds delivery channel credentials.
type NotifyConfig struct {
	TelegramToken  string `toml:"telegram_token"`
	DiscordWebhook string `toml:"discord_webhook"`
}

// Interval returns the cycle cadence as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Engine.IntervalMinutes) * time.Minute
}

// RecipientIDs returns the opaque recipient identities for the configured
// delivery mode.
func (c *Config) RecipientIDs() []string {
	if strings.EqualFold(c.Delivery.Mode, "broadcast") {
		return []string{c.Delivery.Channel}
	}
	return c.Delivery.Recipients
}

// Validate checks the configuration for fatal problems. It is called from
// main after Load.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "watch", "once", "sweep":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
		return fmt.Errorf("config: postgres requires dsn or host/database/user")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis addr is required")
	}
	if c.Upstream.GammaHost == "" {
		return fmt.Errorf("config: upstream gamma_host is required")
	}
	if c.Upstream.ScanTarget <= 0 {
		return fmt.Errorf("config: upstream scan_target must be positive")
	}
	if c.Engine.IntervalMinutes <= 0 {
		return fmt.Errorf("config: engine interval_minutes must be positive")
	}
	if len(c.Detectors.Milestone.Thresholds) == 0 {
		return fmt.Errorf("config: milestone thresholds must not be empty")
	}
	for i := 1; i < len(c.Detectors.Milestone.Thresholds); i++ {
		if c.Detectors.Milestone.Thresholds[i] <= c.Detectors.Milestone.Thresholds[i-1] {
			return fmt.Errorf("config: milestone thresholds must be strictly increasing")
		}
	}
	if c.Dedup.CapPerFamily <= 0 {
		return fmt.Errorf("config: dedup cap_per_family must be positive")
	}

	switch strings.ToLower(c.Delivery.Mode) {
	case "broadcast":
		if c.Delivery.Channel == "" {
			return fmt.Errorf("config: broadcast delivery requires a channel")
		}
	case "per_user":
		if len(c.Delivery.Recipients) == 0 {
			return fmt.Errorf("config: per_user delivery requires recipients")
		}
	default:
		return fmt.Errorf("config: unsupported delivery mode %q", c.Delivery.Mode)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" || c.S3.Region == "" {
			return fmt.Errorf("config: s3 archive requires bucket and region")
		}
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("config: retention days must be positive")
	}
	return nil
}

// Defaults returns the built-in configuration, matching the thresholds the
// bot has historically run with.
func Defaults() Config {
	return Config{
		Mode:     "watch",
		LogLevel: "info",
		Postgres: PostgresConfig{
			Port:          5432,
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		Upstream: UpstreamConfig{
			GammaHost:  "https://gamma-api.polymarket.com",
			PageSize:   100,
			ScanTarget: 2000,
		},
		Engine: EngineConfig{
			IntervalMinutes: 5,
			ResolvedBand:    5,
			ExcludedSlugs: []string{
				"nfl-", "nba-", "nhl-", "mlb-", "mls-",
				"afc-", "nfc-", "epl-", "uefa-", "fifa-", "cfb-", "ncaa-",
				"boxing-", "ufc-", "mma-", "wwe-",
				"dota-", "csgo-", "lol-", "valorant-", "esport",
				"f1-", "nascar-", "tennis-", "golf-", "pga-",
				"olympics-", "world-cup-", "super-bowl-",
			},
			ExcludedTitles: []string{
				"NFL", "NBA", "NHL", "MLB", "MLS",
				"Premier League", "Champions League", "Super Bowl",
				"World Series", "Stanley Cup",
				" vs ", "vs.", "UFC", "Playoff",
			},
			SpamPhrases: []string{
				"up or down", "higher or lower", "above or below",
			},
		},
		Detectors: DetectorsConfig{
			Milestone: MilestoneConfig{
				Thresholds: []float64{100_000, 250_000, 500_000, 1_000_000},
			},
			Discovery: DiscoveryConfig{
				MinVolume:    25_000,
				RecencyHours: 48,
			},
			Velocity: VelocityConfig{
				Rungs:       []float64{5_000, 10_000, 25_000, 50_000, 100_000},
				WindowHours: 1,
			},
			Wakeup: WakeupConfig{
				QuietWindowHours: 6,
				HotWindowHours:   1,
				QuietPctPerHour:  2,
				HotPctPerHour:    10,
			},
			FastMover: FastMoverConfig{
				PricePoints:  10,
				VolumeDelta:  10_000,
				WindowHours:  1,
				BypassVolume: 1_000_000,
			},
			BigSwing: BigSwingConfig{
				PricePoints: 15,
				WindowHours: 1,
			},
			EarlyHeat: EarlyHeatConfig{
				MaxAgeHours:    24,
				MaxVolume:      50_000,
				MinVelocityPct: 5,
			},
			ClosingSoon: ClosingSoonConfig{
				WindowHours: 12,
				MinVelocity: 5_000,
			},
			Underdog: UnderdogConfig{
				MaxPrice:  20,
				MinVolume: 50_000,
				MinRise:   5,
			},
		},
		Dedup: DedupConfig{
			MaterialityPoints: 20,
			RecentWindowHours: 4,
			CapPerFamily:      10,
		},
		Delivery: DeliveryConfig{
			Mode: "broadcast",
		},
		Retention: RetentionConfig{
			Days: 7,
			Cron: "0 4 * * *",
		},
	}
}
