package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Postgres.Host = "localhost"
	cfg.Postgres.Database = "marketpulse"
	cfg.Postgres.User = "marketpulse"
	cfg.Delivery.Channel = "-1001234567890"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults with connection details pass",
			mutate: func(c *Config) {},
		},
		{
			name:   "dsn alone satisfies postgres",
			mutate: func(c *Config) { c.Postgres = PostgresConfig{DSN: "postgres://u:p@host/db"} },
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = "daemon" },
			wantErr: true,
		},
		{
			name: "postgres missing",
			mutate: func(c *Config) {
				c.Postgres.Host = ""
				c.Postgres.DSN = ""
			},
			wantErr: true,
		},
		{
			name:    "redis addr missing",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: true,
		},
		{
			name:    "gamma host missing",
			mutate:  func(c *Config) { c.Upstream.GammaHost = "" },
			wantErr: true,
		},
		{
			name:    "zero scan target",
			mutate:  func(c *Config) { c.Upstream.ScanTarget = 0 },
			wantErr: true,
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Engine.IntervalMinutes = 0 },
			wantErr: true,
		},
		{
			name:    "empty milestone thresholds",
			mutate:  func(c *Config) { c.Detectors.Milestone.Thresholds = nil },
			wantErr: true,
		},
		{
			name: "milestone thresholds not increasing",
			mutate: func(c *Config) {
				c.Detectors.Milestone.Thresholds = []float64{100_000, 100_000, 500_000}
			},
			wantErr: true,
		},
		{
			name:    "zero dedup cap",
			mutate:  func(c *Config) { c.Dedup.CapPerFamily = 0 },
			wantErr: true,
		},
		{
			name:    "broadcast without channel",
			mutate:  func(c *Config) { c.Delivery.Channel = "" },
			wantErr: true,
		},
		{
			name: "per_user without recipients",
			mutate: func(c *Config) {
				c.Delivery.Mode = "per_user"
				c.Delivery.Recipients = nil
			},
			wantErr: true,
		},
		{
			name: "per_user with recipients passes",
			mutate: func(c *Config) {
				c.Delivery.Mode = "per_user"
				c.Delivery.Recipients = []string{"12345", "67890"}
			},
		},
		{
			name:    "unknown delivery mode",
			mutate:  func(c *Config) { c.Delivery.Mode = "pigeon" },
			wantErr: true,
		},
		{
			name: "s3 enabled without bucket",
			mutate: func(c *Config) {
				c.S3.Enabled = true
				c.S3.Region = "us-east-1"
			},
			wantErr: true,
		},
		{
			name: "s3 enabled with bucket and region passes",
			mutate: func(c *Config) {
				c.S3.Enabled = true
				c.S3.Region = "us-east-1"
				c.S3.Bucket = "marketpulse-archive"
			},
		},
		{
			name:    "zero retention days",
			mutate:  func(c *Config) { c.Retention.Days = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestRecipientIDs(t *testing.T) {
	cfg := validConfig()
	got := cfg.RecipientIDs()
	if len(got) != 1 || got[0] != "-1001234567890" {
		t.Fatalf("broadcast RecipientIDs() = %v, want single channel", got)
	}

	cfg.Delivery.Mode = "per_user"
	cfg.Delivery.Recipients = []string{"111", "222", "333"}
	got = cfg.RecipientIDs()
	if len(got) != 3 || got[0] != "111" || got[2] != "333" {
		t.Fatalf("per_user RecipientIDs() = %v, want recipients list", got)
	}
}

func TestInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.IntervalMinutes = 5
	if got := cfg.Interval(); got != 5*time.Minute {
		t.Fatalf("Interval() = %v, want 5m", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETPULSE_MODE", "once")
	t.Setenv("MARKETPULSE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("MARKETPULSE_DEDUP_MATERIALITY_POINTS", "25.5")
	t.Setenv("MARKETPULSE_POSTGRES_RUN_MIGRATIONS", "false")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Mode != "once" {
		t.Errorf("Mode = %q, want once", cfg.Mode)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("Redis.Addr = %q, want redis.internal:6380", cfg.Redis.Addr)
	}
	if cfg.Dedup.MaterialityPoints != 25.5 {
		t.Errorf("MaterialityPoints = %v, want 25.5", cfg.Dedup.MaterialityPoints)
	}
	if cfg.Postgres.RunMigrations {
		t.Errorf("RunMigrations = true, want false")
	}
}
