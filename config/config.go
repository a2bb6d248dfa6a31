package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"           validate:"oneof=sqlite postgres memory"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"app_schedules.db" validate:"required_if=StoreDriver sqlite"`
	DatabaseURL string `env:"DATABASE_URL"                               validate:"required_if=StoreDriver postgres"`

	RegistryPath string `env:"REGISTRY_PATH" envDefault:"registry.toml" validate:"required"`
	HostPackage  string `env:"HOST_PACKAGE"  envDefault:"com.example.launcher"`

	// Device capabilities of the emulated platform.
	PlatformSDK          int  `env:"PLATFORM_SDK"           envDefault:"34"   validate:"min=21,max=40"`
	OverlayPermission    bool `env:"OVERLAY_PERMISSION"     envDefault:"true"`
	ExactAlarmPermission bool `env:"EXACT_ALARM_PERMISSION" envDefault:"true"`
	NotificationsEnabled bool `env:"NOTIFICATIONS_ENABLED"  envDefault:"true"`

	ConflictWindowSec  int    `env:"CONFLICT_WINDOW_SEC"  envDefault:"60"        validate:"min=1,max=86400"`
	OverlayGraceMS     int    `env:"OVERLAY_GRACE_MS"     envDefault:"500"       validate:"min=0,max=60000"`
	ListDebounceMS     int    `env:"LIST_DEBOUNCE_MS"     envDefault:"300"       validate:"min=0,max=10000"`
	InexactSlackSec    int    `env:"INEXACT_SLACK_SEC"    envDefault:"60"        validate:"min=0,max=3600"`
	ReaperCron         string `env:"REAPER_CRON"          envDefault:"@every 5m" validate:"required"`
	ReaperGraceSec     int    `env:"REAPER_GRACE_SEC"     envDefault:"600"       validate:"min=1"`
	RetryViaOverlay    bool   `env:"RETRY_VIA_OVERLAY"    envDefault:"false"`
	LaunchConcurrency  int    `env:"LAUNCH_CONCURRENCY"   envDefault:"4"         validate:"min=1,max=64"`
	ShutdownTimeoutSec int    `env:"SHUTDOWN_TIMEOUT_SEC" envDefault:"15"        validate:"min=1,max=300"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	NotifyEmail  string `env:"NOTIFY_EMAIL"   validate:"required_if=Env production,required_if=Env staging,omitempty,email"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (c *Config) ConflictWindow() time.Duration {
	return time.Duration(c.ConflictWindowSec) * time.Second
}

func (c *Config) OverlayGrace() time.Duration {
	return time.Duration(c.OverlayGraceMS) * time.Millisecond
}

func (c *Config) ListDebounce() time.Duration {
	return time.Duration(c.ListDebounceMS) * time.Millisecond
}

func (c *Config) InexactSlack() time.Duration {
	return time.Duration(c.InexactSlackSec) * time.Second
}

func (c *Config) ReaperGrace() time.Duration {
	return time.Duration(c.ReaperGraceSec) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}
