package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/config"
)

const secret = "config-test-secret-at-least-32-chars"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "local" || cfg.StoreDriver != "sqlite" {
		t.Errorf("env = %q, driver = %q", cfg.Env, cfg.StoreDriver)
	}
	if cfg.ConflictWindow() != time.Minute {
		t.Errorf("conflict window = %v, want 1m", cfg.ConflictWindow())
	}
	if cfg.OverlayGrace() != 500*time.Millisecond {
		t.Errorf("overlay grace = %v, want 500ms", cfg.OverlayGrace())
	}
	if cfg.ListDebounce() != 300*time.Millisecond {
		t.Errorf("list debounce = %v, want 300ms", cfg.ListDebounce())
	}
	if cfg.ReaperCron != "@every 5m" {
		t.Errorf("reaper cron = %q", cfg.ReaperCron)
	}
	if cfg.RetryViaOverlay {
		t.Error("retry via overlay should default off")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("level = %v, want info", cfg.SlogLevel())
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for postgres without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/launcher")
	if _, err := config.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoad_ProductionRequiresEmail(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("ENV", "production")
	t.Setenv("RESEND_API_KEY", "re_test")
	t.Setenv("RESEND_FROM", "launcher@example.com")
	t.Setenv("NOTIFY_EMAIL", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for production without NOTIFY_EMAIL")
	}

	t.Setenv("NOTIFY_EMAIL", "owner@example.com")
	if _, err := config.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("STORE_DRIVER", "redis")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		cfg := &config.Config{LogLevel: in}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestShutdownTimeout(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("SHUTDOWN_TIMEOUT_SEC", "3")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownTimeout() != 3*time.Second {
		t.Errorf("shutdown timeout = %v, want 3s", cfg.ShutdownTimeout())
	}

	t.Setenv("SHUTDOWN_TIMEOUT_SEC", "0")
	if _, err := config.Load(); err == nil {
		t.Error("zero shutdown timeout accepted")
	}
}
