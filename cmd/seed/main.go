// seed inserts demo schedules for the registry's packages and prints a dev JWT.
// Run: go run ./cmd/seed
//
// Seeded rows have no live timer. The running server arms them on its next
// reaper sweep, or at startup if it is restarted.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/config"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/infrastructure/sqlite"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform/local"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/repository"
	"github.com/golang-jwt/jwt/v5"
)

// Offsets are spaced wider than the conflict window so every row is accepted.
var offsets = []time.Duration{
	2 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	2 * time.Hour,
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	registry, err := local.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	apps, err := registry.InstalledApps(ctx)
	if err != nil {
		log.Fatalf("installed apps: %v", err)
	}
	if len(apps) == 0 {
		log.Fatalf("registry %s has no launchable packages", cfg.RegistryPath)
	}

	repo, closeRepo := openRepo(ctx, cfg, logger)
	defer closeRepo()

	now := time.Now()
	window := cfg.ConflictWindow()
	var inserted, skipped int
	fmt.Println("Seed complete")
	fmt.Println()
	for i, offset := range offsets {
		app := apps[i%len(apps)]
		at := now.Add(offset)

		n, err := repo.CountPendingBetween(ctx, at.Add(-window), at.Add(window), repository.NoExclusion)
		if err != nil {
			log.Fatalf("conflict check: %v", err)
		}
		if n > 0 {
			skipped++
			continue
		}

		id, err := repo.Insert(ctx, &domain.Schedule{
			PackageName:   app.PackageName,
			AppName:       app.AppName,
			AppIconPath:   app.IconPath,
			ScheduledTime: at,
			Status:        domain.StatusPending,
			CreatedAt:     now,
		})
		if err != nil {
			log.Fatalf("insert schedule for %s: %v", app.PackageName, err)
		}
		inserted++
		fmt.Printf("  #%-4d %-28s %s\n", id, app.PackageName, at.Format(time.RFC3339))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dev",
		"iat": now.Unix(),
		"exp": now.Add(30 * 24 * time.Hour).Unix(),
	}).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}

	fmt.Println()
	fmt.Printf("  Schedules created: %d  (skipped %d conflicting)\n", inserted, skipped)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Printf("    export JWT=%s\n", token)
	fmt.Printf("    curl -s http://localhost:%s/schedules -H \"Authorization: Bearer $JWT\"\n", cfg.Port)
	fmt.Println()
	fmt.Println("  Keep a viewer attached to launch directly, or leave it closed to exercise the overlay path:")
	fmt.Println()
	fmt.Printf("    curl -N http://localhost:%s/schedules/stream -H \"Authorization: Bearer $JWT\"\n", cfg.Port)
	fmt.Println()
	fmt.Printf("  Results land in: curl -s http://localhost:%s/notifications -H \"Authorization: Bearer $JWT\"\n", cfg.Port)
}

func openRepo(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.ScheduleRepository, func()) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			log.Fatalf("db migrate: %v", err)
		}
		return postgres.NewScheduleRepository(pool, logger), pool.Close
	case "memory":
		log.Fatal("STORE_DRIVER=memory cannot be seeded from another process")
		return nil, nil
	default:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatalf("db open: %v", err)
		}
		return sqlite.NewScheduleRepository(db, logger), func() { closeDB(db) }
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Printf("close db: %v", err)
	}
}
