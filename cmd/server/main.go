package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/config"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/alarm"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/health"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/infrastructure/memory"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/infrastructure/sqlite"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/keylock"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/lifecycle"
	ctxlog "github.com/ErlanBelekov/app-launch-scheduler/internal/log"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/metrics"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/notify"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/outcome"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/overlay"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform/local"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/repository"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/scheduler"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/store"
	httptransport "github.com/ErlanBelekov/app-launch-scheduler/internal/transport/http"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics.Register()
	metrics.StartTime.SetToCurrentTime()

	repo, storePinger, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	schedules := store.New(repo, logger)

	registry, err := local.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	// Device
	device := platform.Device{SDK: cfg.PlatformSDK}
	perms := local.Permissions{Overlay: cfg.OverlayPermission, ExactAlarms: cfg.ExactAlarmPermission}
	presence := &local.Presence{}
	windows := local.NewWindowManager(perms)
	starter := local.NewStarter(device, registry, presence, windows, logger)
	logger.Info("device",
		"host", cfg.HostPackage,
		"sdk", device.SDK,
		"background_start_restricted", device.RestrictsBackgroundStarts(),
		"overlay_permission", perms.CanDrawOverlays(),
		"exact_alarm_permission", perms.CanScheduleExactAlarms(),
	)

	// Notifications
	tray := notify.NewTray(func() bool { return cfg.NotificationsEnabled }, logger)
	notifiers := notify.Multi{tray, notify.NewLogNotifier(logger)}
	if cfg.NotifyEmail != "" {
		sender := notify.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
		notifiers = append(notifiers, notify.NewEmailNotifier(sender, cfg.NotifyEmail))
	}

	tracker := lifecycle.NewTracker()
	locks := keylock.New()
	recorder := outcome.NewRecorder(schedules, notifiers, logger)

	overlays := overlay.NewService(overlay.Deps{
		Device:     device,
		Resolver:   registry,
		Starter:    starter,
		Windows:    windows,
		Foreground: tray,
		Recorder:   recorder,
		Tracker:    tracker,
		Grace:      cfg.OverlayGrace(),
		Logger:     logger,
	})

	// Timers fire into the dispatcher, which is built after them.
	var dispatcher *scheduler.Dispatcher
	clock := alarm.NewClock(ctx, func(p alarm.Payload) {
		dispatcher.Dispatch(ctx, scheduler.AlarmFired{Payload: p})
	}, alarm.ClockOptions{
		ExactAllowed: perms.CanScheduleExactAlarms,
		InexactSlack: cfg.InexactSlack(),
		Logger:       logger,
	})
	timers := scheduler.NewTimerScheduler(clock, logger)

	executor := scheduler.NewExecutor(scheduler.ExecutorDeps{
		Store:           schedules,
		Timers:          timers,
		Resolver:        registry,
		Starter:         starter,
		Foreground:      presence,
		Perms:           perms,
		Device:          device,
		Overlay:         overlays,
		Recorder:        recorder,
		Locks:           locks,
		Tracker:         tracker,
		RetryViaOverlay: cfg.RetryViaOverlay,
		Concurrency:     cfg.LaunchConcurrency,
		Logger:          logger,
	})
	boot := scheduler.NewBootReconciler(schedules, timers, recorder, locks, logger)
	dispatcher = scheduler.NewDispatcher(executor, boot, tracker, logger)

	// Timers do not survive a restart, so reconcile before serving.
	if err := dispatcher.Dispatch(ctx, scheduler.BootCompleted{}).Wait(ctx); err != nil {
		return fmt.Errorf("boot reconciliation: %w", err)
	}

	scheduleUsecase := usecase.NewScheduleUsecase(schedules, timers, registry, locks, logger, usecase.Options{
		ConflictWindow: cfg.ConflictWindow(),
		ListDebounce:   cfg.ListDebounce(),
	})
	scheduleHandler := handler.NewScheduleHandler(scheduleUsecase, presence, logger)
	appHandler := handler.NewAppHandler(scheduleUsecase, tray, logger)

	checker := health.NewChecker(map[string]health.Pinger{
		"store":    storePinger,
		"registry": registry,
	}, logger, prometheus.DefaultRegisterer)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httptransport.NewRouter(logger, scheduleHandler, appHandler, []byte(cfg.JWTSecret)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	reaper := scheduler.NewReaper(schedules, timers, recorder, locks, cfg.ReaperCron, cfg.ReaperGrace(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return reaper.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
		return nil
	})

	err = g.Wait()

	// Launches already in flight finish; overlay workers are torn down.
	overlays.DestroyAll()
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if werr := tracker.Wait(drainCtx); werr != nil {
		logger.Warn("in-flight work abandoned", "error", werr)
	}
	logger.Info("shutdown complete")
	return err
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.ScheduleRepository, health.Pinger, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("db: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("db: %w", err)
		}
		return postgres.NewScheduleRepository(pool, logger), pool, pool.Close, nil
	case "memory":
		logger.Warn("memory store selected, schedules are lost on exit")
		return memory.NewScheduleRepository(), alwaysUp{}, func() {}, nil
	default:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("db: %w", err)
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Error("close sqlite", "error", err)
			}
		}
		return sqlite.NewScheduleRepository(db, logger), sqlite.Pinger{DB: db}, closeDB, nil
	}
}

type alwaysUp struct{}

func (alwaysUp) Ping(context.Context) error { return nil }

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
