package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/keylock"
	ctxlog "github.com/ErlanBelekov/app-launch-scheduler/internal/log"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/repository"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/scheduler"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/stream"
)

// ScheduleStore is the schedule table with live snapshots.
type ScheduleStore interface {
	repository.ScheduleRepository
	Watch(ctx context.Context) <-chan []*domain.Schedule
}

// Timers binds schedules to wake timers.
type Timers interface {
	Arm(id int64, packageName string, at time.Time) scheduler.Precision
	Rearm(id int64, packageName string, at time.Time) scheduler.Precision
	Cancel(id int64)
}

// Apps is the installed-package registry.
type Apps interface {
	platform.AppCatalog
	platform.LaunchResolver
}

type Options struct {
	// ConflictWindow is the half-width of the interval around a pending
	// schedule in which no other pending schedule may fall.
	ConflictWindow time.Duration
	// ListDebounce is the quiet period applied to the live schedule list.
	ListDebounce time.Duration
	Now          func() time.Time
}

type ScheduleUsecase struct {
	store    ScheduleStore
	timers   Timers
	apps     Apps
	locks    *keylock.Locker
	// slots serializes each conflict check with the write it guards; the
	// window spans ids, so the per-id locks cannot cover it.
	slots    sync.Mutex
	window   time.Duration
	debounce time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewScheduleUsecase(store ScheduleStore, timers Timers, apps Apps, locks *keylock.Locker, logger *slog.Logger, opts Options) *ScheduleUsecase {
	if opts.ConflictWindow <= 0 {
		opts.ConflictWindow = domain.ConflictWindow
	}
	if opts.ListDebounce <= 0 {
		opts.ListDebounce = 300 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ScheduleUsecase{
		store:    store,
		timers:   timers,
		apps:     apps,
		locks:    locks,
		window:   opts.ConflictWindow,
		debounce: opts.ListDebounce,
		now:      opts.Now,
		logger:   logger.With("component", "schedule_usecase"),
	}
}

type AddScheduleInput struct {
	PackageName   string
	AppName       string
	AppIconPath   *string
	ScheduledTime time.Time
}

func (u *ScheduleUsecase) AddSchedule(ctx context.Context, input AddScheduleInput) (*domain.Schedule, error) {
	u.slots.Lock()
	defer u.slots.Unlock()

	at := domain.UnixMilli(input.ScheduledTime)
	if err := u.validateTime(ctx, at, repository.NoExclusion); err != nil {
		return nil, err
	}

	intent, err := u.apps.LaunchIntent(ctx, input.PackageName)
	if err != nil {
		return nil, fmt.Errorf("resolve target: %w", err)
	}
	if intent == nil {
		return nil, domain.ErrTargetNotLaunchable
	}

	appName := strings.TrimSpace(input.AppName)
	if appName == "" {
		appName = input.PackageName
	}

	s := &domain.Schedule{
		PackageName:   input.PackageName,
		AppName:       appName,
		AppIconPath:   input.AppIconPath,
		ScheduledTime: at,
		Status:        domain.StatusPending,
		CreatedAt:     domain.UnixMilli(u.now()),
	}

	id, err := u.store.Insert(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("add schedule: %w", err)
	}
	s.ID = id

	precision := u.timers.Arm(id, s.PackageName, s.ScheduledTime)
	u.logger.InfoContext(ctxlog.WithScheduleID(ctx, id), "schedule added", "package", s.PackageName, "at", s.ScheduledTime, "precision", precision)
	return s, nil
}

// UpdateSchedule moves a pending schedule to a new instant and re-arms its timer.
func (u *ScheduleUsecase) UpdateSchedule(ctx context.Context, id int64, scheduledTime time.Time) (*domain.Schedule, error) {
	ctx = ctxlog.WithScheduleID(ctx, id)
	unlock := u.locks.Lock(id)
	defer unlock()
	u.slots.Lock()
	defer u.slots.Unlock()

	at := domain.UnixMilli(scheduledTime)
	if err := u.validateTime(ctx, at, id); err != nil {
		return nil, err
	}

	s, err := u.pending(ctx, id)
	if err != nil {
		return nil, err
	}

	s.ScheduledTime = at
	if err := u.store.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	precision := u.timers.Rearm(id, s.PackageName, at)
	u.logger.InfoContext(ctx, "schedule updated", "at", at, "precision", precision)
	return s, nil
}

// CancelSchedule cancels a pending schedule and its timer. Cancelling an
// already cancelled schedule succeeds.
func (u *ScheduleUsecase) CancelSchedule(ctx context.Context, id int64) error {
	ctx = ctxlog.WithScheduleID(ctx, id)
	unlock := u.locks.Lock(id)
	defer unlock()

	s, err := u.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel schedule: %w", err)
	}
	if s == nil {
		return domain.ErrScheduleNotFound
	}

	switch s.Status {
	case domain.StatusCancelled:
		u.timers.Cancel(id)
		return nil
	case domain.StatusPending:
	default:
		return domain.ErrScheduleNotPending
	}

	if _, err := u.store.UpdateStatus(ctx, id, domain.StatusCancelled, nil); err != nil {
		return fmt.Errorf("cancel schedule: %w", err)
	}
	u.timers.Cancel(id)
	u.logger.InfoContext(ctx, "schedule cancelled")
	return nil
}

// DeleteSchedule removes a schedule. A pending schedule loses its timer first.
func (u *ScheduleUsecase) DeleteSchedule(ctx context.Context, id int64) error {
	ctx = ctxlog.WithScheduleID(ctx, id)
	unlock := u.locks.Lock(id)
	defer unlock()

	s, err := u.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if s == nil {
		return domain.ErrScheduleNotFound
	}
	if s.IsPending() {
		u.timers.Cancel(id)
	}

	if err := u.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	u.logger.InfoContext(ctx, "schedule deleted", "status", s.Status)
	return nil
}

func (u *ScheduleUsecase) GetSchedule(ctx context.Context, id int64) (*domain.Schedule, error) {
	s, err := u.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if s == nil {
		return nil, domain.ErrScheduleNotFound
	}
	return s, nil
}

func (u *ScheduleUsecase) ListSchedules(ctx context.Context) ([]*domain.Schedule, error) {
	list, err := u.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return list, nil
}

// WatchSchedules streams the schedule list. Bursts of writes are coalesced
// into one snapshot after a quiet period and identical consecutive snapshots
// are dropped.
func (u *ScheduleUsecase) WatchSchedules(ctx context.Context) <-chan []*domain.Schedule {
	debounced := stream.Debounce(ctx, u.store.Watch(ctx), u.debounce)
	return stream.Distinct(ctx, debounced, domain.EqualSchedules)
}

func (u *ScheduleUsecase) InstalledApps(ctx context.Context) ([]domain.InstalledApp, error) {
	apps, err := u.apps.InstalledApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("installed apps: %w", err)
	}
	return apps, nil
}

// validateTime rejects an instant that is not in the future before looking
// for a conflict, so a past instant always reports ErrTimeInPast.
func (u *ScheduleUsecase) validateTime(ctx context.Context, at time.Time, excludeID int64) error {
	if !at.After(u.now()) {
		return domain.ErrTimeInPast
	}
	n, err := u.store.CountPendingBetween(ctx, at.Add(-u.window), at.Add(u.window), excludeID)
	if err != nil {
		return fmt.Errorf("conflict check: %w", err)
	}
	if n > 0 {
		return domain.ErrTimeConflict
	}
	return nil
}

func (u *ScheduleUsecase) pending(ctx context.Context, id int64) (*domain.Schedule, error) {
	s, err := u.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	if s == nil {
		return nil, domain.ErrScheduleNotFound
	}
	if !s.IsPending() {
		return nil, domain.ErrScheduleNotPending
	}
	return s, nil
}
