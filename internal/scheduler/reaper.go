package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/keylock"
	ctxlog "github.com/ErlanBelekov/app-launch-scheduler/internal/log"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/metrics"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/outcome"
)

// ReaperStore is the slice of the schedule table the reaper sweeps.
type ReaperStore interface {
	List(ctx context.Context) ([]*domain.Schedule, error)
	FindByID(ctx context.Context, id int64) (*domain.Schedule, error)
}

// Reaper periodically repairs timer bindings that drifted from the table:
// future pending schedules with no live timer are re-armed, and pending
// schedules overdue by more than grace with no timer are failed as missed.
type Reaper struct {
	store    ReaperStore
	timers   *TimerScheduler
	recorder *outcome.Recorder
	locks    *keylock.Locker
	spec     string
	grace    time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewReaper(store ReaperStore, timers *TimerScheduler, recorder *outcome.Recorder, locks *keylock.Locker, spec string, grace time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		store:    store,
		timers:   timers,
		recorder: recorder,
		locks:    locks,
		spec:     spec,
		grace:    grace,
		now:      time.Now,
		logger:   logger.With("component", "reaper"),
	}
}

// Start runs the sweep on the cron spec until ctx is done.
func (r *Reaper) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.spec, func() { r.Sweep(ctx) }); err != nil {
		return err
	}
	c.Start()
	r.logger.Info("reaper started", "spec", r.spec, "grace", r.grace)

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("reaper shut down")
	return nil
}

// ReaperSummary counts what one sweep did.
type ReaperSummary struct {
	Rearmed int
	Failed  int
}

func (r *Reaper) Sweep(ctx context.Context) ReaperSummary {
	start := time.Now()
	defer func() { metrics.ReaperCycleDuration.Observe(time.Since(start).Seconds()) }()

	all, err := r.store.List(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "reaper list", "error", err)
		return ReaperSummary{}
	}

	now := r.now()
	future, pastDue := Partition(all, now)

	var sum ReaperSummary
	for _, s := range future {
		if r.timers.IsArmed(s.ID) {
			continue
		}
		r.timers.Arm(s.ID, s.PackageName, s.ScheduledTime)
		metrics.ReaperRescuedTotal.WithLabelValues("rearmed").Inc()
		sum.Rearmed++
	}

	cutoff := now.Add(-r.grace)
	for _, s := range pastDue {
		if !s.ScheduledTime.Before(cutoff) || r.timers.IsArmed(s.ID) {
			continue
		}
		if r.failMissed(ctx, s.ID) {
			metrics.ReaperRescuedTotal.WithLabelValues("failed").Inc()
			sum.Failed++
		}
	}

	if sum.Rearmed > 0 || sum.Failed > 0 {
		r.logger.InfoContext(ctx, "reaper repaired schedules", "rearmed", sum.Rearmed, "failed", sum.Failed)
	}
	return sum
}

// failMissed re-reads the record under its lock so a launch that finished
// since the snapshot is left alone.
func (r *Reaper) failMissed(ctx context.Context, id int64) bool {
	ctx = ctxlog.WithScheduleID(ctx, id)
	unlock := r.locks.Lock(id)
	defer unlock()

	s, err := r.store.FindByID(ctx, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "reaper read", "error", err)
		return false
	}
	if s == nil || !s.IsPending() {
		return false
	}
	return r.recorder.Missed(ctx, s)
}
