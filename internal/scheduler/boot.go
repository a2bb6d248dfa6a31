package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/keylock"
	ctxlog "github.com/ErlanBelekov/app-launch-scheduler/internal/log"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/metrics"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/outcome"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/retry"
)

// ScheduleLister reads the whole schedule table.
type ScheduleLister interface {
	List(ctx context.Context) ([]*domain.Schedule, error)
}

// Partition splits the PENDING schedules of a snapshot into those still in
// the future and those whose instant is at or before now. Terminal records
// are dropped.
func Partition(all []*domain.Schedule, now time.Time) (future, pastDue []*domain.Schedule) {
	for _, s := range all {
		if !s.IsPending() {
			continue
		}
		if s.ScheduledTime.After(now) {
			future = append(future, s)
		} else {
			pastDue = append(pastDue, s)
		}
	}
	return future, pastDue
}

// BootSummary counts what one reconciliation did.
type BootSummary struct {
	Rearmed int
	Missed  int
}

// BootReconciler rebuilds every timer binding from the schedule table after
// a restart and fails the schedules whose moment passed while the host was down.
type BootReconciler struct {
	store    ScheduleLister
	timers   *TimerScheduler
	recorder *outcome.Recorder
	locks    *keylock.Locker
	now      func() time.Time
	logger   *slog.Logger
}

func NewBootReconciler(store ScheduleLister, timers *TimerScheduler, recorder *outcome.Recorder, locks *keylock.Locker, logger *slog.Logger) *BootReconciler {
	return &BootReconciler{
		store:    store,
		timers:   timers,
		recorder: recorder,
		locks:    locks,
		now:      time.Now,
		logger:   logger.With("component", "boot"),
	}
}

// WithClock overrides the time source used to split future and past-due.
func (b *BootReconciler) WithClock(now func() time.Time) *BootReconciler {
	b.now = now
	return b
}

// Reconcile works from a single snapshot of the table. Past-due schedules are
// never launched; they are recorded as missed.
func (b *BootReconciler) Reconcile(ctx context.Context) (BootSummary, error) {
	var all []*domain.Schedule
	err := retry.Do(ctx, retry.Config{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}, func() error {
		var err error
		all, err = b.store.List(ctx)
		return err
	})
	if err != nil {
		return BootSummary{}, fmt.Errorf("boot snapshot: %w", err)
	}

	now := b.now()
	future, pastDue := Partition(all, now)

	var sum BootSummary
	for _, s := range future {
		b.timers.Arm(s.ID, s.PackageName, s.ScheduledTime)
		metrics.BootReconciledTotal.WithLabelValues("rearmed").Inc()
		sum.Rearmed++
	}

	for _, s := range pastDue {
		sctx := ctxlog.WithScheduleID(ctx, s.ID)
		unlock := b.locks.Lock(s.ID)
		if b.recorder.Missed(sctx, s) {
			metrics.BootReconciledTotal.WithLabelValues("missed").Inc()
			sum.Missed++
		}
		unlock()
	}

	b.logger.InfoContext(ctx, "boot reconciliation finished", "rearmed", sum.Rearmed, "missed", sum.Missed, "total", len(all))
	return sum, nil
}
