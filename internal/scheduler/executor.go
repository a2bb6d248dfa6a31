package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/alarm"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/keylock"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/lifecycle"
	ctxlog "github.com/ErlanBelekov/app-launch-scheduler/internal/log"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/metrics"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/notify"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/outcome"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/overlay"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/requestid"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/retry"
)

type Strategy string

const (
	StrategyDirect  Strategy = "direct"
	StrategyOverlay Strategy = "overlay"
)

// ScheduleReader is the read side of the schedule table the executor needs.
type ScheduleReader interface {
	FindByID(ctx context.Context, id int64) (*domain.Schedule, error)
}

// ArmedTimers reports whether a schedule still has a registration waiting in
// the timer facility. A delivered timer is no longer registered.
type ArmedTimers interface {
	IsArmed(id int64) bool
}

// OverlayLauncher starts an overlay launch worker.
type OverlayLauncher interface {
	Launch(ctx context.Context, req overlay.Request) *overlay.Worker
}

type ExecutorDeps struct {
	Store      ScheduleReader
	Timers     ArmedTimers
	Resolver   platform.LaunchResolver
	Starter    platform.ActivityStarter
	Foreground platform.ForegroundProbe
	Perms      platform.Permissions
	Device     platform.Device
	Overlay    OverlayLauncher
	Recorder   *outcome.Recorder
	Locks      *keylock.Locker
	Tracker    *lifecycle.Tracker
	// RetryViaOverlay retries a direct launch once through the overlay worker
	// when the platform dropped it as a background start.
	RetryViaOverlay bool
	// Concurrency bounds simultaneous launch attempts.
	Concurrency int
	Logger      *slog.Logger
}

// Report describes how one firing was handled.
type Report struct {
	Strategy Strategy
	// Status is the terminal status recorded, empty when nothing was recorded.
	Status domain.Status
	// Skipped is set when the schedule had already left PENDING or the
	// delivery was superseded by a newer timer.
	Skipped bool
	// Untracked is set when no stored record existed for the firing.
	Untracked bool
}

// Executor handles fired wake timers.
type Executor struct {
	deps   ExecutorDeps
	sem    chan struct{}
	now    func() time.Time
	logger *slog.Logger
}

func NewExecutor(deps ExecutorDeps) *Executor {
	if deps.Concurrency <= 0 {
		deps.Concurrency = 4
	}
	return &Executor{
		deps:   deps,
		sem:    make(chan struct{}, deps.Concurrency),
		now:    time.Now,
		logger: deps.Logger.With("component", "executor"),
	}
}

// HandleAlarm runs the launch for a fired timer in the background and returns
// the ticket covering it. The work is detached from ctx cancellation so
// shutdown waits for it instead of abandoning it mid-launch.
func (e *Executor) HandleAlarm(ctx context.Context, p alarm.Payload) *lifecycle.Ticket {
	ticket := e.deps.Tracker.Begin("launch")
	ctx, _ = requestid.Ensure(context.WithoutCancel(ctx))

	go func() {
		defer ticket.Finish()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("launch panicked", "schedule_id", p.ScheduleID, "panic", r)
			}
		}()

		e.sem <- struct{}{}
		defer func() { <-e.sem }()

		e.Execute(ctx, p)
	}()
	return ticket
}

// Execute handles one delivery synchronously. Deliveries for the same
// schedule never interleave with each other or with edits to it. The timer
// payload is only trusted when the stored record is gone.
func (e *Executor) Execute(ctx context.Context, p alarm.Payload) Report {
	ctx = ctxlog.WithScheduleID(ctx, p.ScheduleID)
	start := e.now()

	unlock := e.deps.Locks.Lock(p.ScheduleID)
	defer unlock()

	s, untracked, err := e.load(ctx, p)
	if err != nil {
		// Unreadable store: the record cannot be checked or transitioned, so
		// only tell the user.
		e.logger.ErrorContext(ctx, "read schedule", "error", err)
		e.deps.Recorder.Record(ctx, outcome.Outcome{
			ScheduleID: p.ScheduleID,
			AppName:    p.PackageName,
			Status:     domain.StatusFailed,
			Reason:     notify.ReasonLaunchError,
			Untracked:  true,
		})
		return Report{Status: domain.StatusFailed, Untracked: true}
	}

	if !untracked && !s.IsPending() {
		metrics.DuplicateDeliveriesTotal.Inc()
		e.logger.InfoContext(ctx, "schedule already terminal, ignoring delivery", "status", s.Status)
		return Report{Skipped: true}
	}
	if !untracked && e.superseded(p.ScheduleID) {
		metrics.DuplicateDeliveriesTotal.Inc()
		e.logger.InfoContext(ctx, "schedule re-armed since this timer fired, ignoring delivery", "scheduled_time", s.ScheduledTime)
		return Report{Skipped: true}
	}
	if !untracked {
		metrics.AlarmDelay.Observe(start.Sub(s.ScheduledTime).Seconds())
	}

	report := Report{Untracked: untracked}

	intent, err := e.deps.Resolver.LaunchIntent(ctx, s.PackageName)
	if err != nil {
		e.logger.ErrorContext(ctx, "resolve launch intent", "package", s.PackageName, "error", err)
	}
	if err != nil || intent == nil {
		e.logger.WarnContext(ctx, "target not launchable", "package", s.PackageName)
		report.Status = e.finish(ctx, s, untracked, domain.StatusFailed, notify.ReasonAppNotFound)
		metrics.LaunchesTotal.WithLabelValues("none", "not_launchable").Inc()
		return report
	}

	report.Strategy = e.strategy(ctx)
	if report.Strategy == StrategyOverlay {
		report.Status = e.viaOverlay(ctx, s, untracked)
		e.observe(report, start)
		return report
	}

	err = e.deps.Starter.StartActivity(ctx, intent.WithLaunchFlags())
	switch {
	case err == nil:
		e.logger.InfoContext(ctx, "direct launch dispatched", "package", s.PackageName)
		report.Status = e.finish(ctx, s, untracked, domain.StatusExecuted, "")
	case e.deps.RetryViaOverlay && errors.Is(err, platform.ErrBackgroundActivityStart) && e.overlayAvailable():
		e.logger.InfoContext(ctx, "direct launch dropped, retrying via overlay", "error", err)
		report.Strategy = StrategyOverlay
		report.Status = e.viaOverlay(ctx, s, untracked)
	default:
		e.logger.WarnContext(ctx, "direct launch rejected", "package", s.PackageName, "error", err)
		report.Status = e.finish(ctx, s, untracked, domain.StatusFailed, notify.ReasonLaunchError)
	}
	e.observe(report, start)
	return report
}

func (e *Executor) load(ctx context.Context, p alarm.Payload) (*domain.Schedule, bool, error) {
	var s *domain.Schedule
	err := retry.Do(ctx, retry.Config{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}, func() error {
		var err error
		s, err = e.deps.Store.FindByID(ctx, p.ScheduleID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if s == nil {
		e.logger.WarnContext(ctx, "schedule not found, launching from timer payload", "package", p.PackageName)
		return &domain.Schedule{ID: p.ScheduleID, PackageName: p.PackageName, AppName: p.PackageName}, true, nil
	}
	return s, false, nil
}

// superseded reports whether an edit re-armed the schedule after this
// delivery's timer left the facility.
func (e *Executor) superseded(id int64) bool {
	return e.deps.Timers != nil && e.deps.Timers.IsArmed(id)
}

// strategy picks a direct launch whenever the platform would honor it or the
// overlay cannot be used.
func (e *Executor) strategy(ctx context.Context) Strategy {
	if e.deps.Foreground.IsForeground(ctx) || !e.overlayAvailable() {
		return StrategyDirect
	}
	return StrategyOverlay
}

func (e *Executor) overlayAvailable() bool {
	return e.deps.Device.RestrictsBackgroundStarts() && e.deps.Perms.CanDrawOverlays() && e.deps.Overlay != nil
}

func (e *Executor) viaOverlay(ctx context.Context, s *domain.Schedule, untracked bool) domain.Status {
	w := e.deps.Overlay.Launch(ctx, overlay.Request{Schedule: s, Untracked: untracked})
	if err := w.Wait(ctx); err != nil {
		e.logger.WarnContext(ctx, "overlay launch abandoned", "worker_id", w.ID(), "error", err)
		w.Destroy()
	}
	return w.Status()
}

func (e *Executor) finish(ctx context.Context, s *domain.Schedule, untracked bool, status domain.Status, reason string) domain.Status {
	e.deps.Recorder.Record(ctx, outcome.Outcome{
		ScheduleID: s.ID,
		AppName:    s.AppName,
		Status:     status,
		Reason:     reason,
		Untracked:  untracked,
	})
	return status
}

func (e *Executor) observe(r Report, start time.Time) {
	result := "failure"
	if r.Status == domain.StatusExecuted {
		result = "success"
	}
	metrics.LaunchesTotal.WithLabelValues(string(r.Strategy), result).Inc()
	metrics.LaunchDuration.WithLabelValues(string(r.Strategy)).Observe(time.Since(start).Seconds())
}
