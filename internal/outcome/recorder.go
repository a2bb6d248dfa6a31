// Package outcome records terminal results of a schedule and reports them.
package outcome

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/notify"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/retry"
)

// StatusWriter is the slice of the schedule table the recorder needs.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id int64, status domain.Status, executedAt *time.Time) (bool, error)
}

// Outcome is one terminal result.
type Outcome struct {
	ScheduleID int64
	AppName    string
	Status     domain.Status
	Reason     string
	// Untracked outcomes have no stored record; only the notification is posted.
	Untracked bool
}

type Recorder struct {
	store    StatusWriter
	notifier notify.ResultNotifier
	retry    retry.Config
	now      func() time.Time
	logger   *slog.Logger
}

func NewRecorder(store StatusWriter, notifier notify.ResultNotifier, logger *slog.Logger) *Recorder {
	r := &Recorder{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.With("component", "outcome"),
	}
	r.retry = retry.Config{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		Retryable: func(err error) bool {
			return !errors.Is(err, domain.ErrInvalidStatus) && !errors.Is(err, context.Canceled)
		},
		OnRetry: func(attempt int, err error) {
			r.logger.Warn("status write failed, retrying", "attempt", attempt, "error", err)
		},
	}
	return r
}

// WithClock overrides the time source used for executedAt.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record moves the schedule to its terminal status and posts the result.
// Nothing is posted when the record had already left PENDING. Errors are
// logged, never returned. It reports whether this call made the transition.
func (r *Recorder) Record(ctx context.Context, o Outcome) bool {
	at := r.now()

	var transitioned bool
	if !o.Untracked {
		var executedAt *time.Time
		if o.Status.StampsExecutedAt() {
			executedAt = &at
		}

		err := retry.Do(ctx, r.retry, func() error {
			var err error
			transitioned, err = r.store.UpdateStatus(ctx, o.ScheduleID, o.Status, executedAt)
			return err
		})
		switch {
		case err != nil:
			// The user still learns the result even though the row could not be written.
			r.logger.ErrorContext(ctx, "record terminal status", "status", o.Status, "error", err)
		case !transitioned:
			r.logger.InfoContext(ctx, "schedule already terminal, result not reposted", "status", o.Status)
			return false
		}
	}

	res := notify.Result{
		ScheduleID: o.ScheduleID,
		AppName:    o.AppName,
		Success:    o.Status == domain.StatusExecuted,
		Reason:     o.Reason,
		At:         at,
	}
	if err := r.notifier.NotifyResult(ctx, res); err != nil {
		r.logger.WarnContext(ctx, "post launch result", "error", err)
	}
	return transitioned
}

func (r *Recorder) Failed(ctx context.Context, s *domain.Schedule, reason string) bool {
	return r.Record(ctx, Outcome{ScheduleID: s.ID, AppName: s.AppName, Status: domain.StatusFailed, Reason: reason})
}

// Missed fails a schedule whose instant elapsed without a firing.
func (r *Recorder) Missed(ctx context.Context, s *domain.Schedule) bool {
	return r.Failed(ctx, s, notify.ReasonMissed)
}
