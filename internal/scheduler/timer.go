package scheduler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/alarm"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/metrics"
)

type Precision string

const (
	PrecisionExact   Precision = "exact"
	PrecisionInexact Precision = "inexact"
	// PrecisionNone means the facility refused both kinds of registration.
	PrecisionNone Precision = "none"
)

// TimerScheduler binds each schedule id to at most one pending wake timer.
type TimerScheduler struct {
	alarms alarm.Facility
	logger *slog.Logger
}

func NewTimerScheduler(alarms alarm.Facility, logger *slog.Logger) *TimerScheduler {
	return &TimerScheduler{
		alarms: alarms,
		logger: logger.With("component", "timer"),
	}
}

// Arm registers a one-shot timer for id at instant, replacing any existing
// one. When precise timing is not permitted it falls back to an inexact
// timer; callers never see a registration error.
func (t *TimerScheduler) Arm(id int64, packageName string, at time.Time) Precision {
	t.alarms.Cancel(id)

	p := alarm.Payload{ScheduleID: id, PackageName: packageName}
	logger := t.logger.With("schedule_id", id, "at", at)

	if t.alarms.CanScheduleExact() {
		err := t.alarms.SetExact(at, p)
		if err == nil {
			metrics.TimersArmedTotal.WithLabelValues(string(PrecisionExact)).Inc()
			logger.Debug("exact timer armed")
			return PrecisionExact
		}
		if !errors.Is(err, alarm.ErrExactNotPermitted) {
			logger.Warn("exact timer refused", "error", err)
		}
	}

	if err := t.alarms.SetInexact(at, p); err != nil {
		logger.Error("inexact timer refused", "error", err)
		metrics.TimersArmedTotal.WithLabelValues(string(PrecisionNone)).Inc()
		return PrecisionNone
	}
	metrics.TimersArmedTotal.WithLabelValues(string(PrecisionInexact)).Inc()
	logger.Info("exact timing unavailable, inexact timer armed")
	return PrecisionInexact
}

// Rearm moves the timer for id to a new instant.
func (t *TimerScheduler) Rearm(id int64, packageName string, at time.Time) Precision {
	return t.Arm(id, packageName, at)
}

// Cancel drops the timer for id. Ids that were never armed are ignored.
func (t *TimerScheduler) Cancel(id int64) {
	t.alarms.Cancel(id)
	metrics.TimersCancelledTotal.Inc()
}

func (t *TimerScheduler) IsArmed(id int64) bool {
	_, ok := t.alarms.Pending(id)
	return ok
}
