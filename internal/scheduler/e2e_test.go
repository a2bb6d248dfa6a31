package scheduler_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/scheduler"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/usecase"
)

func TestScheduleFiresInBackgroundThroughOverlay(t *testing.T) {
	r := newRig(t, rigOpts{})
	ctx := context.Background()
	uc := usecase.NewScheduleUsecase(r.store, r.timers, r.apps, r.locks, slog.Default(), usecase.Options{})

	s, err := uc.AddSchedule(ctx, usecase.AddScheduleInput{PackageName: target, AppName: "Maps", ScheduledTime: time.Now().Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	if got := r.status(t, s.ID); got != domain.StatusPending {
		t.Fatalf("status after add = %s, want PENDING", got)
	}

	// host in background, overlay permission held
	r.foreground.Set(false)
	payload, ok := r.alarms.Fire(s.ID)
	if !ok {
		t.Fatal("no timer bound to the schedule")
	}
	waitTicket(t, r.dispatcher.Dispatch(ctx, scheduler.AlarmFired{Payload: payload}))

	if added, removed, _ := r.windows.Stats(); added != 1 || removed != 1 {
		t.Fatalf("overlay path not taken: surfaces added=%d removed=%d", added, removed)
	}
	if got := r.status(t, s.ID); got != domain.StatusExecuted {
		t.Fatalf("status after firing = %s, want EXECUTED", got)
	}

	results := r.tray.Results()
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("notifications = %+v, want exactly one success", results)
	}
	if len(r.tray.Foreground()) != 0 {
		t.Fatal("foreground worker notification left behind")
	}
}
