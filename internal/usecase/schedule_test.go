package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/infrastructure/memory"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/keylock"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform/fake"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/repository"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/scheduler"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/store"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/usecase"
)

// ---- fakes ----

// faultyRepo fails the operations whose hooks are set and delegates the rest.
type faultyRepo struct {
	*memory.ScheduleRepository
	insert func(ctx context.Context, s *domain.Schedule) (int64, error)
	update func(ctx context.Context, s *domain.Schedule) error
	count  func()
}

func (r *faultyRepo) CountPendingBetween(ctx context.Context, start, end time.Time, excludeID int64) (int, error) {
	if r.count != nil {
		r.count()
	}
	return r.ScheduleRepository.CountPendingBetween(ctx, start, end, excludeID)
}

func (r *faultyRepo) Insert(ctx context.Context, s *domain.Schedule) (int64, error) {
	if r.insert != nil {
		return r.insert(ctx, s)
	}
	return r.ScheduleRepository.Insert(ctx, s)
}

func (r *faultyRepo) Update(ctx context.Context, s *domain.Schedule) error {
	if r.update != nil {
		return r.update(ctx, s)
	}
	return r.ScheduleRepository.Update(ctx, s)
}

// ---- helpers ----

const (
	maps = "com.example.maps"
	mail = "com.example.mail"
)

var now = time.UnixMilli(1_800_000_000_000)

type env struct {
	uc     *usecase.ScheduleUsecase
	repo   *faultyRepo
	alarms *fake.Alarms
	apps   *fake.Apps
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo := &faultyRepo{ScheduleRepository: memory.NewScheduleRepository()}
	alarms := fake.NewAlarms(true)
	apps := fake.NewApps().Install(maps, "Maps").Install(mail, "Mail")
	logger := slog.Default()

	uc := usecase.NewScheduleUsecase(
		store.New(repo, logger),
		scheduler.NewTimerScheduler(alarms, logger),
		apps,
		keylock.New(),
		logger,
		usecase.Options{ListDebounce: 20 * time.Millisecond, Now: func() time.Time { return now }},
	)
	return &env{uc: uc, repo: repo, alarms: alarms, apps: apps}
}

func (e *env) add(t *testing.T, pkg string, at time.Time) *domain.Schedule {
	t.Helper()
	s, err := e.uc.AddSchedule(context.Background(), usecase.AddScheduleInput{PackageName: pkg, AppName: pkg, ScheduledTime: at})
	if err != nil {
		t.Fatalf("AddSchedule(%s, %v): %v", pkg, at, err)
	}
	return s
}

// ---- tests ----

func TestAddSchedule_PendingWithTimer(t *testing.T) {
	e := newEnv(t)
	at := now.Add(time.Hour)

	s := e.add(t, maps, at)

	if s.ID == 0 || s.Status != domain.StatusPending {
		t.Fatalf("schedule = %+v", s)
	}
	armed, ok := e.alarms.Get(s.ID)
	if !ok {
		t.Fatal("no timer bound to new schedule")
	}
	if !armed.At.Equal(at) || armed.Payload.PackageName != maps || !armed.Exact {
		t.Fatalf("timer = %+v", armed)
	}
}

func TestAddSchedule_FallsBackToInexactTimer(t *testing.T) {
	e := newEnv(t)
	e.alarms.Exact.Store(false)

	s := e.add(t, maps, now.Add(time.Hour))

	armed, ok := e.alarms.Get(s.ID)
	if !ok || armed.Exact {
		t.Fatalf("timer = %+v, %v, want inexact", armed, ok)
	}
}

func TestAddSchedule_PastTimeAlwaysRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// an existing pending schedule inside the window makes a conflict possible too
	e.add(t, mail, now.Add(30*time.Second))

	for _, at := range []time.Time{now, now.Add(-time.Second), now.Add(-24 * time.Hour)} {
		_, err := e.uc.AddSchedule(ctx, usecase.AddScheduleInput{PackageName: maps, ScheduledTime: at})
		if !errors.Is(err, domain.ErrTimeInPast) {
			t.Errorf("AddSchedule(%v) err = %v, want ErrTimeInPast", at, err)
		}
	}
}

func TestAddSchedule_ConflictWindowInclusive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	base := now.Add(time.Hour)
	e.add(t, mail, base)

	cases := []struct {
		offset   time.Duration
		conflict bool
	}{
		{0, true},
		{60 * time.Second, true},
		{-60 * time.Second, true},
		{61 * time.Second, false},
		{-61 * time.Second, false},
	}
	for _, tc := range cases {
		_, err := e.uc.AddSchedule(ctx, usecase.AddScheduleInput{PackageName: maps, ScheduledTime: base.Add(tc.offset)})
		if tc.conflict && !errors.Is(err, domain.ErrTimeConflict) {
			t.Errorf("offset %v: err = %v, want ErrTimeConflict", tc.offset, err)
		}
		if !tc.conflict && err != nil {
			t.Errorf("offset %v: err = %v, want nil", tc.offset, err)
		}
	}
}

func TestAddSchedule_ConcurrentAddsRespectWindow(t *testing.T) {
	e := newEnv(t)
	// slow conflict reads widen the gap between check and insert
	e.repo.count = func() { time.Sleep(5 * time.Millisecond) }
	base := now.Add(time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, at := range []time.Time{base, base.Add(10 * time.Second)} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.uc.AddSchedule(context.Background(), usecase.AddScheduleInput{PackageName: maps, ScheduledTime: at})
		}()
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrTimeConflict):
			conflicts++
		default:
			t.Fatalf("AddSchedule: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("succeeded=%d conflicted=%d, want one of each", ok, conflicts)
	}
	if e.alarms.Len() != 1 {
		t.Fatalf("%d timers armed, want 1", e.alarms.Len())
	}
}

func TestAddSchedule_TerminalSchedulesDoNotConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	base := now.Add(time.Hour)
	s := e.add(t, mail, base)
	if err := e.uc.CancelSchedule(ctx, s.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	e.add(t, maps, base)
}

func TestAddSchedule_TargetNotLaunchable(t *testing.T) {
	e := newEnv(t)
	_, err := e.uc.AddSchedule(context.Background(), usecase.AddScheduleInput{PackageName: "com.example.missing", ScheduledTime: now.Add(time.Hour)})
	if !errors.Is(err, domain.ErrTargetNotLaunchable) {
		t.Fatalf("err = %v, want ErrTargetNotLaunchable", err)
	}
}

func TestAddSchedule_StorageErrorArmsNothing(t *testing.T) {
	e := newEnv(t)
	boom := errors.New("disk full")
	e.repo.insert = func(context.Context, *domain.Schedule) (int64, error) { return 0, boom }

	_, err := e.uc.AddSchedule(context.Background(), usecase.AddScheduleInput{PackageName: maps, ScheduledTime: now.Add(time.Hour)})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped storage error", err)
	}
	if e.alarms.Len() != 0 {
		t.Fatal("timer armed for a schedule that was never stored")
	}
}

func TestAddSchedule_AppNameFallsBackToPackage(t *testing.T) {
	e := newEnv(t)
	s, err := e.uc.AddSchedule(context.Background(), usecase.AddScheduleInput{PackageName: maps, AppName: "  ", ScheduledTime: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	if s.AppName != maps {
		t.Fatalf("AppName = %q, want %q", s.AppName, maps)
	}
}

func TestUpdateSchedule_OwnWindowIsNotAConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.add(t, maps, now.Add(time.Hour))

	moved := s.ScheduledTime.Add(30 * time.Second)
	got, err := e.uc.UpdateSchedule(ctx, s.ID, moved)
	if err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}
	if !got.ScheduledTime.Equal(moved) || got.Status != domain.StatusPending {
		t.Fatalf("updated = %+v", got)
	}
	if armed, _ := e.alarms.Get(s.ID); !armed.At.Equal(moved) {
		t.Fatalf("timer at %v, want %v", armed.At, moved)
	}
	if e.alarms.Len() != 1 {
		t.Fatalf("%d timers pending, want 1", e.alarms.Len())
	}
}

func TestUpdateSchedule_ConflictWithAnother(t *testing.T) {
	e := newEnv(t)
	a := e.add(t, maps, now.Add(time.Hour))
	b := e.add(t, mail, now.Add(2*time.Hour))

	_, err := e.uc.UpdateSchedule(context.Background(), b.ID, a.ScheduledTime.Add(59*time.Second))
	if !errors.Is(err, domain.ErrTimeConflict) {
		t.Fatalf("err = %v, want ErrTimeConflict", err)
	}
	if armed, _ := e.alarms.Get(b.ID); !armed.At.Equal(b.ScheduledTime) {
		t.Fatal("rejected edit moved the timer")
	}
}

func TestUpdateSchedule_RejectsPastAndTerminal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.add(t, maps, now.Add(time.Hour))

	if _, err := e.uc.UpdateSchedule(ctx, s.ID, now); !errors.Is(err, domain.ErrTimeInPast) {
		t.Fatalf("past edit err = %v", err)
	}

	_ = e.uc.CancelSchedule(ctx, s.ID)
	if _, err := e.uc.UpdateSchedule(ctx, s.ID, now.Add(3*time.Hour)); !errors.Is(err, domain.ErrScheduleNotPending) {
		t.Fatalf("terminal edit err = %v, want ErrScheduleNotPending", err)
	}
	if _, err := e.uc.UpdateSchedule(ctx, 999, now.Add(3*time.Hour)); !errors.Is(err, domain.ErrScheduleNotFound) {
		t.Fatalf("missing edit err = %v, want ErrScheduleNotFound", err)
	}
}

func TestUpdateSchedule_StorageErrorKeepsTimer(t *testing.T) {
	e := newEnv(t)
	s := e.add(t, maps, now.Add(time.Hour))
	e.repo.update = func(context.Context, *domain.Schedule) error { return errors.New("io error") }

	if _, err := e.uc.UpdateSchedule(context.Background(), s.ID, now.Add(2*time.Hour)); err == nil {
		t.Fatal("expected storage error")
	}
	if armed, _ := e.alarms.Get(s.ID); !armed.At.Equal(s.ScheduledTime) {
		t.Fatal("timer moved although the edit was not stored")
	}
}

func TestCancelSchedule_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.add(t, maps, now.Add(time.Hour))

	if err := e.uc.CancelSchedule(ctx, s.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := e.uc.CancelSchedule(ctx, s.ID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	got, _ := e.uc.GetSchedule(ctx, s.ID)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", got.Status)
	}
	if got.ExecutedAt != nil {
		t.Fatal("cancel stamped executedAt")
	}
	if _, ok := e.alarms.Get(s.ID); ok {
		t.Fatal("timer survived cancel")
	}
}

func TestCancelSchedule_TerminalAndMissing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.add(t, maps, now.Add(time.Hour))
	_, _ = e.repo.UpdateStatus(ctx, s.ID, domain.StatusExecuted, &now)

	if err := e.uc.CancelSchedule(ctx, s.ID); !errors.Is(err, domain.ErrScheduleNotPending) {
		t.Fatalf("cancel executed err = %v", err)
	}
	if err := e.uc.CancelSchedule(ctx, 999); !errors.Is(err, domain.ErrScheduleNotFound) {
		t.Fatalf("cancel missing err = %v", err)
	}
}

func TestDeleteSchedule_RemovesRecordAndTimer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pending := e.add(t, maps, now.Add(time.Hour))
	done := e.add(t, mail, now.Add(2*time.Hour))
	_ = e.uc.CancelSchedule(ctx, done.ID)

	for _, id := range []int64{pending.ID, done.ID} {
		if err := e.uc.DeleteSchedule(ctx, id); err != nil {
			t.Fatalf("delete %d: %v", id, err)
		}
		if _, err := e.uc.GetSchedule(ctx, id); !errors.Is(err, domain.ErrScheduleNotFound) {
			t.Fatalf("get after delete err = %v", err)
		}
	}
	if e.alarms.Len() != 0 {
		t.Fatal("timer survived delete")
	}
	if err := e.uc.DeleteSchedule(ctx, pending.ID); !errors.Is(err, domain.ErrScheduleNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestListSchedules_LatestFirst(t *testing.T) {
	e := newEnv(t)
	e.add(t, maps, now.Add(time.Hour))
	e.add(t, mail, now.Add(3*time.Hour))

	list, err := e.uc.ListSchedules(context.Background())
	if err != nil {
		t.Fatalf("ListSchedules: %v", err)
	}
	if len(list) != 2 || list[0].PackageName != mail {
		t.Fatalf("list = %+v", list)
	}
}

func TestWatchSchedules_CoalescesBursts(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := e.uc.WatchSchedules(ctx)
	first := recv(t, ch)
	if len(first) != 0 {
		t.Fatalf("initial snapshot has %d schedules", len(first))
	}

	e.add(t, maps, now.Add(time.Hour))
	e.add(t, mail, now.Add(2*time.Hour))
	s := e.add(t, maps, now.Add(3*time.Hour))

	if got := recv(t, ch); len(got) != 3 {
		t.Fatalf("burst snapshot has %d schedules, want 3", len(got))
	}

	_ = e.uc.CancelSchedule(ctx, s.ID)
	got := recv(t, ch)
	if got[0].Status != domain.StatusCancelled {
		t.Fatalf("latest schedule status = %s, want CANCELLED", got[0].Status)
	}

	// no write, no snapshot
	_ = e.uc.CancelSchedule(ctx, s.ID)
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot after no-op cancel: %d schedules", len(snap))
	case <-time.After(100 * time.Millisecond):
	}
}

func recv(t *testing.T, ch <-chan []*domain.Schedule) []*domain.Schedule {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("stream closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}
	return nil
}

func TestInstalledApps(t *testing.T) {
	e := newEnv(t)
	apps, err := e.uc.InstalledApps(context.Background())
	if err != nil {
		t.Fatalf("InstalledApps: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("got %d apps, want 2", len(apps))
	}
}

var _ repository.ScheduleRepository = (*faultyRepo)(nil)
