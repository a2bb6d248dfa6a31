// Package repotest holds the behaviour every ScheduleRepository backend must share.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/repository"
)

// Run exercises repo constructors against the shared contract. newRepo must
// return an empty table on every call.
func Run(t *testing.T, newRepo func(t *testing.T) repository.ScheduleRepository) {
	t.Run("InsertAndFind", func(t *testing.T) { testInsertAndFind(t, newRepo(t)) })
	t.Run("InsertRejectsUnknownStatus", func(t *testing.T) { testInsertInvalidStatus(t, newRepo(t)) })
	t.Run("FindMissingReturnsNil", func(t *testing.T) { testFindMissing(t, newRepo(t)) })
	t.Run("ListOrderedByScheduledTimeDesc", func(t *testing.T) { testListOrder(t, newRepo(t)) })
	t.Run("UpdateOnlyWhilePending", func(t *testing.T) { testUpdate(t, newRepo(t)) })
	t.Run("UpdateStatusForwardOnly", func(t *testing.T) { testUpdateStatus(t, newRepo(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("CountPendingBetween", func(t *testing.T) { testCountPending(t, newRepo(t)) })
}

// Base is the reference instant the contract builds its rows around.
var Base = time.UnixMilli(1_800_000_000_000)

// NewPending builds a PENDING schedule for pkg at the given instant.
func NewPending(pkg string, at time.Time) *domain.Schedule {
	return &domain.Schedule{
		PackageName:   pkg,
		AppName:       "App " + pkg,
		ScheduledTime: at,
		Status:        domain.StatusPending,
		CreatedAt:     Base.Add(-time.Hour),
	}
}

func mustInsert(t *testing.T, repo repository.ScheduleRepository, s *domain.Schedule) int64 {
	t.Helper()
	id, err := repo.Insert(context.Background(), s)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func mustFind(t *testing.T, repo repository.ScheduleRepository, id int64) *domain.Schedule {
	t.Helper()
	s, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find %d: %v", id, err)
	}
	if s == nil {
		t.Fatalf("find %d: not found", id)
	}
	return s
}

func testInsertAndFind(t *testing.T, repo repository.ScheduleRepository) {
	icon := "/icons/mail.png"
	in := NewPending("com.example.mail", Base)
	in.AppIconPath = &icon

	id := mustInsert(t, repo, in)
	if id <= 0 {
		t.Fatalf("id = %d, want positive", id)
	}

	got := mustFind(t, repo, id)
	if got.ID != id || got.PackageName != in.PackageName || got.AppName != in.AppName {
		t.Errorf("got %+v", got)
	}
	if !got.ScheduledTime.Equal(Base) {
		t.Errorf("scheduled time = %v, want %v", got.ScheduledTime, Base)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("status = %s, want PENDING", got.Status)
	}
	if got.AppIconPath == nil || *got.AppIconPath != icon {
		t.Errorf("icon = %v, want %q", got.AppIconPath, icon)
	}
	if got.ExecutedAt != nil {
		t.Errorf("executed at = %v, want nil", got.ExecutedAt)
	}

	second := mustInsert(t, repo, NewPending("com.example.maps", Base.Add(time.Hour)))
	if second == id {
		t.Fatalf("ids must be unique, both %d", id)
	}
}

func testInsertInvalidStatus(t *testing.T, repo repository.ScheduleRepository) {
	ctx := context.Background()
	in := NewPending("com.example.mail", Base)
	in.Status = "pending"

	if _, err := repo.Insert(ctx, in); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("%d rows written by a rejected insert", len(list))
	}
}

func testFindMissing(t *testing.T, repo repository.ScheduleRepository) {
	s, err := repo.FindByID(context.Background(), 4242)
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if s != nil {
		t.Fatalf("got %+v, want nil", s)
	}
}

func testListOrder(t *testing.T, repo repository.ScheduleRepository) {
	mustInsert(t, repo, NewPending("a", Base.Add(1*time.Hour)))
	mustInsert(t, repo, NewPending("b", Base.Add(3*time.Hour)))
	mustInsert(t, repo, NewPending("c", Base.Add(2*time.Hour)))

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	want := []string{"b", "c", "a"}
	for i, s := range list {
		if s.PackageName != want[i] {
			t.Errorf("list[%d] = %s, want %s", i, s.PackageName, want[i])
		}
	}
}

func testUpdate(t *testing.T, repo repository.ScheduleRepository) {
	ctx := context.Background()
	id := mustInsert(t, repo, NewPending("a", Base))

	s := mustFind(t, repo, id)
	s.ScheduledTime = Base.Add(30 * time.Minute)
	if err := repo.Update(ctx, s); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := mustFind(t, repo, id); !got.ScheduledTime.Equal(Base.Add(30*time.Minute)) {
		t.Errorf("scheduled time = %v after update", got.ScheduledTime)
	}

	missing := NewPending("x", Base)
	missing.ID = 9999
	if err := repo.Update(ctx, missing); !errors.Is(err, domain.ErrScheduleNotFound) {
		t.Errorf("update missing: err = %v, want ErrScheduleNotFound", err)
	}

	if _, err := repo.UpdateStatus(ctx, id, domain.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	s.ScheduledTime = Base.Add(2 * time.Hour)
	if err := repo.Update(ctx, s); !errors.Is(err, domain.ErrScheduleNotPending) {
		t.Errorf("update cancelled: err = %v, want ErrScheduleNotPending", err)
	}
}

func testUpdateStatus(t *testing.T, repo repository.ScheduleRepository) {
	ctx := context.Background()
	id := mustInsert(t, repo, NewPending("a", Base))
	at := Base.Add(time.Second)

	ok, err := repo.UpdateStatus(ctx, id, domain.StatusExecuted, &at)
	if err != nil || !ok {
		t.Fatalf("first transition: ok=%v err=%v", ok, err)
	}
	got := mustFind(t, repo, id)
	if got.Status != domain.StatusExecuted {
		t.Errorf("status = %s, want EXECUTED", got.Status)
	}
	if got.ExecutedAt == nil || !got.ExecutedAt.Equal(at) {
		t.Errorf("executed at = %v, want %v", got.ExecutedAt, at)
	}

	later := at.Add(time.Minute)
	ok, err = repo.UpdateStatus(ctx, id, domain.StatusFailed, &later)
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if ok {
		t.Error("terminal row must not transition again")
	}
	if got := mustFind(t, repo, id); got.Status != domain.StatusExecuted || !got.ExecutedAt.Equal(at) {
		t.Errorf("terminal row changed: %+v", got)
	}

	if _, err := repo.UpdateStatus(ctx, id, domain.StatusPending, nil); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("transition to PENDING: err = %v, want ErrInvalidStatus", err)
	}

	ok, err = repo.UpdateStatus(ctx, 9999, domain.StatusFailed, &later)
	if err != nil || ok {
		t.Errorf("missing row: ok=%v err=%v, want false, nil", ok, err)
	}
}

func testDelete(t *testing.T, repo repository.ScheduleRepository) {
	ctx := context.Background()
	id := mustInsert(t, repo, NewPending("a", Base))

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	s, err := repo.FindByID(ctx, id)
	if err != nil || s != nil {
		t.Fatalf("after delete: s=%v err=%v", s, err)
	}
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func testCountPending(t *testing.T, repo repository.ScheduleRepository) {
	ctx := context.Background()
	window := domain.ConflictWindow

	edge := mustInsert(t, repo, NewPending("edge", Base.Add(window)))
	mustInsert(t, repo, NewPending("outside", Base.Add(window+time.Millisecond)))
	cancelled := mustInsert(t, repo, NewPending("cancelled", Base))
	if _, err := repo.UpdateStatus(ctx, cancelled, domain.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	n, err := repo.CountPendingBetween(ctx, Base.Add(-window), Base.Add(window), repository.NoExclusion)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1 (inclusive bound, pending only)", n)
	}

	n, err = repo.CountPendingBetween(ctx, Base.Add(-window), Base.Add(window), edge)
	if err != nil {
		t.Fatalf("count excluding: %v", err)
	}
	if n != 0 {
		t.Errorf("count excluding self = %d, want 0", n)
	}
}
