package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"PENDING", "EXECUTED", "CANCELLED", "FAILED"} {
		got, err := domain.ParseStatus(s)
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q", s, got)
		}
	}

	if _, err := domain.ParseStatus("pending"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("lowercase status: err = %v, want ErrInvalidStatus", err)
	}
	if _, err := domain.ParseStatus(""); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("empty status: err = %v, want ErrInvalidStatus", err)
	}
}

func TestCanTransitionTo_ForwardOnly(t *testing.T) {
	all := []domain.Status{domain.StatusPending, domain.StatusExecuted, domain.StatusCancelled, domain.StatusFailed}

	for _, from := range all {
		for _, to := range all {
			want := from == domain.StatusPending && to != domain.StatusPending
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStampsExecutedAt(t *testing.T) {
	if !domain.StatusExecuted.StampsExecutedAt() || !domain.StatusFailed.StampsExecutedAt() {
		t.Error("EXECUTED and FAILED must stamp executedAt")
	}
	if domain.StatusCancelled.StampsExecutedAt() || domain.StatusPending.StampsExecutedAt() {
		t.Error("CANCELLED and PENDING must not stamp executedAt")
	}
}

func TestEqualSchedules(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	icon := "/icons/a.png"
	a := []*domain.Schedule{{ID: 1, PackageName: "p", AppName: "A", AppIconPath: &icon, ScheduledTime: at, Status: domain.StatusPending, CreatedAt: at}}

	sameIcon := "/icons/a.png"
	b := []*domain.Schedule{{ID: 1, PackageName: "p", AppName: "A", AppIconPath: &sameIcon, ScheduledTime: at, Status: domain.StatusPending, CreatedAt: at}}
	if !domain.EqualSchedules(a, b) {
		t.Fatal("expected snapshots with equal fields to compare equal")
	}

	b[0].Status = domain.StatusCancelled
	if domain.EqualSchedules(a, b) {
		t.Fatal("expected status change to break equality")
	}

	if domain.EqualSchedules(a, nil) {
		t.Fatal("expected length mismatch to break equality")
	}
}
