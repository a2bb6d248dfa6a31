package alarm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/alarm"
)

func newClock(t *testing.T, opts alarm.ClockOptions) (*alarm.Clock, <-chan alarm.Payload) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	fired := make(chan alarm.Payload, 16)
	c := alarm.NewClock(ctx, func(p alarm.Payload) { fired <- p }, opts)
	return c, fired
}

func TestClock_ExactFires(t *testing.T) {
	c, fired := newClock(t, alarm.ClockOptions{})

	p := alarm.Payload{ScheduleID: 7, PackageName: "com.example.a"}
	if err := c.SetExact(time.Now().Add(30*time.Millisecond), p); err != nil {
		t.Fatalf("set exact: %v", err)
	}

	select {
	case got := <-fired:
		if got != p {
			t.Fatalf("payload = %+v, want %+v", got, p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alarm did not fire")
	}

	if _, ok := c.Pending(7); ok {
		t.Fatal("fired alarm still pending")
	}
}

func TestClock_CancelPreventsFiring(t *testing.T) {
	c, fired := newClock(t, alarm.ClockOptions{})

	_ = c.SetExact(time.Now().Add(50*time.Millisecond), alarm.Payload{ScheduleID: 1})
	c.Cancel(1)
	c.Cancel(99) // never armed

	if _, ok := c.Pending(1); ok {
		t.Fatal("cancelled alarm still pending")
	}
	select {
	case p := <-fired:
		t.Fatalf("cancelled alarm fired: %+v", p)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestClock_SetReplacesExistingRegistration(t *testing.T) {
	c, fired := newClock(t, alarm.ClockOptions{})

	far := time.Now().Add(time.Hour)
	_ = c.SetExact(far, alarm.Payload{ScheduleID: 3, PackageName: "old"})
	_ = c.SetExact(time.Now().Add(20*time.Millisecond), alarm.Payload{ScheduleID: 3, PackageName: "new"})

	select {
	case got := <-fired:
		if got.PackageName != "new" {
			t.Fatalf("fired %q, want new", got.PackageName)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replacement did not fire")
	}
	if _, ok := c.Pending(3); ok {
		t.Fatal("old registration survived replacement")
	}
}

func TestClock_ExactDeniedWithoutPermission(t *testing.T) {
	c, _ := newClock(t, alarm.ClockOptions{ExactAllowed: func() bool { return false }})

	if c.CanScheduleExact() {
		t.Fatal("CanScheduleExact = true, want false")
	}
	err := c.SetExact(time.Now().Add(time.Hour), alarm.Payload{ScheduleID: 1})
	if !errors.Is(err, alarm.ErrExactNotPermitted) {
		t.Fatalf("err = %v, want ErrExactNotPermitted", err)
	}
}

func TestClock_InexactFiresAtOrAfterRequestedInstant(t *testing.T) {
	slack := time.Minute
	c, _ := newClock(t, alarm.ClockOptions{InexactSlack: slack})

	at := time.Now().Add(time.Hour)
	if err := c.SetInexact(at, alarm.Payload{ScheduleID: 5}); err != nil {
		t.Fatalf("set inexact: %v", err)
	}

	got, ok := c.Pending(5)
	if !ok {
		t.Fatal("inexact alarm not pending")
	}
	if got.Before(at) {
		t.Fatalf("trigger %v before requested %v", got, at)
	}
	if got.Sub(at) >= slack {
		t.Fatalf("trigger %v more than one slack after %v", got, at)
	}
}
