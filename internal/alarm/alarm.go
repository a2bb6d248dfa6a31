// Package alarm is the one-shot wake-timer facility and its in-process implementation.
//
// A Facility holds at most one registration per schedule id: setting a timer
// for an id that already has one replaces it. Registrations live only as long
// as the process, so they are rebuilt from the schedule table on every start.
package alarm

import (
	"errors"
	"time"
)

var (
	ErrExactNotPermitted = errors.New("exact alarm permission not granted")
	ErrStopped           = errors.New("alarm facility stopped")
)

// Payload travels opaquely through the facility back to the firing handler.
type Payload struct {
	ScheduleID  int64
	PackageName string
}

type Facility interface {
	// CanScheduleExact reports whether SetExact is currently permitted.
	CanScheduleExact() bool
	// SetExact registers a timer that fires as close to at as possible.
	SetExact(at time.Time, p Payload) error
	// SetInexact registers a timer that fires at or after at.
	SetInexact(at time.Time, p Payload) error
	// Cancel drops the registration for id. Unknown ids are ignored.
	Cancel(id int64)
	// Pending returns the trigger instant registered for id.
	Pending(id int64) (time.Time, bool)
}
