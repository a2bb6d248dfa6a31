package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrScheduleNotFound    = errors.New("schedule not found")
	ErrTimeInPast          = errors.New("the scheduled time must be in the future")
	ErrTimeConflict        = errors.New("time conflicting with another schedule")
	ErrScheduleNotPending  = errors.New("schedule is not pending")
	ErrConstraintViolation = errors.New("schedule violates a storage constraint")
	ErrInvalidStatus       = errors.New("invalid schedule status")
	ErrTargetNotLaunchable = errors.New("target application has no launchable entry point")
)

// ConflictWindow is the default half-width of the interval around a pending
// schedule's instant in which no other pending schedule may fall.
const ConflictWindow = 60 * time.Second

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuted  Status = "EXECUTED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// ParseStatus maps a persisted status string onto the closed set of statuses.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusExecuted, StatusCancelled, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s Status) IsTerminal() bool {
	return s == StatusExecuted || s == StatusCancelled || s == StatusFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
// Only PENDING may move, and only into a terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

// StampsExecutedAt reports whether entering s records the outcome instant.
func (s Status) StampsExecutedAt() bool {
	return s == StatusExecuted || s == StatusFailed
}

// Schedule is a persisted intent to launch PackageName at ScheduledTime.
// AppName is captured at creation and never re-resolved.
type Schedule struct {
	ID            int64
	PackageName   string
	AppName       string
	AppIconPath   *string
	ScheduledTime time.Time
	Status        Status
	CreatedAt     time.Time
	ExecutedAt    *time.Time // set on EXECUTED and FAILED
}

func (s *Schedule) IsPending() bool {
	return s.Status == StatusPending
}

// Equal compares every persisted field. Used to suppress identical list snapshots.
func (s *Schedule) Equal(o *Schedule) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.ID == o.ID &&
		s.PackageName == o.PackageName &&
		s.AppName == o.AppName &&
		equalStringPtr(s.AppIconPath, o.AppIconPath) &&
		s.ScheduledTime.Equal(o.ScheduledTime) &&
		s.Status == o.Status &&
		s.CreatedAt.Equal(o.CreatedAt) &&
		equalTimePtr(s.ExecutedAt, o.ExecutedAt)
}

// EqualSchedules compares two list snapshots element by element.
func EqualSchedules(a, b []*Schedule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// UnixMilli truncates t to millisecond precision, the resolution the table stores.
func UnixMilli(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli())
}
