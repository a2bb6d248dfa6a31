package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
)

// ScheduleRepository is the schedule table. Every method is a single-row
// operation; none of them spans more than one record.
type ScheduleRepository interface {
	// Insert stores s and returns the assigned id. An unknown status fails with
	// domain.ErrInvalidStatus before anything is written; any other constraint
	// violation maps to domain.ErrConstraintViolation. Neither is retried.
	Insert(ctx context.Context, s *domain.Schedule) (int64, error)

	// List returns every schedule ordered by scheduled time, latest first.
	List(ctx context.Context) ([]*domain.Schedule, error)

	// FindByID returns nil, nil when no row has the id.
	FindByID(ctx context.Context, id int64) (*domain.Schedule, error)

	// Update replaces the mutable columns of a PENDING row.
	// Returns domain.ErrScheduleNotFound or domain.ErrScheduleNotPending when nothing was written.
	Update(ctx context.Context, s *domain.Schedule) error

	// UpdateStatus moves a PENDING row to status. Rows in any other state are
	// left untouched and transitioned is false; that is not an error.
	UpdateStatus(ctx context.Context, id int64, status domain.Status, executedAt *time.Time) (transitioned bool, err error)

	// Delete removes the row. Deleting a missing id is a no-op.
	Delete(ctx context.Context, id int64) error

	// CountPendingBetween counts PENDING rows with scheduled time in
	// [start, end], ignoring excludeID.
	CountPendingBetween(ctx context.Context, start, end time.Time, excludeID int64) (int, error)
}

// NoExclusion is passed to CountPendingBetween when no row should be ignored.
const NoExclusion int64 = -1
