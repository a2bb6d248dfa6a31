// Package memory is a process-local schedule table for STORE_DRIVER=memory and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
)

type ScheduleRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.Schedule
}

func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{rows: make(map[int64]domain.Schedule)}
}

func (r *ScheduleRepository) Insert(_ context.Context, s *domain.Schedule) (int64, error) {
	if _, err := domain.ParseStatus(string(s.Status)); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	row := clone(s)
	row.ID = r.nextID
	r.rows[row.ID] = row
	return row.ID, nil
}

func (r *ScheduleRepository) List(_ context.Context) ([]*domain.Schedule, error) {
	r.mu.Lock()
	out := make([]*domain.Schedule, 0, len(r.rows))
	for _, row := range r.rows {
		c := clone(&row)
		out = append(out, &c)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b *domain.Schedule) int {
		if c := b.ScheduledTime.Compare(a.ScheduledTime); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (r *ScheduleRepository) FindByID(_ context.Context, id int64) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	c := clone(&row)
	return &c, nil
}

func (r *ScheduleRepository) Update(_ context.Context, s *domain.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[s.ID]
	if !ok {
		return domain.ErrScheduleNotFound
	}
	if !row.IsPending() {
		return domain.ErrScheduleNotPending
	}
	row.PackageName = s.PackageName
	row.AppName = s.AppName
	row.AppIconPath = cloneString(s.AppIconPath)
	row.ScheduledTime = domain.UnixMilli(s.ScheduledTime)
	r.rows[s.ID] = row
	return nil
}

func (r *ScheduleRepository) UpdateStatus(_ context.Context, id int64, status domain.Status, executedAt *time.Time) (bool, error) {
	if !domain.StatusPending.CanTransitionTo(status) {
		return false, domain.ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || !row.IsPending() {
		return false, nil
	}
	row.Status = status
	row.ExecutedAt = cloneTime(executedAt)
	r.rows[id] = row
	return true, nil
}

func (r *ScheduleRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	delete(r.rows, id)
	r.mu.Unlock()
	return nil
}

func (r *ScheduleRepository) CountPendingBetween(_ context.Context, start, end time.Time, excludeID int64) (int, error) {
	lo, hi := start.UnixMilli(), end.UnixMilli()

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, row := range r.rows {
		if id == excludeID || !row.IsPending() {
			continue
		}
		if ms := row.ScheduledTime.UnixMilli(); ms >= lo && ms <= hi {
			n++
		}
	}
	return n, nil
}

// clone copies s at the table's millisecond resolution so callers never share pointers with stored rows.
func clone(s *domain.Schedule) domain.Schedule {
	c := *s
	c.ScheduledTime = domain.UnixMilli(s.ScheduledTime)
	c.CreatedAt = domain.UnixMilli(s.CreatedAt)
	c.AppIconPath = cloneString(s.AppIconPath)
	c.ExecutedAt = cloneTime(s.ExecutedAt)
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := domain.UnixMilli(*t)
	return &v
}
