// Package store decorates a ScheduleRepository with live, push-updated list snapshots.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/repository"
)

// Store implements repository.ScheduleRepository. Successful writes invalidate
// every watcher, which re-reads the list and delivers a fresh snapshot.
type Store struct {
	repository.ScheduleRepository

	logger *slog.Logger

	mu       sync.Mutex
	watchers map[*watcher]struct{}
}

type watcher struct {
	dirty chan struct{}
}

func New(repo repository.ScheduleRepository, logger *slog.Logger) *Store {
	return &Store{
		ScheduleRepository: repo,
		logger:             logger.With("component", "store"),
		watchers:           make(map[*watcher]struct{}),
	}
}

func (s *Store) Insert(ctx context.Context, sc *domain.Schedule) (int64, error) {
	id, err := s.ScheduleRepository.Insert(ctx, sc)
	if err == nil {
		s.invalidate()
	}
	return id, err
}

func (s *Store) Update(ctx context.Context, sc *domain.Schedule) error {
	err := s.ScheduleRepository.Update(ctx, sc)
	if err == nil {
		s.invalidate()
	}
	return err
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.Status, executedAt *time.Time) (bool, error) {
	ok, err := s.ScheduleRepository.UpdateStatus(ctx, id, status, executedAt)
	if ok {
		s.invalidate()
	}
	return ok, err
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	err := s.ScheduleRepository.Delete(ctx, id)
	if err == nil {
		s.invalidate()
	}
	return err
}

// Watch delivers the current list immediately and again after every write,
// until ctx is done. Writes that land while a snapshot is being read or
// delivered collapse into a single re-read. A failed read is logged and
// retried on the next write.
func (s *Store) Watch(ctx context.Context) <-chan []*domain.Schedule {
	w := &watcher{dirty: make(chan struct{}, 1)}
	w.dirty <- struct{}{}

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	out := make(chan []*domain.Schedule)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.watchers, w)
			s.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.dirty:
			}

			list, err := s.ScheduleRepository.List(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.ErrorContext(ctx, "watch list schedules", "error", err)
				continue
			}

			select {
			case out <- list:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *Store) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.watchers {
		select {
		case w.dirty <- struct{}{}:
		default: // already marked
		}
	}
}
