package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const scheduleColumns = `id, package_name, app_name, app_icon_path, scheduled_time, status, created_at, executed_at`

type ScheduleRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewScheduleRepository(pool *pgxpool.Pool, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{pool: pool, logger: logger.With("component", "schedule_repo")}
}

func (r *ScheduleRepository) Insert(ctx context.Context, s *domain.Schedule) (int64, error) {
	if _, err := domain.ParseStatus(string(s.Status)); err != nil {
		return 0, err
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO app_schedules (package_name, app_name, app_icon_path, scheduled_time, status, created_at, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		s.PackageName, s.AppName, s.AppIconPath, s.ScheduledTime.UnixMilli(),
		string(s.Status), s.CreatedAt.UnixMilli(), millisPtr(s.ExecutedAt),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23xxx: integrity constraint violation
		if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
			return 0, domain.ErrConstraintViolation
		}
		return 0, fmt.Errorf("insert schedule: %w", err)
	}
	return id, nil
}

func (r *ScheduleRepository) List(ctx context.Context) ([]*domain.Schedule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+scheduleColumns+` FROM app_schedules ORDER BY scheduled_time DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

func (r *ScheduleRepository) FindByID(ctx context.Context, id int64) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM app_schedules WHERE id = $1`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, domain.ErrScheduleNotFound) {
		return nil, nil
	}
	return s, err
}

func (r *ScheduleRepository) Update(ctx context.Context, s *domain.Schedule) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE app_schedules
		SET package_name = $2, app_name = $3, app_icon_path = $4, scheduled_time = $5
		WHERE id = $1 AND status = 'PENDING'`,
		s.ID, s.PackageName, s.AppName, s.AppIconPath, s.ScheduledTime.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish not-found vs no-longer-pending
		existing, err := r.FindByID(ctx, s.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrScheduleNotFound
		}
		return domain.ErrScheduleNotPending
	}
	return nil
}

func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id int64, status domain.Status, executedAt *time.Time) (bool, error) {
	if !domain.StatusPending.CanTransitionTo(status) {
		return false, fmt.Errorf("update status to %s: %w", status, domain.ErrInvalidStatus)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE app_schedules SET status = $2, executed_at = $3 WHERE id = $1 AND status = 'PENDING'`,
		id, string(status), millisPtr(executedAt))
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug("status update skipped, schedule not pending", "schedule_id", id, "status", status)
		return false, nil
	}
	return true, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM app_schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) CountPendingBetween(ctx context.Context, start, end time.Time, excludeID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM app_schedules
		WHERE status = 'PENDING' AND scheduled_time BETWEEN $1 AND $2 AND id != $3`,
		start.UnixMilli(), end.UnixMilli(), excludeID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending schedules: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var (
		s          domain.Schedule
		scheduled  int64
		status     string
		createdAt  int64
		executedAt *int64
	)
	err := row.Scan(&s.ID, &s.PackageName, &s.AppName, &s.AppIconPath, &scheduled, &status, &createdAt, &executedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("scan schedule %d: %w", s.ID, err)
	}
	s.Status = st
	s.ScheduledTime = time.UnixMilli(scheduled)
	s.CreatedAt = time.UnixMilli(createdAt)
	if executedAt != nil {
		t := time.UnixMilli(*executedAt)
		s.ExecutedAt = &t
	}
	return &s, nil
}

func millisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
