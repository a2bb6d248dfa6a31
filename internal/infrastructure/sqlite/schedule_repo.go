package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/domain"
	sqlitedrv "modernc.org/sqlite"
)

// primary result code shared by every SQLITE_CONSTRAINT_* extended code
const sqliteConstraint = 19

const scheduleColumns = `id, package_name, app_name, app_icon_path, scheduled_time, status, created_at, executed_at`

type ScheduleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewScheduleRepository(db *sql.DB, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger.With("component", "schedule_repo")}
}

func (r *ScheduleRepository) Insert(ctx context.Context, s *domain.Schedule) (int64, error) {
	if _, err := domain.ParseStatus(string(s.Status)); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO app_schedules (package_name, app_name, app_icon_path, scheduled_time, status, created_at, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.PackageName, s.AppName, nullString(s.AppIconPath), s.ScheduledTime.UnixMilli(),
		string(s.Status), s.CreatedAt.UnixMilli(), nullMillis(s.ExecutedAt),
	)
	if err != nil {
		var sqliteErr *sqlitedrv.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqliteConstraint {
			return 0, domain.ErrConstraintViolation
		}
		return 0, fmt.Errorf("insert schedule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (r *ScheduleRepository) List(ctx context.Context) ([]*domain.Schedule, error) {
	rows, err := r.db.QueryContext(ctx,
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
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM app_schedules WHERE id = ?`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, domain.ErrScheduleNotFound) {
		return nil, nil
	}
	return s, err
}

func (r *ScheduleRepository) Update(ctx context.Context, s *domain.Schedule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE app_schedules
		SET package_name = ?, app_name = ?, app_icon_path = ?, scheduled_time = ?
		WHERE id = ? AND status = 'PENDING'`,
		s.PackageName, s.AppName, nullString(s.AppIconPath), s.ScheduledTime.UnixMilli(), s.ID,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
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

	res, err := r.db.ExecContext(ctx,
		`UPDATE app_schedules SET status = ?, executed_at = ? WHERE id = ? AND status = 'PENDING'`,
		string(status), nullMillis(executedAt), id)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		r.logger.Debug("status update skipped, schedule not pending", "schedule_id", id, "status", status)
	}
	return n > 0, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM app_schedules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) CountPendingBetween(ctx context.Context, start, end time.Time, excludeID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM app_schedules
		WHERE status = 'PENDING' AND scheduled_time BETWEEN ? AND ? AND id != ?`,
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
		icon       sql.NullString
		scheduled  int64
		status     string
		createdAt  int64
		executedAt sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.PackageName, &s.AppName, &icon, &scheduled, &status, &createdAt, &executedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	if icon.Valid {
		s.AppIconPath = &icon.String
	}
	if executedAt.Valid {
		t := time.UnixMilli(executedAt.Int64)
		s.ExecutedAt = &t
	}
	return &s, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
