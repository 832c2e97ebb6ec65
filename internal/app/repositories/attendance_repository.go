package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/dberrors"
	"github.com/sga/schoolhub/internal/pkg/logger"
)

// IAttendanceRepository defines attendance persistence
type IAttendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) error
	ListByBatchAndDate(ctx context.Context, batchID int64, date time.Time) (map[int64]*models.Attendance, error)
	ListByStudent(ctx context.Context, studentID int64, from, to time.Time) ([]*models.Attendance, error)
	MonthlyCounts(ctx context.Context, batchID int64, from, to time.Time) (map[int64]models.AttendanceTally, error)
	DailyCounts(ctx context.Context, date time.Time) (map[int64]models.DayCounts, error)
	DeleteByStudent(ctx context.Context, studentID int64) error
}

var attendanceColumns = []string{
	"a.id", "a.student_id", "a.date", "a.status", "a.remarks", "a.marked_by", "a.created_at", "a.updated_at",
}

// AttendanceRepository handles attendance database operations
type AttendanceRepository struct {
	db *db.PostgresDB
}

// NewAttendanceRepository creates a new AttendanceRepository
func NewAttendanceRepository(pg *db.PostgresDB) *AttendanceRepository {
	return &AttendanceRepository{db: pg}
}

func scanAttendance(row pgx.Row) (*models.Attendance, error) {
	a := &models.Attendance{}
	if err := row.Scan(&a.ID, &a.StudentID, &a.Date, &a.Status, &a.Remarks, &a.MarkedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// Upsert writes the record for (student, date), replacing status, remarks and marker of an existing one.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) error {
	sql, args, err := buildSQL(psql.Insert("attendance").
		Columns("student_id", "date", "status", "remarks", "marked_by").
		Values(record.StudentID, record.Date, record.Status, record.Remarks, record.MarkedBy).
		Suffix(`ON CONFLICT ON CONSTRAINT attendance_student_date_key DO UPDATE
			SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, marked_by = EXCLUDED.marked_by, updated_at = NOW()
			RETURNING id, created_at, updated_at`), "upsert attendance")
	if err != nil {
		return err
	}

	err = r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrStudentNotFound
		}
		logger.Error().Err(err).Int64("studentID", record.StudentID).Msg("Error upserting attendance")
		return fmt.Errorf("error upserting attendance: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) query(ctx context.Context, q squirrel.SelectBuilder, op string) ([]*models.Attendance, error) {
	sql, args, err := buildSQL(q, op)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error querying attendance")
		return nil, fmt.Errorf("error %s: %w", op, err)
	}
	defer rows.Close()

	records := make([]*models.Attendance, 0)
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning attendance: %w", err)
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

// ListByBatchAndDate returns the records of a batch's current students on date, keyed by student id
func (r *AttendanceRepository) ListByBatchAndDate(ctx context.Context, batchID int64, date time.Time) (map[int64]*models.Attendance, error) {
	records, err := r.query(ctx, psql.Select(attendanceColumns...).
		From("attendance a").
		Join("students s ON s.id = a.student_id").
		Where(squirrel.Eq{"s.batch_id": batchID, "a.date": date}), "listing batch attendance")
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*models.Attendance, len(records))
	for _, a := range records {
		out[a.StudentID] = a
	}
	return out, nil
}

// ListByStudent returns a student's records between from and to inclusive, newest first
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID int64, from, to time.Time) ([]*models.Attendance, error) {
	return r.query(ctx, psql.Select(attendanceColumns...).
		From("attendance a").
		Where(squirrel.Eq{"a.student_id": studentID}).
		Where(squirrel.GtOrEq{"a.date": from}).
		Where(squirrel.LtOrEq{"a.date": to}).
		OrderBy("a.date DESC"), "listing student attendance")
}

// MonthlyCounts tallies marked and present days per active student of a batch in [from, to]
func (r *AttendanceRepository) MonthlyCounts(ctx context.Context, batchID int64, from, to time.Time) (map[int64]models.AttendanceTally, error) {
	sql, args, err := buildSQL(psql.Select(
		"a.student_id",
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE a.status IN ('PRESENT', 'LATE'))",
	).
		From("attendance a").
		Join("students s ON s.id = a.student_id").
		Where(squirrel.Eq{"s.batch_id": batchID}).
		Where(squirrel.GtOrEq{"a.date": from}).
		Where(squirrel.LtOrEq{"a.date": to}).
		GroupBy("a.student_id"), "monthly attendance")
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error counting monthly attendance: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]models.AttendanceTally)
	for rows.Next() {
		var id int64
		var t models.AttendanceTally
		if err := rows.Scan(&id, &t.Total, &t.Present); err != nil {
			return nil, fmt.Errorf("error scanning attendance tally: %w", err)
		}
		out[id] = t
	}
	return out, rows.Err()
}

// DailyCounts summarises date's attendance per batch
func (r *AttendanceRepository) DailyCounts(ctx context.Context, date time.Time) (map[int64]models.DayCounts, error) {
	sql, args, err := buildSQL(psql.Select(
		"s.batch_id",
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE a.status IN ('PRESENT', 'LATE'))",
		"COUNT(*) FILTER (WHERE a.status = 'ABSENT')",
	).
		From("attendance a").
		Join("students s ON s.id = a.student_id").
		Where(squirrel.Eq{"a.date": date}).
		Where(squirrel.NotEq{"s.batch_id": nil}).
		GroupBy("s.batch_id"), "daily attendance")
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error counting daily attendance: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]models.DayCounts)
	for rows.Next() {
		var batchID int64
		var c models.DayCounts
		if err := rows.Scan(&batchID, &c.Marked, &c.Present, &c.Absent); err != nil {
			return nil, fmt.Errorf("error scanning day counts: %w", err)
		}
		out[batchID] = c
	}
	return out, rows.Err()
}

// DeleteByStudent removes all attendance of a student
func (r *AttendanceRepository) DeleteByStudent(ctx context.Context, studentID int64) error {
	if _, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM attendance WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("error deleting student attendance: %w", err)
	}
	return nil
}
