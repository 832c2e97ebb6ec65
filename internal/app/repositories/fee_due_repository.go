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

// IFeeDueRepository defines persistence of the explicit due schedule
type IFeeDueRepository interface {
	Create(ctx context.Context, due *models.FeeDue) error
	GetByID(ctx context.Context, id int64) (*models.FeeDue, error)
	LockByID(ctx context.Context, id int64) (*models.FeeDue, error)
	Update(ctx context.Context, due *models.FeeDue) error
	ListByStudent(ctx context.Context, studentID int64) ([]*models.FeeDue, error)
	ListOverdue(ctx context.Context, today time.Time) ([]*models.FeeDue, error)
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)
	OutstandingTotal(ctx context.Context) (float64, error)
	DeleteByStudent(ctx context.Context, studentID int64) error
}

var feeDueColumns = []string{
	"id", "student_id", "fee_structure_id", "amount", "due_date", "paid_amount", "status", "created_at", "updated_at",
}

// FeeDueRepository handles fee due database operations
type FeeDueRepository struct {
	db *db.PostgresDB
}

// NewFeeDueRepository creates a new FeeDueRepository
func NewFeeDueRepository(pg *db.PostgresDB) *FeeDueRepository {
	return &FeeDueRepository{db: pg}
}

func scanFeeDue(row pgx.Row) (*models.FeeDue, error) {
	d := &models.FeeDue{}
	err := row.Scan(&d.ID, &d.StudentID, &d.FeeStructureID, &d.Amount, &d.DueDate, &d.PaidAmount, &d.Status,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *FeeDueRepository) query(ctx context.Context, q squirrel.SelectBuilder, op string) ([]*models.FeeDue, error) {
	sql, args, err := buildSQL(q, op)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error querying fee dues")
		return nil, fmt.Errorf("error %s: %w", op, err)
	}
	defer rows.Close()

	out := make([]*models.FeeDue, 0)
	for rows.Next() {
		d, err := scanFeeDue(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning fee due: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *FeeDueRepository) getOne(ctx context.Context, id int64, suffix, op string) (*models.FeeDue, error) {
	q := psql.Select(feeDueColumns...).From("fee_dues").Where(squirrel.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := buildSQL(q, op)
	if err != nil {
		return nil, err
	}
	d, err := scanFeeDue(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrFeeDueNotFound, op)
	}
	return d, nil
}

// Create inserts a due
func (r *FeeDueRepository) Create(ctx context.Context, due *models.FeeDue) error {
	sql, args, err := buildSQL(psql.Insert("fee_dues").
		Columns("student_id", "fee_structure_id", "amount", "due_date", "paid_amount", "status").
		Values(due.StudentID, due.FeeStructureID, due.Amount, due.DueDate, due.PaidAmount, due.Status).
		Suffix("RETURNING id, created_at, updated_at"), "create fee due")
	if err != nil {
		return err
	}
	err = r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&due.ID, &due.CreatedAt, &due.UpdatedAt)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.NewResourceNotFoundError("Student or fee structure not found")
		}
		logger.Error().Err(err).Int64("studentID", due.StudentID).Msg("Error creating fee due")
		return fmt.Errorf("error creating fee due: %w", err)
	}
	return nil
}

// GetByID retrieves a due
func (r *FeeDueRepository) GetByID(ctx context.Context, id int64) (*models.FeeDue, error) {
	return r.getOne(ctx, id, "", "getting fee due")
}

// LockByID retrieves a due and locks it until the transaction ends
func (r *FeeDueRepository) LockByID(ctx context.Context, id int64) (*models.FeeDue, error) {
	return r.getOne(ctx, id, "FOR UPDATE", "locking fee due")
}

// Update saves the paid amount and status
func (r *FeeDueRepository) Update(ctx context.Context, due *models.FeeDue) error {
	sql, args, err := buildSQL(psql.Update("fee_dues").
		Set("paid_amount", due.PaidAmount).
		Set("status", due.Status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": due.ID}).
		Suffix("RETURNING updated_at"), "update fee due")
	if err != nil {
		return err
	}
	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&due.UpdatedAt); err != nil {
		return notFound(err, apperrors.ErrFeeDueNotFound, "updating fee due")
	}
	return nil
}

// ListByStudent returns a student's dues by due date
func (r *FeeDueRepository) ListByStudent(ctx context.Context, studentID int64) ([]*models.FeeDue, error) {
	return r.query(ctx, psql.Select(feeDueColumns...).From("fee_dues").
		Where(squirrel.Eq{"student_id": studentID}).
		OrderBy("due_date", "id"), "listing student dues")
}

// ListOverdue returns unpaid dues whose date is before today, oldest first
func (r *FeeDueRepository) ListOverdue(ctx context.Context, today time.Time) ([]*models.FeeDue, error) {
	return r.query(ctx, psql.Select(feeDueColumns...).From("fee_dues").
		Where(squirrel.Lt{"due_date": today}).
		Where(squirrel.NotEq{"status": models.DuePaid}).
		OrderBy("due_date", "id"), "listing overdue dues")
}

// MarkOverdue flips PENDING and PARTIAL dues past their date to OVERDUE
func (r *FeeDueRepository) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	sql, args, err := buildSQL(psql.Update("fee_dues").
		Set("status", models.DueOverdue).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Lt{"due_date": today}).
		Where(squirrel.Eq{"status": []models.FeeDueStatus{models.DuePending, models.DuePartial}}), "mark overdue")
	if err != nil {
		return 0, err
	}
	tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("error marking dues overdue: %w", err)
	}
	return tag.RowsAffected(), nil
}

// OutstandingTotal sums the unpaid balance of every due that is not PAID
func (r *FeeDueRepository) OutstandingTotal(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount - paid_amount), 0)::float8 FROM fee_dues WHERE status <> 'PAID'`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("error summing outstanding dues: %w", err)
	}
	return total, nil
}

// DeleteByStudent removes all dues of a student
func (r *FeeDueRepository) DeleteByStudent(ctx context.Context, studentID int64) error {
	if _, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM fee_dues WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("error deleting student dues: %w", err)
	}
	return nil
}
