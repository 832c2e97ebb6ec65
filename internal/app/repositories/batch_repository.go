package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/dberrors"
	"github.com/sga/schoolhub/internal/pkg/logger"
)

// IBatchRepository defines batch persistence
type IBatchRepository interface {
	Create(ctx context.Context, batch *models.Batch) error
	GetByID(ctx context.Context, id int64) (*models.Batch, error)
	LockByID(ctx context.Context, id int64) (*models.Batch, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Batch, error)
	ListByTeacher(ctx context.Context, teacherID int64) ([]*models.Batch, error)
	Update(ctx context.Context, batch *models.Batch) error
	Delete(ctx context.Context, id int64) error
	UnassignTeacher(ctx context.Context, teacherID int64) (int64, error)
}

const activeStudentCount = "(SELECT COUNT(*) FROM students s WHERE s.batch_id = b.id AND s.status = 'ACTIVE') AS student_count"

var batchColumns = []string{
	"b.id", "b.name", "b.class_name", "b.capacity", "b.teacher_id", "b.description", "b.is_active",
	"b.created_at", "b.updated_at", activeStudentCount,
}

// BatchRepository handles batch database operations
type BatchRepository struct {
	db *db.PostgresDB
}

// NewBatchRepository creates a new BatchRepository
func NewBatchRepository(pg *db.PostgresDB) *BatchRepository {
	return &BatchRepository{db: pg}
}

func scanBatch(row pgx.Row) (*models.Batch, error) {
	b := &models.Batch{}
	err := row.Scan(&b.ID, &b.Name, &b.ClassName, &b.Capacity, &b.TeacherID, &b.Description, &b.IsActive,
		&b.CreatedAt, &b.UpdatedAt, &b.StudentCount)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BatchRepository) query(ctx context.Context, q squirrel.SelectBuilder, op string) ([]*models.Batch, error) {
	sql, args, err := buildSQL(q, op)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error querying batches")
		return nil, fmt.Errorf("error %s: %w", op, err)
	}
	defer rows.Close()

	batches := make([]*models.Batch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Create inserts a batch
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	sql, args, err := buildSQL(psql.Insert("batches").
		Columns("name", "class_name", "capacity", "teacher_id", "description", "is_active").
		Values(batch.Name, batch.ClassName, batch.Capacity, batch.TeacherID, batch.Description, batch.IsActive).
		Suffix("RETURNING id, created_at, updated_at"), "create batch")
	if err != nil {
		return err
	}

	err = r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&batch.ID, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrUserNotFound
		}
		logger.Error().Err(err).Str("name", batch.Name).Msg("Error creating batch")
		return fmt.Errorf("error creating batch: %w", err)
	}
	return nil
}

// GetByID retrieves a batch with its active student count
func (r *BatchRepository) GetByID(ctx context.Context, id int64) (*models.Batch, error) {
	sql, args, err := buildSQL(psql.Select(batchColumns...).From("batches b").Where(squirrel.Eq{"b.id": id}), "get batch")
	if err != nil {
		return nil, err
	}
	b, err := scanBatch(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrBatchNotFound, "getting batch")
	}
	return b, nil
}

// LockByID is GetByID with a row lock held until the surrounding transaction ends.
// Concurrent enrollments into the same batch serialize on it.
func (r *BatchRepository) LockByID(ctx context.Context, id int64) (*models.Batch, error) {
	sql, args, err := buildSQL(psql.Select(batchColumns...).From("batches b").
		Where(squirrel.Eq{"b.id": id}).
		Suffix("FOR UPDATE OF b"), "lock batch")
	if err != nil {
		return nil, err
	}
	b, err := scanBatch(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrBatchNotFound, "locking batch")
	}
	return b, nil
}

// List returns batches ordered by name
func (r *BatchRepository) List(ctx context.Context, activeOnly bool) ([]*models.Batch, error) {
	q := psql.Select(batchColumns...).From("batches b").OrderBy("b.name", "b.id")
	if activeOnly {
		q = q.Where(squirrel.Eq{"b.is_active": true})
	}
	return r.query(ctx, q, "listing batches")
}

// ListByTeacher returns the batches a teacher is assigned to
func (r *BatchRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]*models.Batch, error) {
	return r.query(ctx, psql.Select(batchColumns...).From("batches b").
		Where(squirrel.Eq{"b.teacher_id": teacherID}).
		OrderBy("b.name", "b.id"), "listing teacher batches")
}

// Update saves all editable batch fields
func (r *BatchRepository) Update(ctx context.Context, batch *models.Batch) error {
	sql, args, err := buildSQL(psql.Update("batches").
		Set("name", batch.Name).
		Set("class_name", batch.ClassName).
		Set("capacity", batch.Capacity).
		Set("teacher_id", batch.TeacherID).
		Set("description", batch.Description).
		Set("is_active", batch.IsActive).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": batch.ID}).
		Suffix("RETURNING updated_at"), "update batch")
	if err != nil {
		return err
	}

	err = r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&batch.UpdatedAt)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrUserNotFound
		}
		return notFound(err, apperrors.ErrBatchNotFound, "updating batch")
	}
	return nil
}

// Delete removes a batch. Students or fee structures still pointing at it block the delete.
func (r *BatchRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.NewIntegrityError("Batch still has students or fee structures")
		}
		logger.Error().Err(err).Int64("batchID", id).Msg("Error deleting batch")
		return fmt.Errorf("error deleting batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrBatchNotFound
	}
	return nil
}

// UnassignTeacher clears teacher_id on every batch of the teacher
func (r *BatchRepository) UnassignTeacher(ctx context.Context, teacherID int64) (int64, error) {
	tag, err := r.db.Conn(ctx).Exec(ctx,
		`UPDATE batches SET teacher_id = NULL, updated_at = NOW() WHERE teacher_id = $1`, teacherID)
	if err != nil {
		return 0, fmt.Errorf("error unassigning teacher: %w", err)
	}
	return tag.RowsAffected(), nil
}
