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

// IFeeStructureRepository defines fee structure persistence
type IFeeStructureRepository interface {
	Create(ctx context.Context, fs *models.FeeStructure) error
	GetByID(ctx context.Context, id int64) (*models.FeeStructure, error)
	List(ctx context.Context, batchID *int64, activeOnly bool) ([]*models.FeeStructure, error)
	FirstActiveForBatch(ctx context.Context, batchID int64) (*models.FeeStructure, error)
	FirstActiveByBatch(ctx context.Context) (map[int64]*models.FeeStructure, error)
	Update(ctx context.Context, fs *models.FeeStructure) error
	Delete(ctx context.Context, id int64) error
}

var feeStructureColumns = []string{
	"id", "batch_id", "name", "amount", "frequency", "description", "is_active", "created_at", "updated_at",
}

// FeeStructureRepository handles fee structure database operations
type FeeStructureRepository struct {
	db *db.PostgresDB
}

// NewFeeStructureRepository creates a new FeeStructureRepository
func NewFeeStructureRepository(pg *db.PostgresDB) *FeeStructureRepository {
	return &FeeStructureRepository{db: pg}
}

func scanFeeStructure(row pgx.Row) (*models.FeeStructure, error) {
	fs := &models.FeeStructure{}
	err := row.Scan(&fs.ID, &fs.BatchID, &fs.Name, &fs.Amount, &fs.Frequency, &fs.Description, &fs.IsActive,
		&fs.CreatedAt, &fs.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func (r *FeeStructureRepository) query(ctx context.Context, q squirrel.SelectBuilder, op string) ([]*models.FeeStructure, error) {
	sql, args, err := buildSQL(q, op)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error querying fee structures")
		return nil, fmt.Errorf("error %s: %w", op, err)
	}
	defer rows.Close()

	out := make([]*models.FeeStructure, 0)
	for rows.Next() {
		fs, err := scanFeeStructure(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning fee structure: %w", err)
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

// Create inserts a fee structure
func (r *FeeStructureRepository) Create(ctx context.Context, fs *models.FeeStructure) error {
	sql, args, err := buildSQL(psql.Insert("fee_structures").
		Columns("batch_id", "name", "amount", "frequency", "description", "is_active").
		Values(fs.BatchID, fs.Name, fs.Amount, fs.Frequency, fs.Description, fs.IsActive).
		Suffix("RETURNING id, created_at, updated_at"), "create fee structure")
	if err != nil {
		return err
	}
	err = r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&fs.ID, &fs.CreatedAt, &fs.UpdatedAt)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrBatchNotFound
		}
		logger.Error().Err(err).Str("name", fs.Name).Msg("Error creating fee structure")
		return fmt.Errorf("error creating fee structure: %w", err)
	}
	return nil
}

// GetByID retrieves a fee structure
func (r *FeeStructureRepository) GetByID(ctx context.Context, id int64) (*models.FeeStructure, error) {
	sql, args, err := buildSQL(psql.Select(feeStructureColumns...).From("fee_structures").Where(squirrel.Eq{"id": id}), "get fee structure")
	if err != nil {
		return nil, err
	}
	fs, err := scanFeeStructure(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrFeeStructureNotFound, "getting fee structure")
	}
	return fs, nil
}

// List returns fee structures, optionally of one batch or only active ones
func (r *FeeStructureRepository) List(ctx context.Context, batchID *int64, activeOnly bool) ([]*models.FeeStructure, error) {
	q := psql.Select(feeStructureColumns...).From("fee_structures").OrderBy("id")
	if batchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *batchID})
	}
	if activeOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	return r.query(ctx, q, "listing fee structures")
}

// FirstActiveForBatch returns the lowest-id active structure of a batch, or nil when none exists.
func (r *FeeStructureRepository) FirstActiveForBatch(ctx context.Context, batchID int64) (*models.FeeStructure, error) {
	list, err := r.query(ctx, psql.Select(feeStructureColumns...).From("fee_structures").
		Where(squirrel.Eq{"batch_id": batchID, "is_active": true}).
		OrderBy("id").
		Limit(1), "first active fee structure")
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// FirstActiveByBatch maps every batch with an active structure to its lowest-id one
func (r *FeeStructureRepository) FirstActiveByBatch(ctx context.Context) (map[int64]*models.FeeStructure, error) {
	list, err := r.query(ctx, psql.Select(feeStructureColumns...).
		Options("DISTINCT ON (batch_id)").
		From("fee_structures").
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.NotEq{"batch_id": nil}).
		OrderBy("batch_id", "id"), "first active fee structures")
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*models.FeeStructure, len(list))
	for _, fs := range list {
		out[*fs.BatchID] = fs
	}
	return out, nil
}

// Update saves all editable fields
func (r *FeeStructureRepository) Update(ctx context.Context, fs *models.FeeStructure) error {
	sql, args, err := buildSQL(psql.Update("fee_structures").
		Set("batch_id", fs.BatchID).
		Set("name", fs.Name).
		Set("amount", fs.Amount).
		Set("frequency", fs.Frequency).
		Set("description", fs.Description).
		Set("is_active", fs.IsActive).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": fs.ID}).
		Suffix("RETURNING updated_at"), "update fee structure")
	if err != nil {
		return err
	}
	err = r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&fs.UpdatedAt)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrBatchNotFound
		}
		return notFound(err, apperrors.ErrFeeStructureNotFound, "updating fee structure")
	}
	return nil
}

// Delete removes a structure that no transaction or due references
func (r *FeeStructureRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM fee_structures WHERE id = $1`, id)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.NewIntegrityError("Fee structure is referenced by payments")
		}
		return fmt.Errorf("error deleting fee structure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrFeeStructureNotFound
	}
	return nil
}
