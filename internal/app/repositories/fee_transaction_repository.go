package repositories

import (
	"context"
	"errors"
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

// IFeeTransactionRepository defines payment persistence
type IFeeTransactionRepository interface {
	Create(ctx context.Context, tx *models.FeeTransaction) error
	GetByID(ctx context.Context, id int64) (*models.FeeTransaction, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.FeeTransaction, int64, error)
	ListByStudent(ctx context.Context, studentID int64) ([]*models.FeeTransaction, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.FeeTransaction, error)
	SumBetween(ctx context.Context, from, to time.Time) (float64, error)
	LatestReceiptWithPrefix(ctx context.Context, prefix string) (string, error)
	TotalPaidByStudents(ctx context.Context, studentIDs []int64) (map[int64]float64, error)
	LastPaymentDate(ctx context.Context, studentID int64) (*time.Time, error)
	DeleteByStudent(ctx context.Context, studentID int64) error
}

var feeTransactionColumns = []string{
	"id", "receipt_number", "student_id", "fee_structure_id", "amount", "payment_date", "payment_mode",
	"cheque_number", "cheque_date", "bank_name", "transaction_reference", "description", "month_for",
	"discount", "fine", "collected_by", "created_at",
}

// FeeTransactionRepository handles payment database operations
type FeeTransactionRepository struct {
	db *db.PostgresDB
}

// NewFeeTransactionRepository creates a new FeeTransactionRepository
func NewFeeTransactionRepository(pg *db.PostgresDB) *FeeTransactionRepository {
	return &FeeTransactionRepository{db: pg}
}

func scanFeeTransaction(row pgx.Row) (*models.FeeTransaction, error) {
	t := &models.FeeTransaction{}
	err := row.Scan(&t.ID, &t.ReceiptNumber, &t.StudentID, &t.FeeStructureID, &t.Amount, &t.PaymentDate, &t.PaymentMode,
		&t.ChequeNumber, &t.ChequeDate, &t.BankName, &t.TransactionReference, &t.Description, &t.MonthFor,
		&t.Discount, &t.Fine, &t.CollectedBy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *FeeTransactionRepository) query(ctx context.Context, q squirrel.SelectBuilder, op string) ([]*models.FeeTransaction, error) {
	sql, args, err := buildSQL(q, op)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error querying fee transactions")
		return nil, fmt.Errorf("error %s: %w", op, err)
	}
	defer rows.Close()

	out := make([]*models.FeeTransaction, 0)
	for rows.Next() {
		t, err := scanFeeTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning fee transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create inserts a payment. A receipt number collision surfaces as Conflict.
func (r *FeeTransactionRepository) Create(ctx context.Context, t *models.FeeTransaction) error {
	sql, args, err := buildSQL(psql.Insert("fee_transactions").
		Columns("receipt_number", "student_id", "fee_structure_id", "amount", "payment_date", "payment_mode",
			"cheque_number", "cheque_date", "bank_name", "transaction_reference", "description", "month_for",
			"discount", "fine", "collected_by").
		Values(t.ReceiptNumber, t.StudentID, t.FeeStructureID, t.Amount, t.PaymentDate, t.PaymentMode,
			t.ChequeNumber, t.ChequeDate, t.BankName, t.TransactionReference, t.Description, t.MonthFor,
			t.Discount, t.Fine, t.CollectedBy).
		Suffix("RETURNING id, created_at"), "create fee transaction")
	if err != nil {
		return err
	}

	err = r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "fee_transactions_receipt_number_key") {
			logger.Warn().Str("receipt", t.ReceiptNumber).Msg("Receipt number collision")
			return apperrors.NewConflictError("Receipt number " + t.ReceiptNumber + " already exists")
		}
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.NewResourceNotFoundError("Student or fee structure not found")
		}
		logger.Error().Err(err).Int64("studentID", t.StudentID).Msg("Error creating fee transaction")
		return fmt.Errorf("error creating fee transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a payment
func (r *FeeTransactionRepository) GetByID(ctx context.Context, id int64) (*models.FeeTransaction, error) {
	sql, args, err := buildSQL(psql.Select(feeTransactionColumns...).From("fee_transactions").Where(squirrel.Eq{"id": id}), "get fee transaction")
	if err != nil {
		return nil, err
	}
	t, err := scanFeeTransaction(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrFeeTransactionNotFound, "getting fee transaction")
	}
	return t, nil
}

// List returns one page of payments, newest first, and the total matching the filter
func (r *FeeTransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]*models.FeeTransaction, int64, error) {
	where := squirrel.And{}
	if filter.StudentID != nil {
		where = append(where, squirrel.Eq{"student_id": *filter.StudentID})
	}
	if filter.From != nil {
		where = append(where, squirrel.GtOrEq{"payment_date": *filter.From})
	}
	if filter.To != nil {
		where = append(where, squirrel.LtOrEq{"payment_date": *filter.To})
	}
	if filter.PaymentMode != nil {
		where = append(where, squirrel.Eq{"payment_mode": *filter.PaymentMode})
	}

	countSQL, countArgs, err := buildSQL(psql.Select("COUNT(*)").From("fee_transactions").Where(where), "count fee transactions")
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.Conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting fee transactions: %w", err)
	}

	q := psql.Select(feeTransactionColumns...).From("fee_transactions").Where(where).
		OrderBy("payment_date DESC", "id DESC").
		Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	list, err := r.query(ctx, q, "listing fee transactions")
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListByStudent returns all payments of a student, newest first
func (r *FeeTransactionRepository) ListByStudent(ctx context.Context, studentID int64) ([]*models.FeeTransaction, error) {
	return r.query(ctx, psql.Select(feeTransactionColumns...).From("fee_transactions").
		Where(squirrel.Eq{"student_id": studentID}).
		OrderBy("payment_date DESC", "id DESC"), "listing student payments")
}

// ListBetween returns payments dated within [from, to] in receipt order
func (r *FeeTransactionRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*models.FeeTransaction, error) {
	return r.query(ctx, psql.Select(feeTransactionColumns...).From("fee_transactions").
		Where(squirrel.GtOrEq{"payment_date": from}).
		Where(squirrel.LtOrEq{"payment_date": to}).
		OrderBy("payment_date", "id"), "listing payments in range")
}

// SumBetween totals payment amounts dated within [from, to]
func (r *FeeTransactionRepository) SumBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::float8 FROM fee_transactions WHERE payment_date BETWEEN $1 AND $2`,
		from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("error summing payments: %w", err)
	}
	return total, nil
}

// LatestReceiptWithPrefix returns the receipt under prefix that was inserted last, or "".
func (r *FeeTransactionRepository) LatestReceiptWithPrefix(ctx context.Context, prefix string) (string, error) {
	return latestCode(ctx, r.db.Conn(ctx), "fee_transactions", "receipt_number", prefix)
}

// TotalPaidByStudents sums all-time payment amounts per student. Students without payments are absent.
func (r *FeeTransactionRepository) TotalPaidByStudents(ctx context.Context, studentIDs []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}
	sql, args, err := buildSQL(psql.Select("student_id", "SUM(amount)::float8").
		From("fee_transactions").
		Where(squirrel.Eq{"student_id": studentIDs}).
		GroupBy("student_id"), "total paid")
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error summing student payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var sum float64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("error scanning payment total: %w", err)
		}
		out[id] = sum
	}
	return out, rows.Err()
}

// LastPaymentDate returns the most recent payment date of a student, or nil
func (r *FeeTransactionRepository) LastPaymentDate(ctx context.Context, studentID int64) (*time.Time, error) {
	var last time.Time
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT payment_date FROM fee_transactions WHERE student_id = $1 ORDER BY payment_date DESC, id DESC LIMIT 1`,
		studentID).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading last payment: %w", err)
	}
	return &last, nil
}

// DeleteByStudent removes all payments of a student
func (r *FeeTransactionRepository) DeleteByStudent(ctx context.Context, studentID int64) error {
	if _, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM fee_transactions WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("error deleting student payments: %w", err)
	}
	return nil
}
