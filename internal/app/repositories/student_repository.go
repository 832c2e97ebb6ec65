package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/dberrors"
	"github.com/sga/schoolhub/internal/pkg/helpers"
	"github.com/sga/schoolhub/internal/pkg/logger"
)

// IStudentRepository defines student persistence
type IStudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]*models.Student, int64, error)
	ListActiveByBatch(ctx context.Context, batchID int64) ([]*models.Student, error)
	ListActiveWithBatch(ctx context.Context, batchID *int64) ([]*models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	MoveToBatch(ctx context.Context, ids []int64, batchID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
	CountByBatch(ctx context.Context, batchID int64) (int, error)
	LatestCodeWithPrefix(ctx context.Context, prefix string) (string, error)
}

var studentColumns = []string{
	"id", "student_code", "user_id", "batch_id", "first_name", "last_name", "date_of_birth", "gender",
	"email", "phone", "address", "city", "state", "pincode", "parent_name", "parent_phone", "parent_email",
	"parent_occupation", "blood_group", "medical_conditions", "previous_school", "remarks",
	"enrollment_date", "status", "created_at", "updated_at",
}

// StudentRepository handles student database operations
type StudentRepository struct {
	db *db.PostgresDB
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(pg *db.PostgresDB) *StudentRepository {
	return &StudentRepository{db: pg}
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	s := &models.Student{}
	err := row.Scan(&s.ID, &s.Code, &s.UserID, &s.BatchID, &s.FirstName, &s.LastName, &s.DateOfBirth, &s.Gender,
		&s.Email, &s.Phone, &s.Address, &s.City, &s.State, &s.Pincode, &s.ParentName, &s.ParentPhone, &s.ParentEmail,
		&s.ParentOccupation, &s.BloodGroup, &s.MedicalConditions, &s.PreviousSchool, &s.Remarks,
		&s.EnrollmentDate, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// studentValues maps every writable column to its value
func studentValues(s *models.Student) map[string]interface{} {
	return map[string]interface{}{
		"student_code":       s.Code,
		"user_id":            s.UserID,
		"batch_id":           s.BatchID,
		"first_name":         s.FirstName,
		"last_name":          s.LastName,
		"date_of_birth":      s.DateOfBirth,
		"gender":             s.Gender,
		"email":              s.Email,
		"phone":              s.Phone,
		"address":            s.Address,
		"city":               s.City,
		"state":              s.State,
		"pincode":            s.Pincode,
		"parent_name":        s.ParentName,
		"parent_phone":       s.ParentPhone,
		"parent_email":       s.ParentEmail,
		"parent_occupation":  s.ParentOccupation,
		"blood_group":        s.BloodGroup,
		"medical_conditions": s.MedicalConditions,
		"previous_school":    s.PreviousSchool,
		"remarks":            s.Remarks,
		"enrollment_date":    s.EnrollmentDate,
		"status":             s.Status,
	}
}

func (r *StudentRepository) query(ctx context.Context, q squirrel.SelectBuilder, op string) ([]*models.Student, error) {
	sql, args, err := buildSQL(q, op)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error querying students")
		return nil, fmt.Errorf("error %s: %w", op, err)
	}
	defer rows.Close()

	students := make([]*models.Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning student: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

func (r *StudentRepository) getOne(ctx context.Context, where squirrel.Sqlizer, op string) (*models.Student, error) {
	sql, args, err := buildSQL(psql.Select(studentColumns...).From("students").Where(where).Limit(1), op)
	if err != nil {
		return nil, err
	}
	s, err := scanStudent(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrStudentNotFound, op)
	}
	return s, nil
}

func studentWriteError(err error, op string) error {
	switch {
	case dberrors.IsDuplicateConstraintError(err, "students_student_code_key"):
		return apperrors.NewConflictError("Student ID is already in use")
	case dberrors.IsDuplicateConstraintError(err, "students_user_id_key"):
		return apperrors.NewConflictError("Login account is already linked to another student")
	case dberrors.IsForeignKeyViolation(err):
		return apperrors.ErrBatchNotFound
	}
	logger.Error().Err(err).Str("op", op).Msg("Error writing student")
	return fmt.Errorf("error %s: %w", op, err)
}

// Create inserts a student
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	sql, args, err := buildSQL(psql.Insert("students").
		SetMap(studentValues(student)).
		Suffix("RETURNING id, created_at, updated_at"), "create student")
	if err != nil {
		return err
	}
	err = r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&student.ID, &student.CreatedAt, &student.UpdatedAt)
	if err != nil {
		return studentWriteError(err, "creating student")
	}
	return nil
}

// GetByID retrieves a student
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, "getting student")
}

// GetByUserID finds the student linked to a login account
func (r *StudentRepository) GetByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{"user_id": userID}, "getting student by user")
}

// List returns one page of students and the total number matching the filter
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]*models.Student, int64, error) {
	where := squirrel.And{}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := helpers.LikePattern(term)
		where = append(where, squirrel.Or{
			squirrel.ILike{"first_name": pattern},
			squirrel.ILike{"last_name": pattern},
			squirrel.ILike{"student_code": pattern},
			squirrel.ILike{"phone": pattern},
			squirrel.ILike{"parent_phone": pattern},
		})
	}
	if filter.BatchID != nil {
		where = append(where, squirrel.Eq{"batch_id": *filter.BatchID})
	}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{"status": *filter.Status})
	}
	if filter.EnrolledSince != nil {
		where = append(where, squirrel.GtOrEq{"enrollment_date": *filter.EnrolledSince})
	}

	countSQL, countArgs, err := buildSQL(psql.Select("COUNT(*)").From("students").Where(where), "count students")
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.Conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting students: %w", err)
	}

	q := psql.Select(studentColumns...).From("students").Where(where).OrderBy("id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	students, err := r.query(ctx, q, "listing students")
	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

// ListActiveByBatch returns the ACTIVE students of a batch in roll order
func (r *StudentRepository) ListActiveByBatch(ctx context.Context, batchID int64) ([]*models.Student, error) {
	return r.query(ctx, psql.Select(studentColumns...).From("students").
		Where(squirrel.Eq{"batch_id": batchID, "status": models.StudentActive}).
		OrderBy("first_name", "last_name", "id"), "listing batch students")
}

// ListActiveWithBatch returns ACTIVE students assigned to a batch, optionally only batchID.
func (r *StudentRepository) ListActiveWithBatch(ctx context.Context, batchID *int64) ([]*models.Student, error) {
	q := psql.Select(studentColumns...).From("students").
		Where(squirrel.Eq{"status": models.StudentActive}).
		Where(squirrel.NotEq{"batch_id": nil}).
		OrderBy("id")
	if batchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *batchID})
	}
	return r.query(ctx, q, "listing active students")
}

// Update saves every editable field of a student
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	sql, args, err := buildSQL(psql.Update("students").
		SetMap(studentValues(student)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": student.ID}).
		Suffix("RETURNING updated_at"), "update student")
	if err != nil {
		return err
	}
	err = r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&student.UpdatedAt)
	if err != nil {
		if dberrors.ConstraintName(err) != "" {
			return studentWriteError(err, "updating student")
		}
		return notFound(err, apperrors.ErrStudentNotFound, "updating student")
	}
	return nil
}

// MoveToBatch reassigns students and reports how many rows changed
func (r *StudentRepository) MoveToBatch(ctx context.Context, ids []int64, batchID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	sql, args, err := buildSQL(psql.Update("students").
		Set("batch_id", batchID).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": ids}), "move students")
	if err != nil {
		return 0, err
	}
	tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, studentWriteError(err, "moving students")
	}
	return tag.RowsAffected(), nil
}

// Delete removes a student row. Attendance, fees and dues go first.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.NewIntegrityError("Student still has dependent records")
		}
		return fmt.Errorf("error deleting student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}

// CountByBatch counts students of any status in a batch
func (r *StudentRepository) CountByBatch(ctx context.Context, batchID int64) (int, error) {
	var n int
	if err := r.db.Conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM students WHERE batch_id = $1`, batchID).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting batch students: %w", err)
	}
	return n, nil
}

// LatestCodeWithPrefix returns the most recently issued code starting with prefix, or "".
func (r *StudentRepository) LatestCodeWithPrefix(ctx context.Context, prefix string) (string, error) {
	return latestCode(ctx, r.db.Conn(ctx), "students", "student_code", prefix)
}

// latestCode returns the code under prefix that was inserted last.
func latestCode(ctx context.Context, q db.Querier, table, column, prefix string) (string, error) {
	sql, args, err := buildSQL(psql.Select(column).From(table).
		Where(squirrel.Like{column: helpers.LikePrefix(prefix)}).
		OrderBy("id DESC").
		Limit(1), "latest code")
	if err != nil {
		return "", err
	}
	var code string
	if err := q.QueryRow(ctx, sql, args...).Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("error reading latest %s: %w", column, err)
	}
	return code, nil
}
