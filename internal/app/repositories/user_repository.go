package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/dberrors"
	"github.com/sga/schoolhub/internal/pkg/helpers"
	"github.com/sga/schoolhub/internal/pkg/logger"
)

// IUserRepository defines the interface for user-related database operations
type IUserRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error

	// Authentication
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error

	// Listing
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	Search(ctx context.Context, excludeID int64, term string, limit int) ([]*models.User, error)
}

var userColumns = []string{
	"id", "username", "email", "password_hash", "role", "is_active", "last_login_at", "created_at", "updated_at",
}

// UserRepository handles user database operations
type UserRepository struct {
	db *db.PostgresDB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pg *db.PostgresDB) *UserRepository {
	return &UserRepository{db: pg}
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) queryUsers(ctx context.Context, q squirrel.SelectBuilder, op string) ([]*models.User, error) {
	sql, args, err := buildSQL(q, op)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error querying users")
		return nil, fmt.Errorf("error %s: %w", op, err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Sqlizer, op string) (*models.User, error) {
	sql, args, err := buildSQL(psql.Select(userColumns...).From("users").Where(where).Limit(1), op)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound, op)
	}
	return u, nil
}

// Create inserts a user and fills its ID and timestamps
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	sql, args, err := buildSQL(psql.Insert("users").
		Columns("username", "email", "password_hash", "role", "is_active").
		Values(user.Username, strings.ToLower(user.Email), user.PasswordHash, user.Role, user.IsActive).
		Suffix("RETURNING id, created_at, updated_at"), "create user")
	if err != nil {
		return err
	}

	err = r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "users_email_key") {
			return apperrors.ErrEmailAlreadyExists
		}
		if dberrors.IsUniqueViolation(err) {
			return apperrors.NewConflictError("Username is already taken")
		}
		logger.Error().Err(err).Str("email", user.Email).Msg("Error creating user")
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, "getting user by id")
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))}, "getting user by email")
}

// GetByUsername retrieves a user by exact username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"username": strings.TrimSpace(username)}, "getting user by username")
}

// GetByIDs loads several users keyed by id. Unknown ids are absent from the map.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.User, error) {
	out := make(map[int64]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := r.queryUsers(ctx, psql.Select(userColumns...).From("users").Where(squirrel.Eq{"id": ids}), "getting users by ids")
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// EmailExists checks whether another user already uses email
func (r *UserRepository) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	q := psql.Select("1").From("users").Where(squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
	if excludeID > 0 {
		q = q.Where(squirrel.NotEq{"id": excludeID})
	}
	return r.exists(ctx, q, "checking email")
}

// UsernameExists checks whether a username is taken
func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, psql.Select("1").From("users").Where(squirrel.Eq{"username": username}), "checking username")
}

func (r *UserRepository) exists(ctx context.Context, q squirrel.SelectBuilder, op string) (bool, error) {
	sql, args, err := buildSQL(q.Prefix("SELECT EXISTS(").Suffix(")"), op)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("error %s: %w", op, err)
	}
	return exists, nil
}

// Update saves username, email, password hash and active flag
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	sql, args, err := buildSQL(psql.Update("users").
		Set("username", user.Username).
		Set("email", strings.ToLower(user.Email)).
		Set("password_hash", user.PasswordHash).
		Set("is_active", user.IsActive).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": user.ID}), "update user")
	if err != nil {
		return err
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "users_email_key") {
			return apperrors.ErrEmailAlreadyExists
		}
		if dberrors.IsUniqueViolation(err) {
			return apperrors.NewConflictError("Username is already taken")
		}
		logger.Error().Err(err).Int64("userID", user.ID).Msg("Error updating user")
		return fmt.Errorf("error updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin records a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.Conn(ctx).Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, userID)
	if err != nil {
		return fmt.Errorf("error updating last login: %w", err)
	}
	return nil
}

// Delete removes a user. Callers delete dependent rows first.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.NewIntegrityError("User still has dependent records")
		}
		logger.Error().Err(err).Int64("userID", id).Msg("Error deleting user")
		return fmt.Errorf("error deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// ListByRole lists users of one role ordered by username
func (r *UserRepository) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	return r.queryUsers(ctx, psql.Select(userColumns...).From("users").
		Where(squirrel.Eq{"role": role}).
		OrderBy("username"), "listing users by role")
}

// Search finds active users other than excludeID whose username or email contains term.
// An empty term lists users by username.
func (r *UserRepository) Search(ctx context.Context, excludeID int64, term string, limit int) ([]*models.User, error) {
	q := psql.Select(userColumns...).From("users").
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.NotEq{"id": excludeID}).
		OrderBy("username").
		Limit(uint64(limit))
	if term != "" {
		pattern := helpers.LikePattern(term)
		q = q.Where(squirrel.Or{
			squirrel.ILike{"username": pattern},
			squirrel.ILike{"email": pattern},
		})
	}
	return r.queryUsers(ctx, q, "searching users")
}
