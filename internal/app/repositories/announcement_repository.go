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

// IAnnouncementRepository defines announcement persistence
type IAnnouncementRepository interface {
	Create(ctx context.Context, a *models.Announcement) error
	GetByID(ctx context.Context, id int64) (*models.Announcement, error)
	Update(ctx context.Context, a *models.Announcement) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, offset uint64, limit int) ([]*models.Announcement, int64, error)
	ListCurrent(ctx context.Context, today time.Time) ([]*models.Announcement, error)
}

var announcementColumns = []string{
	"id", "title", "content", "type", "priority", "for_students", "for_teachers", "for_parents", "batch_id",
	"publish_date", "expiry_date", "is_pinned", "is_active", "image_url", "created_by", "created_at", "updated_at",
}

// AnnouncementRepository handles announcement database operations
type AnnouncementRepository struct {
	db *db.PostgresDB
}

// NewAnnouncementRepository creates a new AnnouncementRepository
func NewAnnouncementRepository(pg *db.PostgresDB) *AnnouncementRepository {
	return &AnnouncementRepository{db: pg}
}

func scanAnnouncement(row pgx.Row) (*models.Announcement, error) {
	a := &models.Announcement{}
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Type, &a.Priority, &a.ForStudents, &a.ForTeachers, &a.ForParents,
		&a.BatchID, &a.PublishDate, &a.ExpiryDate, &a.IsPinned, &a.IsActive, &a.ImageURL, &a.CreatedBy,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func announcementValues(a *models.Announcement) map[string]interface{} {
	return map[string]interface{}{
		"title":        a.Title,
		"content":      a.Content,
		"type":         a.Type,
		"priority":     a.Priority,
		"for_students": a.ForStudents,
		"for_teachers": a.ForTeachers,
		"for_parents":  a.ForParents,
		"batch_id":     a.BatchID,
		"publish_date": a.PublishDate,
		"expiry_date":  a.ExpiryDate,
		"is_pinned":    a.IsPinned,
		"is_active":    a.IsActive,
		"image_url":    a.ImageURL,
	}
}

func (r *AnnouncementRepository) query(ctx context.Context, q squirrel.SelectBuilder, op string) ([]*models.Announcement, error) {
	sql, args, err := buildSQL(q, op)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error querying announcements")
		return nil, fmt.Errorf("error %s: %w", op, err)
	}
	defer rows.Close()

	out := make([]*models.Announcement, 0)
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning announcement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts an announcement
func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	values := announcementValues(a)
	values["created_by"] = a.CreatedBy
	sql, args, err := buildSQL(psql.Insert("announcements").
		SetMap(values).
		Suffix("RETURNING id, created_at, updated_at"), "create announcement")
	if err != nil {
		return err
	}
	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrBatchNotFound
		}
		logger.Error().Err(err).Str("title", a.Title).Msg("Error creating announcement")
		return fmt.Errorf("error creating announcement: %w", err)
	}
	return nil
}

// GetByID retrieves an announcement
func (r *AnnouncementRepository) GetByID(ctx context.Context, id int64) (*models.Announcement, error) {
	sql, args, err := buildSQL(psql.Select(announcementColumns...).From("announcements").Where(squirrel.Eq{"id": id}), "get announcement")
	if err != nil {
		return nil, err
	}
	a, err := scanAnnouncement(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrAnnouncementNotFound, "getting announcement")
	}
	return a, nil
}

// Update saves every editable field
func (r *AnnouncementRepository) Update(ctx context.Context, a *models.Announcement) error {
	sql, args, err := buildSQL(psql.Update("announcements").
		SetMap(announcementValues(a)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": a.ID}).
		Suffix("RETURNING updated_at"), "update announcement")
	if err != nil {
		return err
	}
	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&a.UpdatedAt); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrBatchNotFound
		}
		return notFound(err, apperrors.ErrAnnouncementNotFound, "updating announcement")
	}
	return nil
}

// Delete removes an announcement
func (r *AnnouncementRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting announcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAnnouncementNotFound
	}
	return nil
}

// List returns one page of all announcements, pinned first then newest, and the total count
func (r *AnnouncementRepository) List(ctx context.Context, offset uint64, limit int) ([]*models.Announcement, int64, error) {
	var total int64
	if err := r.db.Conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM announcements`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting announcements: %w", err)
	}
	q := psql.Select(announcementColumns...).From("announcements").
		OrderBy("is_pinned DESC", "created_at DESC", "id DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	list, err := r.query(ctx, q, "listing announcements")
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListCurrent returns active announcements that have not expired before today.
// Audience filtering happens in the caller.
func (r *AnnouncementRepository) ListCurrent(ctx context.Context, today time.Time) ([]*models.Announcement, error) {
	return r.query(ctx, psql.Select(announcementColumns...).From("announcements").
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Or{squirrel.Eq{"expiry_date": nil}, squirrel.GtOrEq{"expiry_date": today}}).
		OrderBy("id DESC"), "listing current announcements")
}
