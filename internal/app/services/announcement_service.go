package services

import (
	"context"
	"mime/multipart"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/filestorage"
	"github.com/sga/schoolhub/internal/pkg/helpers"
)

const announcementImageDir = "announcements"

// AnnouncementService publishes announcements and builds audience feeds
type AnnouncementService interface {
	CreateAnnouncement(ctx context.Context, actor models.Actor, req *dto.AnnouncementRequest) (*models.Announcement, error)
	GetAnnouncement(ctx context.Context, actor models.Actor, id int64) (*models.Announcement, error)
	ListAnnouncements(ctx context.Context, actor models.Actor, page, size int) (*dto.AnnouncementListResponse, error)
	UpdateAnnouncement(ctx context.Context, actor models.Actor, id int64, req *dto.AnnouncementRequest) (*models.Announcement, error)
	DeleteAnnouncement(ctx context.Context, actor models.Actor, id int64) error
	UploadImage(ctx context.Context, actor models.Actor, file *multipart.FileHeader) (*dto.ImageUploadResponse, error)
	Feed(ctx context.Context, actor models.Actor) ([]*models.Announcement, error)
	VisibleToStudent(ctx context.Context, student *models.Student) ([]*models.Announcement, error)
}

type announcementServiceImpl struct {
	announcementRepo repositories.IAnnouncementRepository
	studentRepo      repositories.IStudentRepository
	storage          filestorage.FileStorage
	now              Clock
	logger           zerolog.Logger
}

// NewAnnouncementService creates a new AnnouncementService
func NewAnnouncementService(
	announcementRepo repositories.IAnnouncementRepository,
	studentRepo repositories.IStudentRepository,
	storage filestorage.FileStorage,
	logger zerolog.Logger,
) AnnouncementService {
	return &announcementServiceImpl{
		announcementRepo: announcementRepo,
		studentRepo:      studentRepo,
		storage:          storage,
		now:              time.Now,
		logger:           logger,
	}
}

func requirePublisher(actor models.Actor) error {
	if !actor.Role.CanPublishAnnouncements() {
		return apperrors.NewForbiddenError("Only staff can manage announcements")
	}
	return nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// applyAnnouncementRequest fills a from req. Expiry may not precede publication.
func (s *announcementServiceImpl) applyAnnouncementRequest(a *models.Announcement, req *dto.AnnouncementRequest) error {
	publish, err := parseOptionalDateField("publishDate", req.PublishDate, s.now())
	if err != nil {
		return err
	}
	expiry, err := parseDatePtrField("expiryDate", req.ExpiryDate)
	if err != nil {
		return err
	}
	if expiry != nil && expiry.Before(publish) {
		return apperrors.NewValidationError("expiryDate", "Expiry date cannot be before the publish date")
	}

	a.Title = strings.TrimSpace(req.Title)
	a.Content = strings.TrimSpace(req.Content)
	a.Type = req.Type
	if a.Type == "" {
		a.Type = models.AnnouncementGeneral
	}
	a.Priority = req.Priority
	if a.Priority == "" {
		a.Priority = models.PriorityNormal
	}
	a.ForStudents = boolOr(req.ForStudents, true)
	a.ForTeachers = boolOr(req.ForTeachers, false)
	a.ForParents = boolOr(req.ForParents, true)
	a.BatchID = req.BatchID
	a.PublishDate = publish
	a.ExpiryDate = expiry
	a.IsPinned = req.IsPinned
	a.IsActive = boolOr(req.IsActive, true)
	a.ImageURL = helpers.NullIfEmpty(req.ImageURL)
	return nil
}

// CreateAnnouncement publishes an announcement
func (s *announcementServiceImpl) CreateAnnouncement(ctx context.Context, actor models.Actor, req *dto.AnnouncementRequest) (*models.Announcement, error) {
	if err := requirePublisher(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	a := &models.Announcement{}
	if err := s.applyAnnouncementRequest(a, req); err != nil {
		return nil, err
	}
	author := actor.UserID
	a.CreatedBy = &author

	if err := s.announcementRepo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("announcementID", a.ID).Str("priority", string(a.Priority)).Msg("Announcement created")
	return a, nil
}

func (s *announcementServiceImpl) GetAnnouncement(ctx context.Context, actor models.Actor, id int64) (*models.Announcement, error) {
	if err := requirePublisher(actor); err != nil {
		return nil, err
	}
	return s.announcementRepo.GetByID(ctx, id)
}

// ListAnnouncements returns every announcement, pinned first then newest
func (s *announcementServiceImpl) ListAnnouncements(ctx context.Context, actor models.Actor, page, size int) (*dto.AnnouncementListResponse, error) {
	if err := requirePublisher(actor); err != nil {
		return nil, err
	}
	offset, limit := helpers.CalculateOffsetLimit(page, size)
	list, total, err := s.announcementRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return &dto.AnnouncementListResponse{
		Announcements: list,
		Pagination:    helpers.NewPaginationInfo(total, page, size),
	}, nil
}

// UpdateAnnouncement replaces an announcement. A replaced image is removed from storage.
func (s *announcementServiceImpl) UpdateAnnouncement(ctx context.Context, actor models.Actor, id int64, req *dto.AnnouncementRequest) (*models.Announcement, error) {
	if err := requirePublisher(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	a, err := s.announcementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldImage := a.ImageURL
	if err := s.applyAnnouncementRequest(a, req); err != nil {
		return nil, err
	}
	if err := s.announcementRepo.Update(ctx, a); err != nil {
		return nil, err
	}
	if oldImage != nil && (a.ImageURL == nil || *a.ImageURL != *oldImage) {
		s.removeImage(*oldImage)
	}
	return a, nil
}

// DeleteAnnouncement removes an announcement and its image
func (s *announcementServiceImpl) DeleteAnnouncement(ctx context.Context, actor models.Actor, id int64) error {
	if err := requirePublisher(actor); err != nil {
		return err
	}
	a, err := s.announcementRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.announcementRepo.Delete(ctx, id); err != nil {
		return err
	}
	if a.ImageURL != nil {
		s.removeImage(*a.ImageURL)
	}
	s.logger.Info().Int64("announcementID", id).Int64("by", actor.UserID).Msg("Announcement deleted")
	return nil
}

func (s *announcementServiceImpl) removeImage(url string) {
	if s.storage == nil {
		return
	}
	if err := s.storage.DeleteFile(url); err != nil {
		s.logger.Error().Err(err).Str("url", url).Msg("Failed to remove announcement image")
	}
}

// UploadImage stores an announcement image and returns its public URL
func (s *announcementServiceImpl) UploadImage(ctx context.Context, actor models.Actor, file *multipart.FileHeader) (*dto.ImageUploadResponse, error) {
	if err := requirePublisher(actor); err != nil {
		return nil, err
	}
	if err := filestorage.CheckImage(file, filestorage.AnnouncementImageRules); err != nil {
		return nil, err
	}
	url, err := s.storage.SaveFileWithPath(file, announcementImageDir)
	if err != nil {
		return nil, err
	}
	return &dto.ImageUploadResponse{URL: url}, nil
}

// Feed returns the announcements the actor's audience should see
func (s *announcementServiceImpl) Feed(ctx context.Context, actor models.Actor) ([]*models.Announcement, error) {
	if actor.Role.IsStudent() {
		student, err := s.studentRepo.GetByUserID(ctx, actor.UserID)
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, err
		}
		if student == nil {
			return s.filter(ctx, func(a *models.Announcement, today time.Time) bool {
				return a.IsVisibleToStudent(nil, today)
			})
		}
		return s.VisibleToStudent(ctx, student)
	}
	return s.filter(ctx, func(a *models.Announcement, today time.Time) bool {
		return a.IsVisibleToRole(actor.Role, today)
	})
}

// VisibleToStudent applies student targeting: active, for students, the student's
// batch or every batch, and not expired. Pinned first, then priority, then newest.
func (s *announcementServiceImpl) VisibleToStudent(ctx context.Context, student *models.Student) ([]*models.Announcement, error) {
	return s.filter(ctx, func(a *models.Announcement, today time.Time) bool {
		return a.IsVisibleToStudent(student.BatchID, today)
	})
}

func (s *announcementServiceImpl) filter(ctx context.Context, keep func(*models.Announcement, time.Time) bool) ([]*models.Announcement, error) {
	today := helpers.DateOnly(s.now())
	current, err := s.announcementRepo.ListCurrent(ctx, today)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Announcement, 0, len(current))
	for _, a := range current {
		if keep(a, today) {
			out = append(out, a)
		}
	}
	models.SortForDisplay(out)
	return out, nil
}
