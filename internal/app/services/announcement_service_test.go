package services

import (
	"context"
	"mime/multipart"
	"testing"

	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func announce(t *testing.T, svc *announcementServiceImpl, req dto.AnnouncementRequest) *models.Announcement {
	t.Helper()
	if req.Content == "" {
		req.Content = "details"
	}
	a, err := svc.CreateAnnouncement(context.Background(), adminActor, &req)
	require.NoError(t, err)
	return a
}

func titles(list []*models.Announcement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Title)
	}
	return out
}

func TestCreateAnnouncementDefaults(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	a := announce(t, f.announcementService(), dto.AnnouncementRequest{Title: " Holiday "})

	assert.Equal(t, "Holiday", a.Title)
	assert.Equal(t, models.AnnouncementGeneral, a.Type)
	assert.Equal(t, models.PriorityNormal, a.Priority)
	assert.True(t, a.ForStudents)
	assert.False(t, a.ForTeachers)
	assert.True(t, a.ForParents)
	assert.True(t, a.IsActive)
	assert.Equal(t, date(2025, 3, 15), a.PublishDate)
	assert.Equal(t, adminActor.UserID, *a.CreatedBy)
}

func TestCreateAnnouncementRejects(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	svc := f.announcementService()
	ctx := context.Background()

	_, err := svc.CreateAnnouncement(ctx, adminActor, &dto.AnnouncementRequest{
		Title: "Exam", Content: "x", PublishDate: "2025-03-20", ExpiryDate: "2025-03-19",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "expiryDate", apperrors.Field(err))

	_, err = svc.CreateAnnouncement(ctx, parentActor, &dto.AnnouncementRequest{Title: "Exam", Content: "x"})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = svc.CreateAnnouncement(ctx, adminActor, &dto.AnnouncementRequest{Title: "Exam", Content: "x", Priority: "CRITICAL"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, f.m.announcements)
}

func TestStudentFeedTargetingAndOrder(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	svc := f.announcementService()
	morning := f.m.addBatch("Morning", 30)
	evening := f.m.addBatch("Evening", 30)
	st := f.m.addStudent(&morning.ID, date(2025, 1, 1))
	actor := f.linkStudentLogin(st)

	announce(t, svc, dto.AnnouncementRequest{Title: "older normal"})
	announce(t, svc, dto.AnnouncementRequest{Title: "urgent", Priority: models.PriorityUrgent})
	announce(t, svc, dto.AnnouncementRequest{Title: "newer normal"})
	announce(t, svc, dto.AnnouncementRequest{Title: "pinned low", Priority: models.PriorityLow, IsPinned: true})
	announce(t, svc, dto.AnnouncementRequest{Title: "own batch", BatchID: &morning.ID, Priority: models.PriorityHigh})
	announce(t, svc, dto.AnnouncementRequest{Title: "other batch", BatchID: &evening.ID})
	announce(t, svc, dto.AnnouncementRequest{Title: "teachers only", ForStudents: ptr(false), ForTeachers: ptr(true)})
	announce(t, svc, dto.AnnouncementRequest{Title: "inactive", IsActive: ptr(false)})
	announce(t, svc, dto.AnnouncementRequest{Title: "expired", PublishDate: "2025-03-01", ExpiryDate: "2025-03-14"})
	announce(t, svc, dto.AnnouncementRequest{Title: "expires today", PublishDate: "2025-03-01", ExpiryDate: "2025-03-15"})
	announce(t, svc, dto.AnnouncementRequest{Title: "scheduled", PublishDate: "2025-03-16"})

	feed, err := svc.Feed(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"pinned low", "urgent", "own batch", "expires today", "newer normal", "older normal",
	}, titles(feed))
}

func TestRoleFeeds(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	svc := f.announcementService()
	batch := f.m.addBatch("Morning", 30)
	announce(t, svc, dto.AnnouncementRequest{Title: "everyone", ForTeachers: ptr(true)})
	announce(t, svc, dto.AnnouncementRequest{Title: "parents", ForStudents: ptr(false)})
	announce(t, svc, dto.AnnouncementRequest{Title: "batch", BatchID: &batch.ID, ForParents: ptr(false)})

	teacherFeed, err := svc.Feed(context.Background(), teacherActor)
	require.NoError(t, err)
	assert.Equal(t, []string{"everyone"}, titles(teacherFeed))

	parentFeed, err := svc.Feed(context.Background(), parentActor)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"everyone", "parents"}, titles(parentFeed))

	adminFeed, err := svc.Feed(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Len(t, adminFeed, 3)

	// a student account without a record only sees school-wide items
	orphan := models.NewActor(f.m.addUser(models.RoleStudent, "orphan"))
	orphanFeed, err := svc.Feed(context.Background(), orphan)
	require.NoError(t, err)
	assert.Equal(t, []string{"everyone"}, titles(orphanFeed))
}

func TestUpdateAnnouncementRemovesReplacedImage(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	svc := f.announcementService()
	ctx := context.Background()
	a := announce(t, svc, dto.AnnouncementRequest{Title: "Fair", ImageURL: ptr("/uploads/announcements/old.png")})

	_, err := svc.UpdateAnnouncement(ctx, adminActor, a.ID, &dto.AnnouncementRequest{
		Title: "Fair", Content: "moved", ImageURL: ptr("/uploads/announcements/old.png"),
	})
	require.NoError(t, err)
	assert.Empty(t, f.storage.deleted)

	updated, err := svc.UpdateAnnouncement(ctx, adminActor, a.ID, &dto.AnnouncementRequest{
		Title: "Fair", Content: "moved", ImageURL: ptr("/uploads/announcements/new.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/announcements/new.png", *updated.ImageURL)
	assert.Equal(t, []string{"/uploads/announcements/old.png"}, f.storage.deleted)

	require.NoError(t, svc.DeleteAnnouncement(ctx, adminActor, a.ID))
	assert.Equal(t, []string{"/uploads/announcements/old.png", "/uploads/announcements/new.png"}, f.storage.deleted)
	assert.ErrorIs(t, svc.DeleteAnnouncement(ctx, adminActor, a.ID), apperrors.ErrAnnouncementNotFound)
}

func TestUploadImageChecksType(t *testing.T) {
	f := newFixture(date(2025, 3, 15))
	svc := f.announcementService()
	ctx := context.Background()

	resp, err := svc.UploadImage(ctx, teacherActor, &multipart.FileHeader{Filename: "banner.png", Size: 1024})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/announcements/banner.png", resp.URL)

	_, err = svc.UploadImage(ctx, teacherActor, &multipart.FileHeader{Filename: "notes.pdf", Size: 1024})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.UploadImage(ctx, parentActor, &multipart.FileHeader{Filename: "banner.png", Size: 1024})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}
