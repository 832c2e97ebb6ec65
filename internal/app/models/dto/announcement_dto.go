package dto

import "github.com/sga/schoolhub/internal/app/models"

// AnnouncementRequest creates or updates an announcement.
// Audience flags default to true for students and parents and false for teachers.
type AnnouncementRequest struct {
	Title       string                  `json:"title" binding:"required,max=200"`
	Content     string                  `json:"content" binding:"required"`
	Type        models.AnnouncementType `json:"type" binding:"omitempty,announcement_type"`
	Priority    models.Priority         `json:"priority" binding:"omitempty,priority"`
	ForStudents *bool                   `json:"forStudents,omitempty"`
	ForTeachers *bool                   `json:"forTeachers,omitempty"`
	ForParents  *bool                   `json:"forParents,omitempty"`
	BatchID     *int64                  `json:"batchId,omitempty" binding:"omitempty,min=1"`
	PublishDate string                  `json:"publishDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	ExpiryDate  string                  `json:"expiryDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	IsPinned    bool                    `json:"isPinned"`
	IsActive    *bool                   `json:"isActive,omitempty"`
	ImageURL    *string                 `json:"imageUrl,omitempty" binding:"omitempty,max=500"`
}

// ImageUploadResponse returns where an uploaded image is served
type ImageUploadResponse struct {
	URL string `json:"url"`
}

// AnnouncementListResponse is a paginated staff listing
type AnnouncementListResponse struct {
	Announcements []*models.Announcement `json:"announcements"`
	Pagination    PaginationInfo         `json:"pagination"`
}
