package models

import (
	"sort"
	"time"
)

// AnnouncementType categorises an announcement
type AnnouncementType string

const (
	AnnouncementGeneral  AnnouncementType = "GENERAL"
	AnnouncementHoliday  AnnouncementType = "HOLIDAY"
	AnnouncementEvent    AnnouncementType = "EVENT"
	AnnouncementHomework AnnouncementType = "HOMEWORK"
	AnnouncementExam     AnnouncementType = "EXAM"
	AnnouncementNotice   AnnouncementType = "NOTICE"
)

func (t AnnouncementType) Valid() bool {
	switch t {
	case AnnouncementGeneral, AnnouncementHoliday, AnnouncementEvent,
		AnnouncementHomework, AnnouncementExam, AnnouncementNotice:
		return true
	}
	return false
}

// Priority of an announcement, ranked LOW < NORMAL < HIGH < URGENT
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank returns 1..4 for known priorities and 0 otherwise.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityNormal:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

// Announcement is a broadcast. A nil BatchID means it targets every batch.
type Announcement struct {
	ID          int64            `json:"id" db:"id"`
	Title       string           `json:"title" db:"title"`
	Content     string           `json:"content" db:"content"`
	Type        AnnouncementType `json:"type" db:"type"`
	Priority    Priority         `json:"priority" db:"priority"`
	ForStudents bool             `json:"forStudents" db:"for_students"`
	ForTeachers bool             `json:"forTeachers" db:"for_teachers"`
	ForParents  bool             `json:"forParents" db:"for_parents"`
	BatchID     *int64           `json:"batchId,omitempty" db:"batch_id"`
	PublishDate time.Time        `json:"publishDate" db:"publish_date"`
	ExpiryDate  *time.Time       `json:"expiryDate,omitempty" db:"expiry_date"`
	IsPinned    bool             `json:"isPinned" db:"is_pinned"`
	IsActive    bool             `json:"isActive" db:"is_active"`
	ImageURL    *string          `json:"imageUrl,omitempty" db:"image_url"`
	CreatedBy   *int64           `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time        `json:"updatedAt" db:"updated_at"`
}

// IsExpired compares the expiry date against the calendar day of today.
func (a *Announcement) IsExpired(today time.Time) bool {
	if a.ExpiryDate == nil {
		return false
	}
	return dateOnly(*a.ExpiryDate).Before(dateOnly(today))
}

// IsVisibleToStudent applies the student targeting rule. batchID is the
// student's batch, nil when unassigned.
func (a *Announcement) IsVisibleToStudent(batchID *int64, today time.Time) bool {
	if !a.IsActive || !a.ForStudents {
		return false
	}
	if a.BatchID != nil && (batchID == nil || *a.BatchID != *batchID) {
		return false
	}
	return !a.IsExpired(today)
}

// IsVisibleToRole is used for non-student audiences.
func (a *Announcement) IsVisibleToRole(role Role, today time.Time) bool {
	if !a.IsActive || a.IsExpired(today) {
		return false
	}
	switch role {
	case RoleAdmin:
		return true
	case RoleTeacher:
		return a.ForTeachers
	case RoleParent:
		return a.ForParents
	case RoleStudent:
		return a.ForStudents && a.BatchID == nil
	}
	return false
}

// SortForDisplay orders pinned first, then by priority rank, then newest first.
func SortForDisplay(items []*Announcement) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra > rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
