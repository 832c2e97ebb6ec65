package dto

import "github.com/sga/schoolhub/internal/app/models"

// PortalDashboard is the landing view of a logged-in student
type PortalDashboard struct {
	Student          *models.Student        `json:"student"`
	MonthTotalDays   int                    `json:"monthTotalDays"`
	MonthPresentDays int                    `json:"monthPresentDays"`
	MonthPercentage  float64                `json:"monthPercentage"`
	RecentAttendance []*models.Attendance   `json:"recentAttendance"`
	Announcements    []*models.Announcement `json:"announcements"`
}
