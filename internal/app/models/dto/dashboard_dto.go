package dto

import (
	"time"

	"github.com/sga/schoolhub/internal/app/models"
)

// BatchHeadcount is the number of active students in one active batch
type BatchHeadcount struct {
	BatchID   int64  `json:"batchId"`
	BatchName string `json:"batchName"`
	Students  int    `json:"students"`
}

// AttendanceDay is one point of the attendance trend
type AttendanceDay struct {
	Date    time.Time `json:"date"`
	Present int       `json:"present"`
	Total   int       `json:"total"`
}

// StaffDashboard is the landing view for admins and teachers
type StaffDashboard struct {
	Date               time.Time                `json:"date"`
	ActiveStudents     int64                    `json:"activeStudents"`
	ActiveBatches      int                      `json:"activeBatches"`
	ActiveTeachers     int                      `json:"activeTeachers"`
	TodayMarked        int                      `json:"todayMarked"`
	TodayPresent       int                      `json:"todayPresent"`
	MonthCollection    float64                  `json:"monthCollection"`
	RecentEnrollments  []*models.Student        `json:"recentEnrollments"`
	RecentTransactions []*models.FeeTransaction `json:"recentTransactions"`
	Batches            []BatchHeadcount         `json:"batches"`
	AttendanceTrend    []AttendanceDay          `json:"attendanceTrend"`
}
