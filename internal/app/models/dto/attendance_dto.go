package dto

import "github.com/sga/schoolhub/internal/app/models"

// AttendanceEntry is one submitted status within a batch marking
type AttendanceEntry struct {
	StudentID int64                   `json:"studentId" binding:"required,min=1"`
	Status    models.AttendanceStatus `json:"status" binding:"required,attendance_status"`
	Remarks   *string                 `json:"remarks,omitempty" binding:"omitempty,max=200"`
}

// MarkAttendanceRequest marks a whole batch for one date.
// Active students missing from Entries are recorded ABSENT.
type MarkAttendanceRequest struct {
	BatchID int64             `json:"batchId" binding:"required,min=1"`
	Date    string            `json:"date" binding:"required,datetime=2006-01-02"`
	Entries []AttendanceEntry `json:"entries" binding:"dive"`
}

// MarkAttendanceResponse reports how many students were marked
type MarkAttendanceResponse struct {
	BatchID int64  `json:"batchId"`
	Date    string `json:"date"`
	Marked  int    `json:"marked"`
}

// BatchAttendanceRow is an active student with their record for the date, if any
type BatchAttendanceRow struct {
	Student *models.Student    `json:"student"`
	Record  *models.Attendance `json:"record"`
}

// MonthlyAttendanceRow is one student's aggregate for a month
type MonthlyAttendanceRow struct {
	Student     *models.Student `json:"student"`
	TotalDays   int             `json:"totalDays"`
	PresentDays int             `json:"presentDays"`
	Percentage  float64         `json:"percentage"`
}

// MonthlyAttendanceReport is the batch report for a calendar month
type MonthlyAttendanceReport struct {
	BatchID   int64                  `json:"batchId"`
	BatchName string                 `json:"batchName"`
	Year      int                    `json:"year"`
	Month     int                    `json:"month"`
	Rows      []MonthlyAttendanceRow `json:"rows"`
}

// StudentAttendanceResponse is a student's history with totals
type StudentAttendanceResponse struct {
	StudentID   int64                `json:"studentId"`
	Records     []*models.Attendance `json:"records"`
	TotalDays   int                  `json:"totalDays"`
	PresentDays int                  `json:"presentDays"`
	Percentage  float64              `json:"percentage"`
}

// BatchOverview summarises one batch for a day
type BatchOverview struct {
	BatchID       int64  `json:"batchId"`
	BatchName     string `json:"batchName"`
	TotalStudents int    `json:"totalStudents"`
	Marked        int    `json:"marked"`
	Present       int    `json:"present"`
	Absent        int    `json:"absent"`
}
