package models

import "time"

// AttendanceStatus is the state recorded for a student on a day
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// CountsAsPresent is true for PRESENT and LATE.
func (s AttendanceStatus) CountsAsPresent() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// Attendance is unique per (StudentID, Date)
type Attendance struct {
	ID        int64            `json:"id" db:"id"`
	StudentID int64            `json:"studentId" db:"student_id"`
	Date      time.Time        `json:"date" db:"date"`
	Status    AttendanceStatus `json:"status" db:"status"`
	Remarks   *string          `json:"remarks,omitempty" db:"remarks"`
	MarkedBy  *int64           `json:"markedBy,omitempty" db:"marked_by"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time        `json:"updatedAt" db:"updated_at"`
}

// AttendanceTally counts marked and present days for one student
type AttendanceTally struct {
	Total   int
	Present int
}

// DayCounts summarises one batch's attendance on a single date
type DayCounts struct {
	Marked  int
	Present int
	Absent  int
}
