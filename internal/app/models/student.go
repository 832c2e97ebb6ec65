package models

import (
	"strings"
	"time"
)

// DefaultBatchCapacity is used when a batch is created without a capacity
const DefaultBatchCapacity = 30

// Batch is a cohort of students
type Batch struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ClassName   *string   `json:"className,omitempty" db:"class_name"`
	Capacity    int       `json:"capacity" db:"capacity"`
	TeacherID   *int64    `json:"teacherId,omitempty" db:"teacher_id"`
	Description *string   `json:"description,omitempty" db:"description"`
	IsActive    bool      `json:"isActive" db:"is_active"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`

	// StudentCount is the number of ACTIVE students, filled by queries that join it.
	StudentCount int `json:"studentCount" db:"-"`
}

// AvailableSeats never goes below zero
func (b *Batch) AvailableSeats() int {
	seats := b.Capacity - b.StudentCount
	if seats < 0 {
		return 0
	}
	return seats
}

// StudentStatus is the enrollment state of a student
type StudentStatus string

const (
	StudentActive    StudentStatus = "ACTIVE"
	StudentInactive  StudentStatus = "INACTIVE"
	StudentGraduated StudentStatus = "GRADUATED"
	StudentDropped   StudentStatus = "DROPPED"
)

func (s StudentStatus) Valid() bool {
	switch s {
	case StudentActive, StudentInactive, StudentGraduated, StudentDropped:
		return true
	}
	return false
}

// Student is an enrolled learner. Code is the human-facing SGA<YYYY><NNNN> identifier.
type Student struct {
	ID                int64         `json:"id" db:"id"`
	Code              string        `json:"studentId" db:"student_code"`
	UserID            *int64        `json:"userId,omitempty" db:"user_id"`
	BatchID           *int64        `json:"batchId,omitempty" db:"batch_id"`
	FirstName         string        `json:"firstName" db:"first_name"`
	LastName          string        `json:"lastName" db:"last_name"`
	DateOfBirth       *time.Time    `json:"dateOfBirth,omitempty" db:"date_of_birth"`
	Gender            *string       `json:"gender,omitempty" db:"gender"`
	Email             *string       `json:"email,omitempty" db:"email"`
	Phone             *string       `json:"phone,omitempty" db:"phone"`
	Address           *string       `json:"address,omitempty" db:"address"`
	City              *string       `json:"city,omitempty" db:"city"`
	State             *string       `json:"state,omitempty" db:"state"`
	Pincode           *string       `json:"pincode,omitempty" db:"pincode"`
	ParentName        *string       `json:"parentName,omitempty" db:"parent_name"`
	ParentPhone       *string       `json:"parentPhone,omitempty" db:"parent_phone"`
	ParentEmail       *string       `json:"parentEmail,omitempty" db:"parent_email"`
	ParentOccupation  *string       `json:"parentOccupation,omitempty" db:"parent_occupation"`
	BloodGroup        *string       `json:"bloodGroup,omitempty" db:"blood_group"`
	MedicalConditions *string       `json:"medicalConditions,omitempty" db:"medical_conditions"`
	PreviousSchool    *string       `json:"previousSchool,omitempty" db:"previous_school"`
	Remarks           *string       `json:"remarks,omitempty" db:"remarks"`
	EnrollmentDate    *time.Time    `json:"enrollmentDate,omitempty" db:"enrollment_date"`
	Status            StudentStatus `json:"status" db:"status"`
	CreatedAt         time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time     `json:"updatedAt" db:"updated_at"`
}

// FullName joins first and last name
func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// EffectiveEnrollmentDate falls back to the creation date when no enrollment date was recorded.
func (s *Student) EffectiveEnrollmentDate() time.Time {
	if s.EnrollmentDate != nil {
		return *s.EnrollmentDate
	}
	return s.CreatedAt
}

// StudentFilter narrows student listings
type StudentFilter struct {
	Search        string
	BatchID       *int64
	Status        *StudentStatus
	EnrolledSince *time.Time
	Offset        uint64
	Limit         int
}
