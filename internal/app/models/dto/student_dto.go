package dto

import "github.com/sga/schoolhub/internal/app/models"

// --- Batch ---

// BatchRequest creates or updates a batch
type BatchRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	ClassName   *string `json:"className,omitempty" binding:"omitempty,max=50"`
	Capacity    int     `json:"capacity" binding:"omitempty,min=1"`
	TeacherID   *int64  `json:"teacherId,omitempty" binding:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// BatchResponse adds the computed seat count to a batch
type BatchResponse struct {
	*models.Batch
	AvailableSeats int `json:"availableSeats"`
}

// ToBatchResponse wraps a batch model
func ToBatchResponse(b *models.Batch) BatchResponse {
	return BatchResponse{Batch: b, AvailableSeats: b.AvailableSeats()}
}

// ToBatchResponses wraps a slice of batches
func ToBatchResponses(batches []*models.Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, ToBatchResponse(b))
	}
	return out
}

// --- Student ---

// StudentProfile holds the fields a student may edit about themselves
type StudentProfile struct {
	DateOfBirth       string  `json:"dateOfBirth,omitempty" binding:"omitempty,datetime=2006-01-02"`
	Gender            *string `json:"gender,omitempty" binding:"omitempty,max=10"`
	Email             *string `json:"email,omitempty" binding:"omitempty,email"`
	Phone             *string `json:"phone,omitempty" binding:"omitempty,max=20"`
	Address           *string `json:"address,omitempty"`
	City              *string `json:"city,omitempty" binding:"omitempty,max=50"`
	State             *string `json:"state,omitempty" binding:"omitempty,max=50"`
	Pincode           *string `json:"pincode,omitempty" binding:"omitempty,max=10"`
	ParentName        *string `json:"parentName,omitempty" binding:"omitempty,max=100"`
	ParentPhone       *string `json:"parentPhone,omitempty" binding:"omitempty,max=20"`
	ParentEmail       *string `json:"parentEmail,omitempty" binding:"omitempty,email"`
	ParentOccupation  *string `json:"parentOccupation,omitempty" binding:"omitempty,max=100"`
	BloodGroup        *string `json:"bloodGroup,omitempty" binding:"omitempty,max=5"`
	MedicalConditions *string `json:"medicalConditions,omitempty"`
	PreviousSchool    *string `json:"previousSchool,omitempty" binding:"omitempty,max=200"`
}

// CreateStudentRequest enrolls a new student
type CreateStudentRequest struct {
	FirstName      string  `json:"firstName" binding:"required,max=50"`
	LastName       string  `json:"lastName" binding:"required,max=50"`
	BatchID        *int64  `json:"batchId,omitempty" binding:"omitempty,min=1"`
	EnrollmentDate string  `json:"enrollmentDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	Remarks        *string `json:"remarks,omitempty"`
	CreateLogin    bool    `json:"createLogin"`
	StudentProfile
}

// UpdateStudentRequest replaces a student's record
type UpdateStudentRequest struct {
	FirstName      string               `json:"firstName" binding:"required,max=50"`
	LastName       string               `json:"lastName" binding:"required,max=50"`
	BatchID        *int64               `json:"batchId,omitempty" binding:"omitempty,min=1"`
	EnrollmentDate string               `json:"enrollmentDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	Status         models.StudentStatus `json:"status" binding:"omitempty,student_status"`
	Remarks        *string              `json:"remarks,omitempty"`
	StudentProfile
}

// LoginCredentials are returned once, when a student account is generated
type LoginCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// StudentCreatedResponse is returned by the enrollment endpoint
type StudentCreatedResponse struct {
	Student     *models.Student   `json:"student"`
	Credentials *LoginCredentials `json:"credentials,omitempty"`
}

// StudentListResponse is a paginated student listing
type StudentListResponse struct {
	Students   []*models.Student `json:"students"`
	Pagination PaginationInfo    `json:"pagination"`
}

// BulkMoveRequest moves students into a batch
type BulkMoveRequest struct {
	StudentIDs []int64 `json:"studentIds" binding:"required,min=1,unique,dive,min=1"`
	BatchID    int64   `json:"batchId" binding:"required,min=1"`
}

// BulkDeleteRequest deletes several students at once
type BulkDeleteRequest struct {
	StudentIDs []int64 `json:"studentIds" binding:"required,min=1,unique,dive,min=1"`
}

// BulkResult reports how many rows a bulk operation touched
type BulkResult struct {
	Affected int `json:"affected"`
}
