package apperrors

import "errors"

// Taxonomy
var (
	ErrValidation       = errors.New("validation failed")
	ErrResourceNotFound = errors.New("resource not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")
	ErrIntegrity        = errors.New("integrity violation")
)

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// User errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

// Enrollment errors
var (
	ErrBatchNotFound   = errors.New("batch not found")
	ErrStudentNotFound = errors.New("student not found")
)

// Fee errors
var (
	ErrFeeStructureNotFound   = errors.New("fee structure not found")
	ErrFeeTransactionNotFound = errors.New("fee transaction not found")
	ErrFeeDueNotFound         = errors.New("fee due not found")
	ErrSequenceExhausted      = errors.New("sequence exhausted for prefix")
)

// Messaging errors
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// ErrAnnouncementNotFound is returned when an announcement id does not exist
var ErrAnnouncementNotFound = errors.New("announcement not found")

// NewValidationError creates a validation error for a single field
func NewValidationError(field, message string) error {
	return &CustomError{
		Err:     ErrValidation,
		Field:   field,
		Message: message,
	}
}

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewIntegrityError reports a deletion blocked by dependent records
func NewIntegrityError(message string) error {
	return &CustomError{
		Err:     ErrIntegrity,
		Message: message,
	}
}

// Wrap attaches a message to a sentinel so errors.Is still matches it.
func Wrap(sentinel error, message string) error {
	return &CustomError{Err: sentinel, Message: message}
}

// Is returns whether err matches target or any of errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

// IsNotFound reports whether err is any not-found error of the application.
func IsNotFound(err error) bool {
	return Is(err, ErrResourceNotFound,
		ErrUserNotFound,
		ErrBatchNotFound,
		ErrStudentNotFound,
		ErrFeeStructureNotFound,
		ErrFeeTransactionNotFound,
		ErrFeeDueNotFound,
		ErrConversationNotFound,
		ErrMessageNotFound,
		ErrAnnouncementNotFound,
	)
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Field   string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// Message returns the user-facing message carried by err, or fallback.
func Message(err error, fallback string) string {
	var ce *CustomError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return fallback
}

// Field returns the offending field carried by a validation error.
func Field(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}
