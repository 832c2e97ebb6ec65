// Package services holds the business operations of the school backend.
// Every operation that checks permissions takes the caller as a models.Actor.
// Multi-step writes run inside db.Transactor so they commit or roll back as one.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/auth"
	"github.com/sga/schoolhub/internal/pkg/helpers"
	"github.com/sga/schoolhub/internal/pkg/validation"
)

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// PasswordHasher hashes a plain-text password
type PasswordHasher func(password string) (string, error)

// SchoolSettings carries the school-specific knobs services need
type SchoolSettings struct {
	ReceiptPrefix    string
	StudentIDPrefix  string
	PendingTolerance float64
	FeeWindowDays    int
	UsernameDomain   string
}

var requestValidator = validation.NewForBinding()

// validateRequest re-runs the binding rules on a request DTO and returns the
// first failure as a validation error.
func validateRequest(req interface{}) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return err
	}
	if fields := validation.FieldErrors(err); len(fields) > 0 {
		return apperrors.NewValidationError(fields[0].Field, fields[0].Message)
	}
	return apperrors.NewValidationError("", err.Error())
}

func requireStaff(actor models.Actor) error {
	if !actor.Role.IsStaff() {
		return apperrors.NewForbiddenError("Staff access required")
	}
	return nil
}

func requireAdmin(actor models.Actor) error {
	if !actor.Role.CanManageStaff() {
		return apperrors.NewForbiddenError("Administrator access required")
	}
	return nil
}

// requireStaffOrOwner lets staff through and students only for their own record
func requireStaffOrOwner(ctx context.Context, students repositories.IStudentRepository, actor models.Actor, studentID int64, what string) error {
	if actor.Role.IsStaff() {
		return nil
	}
	own, err := students.GetByUserID(ctx, actor.UserID)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if own == nil || own.ID != studentID {
		return apperrors.NewForbiddenError("You can only view your own " + what)
	}
	return nil
}

func parseDateField(field, value string) (time.Time, error) {
	t, err := helpers.ParseDate(value)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(field, err.Error())
	}
	return t, nil
}

func parseOptionalDateField(field, value string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return helpers.DateOnly(fallback), nil
	}
	return parseDateField(field, value)
}

func parseDatePtrField(field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := parseDateField(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// AccountPurger removes a login account and everything hanging off it:
// refresh tokens, conversations with their messages, then the user row.
type AccountPurger struct {
	userRepo  repositories.IUserRepository
	tokenRepo repositories.ITokenRepository
	chatRepo  repositories.IChatRepository
}

// NewAccountPurger creates an AccountPurger
func NewAccountPurger(
	userRepo repositories.IUserRepository,
	tokenRepo repositories.ITokenRepository,
	chatRepo repositories.IChatRepository,
) AccountPurger {
	return AccountPurger{userRepo: userRepo, tokenRepo: tokenRepo, chatRepo: chatRepo}
}

func (p AccountPurger) purge(ctx context.Context, userID int64) error {
	if err := p.tokenRepo.DeleteUserTokens(ctx, userID); err != nil {
		return err
	}
	if err := p.chatRepo.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}
	return p.userRepo.Delete(ctx, userID)
}

func defaultHasher(password string) (string, error) {
	return auth.HashPassword(password)
}
