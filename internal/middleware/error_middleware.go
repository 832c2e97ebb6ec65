package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/dberrors"
)

// HandleAPIError handles common API errors and returns appropriate responses
func HandleAPIError(c *gin.Context, err error) {
	status, detail := errorResponse(err)
	if status < http.StatusInternalServerError {
		// client mistakes are expected traffic
		detail.WithSeverity(dto.ErrorSeverityWarning)
	} else {
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Unhandled error")
		// raw causes are only exposed while developing
		if gin.IsDebugging() {
			detail.WithDebugInfo("%v", err)
		}
	}
	c.JSON(status, dto.NewAPIErrorResponse(detail))
}

func errorResponse(err error) (int, *dto.ErrorDetail) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		detail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, apperrors.Message(err, "Validation failed"))
		if field := apperrors.Field(err); field != "" {
			detail = detail.WithField(field)
		}
		return http.StatusBadRequest, detail
	case apperrors.IsNotFound(err):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, apperrors.Message(err, notFoundMessage(err)))
	case errors.Is(err, apperrors.ErrAccountDisabled):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeAccountDisabled, apperrors.Message(err, "Account is disabled"))
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeForbidden, apperrors.Message(err, "Permission denied"))
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidCredentials, apperrors.Message(err, "Invalid credentials"))
	case errors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeExpiredToken, apperrors.Message(err, "Token expired"))
	case errors.Is(err, apperrors.ErrTokenNotFound):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeTokenNotFound, apperrors.Message(err, "Token not found"))
	case apperrors.Is(err, apperrors.ErrTokenInvalid, apperrors.ErrTokenRevoked):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidToken, apperrors.Message(err, "Invalid token"))
	case apperrors.Is(err, apperrors.ErrConflict, apperrors.ErrEmailAlreadyExists, apperrors.ErrSequenceExhausted):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeResourceAlreadyExists, apperrors.Message(err, "Resource already exists"))
	case errors.Is(err, apperrors.ErrIntegrity):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeResourceInUse, apperrors.Message(err, "Resource is still referenced"))
	case dberrors.IsDatabaseError(err):
		return http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeDatabaseError, "A database error occurred").
			WithSeverity(dto.ErrorSeverityCritical)
	default:
		return http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
	}
}

func notFoundMessage(err error) string {
	var target error = apperrors.ErrResourceNotFound
	for _, sentinel := range []error{
		apperrors.ErrUserNotFound,
		apperrors.ErrBatchNotFound,
		apperrors.ErrStudentNotFound,
		apperrors.ErrFeeStructureNotFound,
		apperrors.ErrFeeTransactionNotFound,
		apperrors.ErrFeeDueNotFound,
		apperrors.ErrConversationNotFound,
		apperrors.ErrMessageNotFound,
		apperrors.ErrAnnouncementNotFound,
	} {
		if errors.Is(err, sentinel) {
			target = sentinel
			break
		}
	}
	msg := target.Error()
	return strings.ToUpper(msg[:1]) + msg[1:]
}
