package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/pkg/validation"
)

// BindJSON binds the request body into obj and writes a 400 response when
// the body is malformed or fails validation. It reports whether to continue.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewAPIErrorResponse(bindingErrorDetail(err)))
		return false
	}
	return true
}

// BindQuery is BindJSON for query-string parameters
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewAPIErrorResponse(bindingErrorDetail(err)))
		return false
	}
	return true
}

func bindingErrorDetail(err error) *dto.ErrorDetail {
	all := dto.NewValidationErrors()
	for _, f := range validation.FieldErrors(err) {
		all.AddError(f.Field, f.Message)
	}
	if !all.HasErrors() {
		return dto.NewErrorDetail(dto.ErrorCodeInvalidRequest, "Invalid request format").
			WithDetails(err.Error())
	}
	first := all.Errors[0]
	return dto.NewErrorDetail(dto.ErrorCodeValidationFailed, first.Message).
		WithField(first.Field).
		WithDetails(all)
}

// ParamID parses a positive int64 path parameter, writing a 400 on failure
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeInvalidRequest, "Invalid "+name).
			WithField(name).
			WithDetails("ID must be a positive number")
		c.JSON(http.StatusBadRequest, dto.NewAPIErrorResponse(errorDetail))
		return 0, false
	}
	return id, true
}

// RequireActor returns the authenticated caller or writes a 401
func RequireActor(c *gin.Context) (actor models.Actor, ok bool) {
	actor, ok = CurrentActor(c)
	if !ok {
		abortUnauthorized(c, dto.ErrorCodeUnauthorized, "User information not found")
	}
	return actor, ok
}
