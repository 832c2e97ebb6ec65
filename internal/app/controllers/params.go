package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sga/schoolhub/internal/app/models/dto"
)

func badQuery(ctx *gin.Context, name, details string) {
	errorDetail := dto.NewErrorDetail(dto.ErrorCodeInvalidRequest, "Invalid query parameter "+name).
		WithField(name).
		WithDetails(details)
	ctx.JSON(http.StatusBadRequest, dto.NewAPIErrorResponse(errorDetail))
}

// queryInt64 reads an optional positive id from the query string
func queryInt64(ctx *gin.Context, name string) (*int64, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		badQuery(ctx, name, "must be a positive number")
		return nil, false
	}
	return &v, true
}

// queryBool reads an optional boolean, returning fallback when absent
func queryBool(ctx *gin.Context, name string, fallback bool) (bool, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badQuery(ctx, name, "must be true or false")
		return false, false
	}
	return v, true
}

// yearMonth reads year and month, defaulting to the current month
func yearMonth(ctx *gin.Context) (int, int, bool) {
	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if raw := ctx.Query("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			badQuery(ctx, "year", "must be a number")
			return 0, 0, false
		}
		year = v
	}
	if raw := ctx.Query("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			badQuery(ctx, "month", "must be a number")
			return 0, 0, false
		}
		month = v
	}
	return year, month, true
}

func wantsXLSX(ctx *gin.Context) bool {
	return ctx.Query("format") == "xlsx"
}
