package controllers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/services"
	"github.com/sga/schoolhub/internal/middleware"
	"github.com/sga/schoolhub/internal/pkg/report"
)

// AttendanceController handles attendance marking and reports
type AttendanceController struct {
	attendanceService services.AttendanceService
	logger            zerolog.Logger
}

// NewAttendanceController creates a new AttendanceController
func NewAttendanceController(attendanceService services.AttendanceService, logger zerolog.Logger) *AttendanceController {
	return &AttendanceController{
		attendanceService: attendanceService,
		logger:            logger,
	}
}

// MarkBatchAttendance godoc
// @Summary Mark attendance for a batch
// @Description Active students left out of entries are recorded ABSENT
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.MarkAttendanceRequest true "Batch, date and entries"
// @Success 200 {object} dto.APIResponse{data=dto.MarkAttendanceResponse}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail} "Batch not found"
// @Router /attendance [post]
func (c *AttendanceController) MarkBatchAttendance(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.MarkAttendanceRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	resp, err := c.attendanceService.MarkBatchAttendance(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("batchID", req.BatchID).Str("date", req.Date).Int("marked", resp.Marked).Msg("Attendance marked")
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// BatchAttendance godoc
// @Summary Attendance sheet for a batch and date
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param id path int true "Batch ID"
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} dto.APIResponse{data=[]dto.BatchAttendanceRow}
// @Router /attendance/batches/{id} [get]
func (c *AttendanceController) BatchAttendance(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	batchID, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	rows, err := c.attendanceService.BatchAttendance(ctx.Request.Context(), actor, batchID, ctx.Query("date"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(rows))
}

// MonthlyReport godoc
// @Summary Monthly attendance report
// @Description JSON by default, spreadsheet with format=xlsx
// @Tags attendance
// @Produce json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "Batch ID"
// @Param year query int false "Year"
// @Param month query int false "Month 1-12"
// @Param format query string false "xlsx"
// @Success 200 {object} dto.APIResponse{data=dto.MonthlyAttendanceReport}
// @Router /attendance/batches/{id}/report [get]
func (c *AttendanceController) MonthlyReport(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	batchID, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	year, month, ok := yearMonth(ctx)
	if !ok {
		return
	}

	rep, err := c.attendanceService.MonthlyReport(ctx.Request.Context(), actor, batchID, year, month)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	if !wantsXLSX(ctx) {
		ctx.JSON(http.StatusOK, dto.NewSuccessResponse(rep))
		return
	}

	var buf bytes.Buffer
	if err := report.WriteMonthlyAttendance(&buf, rep); err != nil {
		c.logger.Error().Err(err).Int64("batchID", batchID).Msg("Failed to render attendance report")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", `attachment; filename="`+report.AttendanceFilename(rep)+`"`)
	ctx.Data(http.StatusOK, report.ContentTypeXLSX, buf.Bytes())
}

// StudentAttendance godoc
// @Summary Attendance history of a student
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} dto.APIResponse{data=dto.StudentAttendanceResponse}
// @Router /attendance/students/{id} [get]
func (c *AttendanceController) StudentAttendance(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	studentID, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	resp, err := c.attendanceService.StudentAttendance(ctx.Request.Context(), actor, studentID, ctx.Query("from"), ctx.Query("to"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// DailyOverview godoc
// @Summary Per-batch attendance for a day
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} dto.APIResponse{data=[]dto.BatchOverview}
// @Router /attendance/overview [get]
func (c *AttendanceController) DailyOverview(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	overview, err := c.attendanceService.DailyOverview(ctx.Request.Context(), actor, ctx.Query("date"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(overview))
}
