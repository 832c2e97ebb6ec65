package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/services"
	"github.com/sga/schoolhub/internal/middleware"
	"github.com/sga/schoolhub/internal/pkg/helpers"
)

// StudentController handles enrollment
type StudentController struct {
	studentService services.StudentService
	logger         zerolog.Logger
}

// NewStudentController creates a new StudentController
func NewStudentController(studentService services.StudentService, logger zerolog.Logger) *StudentController {
	return &StudentController{
		studentService: studentService,
		logger:         logger,
	}
}

// CreateStudent enrolls a student, optionally generating a login
// @Summary Enroll student
// @Description Credentials are only returned in this response
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateStudentRequest true "Student"
// @Success 201 {object} dto.APIResponse{data=dto.StudentCreatedResponse}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail} "Validation failed or batch full"
// @Failure 409 {object} dto.APIResponse{error=dto.ErrorDetail} "No free username"
// @Router /students [post]
func (c *StudentController) CreateStudent(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.CreateStudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	created, err := c.studentService.CreateStudent(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().
		Int64("studentID", created.Student.ID).
		Str("studentCode", created.Student.Code).
		Bool("login", created.Credentials != nil).
		Msg("Student enrolled")
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(created))
}

// ListStudents godoc
// @Summary List students
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name, code or phone"
// @Param batchId query int false "Batch filter"
// @Param status query string false "ACTIVE, INACTIVE, GRADUATED or DROPPED"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.StudentListResponse}
// @Router /students [get]
func (c *StudentController) ListStudents(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	filter := models.StudentFilter{Search: strings.TrimSpace(ctx.Query("search"))}
	if filter.BatchID, ok = queryInt64(ctx, "batchId"); !ok {
		return
	}
	if raw := ctx.Query("status"); raw != "" {
		status := models.StudentStatus(strings.ToUpper(raw))
		if !status.Valid() {
			badQuery(ctx, "status", "unknown student status")
			return
		}
		filter.Status = &status
	}
	page, size := helpers.ParsePaginationParams(ctx)

	resp, err := c.studentService.ListStudents(ctx.Request.Context(), actor, filter, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// GetStudent godoc
// @Summary Get student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=models.Student}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /students/{id} [get]
func (c *StudentController) GetStudent(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	student, err := c.studentService.GetStudent(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(student))
}

// UpdateStudent godoc
// @Summary Update student
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param request body dto.UpdateStudentRequest true "Student"
// @Success 200 {object} dto.APIResponse{data=models.Student}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /students/{id} [put]
func (c *StudentController) UpdateStudent(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.UpdateStudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	student, err := c.studentService.UpdateStudent(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(student))
}

type statusRequest struct {
	Status models.StudentStatus `json:"status" binding:"required,student_status"`
}

// SetStatus godoc
// @Summary Change student status
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=models.Student}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /students/{id}/status [patch]
func (c *StudentController) SetStatus(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	student, err := c.studentService.SetStatus(ctx.Request.Context(), actor, id, req.Status)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(student))
}

// MoveStudents godoc
// @Summary Move students to a batch
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BulkMoveRequest true "Students and target batch"
// @Success 200 {object} dto.APIResponse{data=dto.BulkResult}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail} "Batch full"
// @Router /students/move [post]
func (c *StudentController) MoveStudents(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.BulkMoveRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, err := c.studentService.MoveStudents(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result))
}

// DeleteStudent godoc
// @Summary Delete student
// @Description Removes attendance, dues, payments and the linked login
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /students/{id} [delete]
func (c *StudentController) DeleteStudent(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.studentService.DeleteStudent(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("studentID", id).Msg("Student deleted")
	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Student deleted successfully"))
}

// DeleteStudents godoc
// @Summary Bulk delete students
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BulkDeleteRequest true "Student IDs"
// @Success 200 {object} dto.APIResponse{data=dto.BulkResult}
// @Router /students/bulk-delete [post]
func (c *StudentController) DeleteStudents(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.BulkDeleteRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, err := c.studentService.DeleteStudents(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int("affected", result.Affected).Msg("Students deleted")
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result))
}

// CreateLogin godoc
// @Summary Generate a student login
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 201 {object} dto.APIResponse{data=dto.LoginCredentials}
// @Failure 409 {object} dto.APIResponse{error=dto.ErrorDetail} "Student already has a login"
// @Router /students/{id}/login [post]
func (c *StudentController) CreateLogin(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	creds, err := c.studentService.CreateLogin(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(creds))
}

// NextStudentID godoc
// @Summary Preview the next student code
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=map[string]string}
// @Router /students/next-id [get]
func (c *StudentController) NextStudentID(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	code, err := c.studentService.GenerateStudentID(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"studentId": code}))
}
