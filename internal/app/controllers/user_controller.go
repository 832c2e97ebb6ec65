package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/services"
	"github.com/sga/schoolhub/internal/middleware"
)

// UserController handles staff accounts and recipient search
type UserController struct {
	userService services.UserService
	logger      zerolog.Logger
}

// NewUserController creates a new user controller
func NewUserController(userService services.UserService, logger zerolog.Logger) *UserController {
	return &UserController{
		userService: userService,
		logger:      logger,
	}
}

// CreateTeacher creates a teacher account
// @Summary Create teacher
// @Tags teachers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateTeacherRequest true "Teacher account"
// @Success 201 {object} dto.APIResponse{data=dto.TeacherResponse}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Failure 403 {object} dto.APIResponse{error=dto.ErrorDetail} "Administrator access required"
// @Failure 409 {object} dto.APIResponse{error=dto.ErrorDetail} "Email already exists"
// @Router /teachers [post]
func (c *UserController) CreateTeacher(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.CreateTeacherRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	teacher, err := c.userService.CreateTeacher(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("teacherID", teacher.ID).Msg("Teacher created")
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(teacher))
}

// ListTeachers lists teacher accounts with their batches
// @Summary List teachers
// @Tags teachers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.TeacherResponse}
// @Router /teachers [get]
func (c *UserController) ListTeachers(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	teachers, err := c.userService.ListTeachers(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(teachers))
}

// GetTeacher returns one teacher
// @Summary Get teacher
// @Tags teachers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Teacher user ID"
// @Success 200 {object} dto.APIResponse{data=dto.TeacherResponse}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /teachers/{id} [get]
func (c *UserController) GetTeacher(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	teacher, err := c.userService.GetTeacher(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(teacher))
}

// UpdateTeacher updates a teacher account, optionally resetting the password
// @Summary Update teacher
// @Tags teachers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Teacher user ID"
// @Param request body dto.UpdateTeacherRequest true "Teacher account"
// @Success 200 {object} dto.APIResponse{data=dto.TeacherResponse}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Failure 409 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /teachers/{id} [put]
func (c *UserController) UpdateTeacher(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.UpdateTeacherRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	teacher, err := c.userService.UpdateTeacher(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(teacher))
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// SetActive enables or disables an account
// @Summary Toggle account
// @Tags teachers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /teachers/{id}/active [patch]
func (c *UserController) SetActive(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req setActiveRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	user, err := c.userService.SetActive(ctx.Request.Context(), actor, id, *req.IsActive)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("userID", id).Bool("isActive", *req.IsActive).Msg("Account status changed")
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(user))
}

// DeleteTeacher removes a teacher and unassigns their batches
// @Summary Delete teacher
// @Tags teachers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Teacher user ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /teachers/{id} [delete]
func (c *UserController) DeleteTeacher(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.userService.DeleteTeacher(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("teacherID", id).Msg("Teacher deleted")
	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Teacher deleted successfully"))
}

// SearchUsers finds message recipients
// @Summary Search users
// @Description Active users other than the caller; "*" or empty lists the first 20
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param q query string false "Username or email fragment"
// @Success 200 {object} dto.APIResponse{data=[]dto.UserBasicResponse}
// @Router /users/search [get]
func (c *UserController) SearchUsers(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	users, err := c.userService.SearchUsers(ctx.Request.Context(), actor, ctx.Query("q"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(users))
}
