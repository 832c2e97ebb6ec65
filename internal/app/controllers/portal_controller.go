package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/services"
	"github.com/sga/schoolhub/internal/middleware"
)

// PortalController serves the logged-in student's own data
type PortalController struct {
	portalService services.PortalService
	logger        zerolog.Logger
}

// NewPortalController creates a new PortalController
func NewPortalController(portalService services.PortalService, logger zerolog.Logger) *PortalController {
	return &PortalController{
		portalService: portalService,
		logger:        logger,
	}
}

// Dashboard godoc
// @Summary Student dashboard
// @Tags portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.PortalDashboard}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail} "No student linked to this account"
// @Router /portal/dashboard [get]
func (c *PortalController) Dashboard(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	dash, err := c.portalService.Dashboard(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dash))
}

// Profile godoc
// @Summary Own student record
// @Tags portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=models.Student}
// @Router /portal/profile [get]
func (c *PortalController) Profile(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	student, err := c.portalService.Profile(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(student))
}

// UpdateProfile godoc
// @Summary Update own personal details
// @Description Email and phone stay as recorded by the school
// @Tags portal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.StudentProfile true "Profile"
// @Success 200 {object} dto.APIResponse{data=models.Student}
// @Router /portal/profile [put]
func (c *PortalController) UpdateProfile(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.StudentProfile
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	student, err := c.portalService.UpdateProfile(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(student))
}

// Attendance godoc
// @Summary Own attendance history
// @Tags portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentAttendanceResponse}
// @Router /portal/attendance [get]
func (c *PortalController) Attendance(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	resp, err := c.portalService.Attendance(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// Fees godoc
// @Summary Own payments
// @Tags portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.PortalFeesResponse}
// @Router /portal/fees [get]
func (c *PortalController) Fees(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	resp, err := c.portalService.Fees(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// Announcements godoc
// @Summary Own announcement feed
// @Tags portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Announcement}
// @Router /portal/announcements [get]
func (c *PortalController) Announcements(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	list, err := c.portalService.Announcements(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(list))
}
