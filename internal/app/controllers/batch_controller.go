package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/services"
	"github.com/sga/schoolhub/internal/middleware"
)

// BatchController handles batch management
type BatchController struct {
	batchService services.BatchService
	logger       zerolog.Logger
}

// NewBatchController creates a new BatchController
func NewBatchController(batchService services.BatchService, logger zerolog.Logger) *BatchController {
	return &BatchController{
		batchService: batchService,
		logger:       logger,
	}
}

// CreateBatch godoc
// @Summary Create batch
// @Tags batches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BatchRequest true "Batch"
// @Success 201 {object} dto.APIResponse{data=dto.BatchResponse}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /batches [post]
func (c *BatchController) CreateBatch(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.BatchRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	batch, err := c.batchService.CreateBatch(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(batch))
}

// ListBatches godoc
// @Summary List batches
// @Tags batches
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active batches"
// @Success 200 {object} dto.APIResponse{data=[]dto.BatchResponse}
// @Router /batches [get]
func (c *BatchController) ListBatches(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	activeOnly, ok := queryBool(ctx, "active", false)
	if !ok {
		return
	}

	batches, err := c.batchService.ListBatches(ctx.Request.Context(), actor, activeOnly)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(batches))
}

// GetBatch godoc
// @Summary Get batch
// @Tags batches
// @Produce json
// @Security BearerAuth
// @Param id path int true "Batch ID"
// @Success 200 {object} dto.APIResponse{data=dto.BatchResponse}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /batches/{id} [get]
func (c *BatchController) GetBatch(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	batch, err := c.batchService.GetBatch(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(batch))
}

// UpdateBatch godoc
// @Summary Update batch
// @Tags batches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Batch ID"
// @Param request body dto.BatchRequest true "Batch"
// @Success 200 {object} dto.APIResponse{data=dto.BatchResponse}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /batches/{id} [put]
func (c *BatchController) UpdateBatch(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.BatchRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	batch, err := c.batchService.UpdateBatch(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(batch))
}

// DeleteBatch godoc
// @Summary Delete batch
// @Description Rejected while students or fee structures reference the batch
// @Tags batches
// @Produce json
// @Security BearerAuth
// @Param id path int true "Batch ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Failure 409 {object} dto.APIResponse{error=dto.ErrorDetail} "Batch in use"
// @Router /batches/{id} [delete]
func (c *BatchController) DeleteBatch(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.batchService.DeleteBatch(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("batchID", id).Msg("Batch deleted")
	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Batch deleted successfully"))
}
