package controllers

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/services"
	"github.com/sga/schoolhub/internal/middleware"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/helpers"
	"github.com/sga/schoolhub/internal/pkg/report"
)

// FeeController handles fee structures, receipts and dues
type FeeController struct {
	feeService services.FeeService
	currency   string
	logger     zerolog.Logger
}

// NewFeeController creates a new FeeController. currency prefixes amounts in exported reports.
func NewFeeController(feeService services.FeeService, currency string, logger zerolog.Logger) *FeeController {
	return &FeeController{
		feeService: feeService,
		currency:   currency,
		logger:     logger,
	}
}

// --- Structures ---

// CreateStructure godoc
// @Summary Create fee structure
// @Tags fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.FeeStructureRequest true "Fee structure"
// @Success 201 {object} dto.APIResponse{data=models.FeeStructure}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /fees/structures [post]
func (c *FeeController) CreateStructure(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.FeeStructureRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	structure, err := c.feeService.CreateStructure(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(structure))
}

// ListStructures godoc
// @Summary List fee structures
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param batchId query int false "Batch filter"
// @Param active query bool false "Only active structures"
// @Success 200 {object} dto.APIResponse{data=[]models.FeeStructure}
// @Router /fees/structures [get]
func (c *FeeController) ListStructures(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	batchID, ok := queryInt64(ctx, "batchId")
	if !ok {
		return
	}
	activeOnly, ok := queryBool(ctx, "active", false)
	if !ok {
		return
	}

	structures, err := c.feeService.ListStructures(ctx.Request.Context(), actor, batchID, activeOnly)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(structures))
}

// GetStructure godoc
// @Summary Get fee structure
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fee structure ID"
// @Success 200 {object} dto.APIResponse{data=models.FeeStructure}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /fees/structures/{id} [get]
func (c *FeeController) GetStructure(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	structure, err := c.feeService.GetStructure(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(structure))
}

// UpdateStructure godoc
// @Summary Update fee structure
// @Tags fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fee structure ID"
// @Param request body dto.FeeStructureRequest true "Fee structure"
// @Success 200 {object} dto.APIResponse{data=models.FeeStructure}
// @Router /fees/structures/{id} [put]
func (c *FeeController) UpdateStructure(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.FeeStructureRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	structure, err := c.feeService.UpdateStructure(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(structure))
}

// DeleteStructure godoc
// @Summary Delete fee structure
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fee structure ID"
// @Success 200 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse{error=dto.ErrorDetail} "Referenced by payments"
// @Router /fees/structures/{id} [delete]
func (c *FeeController) DeleteStructure(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.feeService.DeleteStructure(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Fee structure deleted successfully"))
}

// --- Payments ---

// CollectFee godoc
// @Summary Collect a fee payment
// @Description Issues the next receipt number of the day
// @Tags fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CollectFeeRequest true "Payment"
// @Success 201 {object} dto.APIResponse{data=models.FeeTransaction}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail} "Student or structure not found"
// @Router /fees/transactions [post]
func (c *FeeController) CollectFee(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.CollectFeeRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	txn, err := c.feeService.CollectFee(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().
		Str("receipt", txn.ReceiptNumber).
		Int64("studentID", txn.StudentID).
		Float64("amount", txn.Amount).
		Msg("Fee collected")
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(txn))
}

// ListTransactions godoc
// @Summary List payments
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param studentId query int false "Student filter"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Param mode query string false "Payment mode"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.TransactionListResponse}
// @Router /fees/transactions [get]
func (c *FeeController) ListTransactions(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	var filter models.TransactionFilter
	if filter.StudentID, ok = queryInt64(ctx, "studentId"); !ok {
		return
	}
	var err error
	if filter.From, err = helpers.ParseDatePtr(ctx.Query("from")); err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewValidationError("from", err.Error()))
		return
	}
	if filter.To, err = helpers.ParseDatePtr(ctx.Query("to")); err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewValidationError("to", err.Error()))
		return
	}
	if raw := ctx.Query("mode"); raw != "" {
		mode := models.PaymentMode(strings.ToUpper(raw))
		if !mode.Valid() {
			badQuery(ctx, "mode", "unknown payment mode")
			return
		}
		filter.PaymentMode = &mode
	}
	page, size := helpers.ParsePaginationParams(ctx)

	resp, err := c.feeService.ListTransactions(ctx.Request.Context(), actor, filter, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// GetTransaction godoc
// @Summary Get payment
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} dto.APIResponse{data=models.FeeTransaction}
// @Failure 404 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /fees/transactions/{id} [get]
func (c *FeeController) GetTransaction(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	txn, err := c.feeService.GetTransaction(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(txn))
}

// NextReceiptNumber godoc
// @Summary Preview the next receipt number
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=map[string]string}
// @Router /fees/receipt-number [get]
func (c *FeeController) NextReceiptNumber(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	receipt, err := c.feeService.GenerateReceiptNumber(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"receiptNumber": receipt}))
}

// --- Derived positions ---

// PendingDues godoc
// @Summary Students with pending fees
// @Description Derived from elapsed enrollment months and payments, largest first
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param batchId query int false "Batch filter"
// @Success 200 {object} dto.APIResponse{data=[]models.PendingDue}
// @Router /fees/pending [get]
func (c *FeeController) PendingDues(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	batchID, ok := queryInt64(ctx, "batchId")
	if !ok {
		return
	}

	dues, err := c.feeService.PendingDues(ctx.Request.Context(), actor, batchID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dues))
}

// StudentFeeStatus godoc
// @Summary Payment window status of a student
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.FeeStatusResponse}
// @Router /fees/students/{id}/status [get]
func (c *FeeController) StudentFeeStatus(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	status, err := c.feeService.StudentFeeStatus(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(status))
}

// StudentFeeDetails godoc
// @Summary Fee position of a student
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.StudentFeeDetails}
// @Router /fees/students/{id} [get]
func (c *FeeController) StudentFeeDetails(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	details, err := c.feeService.StudentFeeDetails(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(details))
}

// CollectionReport godoc
// @Summary Monthly collection report
// @Description JSON by default, spreadsheet with format=xlsx
// @Tags fees
// @Produce json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param year query int false "Year"
// @Param month query int false "Month 1-12"
// @Param format query string false "xlsx"
// @Success 200 {object} dto.APIResponse{data=dto.CollectionReport}
// @Router /fees/reports/collection [get]
func (c *FeeController) CollectionReport(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	year, month, ok := yearMonth(ctx)
	if !ok {
		return
	}

	rep, err := c.feeService.CollectionReport(ctx.Request.Context(), actor, year, month)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	if !wantsXLSX(ctx) {
		ctx.JSON(http.StatusOK, dto.NewSuccessResponse(rep))
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCollection(&buf, rep, c.currency); err != nil {
		c.logger.Error().Err(err).Int("year", year).Int("month", month).Msg("Failed to render collection report")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", `attachment; filename="`+report.CollectionFilename(rep)+`"`)
	ctx.Data(http.StatusOK, report.ContentTypeXLSX, buf.Bytes())
}

// Summary godoc
// @Summary Collection dashboard
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.FeeSummary}
// @Router /fees/summary [get]
func (c *FeeController) Summary(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	summary, err := c.feeService.Summary(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(summary))
}

// --- Explicit dues ---

// CreateDue godoc
// @Summary Schedule a fee due
// @Tags fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateFeeDueRequest true "Due"
// @Success 201 {object} dto.APIResponse{data=models.FeeDue}
// @Router /fees/dues [post]
func (c *FeeController) CreateDue(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.CreateFeeDueRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	due, err := c.feeService.CreateDue(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(due))
}

// PayDue godoc
// @Summary Record a payment against a due
// @Tags fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Due ID"
// @Param request body dto.DuePaymentRequest true "Amount"
// @Success 200 {object} dto.APIResponse{data=models.FeeDue}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail} "Due already settled"
// @Router /fees/dues/{id}/pay [post]
func (c *FeeController) PayDue(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.DuePaymentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	due, err := c.feeService.PayDue(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(due))
}

// StudentDues godoc
// @Summary Dues of a student
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=[]models.FeeDue}
// @Router /fees/students/{id}/dues [get]
func (c *FeeController) StudentDues(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	dues, err := c.feeService.StudentDues(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dues))
}

// Defaulters godoc
// @Summary Unpaid dues past their date
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.FeeDue}
// @Router /fees/defaulters [get]
func (c *FeeController) Defaulters(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	dues, err := c.feeService.Defaulters(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dues))
}

// RefreshOverdue godoc
// @Summary Mark past-date dues as overdue
// @Tags fees
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.RefreshOverdueResponse}
// @Router /fees/dues/refresh-overdue [post]
func (c *FeeController) RefreshOverdue(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	resp, err := c.feeService.RefreshOverdue(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Int64("updated", resp.Updated).Msg("Overdue dues refreshed")
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}
