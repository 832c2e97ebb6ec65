package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/services"
	"github.com/sga/schoolhub/internal/middleware"
)

// ChatController handles one-to-one messaging
type ChatController struct {
	chatService services.ChatService
	logger      zerolog.Logger
}

// NewChatController creates a new ChatController
func NewChatController(chatService services.ChatService, logger zerolog.Logger) *ChatController {
	return &ChatController{
		chatService: chatService,
		logger:      logger,
	}
}

// Inbox godoc
// @Summary Conversations of the caller
// @Description Newest activity first, with unread counts
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.InboxResponse}
// @Router /messages/conversations [get]
func (c *ChatController) Inbox(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	inbox, err := c.chatService.Inbox(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(inbox))
}

// Compose godoc
// @Summary Send a message to a user
// @Description Opens the conversation on first contact
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ComposeMessageRequest true "Recipient and content"
// @Success 201 {object} dto.APIResponse{data=models.Message}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail}
// @Router /messages [post]
func (c *ChatController) Compose(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req dto.ComposeMessageRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	msg, err := c.chatService.Compose(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(msg))
}

type openConversationRequest struct {
	UserID int64 `json:"userId" binding:"required,min=1"`
}

// StartConversation godoc
// @Summary Get or create the conversation with a user
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=models.Conversation}
// @Router /messages/conversations [post]
func (c *ChatController) StartConversation(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	var req openConversationRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	conv, err := c.chatService.GetOrCreateConversation(ctx.Request.Context(), actor, req.UserID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(conv))
}

// OpenConversation godoc
// @Summary Read a conversation
// @Description Marks incoming messages read and returns them oldest first
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} dto.APIResponse{data=dto.ConversationResponse}
// @Failure 403 {object} dto.APIResponse{error=dto.ErrorDetail} "Not a participant"
// @Router /messages/conversations/{id} [get]
func (c *ChatController) OpenConversation(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	conv, err := c.chatService.OpenConversation(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(conv))
}

// MessagesAfter godoc
// @Summary Poll a conversation for new messages
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Param after query int false "Last message ID already seen"
// @Success 200 {object} dto.APIResponse{data=[]models.Message}
// @Router /messages/conversations/{id}/messages [get]
func (c *ChatController) MessagesAfter(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var afterID int64
	if raw := ctx.Query("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			badQuery(ctx, "after", "must be a message id")
			return
		}
		afterID = v
	}

	messages, err := c.chatService.MessagesAfter(ctx.Request.Context(), actor, id, afterID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(messages))
}

// SendMessage godoc
// @Summary Reply in a conversation
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Param request body dto.SendMessageRequest true "Content"
// @Success 201 {object} dto.APIResponse{data=models.Message}
// @Router /messages/conversations/{id}/messages [post]
func (c *ChatController) SendMessage(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	msg, err := c.chatService.SendMessage(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(msg))
}

// MarkRead godoc
// @Summary Mark a conversation read
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} dto.APIResponse
// @Router /messages/conversations/{id}/read [post]
func (c *ChatController) MarkRead(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.chatService.MarkRead(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Conversation marked as read"))
}

// UnreadCount godoc
// @Summary Unread messages across all conversations
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.UnreadCountResponse}
// @Router /messages/unread-count [get]
func (c *ChatController) UnreadCount(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}

	total, err := c.chatService.TotalUnread(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.UnreadCountResponse{Count: total}))
}

// ClearConversation godoc
// @Summary Delete every message of a conversation
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} dto.APIResponse{data=dto.BulkResult}
// @Router /messages/conversations/{id}/messages [delete]
func (c *ChatController) ClearConversation(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	n, err := c.chatService.ClearConversation(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.BulkResult{Affected: int(n)}))
}

// DeleteConversation godoc
// @Summary Delete a conversation
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} dto.APIResponse
// @Router /messages/conversations/{id} [delete]
func (c *ChatController) DeleteConversation(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.chatService.DeleteConversation(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Conversation deleted successfully"))
}

// DeleteMessage godoc
// @Summary Delete one of your messages
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Message ID"
// @Success 200 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse{error=dto.ErrorDetail} "Not the sender"
// @Router /messages/{id} [delete]
func (c *ChatController) DeleteMessage(ctx *gin.Context) {
	actor, ok := middleware.RequireActor(ctx)
	if !ok {
		return
	}
	id, ok := middleware.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.chatService.DeleteMessage(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Message deleted successfully"))
}
