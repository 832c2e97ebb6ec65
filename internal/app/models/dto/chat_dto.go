package dto

import "github.com/sga/schoolhub/internal/app/models"

// --- Request DTOs ---

// ComposeMessageRequest starts or continues a conversation with a user
type ComposeMessageRequest struct {
	RecipientID int64  `json:"recipientId" binding:"required,min=1"`
	Content     string `json:"content" binding:"required,max=5000"`
}

// SendMessageRequest posts into an existing conversation
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

// --- Response DTOs ---

// UserBasicResponse is the public view of a chat participant
type UserBasicResponse struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

// ToUserBasicResponse converts a user, nil-safe
func ToUserBasicResponse(u *models.User) *UserBasicResponse {
	if u == nil {
		return nil
	}
	return &UserBasicResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// InboxEntry is one conversation in the inbox
type InboxEntry struct {
	Conversation models.Conversation `json:"conversation"`
	OtherUser    *UserBasicResponse  `json:"otherUser"`
	LastMessage  *models.Message     `json:"lastMessage,omitempty"`
	UnreadCount  int                 `json:"unreadCount"`
}

// InboxResponse lists conversations newest activity first
type InboxResponse struct {
	Conversations []InboxEntry `json:"conversations"`
	TotalUnread   int          `json:"totalUnread"`
}

// ConversationResponse is an opened conversation
type ConversationResponse struct {
	Conversation *models.Conversation `json:"conversation"`
	OtherUser    *UserBasicResponse   `json:"otherUser"`
	Messages     []*models.Message    `json:"messages"`
}

// UnreadCountResponse carries the caller's total unread count
type UnreadCountResponse struct {
	Count int `json:"count"`
}
