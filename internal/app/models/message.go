package models

import "time"

// Conversation is a two-party thread. User1ID is always the smaller id.
type Conversation struct {
	ID            int64     `json:"id" db:"id"`
	User1ID       int64     `json:"user1Id" db:"user1_id"`
	User2ID       int64     `json:"user2Id" db:"user2_id"`
	LastMessageAt time.Time `json:"lastMessageAt" db:"last_message_at"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// CanonicalPair orders two user ids so the smaller comes first.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// HasParticipant reports whether userID is one of the two users
func (c *Conversation) HasParticipant(userID int64) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the id of the user that is not userID.
func (c *Conversation) OtherParticipant(userID int64) int64 {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// Message belongs to one conversation. IsRead refers to the recipient.
type Message struct {
	ID             int64     `json:"id" db:"id"`
	ConversationID int64     `json:"conversationId" db:"conversation_id"`
	SenderID       int64     `json:"senderId" db:"sender_id"`
	Content        string    `json:"content" db:"content"`
	IsRead         bool      `json:"isRead" db:"is_read"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

