package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
)

// ChatService defines the interface for direct messaging between two users
type ChatService interface {
	GetOrCreateConversation(ctx context.Context, actor models.Actor, otherUserID int64) (*models.Conversation, error)
	SendMessage(ctx context.Context, actor models.Actor, conversationID int64, req *dto.SendMessageRequest) (*models.Message, error)
	Compose(ctx context.Context, actor models.Actor, req *dto.ComposeMessageRequest) (*models.Message, error)
	Inbox(ctx context.Context, actor models.Actor) (*dto.InboxResponse, error)
	OpenConversation(ctx context.Context, actor models.Actor, conversationID int64) (*dto.ConversationResponse, error)
	MessagesAfter(ctx context.Context, actor models.Actor, conversationID, afterID int64) ([]*models.Message, error)
	MarkRead(ctx context.Context, actor models.Actor, conversationID int64) error
	UnreadCount(ctx context.Context, actor models.Actor, conversationID int64) (int, error)
	TotalUnread(ctx context.Context, actor models.Actor) (int, error)
	DeleteMessage(ctx context.Context, actor models.Actor, messageID int64) error
	ClearConversation(ctx context.Context, actor models.Actor, conversationID int64) (int64, error)
	DeleteConversation(ctx context.Context, actor models.Actor, conversationID int64) error
}

// chatServiceImpl implements ChatService
type chatServiceImpl struct {
	chatRepo repositories.IChatRepository
	userRepo repositories.IUserRepository
	tx       db.Transactor
	logger   zerolog.Logger
}

// NewChatService creates a new ChatService
func NewChatService(
	chatRepo repositories.IChatRepository,
	userRepo repositories.IUserRepository,
	tx db.Transactor,
	logger zerolog.Logger,
) ChatService {
	return &chatServiceImpl{
		chatRepo: chatRepo,
		userRepo: userRepo,
		tx:       tx,
		logger:   logger,
	}
}

// participantConversation loads a conversation the actor takes part in
func (s *chatServiceImpl) participantConversation(ctx context.Context, actor models.Actor, id int64) (*models.Conversation, error) {
	conv, err := s.chatRepo.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actor.UserID) {
		s.logger.Warn().Int64("conversationID", id).Int64("userID", actor.UserID).Msg("Conversation access denied")
		return nil, apperrors.NewForbiddenError("You do not have access to this conversation")
	}
	return conv, nil
}

// GetOrCreateConversation returns the single conversation between the actor and
// another user. The pair is stored smaller id first, so argument order does not matter.
func (s *chatServiceImpl) GetOrCreateConversation(ctx context.Context, actor models.Actor, otherUserID int64) (*models.Conversation, error) {
	if otherUserID == actor.UserID {
		return nil, apperrors.NewValidationError("recipientId", "You cannot start a conversation with yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, otherUserID); err != nil {
		return nil, err
	}
	u1, u2 := models.CanonicalPair(actor.UserID, otherUserID)

	conv, err := s.chatRepo.FindConversation(ctx, u1, u2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, apperrors.ErrConversationNotFound) {
		return nil, err
	}

	conv, err = s.chatRepo.CreateConversation(ctx, u1, u2)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int64("conversationID", conv.ID).Int64("user1", u1).Int64("user2", u2).Msg("Conversation created")
	return conv, nil
}

// send appends a message and bumps the conversation's last activity
func (s *chatServiceImpl) send(ctx context.Context, conv *models.Conversation, senderID int64, content string) (*models.Message, error) {
	msg := &models.Message{ConversationID: conv.ID, SenderID: senderID, Content: content}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.chatRepo.TouchConversation(ctx, conv.ID, msg.CreatedAt); err != nil {
		return nil, err
	}
	conv.LastMessageAt = msg.CreatedAt
	return msg, nil
}

func messageContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperrors.NewValidationError("content", "Message cannot be empty")
	}
	return content, nil
}

// SendMessage posts into a conversation the actor takes part in
func (s *chatServiceImpl) SendMessage(ctx context.Context, actor models.Actor, conversationID int64, req *dto.SendMessageRequest) (*models.Message, error) {
	content, err := messageContent(req.Content)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var msg *models.Message
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		conv, err := s.participantConversation(ctx, actor, conversationID)
		if err != nil {
			return err
		}
		msg, err = s.send(ctx, conv, actor.UserID, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Compose sends a message to a user, opening the conversation when needed
func (s *chatServiceImpl) Compose(ctx context.Context, actor models.Actor, req *dto.ComposeMessageRequest) (*models.Message, error) {
	content, err := messageContent(req.Content)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.RecipientID == actor.UserID {
		return nil, apperrors.NewValidationError("recipientId", "You cannot send a message to yourself")
	}

	var msg *models.Message
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.userRepo.GetByID(ctx, req.RecipientID); err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NewValidationError("recipientId", "Recipient not found")
			}
			return err
		}
		conv, err := s.GetOrCreateConversation(ctx, actor, req.RecipientID)
		if err != nil {
			return err
		}
		msg, err = s.send(ctx, conv, actor.UserID, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("from", actor.UserID).Int64("to", req.RecipientID).Int64("conversationID", msg.ConversationID).Msg("Message composed")
	return msg, nil
}

// Inbox lists the actor's conversations by last activity with per-conversation unread counts
func (s *chatServiceImpl) Inbox(ctx context.Context, actor models.Actor) (*dto.InboxResponse, error) {
	convs, err := s.chatRepo.ListConversationsForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	convIDs := make([]int64, 0, len(convs))
	otherIDs := make([]int64, 0, len(convs))
	for _, c := range convs {
		convIDs = append(convIDs, c.ID)
		otherIDs = append(otherIDs, c.OtherParticipant(actor.UserID))
	}

	users, err := s.userRepo.GetByIDs(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	last, err := s.chatRepo.LastMessages(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	unread, err := s.chatRepo.UnreadCounts(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	resp := &dto.InboxResponse{Conversations: make([]dto.InboxEntry, 0, len(convs))}
	for _, c := range convs {
		resp.Conversations = append(resp.Conversations, dto.InboxEntry{
			Conversation: *c,
			OtherUser:    dto.ToUserBasicResponse(users[c.OtherParticipant(actor.UserID)]),
			LastMessage:  last[c.ID],
			UnreadCount:  unread[c.ID],
		})
		resp.TotalUnread += unread[c.ID]
	}
	return resp, nil
}

// OpenConversation marks the conversation read for the actor and returns its messages oldest first
func (s *chatServiceImpl) OpenConversation(ctx context.Context, actor models.Actor, conversationID int64) (*dto.ConversationResponse, error) {
	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.chatRepo.MarkRead(ctx, conv.ID, actor.UserID); err != nil {
		return nil, err
	}
	messages, err := s.chatRepo.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		return nil, err
	}

	var other *models.User
	other, err = s.userRepo.GetByID(ctx, conv.OtherParticipant(actor.UserID))
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	return &dto.ConversationResponse{
		Conversation: conv,
		OtherUser:    dto.ToUserBasicResponse(other),
		Messages:     messages,
	}, nil
}

// MessagesAfter returns messages newer than afterID and marks the conversation read when there are any
func (s *chatServiceImpl) MessagesAfter(ctx context.Context, actor models.Actor, conversationID, afterID int64) ([]*models.Message, error) {
	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := s.chatRepo.ListMessages(ctx, conv.ID, afterID)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		if _, err := s.chatRepo.MarkRead(ctx, conv.ID, actor.UserID); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

// MarkRead flags every message the actor received in the conversation as read. Idempotent.
func (s *chatServiceImpl) MarkRead(ctx context.Context, actor models.Actor, conversationID int64) error {
	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return err
	}
	n, err := s.chatRepo.MarkRead(ctx, conv.ID, actor.UserID)
	if err != nil {
		return err
	}
	s.logger.Debug().Int64("conversationID", conv.ID).Int64("marked", n).Msg("Messages marked read")
	return nil
}

// UnreadCount counts unread messages sent to the actor in one conversation
func (s *chatServiceImpl) UnreadCount(ctx context.Context, actor models.Actor, conversationID int64) (int, error) {
	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return 0, err
	}
	return s.chatRepo.UnreadCount(ctx, conv.ID, actor.UserID)
}

// TotalUnread counts unread messages sent to the actor across all conversations
func (s *chatServiceImpl) TotalUnread(ctx context.Context, actor models.Actor) (int, error) {
	return s.chatRepo.TotalUnread(ctx, actor.UserID)
}

// DeleteMessage removes a message. Only its sender may do so.
func (s *chatServiceImpl) DeleteMessage(ctx context.Context, actor models.Actor, messageID int64) error {
	msg, err := s.chatRepo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != actor.UserID {
		s.logger.Warn().Int64("messageID", messageID).Int64("userID", actor.UserID).Msg("Attempt to delete another user's message")
		return apperrors.NewForbiddenError("You can only delete your own messages")
	}
	return s.chatRepo.DeleteMessage(ctx, messageID)
}

// ClearConversation deletes every message and keeps the conversation
func (s *chatServiceImpl) ClearConversation(ctx context.Context, actor models.Actor, conversationID int64) (int64, error) {
	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return 0, err
	}
	n, err := s.chatRepo.DeleteMessages(ctx, conv.ID)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("conversationID", conv.ID).Int64("deleted", n).Msg("Conversation cleared")
	return n, nil
}

// DeleteConversation removes the messages and then the conversation
func (s *chatServiceImpl) DeleteConversation(ctx context.Context, actor models.Actor, conversationID int64) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		conv, err := s.participantConversation(ctx, actor, conversationID)
		if err != nil {
			return err
		}
		if _, err := s.chatRepo.DeleteMessages(ctx, conv.ID); err != nil {
			return err
		}
		if err := s.chatRepo.DeleteConversation(ctx, conv.ID); err != nil {
			return err
		}
		s.logger.Info().Int64("conversationID", conv.ID).Int64("by", actor.UserID).Msg("Conversation deleted")
		return nil
	})
}
