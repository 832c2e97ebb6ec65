package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/db"
	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/sga/schoolhub/internal/pkg/dberrors"
	"github.com/sga/schoolhub/internal/pkg/logger"
)

// IChatRepository defines conversation and message persistence
type IChatRepository interface {
	// Conversations
	FindConversation(ctx context.Context, user1ID, user2ID int64) (*models.Conversation, error)
	CreateConversation(ctx context.Context, user1ID, user2ID int64) (*models.Conversation, error)
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID int64) ([]*models.Conversation, error)
	TouchConversation(ctx context.Context, id int64, at time.Time) error
	DeleteConversation(ctx context.Context, id int64) error
	DeleteAllForUser(ctx context.Context, userID int64) error

	// Messages
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID, afterID int64) ([]*models.Message, error)
	LastMessages(ctx context.Context, conversationIDs []int64) (map[int64]*models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID int64) (int64, error)
	DeleteMessage(ctx context.Context, id int64) error
	DeleteMessages(ctx context.Context, conversationID int64) (int64, error)

	// Unread counts
	UnreadCount(ctx context.Context, conversationID, userID int64) (int, error)
	UnreadCounts(ctx context.Context, userID int64) (map[int64]int, error)
	TotalUnread(ctx context.Context, userID int64) (int, error)
}

var (
	conversationColumns = []string{"id", "user1_id", "user2_id", "last_message_at", "created_at"}
	messageColumns      = []string{"id", "conversation_id", "sender_id", "content", "is_read", "created_at"}
)

// ChatRepository handles database operations for conversations and messages
type ChatRepository struct {
	db *db.PostgresDB
}

// NewChatRepository creates a new ChatRepository
func NewChatRepository(pg *db.PostgresDB) *ChatRepository {
	return &ChatRepository{db: pg}
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	c := &models.Conversation{}
	if err := row.Scan(&c.ID, &c.User1ID, &c.User2ID, &c.LastMessageAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	m := &models.Message{}
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *ChatRepository) queryMessages(ctx context.Context, q squirrel.SelectBuilder, op string) ([]*models.Message, error) {
	sql, args, err := buildSQL(q, op)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error querying messages")
		return nil, fmt.Errorf("error %s: %w", op, err)
	}
	defer rows.Close()

	out := make([]*models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FindConversation looks up the conversation of a pair. Ids must already be in canonical order.
func (r *ChatRepository) FindConversation(ctx context.Context, user1ID, user2ID int64) (*models.Conversation, error) {
	sql, args, err := buildSQL(psql.Select(conversationColumns...).From("conversations").
		Where(squirrel.Eq{"user1_id": user1ID, "user2_id": user2ID}), "find conversation")
	if err != nil {
		return nil, err
	}
	c, err := scanConversation(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrConversationNotFound, "finding conversation")
	}
	return c, nil
}

// CreateConversation inserts the pair or returns the row a concurrent insert created first.
func (r *ChatRepository) CreateConversation(ctx context.Context, user1ID, user2ID int64) (*models.Conversation, error) {
	sql, args, err := buildSQL(psql.Insert("conversations").
		Columns("user1_id", "user2_id").
		Values(user1ID, user2ID).
		Suffix(`ON CONFLICT ON CONSTRAINT conversations_pair_key
			DO UPDATE SET user1_id = EXCLUDED.user1_id
			RETURNING id, user1_id, user2_id, last_message_at, created_at`), "create conversation")
	if err != nil {
		return nil, err
	}
	c, err := scanConversation(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		// one of the participants was deleted or never existed
		if dberrors.IsForeignKeyViolation(err) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.Error().Err(err).Int64("user1", user1ID).Int64("user2", user2ID).Msg("Error creating conversation")
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}
	return c, nil
}

// GetConversation retrieves a conversation by id
func (r *ChatRepository) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	sql, args, err := buildSQL(psql.Select(conversationColumns...).From("conversations").Where(squirrel.Eq{"id": id}), "get conversation")
	if err != nil {
		return nil, err
	}
	c, err := scanConversation(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrConversationNotFound, "getting conversation")
	}
	return c, nil
}

// ListConversationsForUser returns the user's conversations by last activity, newest first
func (r *ChatRepository) ListConversationsForUser(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	sql, args, err := buildSQL(psql.Select(conversationColumns...).From("conversations").
		Where(squirrel.Or{squirrel.Eq{"user1_id": userID}, squirrel.Eq{"user2_id": userID}}).
		OrderBy("last_message_at DESC", "id DESC"), "list conversations")
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing conversations: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TouchConversation sets the last activity time
func (r *ChatRepository) TouchConversation(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `UPDATE conversations SET last_message_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("error touching conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConversationNotFound
	}
	return nil
}

// DeleteConversation removes an empty conversation. Delete its messages first.
func (r *ChatRepository) DeleteConversation(ctx context.Context, id int64) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConversationNotFound
	}
	return nil
}

// DeleteAllForUser removes every conversation of a user along with its messages
func (r *ChatRepository) DeleteAllForUser(ctx context.Context, userID int64) error {
	q := r.db.Conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM messages WHERE conversation_id IN
		(SELECT id FROM conversations WHERE user1_id = $1 OR user2_id = $1)`, userID); err != nil {
		return fmt.Errorf("error deleting user messages: %w", err)
	}
	if _, err := q.Exec(ctx, `DELETE FROM conversations WHERE user1_id = $1 OR user2_id = $1`, userID); err != nil {
		return fmt.Errorf("error deleting user conversations: %w", err)
	}
	return nil
}

// CreateMessage inserts a message
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	sql, args, err := buildSQL(psql.Insert("messages").
		Columns("conversation_id", "sender_id", "content").
		Values(msg.ConversationID, msg.SenderID, msg.Content).
		Suffix("RETURNING id, is_read, created_at"), "create message")
	if err != nil {
		return err
	}
	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&msg.ID, &msg.IsRead, &msg.CreatedAt); err != nil {
		logger.Error().Err(err).Int64("conversationID", msg.ConversationID).Msg("Error creating message")
		return fmt.Errorf("error creating message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by id
func (r *ChatRepository) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	sql, args, err := buildSQL(psql.Select(messageColumns...).From("messages").Where(squirrel.Eq{"id": id}), "get message")
	if err != nil {
		return nil, err
	}
	m, err := scanMessage(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, apperrors.ErrMessageNotFound, "getting message")
	}
	return m, nil
}

// ListMessages returns messages with id > afterID, oldest first
func (r *ChatRepository) ListMessages(ctx context.Context, conversationID, afterID int64) ([]*models.Message, error) {
	return r.queryMessages(ctx, psql.Select(messageColumns...).From("messages").
		Where(squirrel.Eq{"conversation_id": conversationID}).
		Where(squirrel.Gt{"id": afterID}).
		OrderBy("id"), "list messages")
}

// LastMessages returns the newest message of each conversation
func (r *ChatRepository) LastMessages(ctx context.Context, conversationIDs []int64) (map[int64]*models.Message, error) {
	out := make(map[int64]*models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	list, err := r.queryMessages(ctx, psql.Select(messageColumns...).
		Options("DISTINCT ON (conversation_id)").
		From("messages").
		Where(squirrel.Eq{"conversation_id": conversationIDs}).
		OrderBy("conversation_id", "id DESC"), "last messages")
	if err != nil {
		return nil, err
	}
	for _, m := range list {
		out[m.ConversationID] = m
	}
	return out, nil
}

// MarkRead flags as read every unread message of the conversation not sent by readerID
func (r *ChatRepository) MarkRead(ctx context.Context, conversationID, readerID int64) (int64, error) {
	tag, err := r.db.Conn(ctx).Exec(ctx,
		`UPDATE messages SET is_read = TRUE WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("error marking messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteMessage removes one message
func (r *ChatRepository) DeleteMessage(ctx context.Context, id int64) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMessageNotFound
	}
	return nil
}

// DeleteMessages removes all messages of a conversation
func (r *ChatRepository) DeleteMessages(ctx context.Context, conversationID int64) (int64, error) {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("error clearing conversation: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UnreadCount counts messages in a conversation sent by the other participant and not yet read
func (r *ChatRepository) UnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	var n int
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		conversationID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting unread messages: %w", err)
	}
	return n, nil
}

// UnreadCounts returns the user's unread count per conversation. Conversations with none are absent.
func (r *ChatRepository) UnreadCounts(ctx context.Context, userID int64) (map[int64]int, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `
		SELECT m.conversation_id, COUNT(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE (c.user1_id = $1 OR c.user2_id = $1) AND m.sender_id <> $1 AND m.is_read = FALSE
		GROUP BY m.conversation_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("error counting unread messages: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("error scanning unread count: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

// TotalUnread sums unread messages across all of the user's conversations in one statement
func (r *ChatRepository) TotalUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.Conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE (c.user1_id = $1 OR c.user2_id = $1) AND m.sender_id <> $1 AND m.is_read = FALSE`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting total unread: %w", err)
	}
	return n, nil
}
