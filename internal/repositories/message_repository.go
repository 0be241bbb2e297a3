package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
)

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID int, senderID int, senderName, text string) (models.Message, error)
	ListMessages(ctx context.Context, chatID int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and, in the same transaction, bumps the
// chat's last-message fields and the counterpart's unread counter.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID int, senderID int, senderName, text string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, sender_name, text) VALUES ($1, $2, $3, $4)
         RETURNING id, chat_id, sender_id, sender_name, text, created_at`,
		chatID, senderID, senderName, text).
		Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.SenderName, &msg.Text, &msg.Timestamp)
	if err != nil {
		return models.Message{}, err
	}

	_, err = tx.ExecContext(ctx, `UPDATE chats SET
        last_message = $2,
        last_message_time = $3,
        buyer_unread = buyer_unread + CASE WHEN owner_id = $4 THEN 1 ELSE 0 END,
        owner_unread = owner_unread + CASE WHEN buyer_id = $4 THEN 1 ELSE 0 END
        WHERE id = $1`, chatID, msg.Text, msg.Timestamp, senderID)
	if err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListMessages returns the chat's messages oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int) ([]models.Message, error) {
	query := `SELECT id, chat_id, sender_id, sender_name, text, created_at
        FROM messages
        WHERE chat_id=$1
        ORDER BY created_at ASC, id ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, chatID)
	return msgs, err
}
