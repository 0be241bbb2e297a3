package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// NewChatMeta carries the denormalized listing fields applied when a chat is
// created lazily on first contact.
type NewChatMeta struct {
	PropertyTitle string
	PropertyImage string
	OwnerName     string
	BuyerName     string
}

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, propertyID, buyerID, ownerID int, meta NewChatMeta) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	ListChatsForUser(ctx context.Context, userID int) ([]models.Chat, error)
	MarkRead(ctx context.Context, chatID int, userID int) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, property_id, property_title, property_image,
    buyer_id, buyer_name, owner_id, owner_name,
    last_message, last_message_time, buyer_unread, owner_unread`

// CreateOrGetChat returns the chat for the (property, buyer, owner) triple,
// creating it if this is the buyer's first contact about the listing.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, propertyID, buyerID, ownerID int, meta NewChatMeta) (models.Chat, error) {
	if buyerID == ownerID {
		return models.Chat{}, errors.New("buyer and owner must differ")
	}

	var chat models.Chat
	query := `SELECT ` + chatColumns + ` FROM chats WHERE property_id=$1 AND buyer_id=$2 AND owner_id=$3`
	err := r.db.GetContext(ctx, &chat, query, propertyID, buyerID, ownerID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return models.Chat{}, err
		}
		insert := `INSERT INTO chats (property_id, property_title, property_image, buyer_id, buyer_name, owner_id, owner_name)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            ON CONFLICT (property_id, buyer_id, owner_id) DO UPDATE SET property_title = EXCLUDED.property_title
            RETURNING ` + chatColumns
		if err := r.db.GetContext(ctx, &chat, insert,
			propertyID, meta.PropertyTitle, meta.PropertyImage,
			buyerID, meta.BuyerName, ownerID, meta.OwnerName); err != nil {
			return models.Chat{}, err
		}
	}
	chat.FillUnreadCount()
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	chat.FillUnreadCount()
	return chat, nil
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND (buyer_id=$2 OR owner_id=$2))`, chatID, userID)
	return exists, err
}

// ListChatsForUser returns the user's chats, most recently active first.
// Chats with no messages yet sort last.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID int) ([]models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats
        WHERE buyer_id=$1 OR owner_id=$1
        ORDER BY last_message_time DESC NULLS LAST, id DESC`
	var chats []models.Chat
	if err := r.db.SelectContext(ctx, &chats, query, userID); err != nil {
		return nil, err
	}
	for i := range chats {
		chats[i].FillUnreadCount()
	}
	return chats, nil
}

// MarkRead zeroes the caller's unread counter. The counterpart's counter is
// untouched.
func (r *ChatRepo) MarkRead(ctx context.Context, chatID int, userID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET
        buyer_unread = CASE WHEN buyer_id=$2 THEN 0 ELSE buyer_unread END,
        owner_unread = CASE WHEN owner_id=$2 THEN 0 ELSE owner_unread END
        WHERE id=$1 AND (buyer_id=$2 OR owner_id=$2)`, chatID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}
