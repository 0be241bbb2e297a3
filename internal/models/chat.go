package models

import "time"

// Chat is a conversation between a buyer and a property owner about one
// listing. At most one chat exists per (property, buyer, owner) triple.
type Chat struct {
	ChatID        int    `db:"id" json:"chat_id"`
	PropertyID    int    `db:"property_id" json:"property_id"`
	PropertyTitle string `db:"property_title" json:"property_title"`
	PropertyImage string `db:"property_image" json:"property_image,omitempty"`
	BuyerID       int    `db:"buyer_id" json:"buyer_id"`
	BuyerName     string `db:"buyer_name" json:"buyer_name"`
	OwnerID       int    `db:"owner_id" json:"owner_id"`
	OwnerName     string `db:"owner_name" json:"owner_name"`
	LastMessage   string `db:"last_message" json:"last_message,omitempty"`
	// LastMessageTime is nil for a chat with no messages; such chats sort
	// after every chat that has one.
	LastMessageTime *time.Time `db:"last_message_time" json:"last_message_time,omitempty"`

	BuyerUnread int `db:"buyer_unread" json:"-"`
	OwnerUnread int `db:"owner_unread" json:"-"`
	// UnreadCount maps participant id to that participant's count of unseen
	// messages. At most two entries.
	UnreadCount map[int]int `db:"-" json:"unread_count,omitempty"`
}

// IsParticipant reports whether the user is the buyer or the owner.
func (c Chat) IsParticipant(userID int) bool {
	return c.BuyerID == userID || c.OwnerID == userID
}

// FillUnreadCount populates UnreadCount from the raw per-side columns.
func (c *Chat) FillUnreadCount() {
	c.UnreadCount = map[int]int{
		c.BuyerID: c.BuyerUnread,
		c.OwnerID: c.OwnerUnread,
	}
}
