package models

import "time"

// Message is a chat message. ID is assigned by the store; push-delivered
// messages may carry a zero ID and the sync engine never relies on it,
// deduplicating on (Timestamp, Text) instead.
type Message struct {
	ID         int       `db:"id" json:"id,omitempty"`
	ChatID     int       `db:"chat_id" json:"chat_id"`
	SenderID   int       `db:"sender_id" json:"sender_id"`
	SenderName string    `db:"sender_name" json:"sender_name"`
	Text       string    `db:"text" json:"text"`
	Timestamp  time.Time `db:"created_at" json:"timestamp"`

	// Pending marks an optimistic local entry not yet confirmed by the
	// store. Never persisted or sent over the wire.
	Pending bool `db:"-" json:"-"`
}

// ChatEvent is the payload delivered over the push channel.
type ChatEvent struct {
	Type    string   `json:"type"`
	ChatID  int      `json:"chat_id"`
	Message *Message `json:"message,omitempty"`
	Chat    *Chat    `json:"chat,omitempty"`
}

// EventNewMessage is the only event type the sync engine consumes.
const EventNewMessage = "new_message"
