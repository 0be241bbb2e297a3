// Package view is the presentation-side contract: it translates user intent
// into reconciler calls and renders reconciler state. It owns no merge logic
// and no authoritative state.
package view

import (
	"context"
	"log/slog"

	"github.com/sun2004ny/bada-builder-sub003/internal/identity"
	"github.com/sun2004ny/bada-builder-sub003/internal/models"
	"github.com/sun2004ny/bada-builder-sub003/internal/reconcile"
)

// Conversation binds one open chat's message log to the screen.
type Conversation struct {
	log    *reconcile.MessageLog
	store  reconcile.Store
	user   identity.Provider
	logger *slog.Logger
	chatID int
}

// NewConversation builds the controller for a user session.
func NewConversation(log *reconcile.MessageLog, store reconcile.Store, user identity.Provider, logger *slog.Logger) *Conversation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{log: log, store: store, user: user, logger: logger}
}

// Mount opens the chat: the reconciler starts polling, subscribes to push,
// and marks the chat read.
func (v *Conversation) Mount(chatID int) {
	v.chatID = chatID
	v.log.Open(chatID)
}

// Unmount closes the chat and releases its timers and subscription.
func (v *Conversation) Unmount() {
	v.log.Close()
}

// Focus re-issues mark-read for a chat the user returned to.
func (v *Conversation) Focus() {
	v.log.Focus()
}

// Send appends the message optimistically, then asks the store to persist
// it. On failure the optimistic entry stays visible and the error is
// returned so the caller can offer a retry; nothing is retried here.
func (v *Conversation) Send(ctx context.Context, text string) (models.Message, error) {
	msg := v.log.SendOptimistic(text, v.user.UserID(), v.user.DisplayName())

	if _, err := v.store.AppendMessage(ctx, v.chatID, v.user.UserID(), v.user.DisplayName(), text); err != nil {
		v.logger.Warn("send failed, entry left pending", "chat_id", v.chatID, "error", err)
		return msg, err
	}
	return msg, nil
}

// Messages returns the current ordered log for rendering.
func (v *Conversation) Messages() []models.Message {
	return v.log.Messages()
}

// OnChange forwards the render callback to the reconciler.
func (v *Conversation) OnChange(fn func([]models.Message)) {
	v.log.OnChange(fn)
}
