// Package reconcile keeps client-side chat views consistent. Two update
// sources feed each view: periodic full fetches from the chat store and
// asynchronous push events. Polls are authoritative for everything they
// cover; push events patch the interval between polls. Merge steps are
// short, synchronous, and serialized per view, so no two merges interleave.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
)

// Store is the chat store surface the sync engine consumes.
type Store interface {
	FetchChatsForUser(ctx context.Context, userID int) ([]models.Chat, error)
	FetchMessages(ctx context.Context, chatID int) ([]models.Message, error)
	AppendMessage(ctx context.Context, chatID int, senderID int, senderName, text string) (models.Message, error)
	MarkRead(ctx context.Context, chatID int, userID int) error
	CreateOrGetChat(ctx context.Context, propertyID int, ownerID int) (models.Chat, error)
}

// PushChannel delivers chat events as they happen. One underlying connection
// serves every subscriber; reconnection is the channel's own business and
// invisible here, which is why polling stays authoritative.
type PushChannel interface {
	Subscribe(event string, fn func(models.ChatEvent)) (unsubscribe func())
}

// Options tune a reconciler. Zero values fall back to defaults.
type Options struct {
	// ListInterval is the chat list poll period. The log interval is
	// shorter: an open conversation needs lower latency than the
	// background list.
	ListInterval time.Duration
	LogInterval  time.Duration

	// OptimisticMatchWindow bounds the timestamp distance within which a
	// store-confirmed message supersedes a pending optimistic entry with
	// the same sender and text.
	OptimisticMatchWindow time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

const (
	defaultListInterval = 5 * time.Second
	defaultLogInterval  = 3 * time.Second
	defaultMatchWindow  = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.ListInterval <= 0 {
		o.ListInterval = defaultListInterval
	}
	if o.LogInterval <= 0 {
		o.LogInterval = defaultLogInterval
	}
	if o.OptimisticMatchWindow <= 0 {
		o.OptimisticMatchWindow = defaultMatchWindow
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
