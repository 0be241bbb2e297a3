package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
	"github.com/sun2004ny/bada-builder-sub003/internal/observability"
)

// MessageLog owns the chronologically-ordered message view of one open chat
// and supports optimistic local sends. Full-log polls are authoritative;
// pending optimistic entries survive the replace until the store confirms
// them, matched by sender, text, and timestamp proximity.
type MessageLog struct {
	store   Store
	channel PushChannel
	userID  int
	opts    Options

	mu         sync.Mutex
	chatID     int
	msgs       []models.Message
	optimistic []models.Message
	gen        uint64
	focused    bool
	stopped    bool
	open       bool
	ctx        context.Context
	cancel     context.CancelFunc
	unsub      func()
	onChange   func([]models.Message)
}

// NewMessageLog builds a message log reconciler for the given user.
func NewMessageLog(store Store, channel PushChannel, userID int, opts Options) *MessageLog {
	return &MessageLog{
		store:   store,
		channel: channel,
		userID:  userID,
		opts:    opts.withDefaults(),
	}
}

// OnChange registers the render callback, invoked outside the state lock
// with a snapshot of the new log.
func (g *MessageLog) OnChange(fn func([]models.Message)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// Open starts polling the chat's log, subscribes to its push events, and
// marks the chat read. Opening while another chat is open closes that one
// first, so a stale timer can never mutate the wrong chat's view.
func (g *MessageLog) Open(chatID int) {
	g.Close()

	g.mu.Lock()
	g.chatID = chatID
	g.msgs = nil
	g.optimistic = nil
	g.stopped = false
	g.open = true
	g.focused = true
	ctx, cancel := context.WithCancel(context.Background())
	g.ctx = ctx
	g.cancel = cancel
	g.unsub = g.channel.Subscribe(models.EventNewMessage, func(ev models.ChatEvent) {
		if ev.Message == nil || ev.ChatID != chatID {
			return
		}
		g.ApplyPushMessage(*ev.Message)
	})
	g.mu.Unlock()

	go g.markRead(ctx, chatID)
	go g.pollLoop(ctx, chatID)
}

// Close cancels the poll timer and push subscription. Idempotent; after
// Close no late tick, push event, or in-flight fetch mutates the view.
func (g *MessageLog) Close() {
	g.mu.Lock()
	if !g.open {
		g.stopped = true
		g.mu.Unlock()
		return
	}
	g.open = false
	g.stopped = true
	g.focused = false
	cancel, unsub := g.cancel, g.unsub
	g.cancel, g.unsub = nil, nil
	for range g.optimistic {
		observability.DecPendingOptimistic()
	}
	g.optimistic = nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if unsub != nil {
		unsub()
	}
}

// Focus re-issues mark-read for a chat that regained the user's attention
// while already open.
func (g *MessageLog) Focus() {
	g.mu.Lock()
	if !g.open {
		g.mu.Unlock()
		return
	}
	g.focused = true
	ctx, chatID := g.ctx, g.chatID
	g.mu.Unlock()

	go g.markRead(ctx, chatID)
}

// Messages returns a copy of the current ordered log.
func (g *MessageLog) Messages() []models.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Message, len(g.msgs))
	copy(out, g.msgs)
	return out
}

// Generation returns the merge counter.
func (g *MessageLog) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

func (g *MessageLog) pollLoop(ctx context.Context, chatID int) {
	g.poll(ctx, chatID)
	ticker := time.NewTicker(g.opts.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.poll(ctx, chatID)
		}
	}
}

func (g *MessageLog) poll(ctx context.Context, chatID int) {
	msgs, err := g.store.FetchMessages(ctx, chatID)
	if err != nil {
		// Previous view stays; retry on the next tick, no backoff.
		observability.IncSyncPollError("log")
		g.opts.Logger.Debug("message log poll failed", "chat_id", chatID, "error", err)
		return
	}
	g.ApplyFullLog(msgs)
}

func (g *MessageLog) markRead(ctx context.Context, chatID int) {
	if err := g.store.MarkRead(ctx, chatID, g.userID); err != nil {
		g.opts.Logger.Debug("mark read failed", "chat_id", chatID, "error", err)
	}
}

// ApplyFullLog replaces the log with a poll result. Optimistic entries the
// fetched set confirms are retired; the rest are re-appended so an unsent
// message never vanishes from under the user.
func (g *MessageLog) ApplyFullLog(msgs []models.Message) {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}

	next := make([]models.Message, len(msgs))
	copy(next, msgs)

	remaining := g.optimistic[:0]
	for _, opt := range g.optimistic {
		if confirmedIn(next, opt, g.opts.OptimisticMatchWindow) {
			observability.DecPendingOptimistic()
			continue
		}
		remaining = append(remaining, opt)
		next = append(next, opt)
	}
	g.optimistic = remaining
	sortMessagesByTime(next)

	changed := !messageLogsEqual(g.msgs, next)
	if changed {
		g.msgs = next
		g.gen++
	}
	cb, snapshot := g.snapshotLocked()
	g.mu.Unlock()

	observability.IncSyncMerge("log", "poll")
	if changed && cb != nil {
		cb(snapshot)
	}
}

// ApplyPushMessage appends a push-delivered message unless an entry with the
// same timestamp and text is already visible. A counterpart message landing
// in the focused chat is marked read immediately.
func (g *MessageLog) ApplyPushMessage(msg models.Message) {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	if containsMessage(g.msgs, msg) {
		g.mu.Unlock()
		observability.IncSyncDedupDrop("log")
		return
	}

	g.msgs = append(g.msgs, msg)
	sortMessagesByTime(g.msgs)
	g.gen++
	shouldMarkRead := g.focused && msg.SenderID != g.userID
	ctx, chatID := g.ctx, g.chatID
	cb, snapshot := g.snapshotLocked()
	g.mu.Unlock()

	observability.IncSyncMerge("log", "push")
	if shouldMarkRead {
		go g.markRead(ctx, chatID)
	}
	if cb != nil {
		cb(snapshot)
	}
}

// SendOptimistic appends a provisional message with a locally-generated
// timestamp so the sender sees it instantly. The entry stays until a poll or
// push echo confirms it; on send failure the caller owns the retry
// affordance, nothing is retried here.
func (g *MessageLog) SendOptimistic(text string, senderID int, senderName string) models.Message {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return models.Message{}
	}

	msg := models.Message{
		ChatID:     g.chatID,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  g.opts.Now(),
		Pending:    true,
	}
	g.msgs = append(g.msgs, msg)
	g.optimistic = append(g.optimistic, msg)
	sortMessagesByTime(g.msgs)
	g.gen++
	cb, snapshot := g.snapshotLocked()
	g.mu.Unlock()

	observability.IncSyncMerge("log", "optimistic")
	observability.IncPendingOptimistic()
	if cb != nil {
		cb(snapshot)
	}
	return msg
}

func (g *MessageLog) snapshotLocked() (func([]models.Message), []models.Message) {
	out := make([]models.Message, len(g.msgs))
	copy(out, g.msgs)
	return g.onChange, out
}

func confirmedIn(msgs []models.Message, opt models.Message, window time.Duration) bool {
	for _, m := range msgs {
		if matchesOptimistic(opt, m, window) {
			return true
		}
	}
	return false
}

func messageLogsEqual(a, b []models.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameMessage(a[i], b[i]) ||
			a[i].SenderID != b[i].SenderID ||
			a[i].ID != b[i].ID ||
			a[i].Pending != b[i].Pending {
			return false
		}
	}
	return true
}
