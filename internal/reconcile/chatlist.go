package reconcile

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
	"github.com/sun2004ny/bada-builder-sub003/internal/observability"
)

// ChatList owns the recency-ordered view of every chat the user takes part
// in. Full-list polls replace the view wholesale; push updates recorded
// since the in-flight poll was requested are re-applied on top, newest
// last-message time winning per chat.
type ChatList struct {
	store   Store
	channel PushChannel
	opts    Options

	mu       sync.Mutex
	chats    []models.Chat
	pending  map[int]models.Chat
	gen      uint64
	stopped  bool
	running  bool
	cancel   context.CancelFunc
	unsub    func()
	onChange func([]models.Chat)
}

// NewChatList builds a chat list reconciler.
func NewChatList(store Store, channel PushChannel, opts Options) *ChatList {
	return &ChatList{
		store:   store,
		channel: channel,
		opts:    opts.withDefaults(),
		pending: make(map[int]models.Chat),
	}
}

// OnChange registers the render callback. It fires outside the state lock
// with a snapshot of the new view, and only when a merge actually changed
// something.
func (l *ChatList) OnChange(fn func([]models.Chat)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Start begins polling for the user and subscribes to push updates. The
// returned handle cancels both; calling Start on a running reconciler just
// returns the existing handle.
func (l *ChatList) Start(userID int) (stop func()) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return l.Stop
	}
	l.running = true
	l.stopped = false
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.unsub = l.channel.Subscribe(models.EventNewMessage, func(ev models.ChatEvent) {
		if ev.Chat == nil {
			// Partial payload; the next poll will cover it.
			return
		}
		l.ApplyPushUpdate(*ev.Chat)
	})
	l.mu.Unlock()

	go l.pollLoop(ctx, userID)
	return l.Stop
}

// Stop cancels the poll timer and the push subscription. Idempotent; after
// Stop no late tick or in-flight fetch mutates the view.
func (l *ChatList) Stop() {
	l.mu.Lock()
	if l.stopped && !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.stopped = true
	cancel, unsub := l.cancel, l.unsub
	l.cancel, l.unsub = nil, nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if unsub != nil {
		unsub()
	}
}

// Chats returns a copy of the current ordered view.
func (l *ChatList) Chats() []models.Chat {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Chat, len(l.chats))
	copy(out, l.chats)
	return out
}

// Generation returns the merge counter. It only ever increases, and only
// when a merge changed the visible view.
func (l *ChatList) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

func (l *ChatList) pollLoop(ctx context.Context, userID int) {
	l.poll(ctx, userID)
	ticker := time.NewTicker(l.opts.ListInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.poll(ctx, userID)
		}
	}
}

func (l *ChatList) poll(ctx context.Context, userID int) {
	// Snapshot barrier: push updates arriving from here on outlive the
	// full-list replace this poll will perform.
	l.mu.Lock()
	l.pending = make(map[int]models.Chat)
	l.mu.Unlock()

	chats, err := l.store.FetchChatsForUser(ctx, userID)
	if err != nil {
		// Previous view stays; retry on the next tick, no backoff.
		observability.IncSyncPollError("list")
		l.opts.Logger.Debug("chat list poll failed", "error", err)
		return
	}
	l.ApplyFullList(chats)
}

// ApplyFullList replaces the view with a poll result, then re-applies push
// updates recorded since the poll was requested, keeping whichever side has
// the greater last-message time per chat.
func (l *ChatList) ApplyFullList(chats []models.Chat) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}

	next := make([]models.Chat, len(chats))
	copy(next, chats)
	for id, pushed := range l.pending {
		idx := indexOfChat(next, id)
		if idx < 0 {
			next = append(next, pushed)
			continue
		}
		if chatMoreRecent(pushed, next[idx]) {
			next[idx] = pushed
		}
	}
	sortChatsByRecency(next)

	changed := !chatListsEqual(l.chats, next)
	if changed {
		l.chats = next
		l.gen++
	}
	cb, snapshot := l.snapshotLocked()
	l.mu.Unlock()

	observability.IncSyncMerge("list", "poll")
	if changed && cb != nil {
		cb(snapshot)
	}
}

// ApplyPushUpdate upserts one chat into the view: replace when present,
// otherwise add; then re-sort by recency. The update is also recorded so the
// in-flight poll's replace cannot roll it back.
func (l *ChatList) ApplyPushUpdate(chat models.Chat) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}

	if prev, ok := l.pending[chat.ChatID]; !ok || chatMoreRecent(chat, prev) {
		l.pending[chat.ChatID] = chat
	}

	if idx := indexOfChat(l.chats, chat.ChatID); idx >= 0 {
		l.chats[idx] = chat
	} else {
		l.chats = append(l.chats, chat)
	}
	sortChatsByRecency(l.chats)
	l.gen++
	cb, snapshot := l.snapshotLocked()
	l.mu.Unlock()

	observability.IncSyncMerge("list", "push")
	if cb != nil {
		cb(snapshot)
	}
}

func (l *ChatList) snapshotLocked() (func([]models.Chat), []models.Chat) {
	out := make([]models.Chat, len(l.chats))
	copy(out, l.chats)
	return l.onChange, out
}

func chatListsEqual(a, b []models.Chat) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ChatID != b[i].ChatID ||
			a[i].LastMessage != b[i].LastMessage ||
			!timesEqual(a[i].LastMessageTime, b[i].LastMessageTime) ||
			!maps.Equal(a[i].UnreadCount, b[i].UnreadCount) {
			return false
		}
	}
	return true
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
