package reconcile

import (
	"sort"
	"time"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
)

// sameMessage is the dedup key: two updates describe the same logical
// message when timestamp and text match. The transport provides no stronger
// id on the push path, so this is a deliberate approximation — fine for
// human-typed chat, not a cryptographic guarantee.
func sameMessage(a, b models.Message) bool {
	return a.Timestamp.Equal(b.Timestamp) && a.Text == b.Text
}

func containsMessage(list []models.Message, m models.Message) bool {
	for _, existing := range list {
		if sameMessage(existing, m) {
			return true
		}
	}
	return false
}

// matchesOptimistic reports whether a store-confirmed message corresponds to
// a pending optimistic entry. The server assigns its own timestamp, so exact
// equality would leak duplicates under latency; sender and text must match
// and the timestamps must fall within the window.
func matchesOptimistic(opt, confirmed models.Message, window time.Duration) bool {
	if opt.SenderID != confirmed.SenderID || opt.Text != confirmed.Text {
		return false
	}
	delta := opt.Timestamp.Sub(confirmed.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}

// sortMessagesByTime orders a log for display: non-decreasing timestamp,
// equal timestamps keep their prior relative order.
func sortMessagesByTime(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

// sortChatsByRecency orders the list view: latest activity first, chats that
// have no messages yet at the end. Equal timestamps keep their prior
// relative order; under timestamp collisions the result is deliberately not
// further disambiguated.
func sortChatsByRecency(chats []models.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		ti, tj := chats[i].LastMessageTime, chats[j].LastMessageTime
		if ti == nil {
			return false
		}
		if tj == nil {
			return true
		}
		return ti.After(*tj)
	})
}

// chatMoreRecent reports whether a push-sourced chat strictly supersedes the
// poll-sourced one. Ties go to the poll result.
func chatMoreRecent(pushed, polled models.Chat) bool {
	if pushed.LastMessageTime == nil {
		return false
	}
	if polled.LastMessageTime == nil {
		return true
	}
	return pushed.LastMessageTime.After(*polled.LastMessageTime)
}

func indexOfChat(chats []models.Chat, chatID int) int {
	for i := range chats {
		if chats[i].ChatID == chatID {
			return i
		}
	}
	return -1
}
