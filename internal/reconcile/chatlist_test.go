package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sun2004ny/bada-builder-sub003/internal/mocks"
	"github.com/sun2004ny/bada-builder-sub003/internal/models"
	"github.com/sun2004ny/bada-builder-sub003/internal/push"
)

// The mocks package cannot assert this itself without importing us back.
var _ Store = (*mocks.StoreMock)(nil)

func tp(t time.Time) *time.Time { return &t }

var baseTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestChatList() *ChatList {
	return NewChatList(new(mocks.StoreMock), push.NewFanout(), Options{})
}

func TestChatListPushMovesChatToTop(t *testing.T) {
	l := newTestChatList()

	l.ApplyFullList([]models.Chat{
		{ChatID: 1, LastMessage: "old", LastMessageTime: tp(baseTime)},
		{ChatID: 2, LastMessage: "older", LastMessageTime: tp(baseTime.Add(-time.Hour))},
	})

	l.ApplyPushUpdate(models.Chat{ChatID: 2, LastMessage: "fresh", LastMessageTime: tp(baseTime.Add(time.Minute))})

	chats := l.Chats()
	require.Len(t, chats, 2)
	assert.Equal(t, 2, chats[0].ChatID)
	assert.Equal(t, "fresh", chats[0].LastMessage)
	assert.Equal(t, 1, chats[1].ChatID)
}

func TestChatListPushAddsUnknownChat(t *testing.T) {
	l := newTestChatList()

	l.ApplyFullList([]models.Chat{{ChatID: 1, LastMessageTime: tp(baseTime)}})
	l.ApplyPushUpdate(models.Chat{ChatID: 7, LastMessage: "new chat", LastMessageTime: tp(baseTime.Add(time.Second))})

	chats := l.Chats()
	require.Len(t, chats, 2)
	assert.Equal(t, 7, chats[0].ChatID)
}

func TestChatListPollReplacesView(t *testing.T) {
	l := newTestChatList()

	l.ApplyFullList([]models.Chat{
		{ChatID: 1, LastMessageTime: tp(baseTime)},
		{ChatID: 2, LastMessageTime: tp(baseTime.Add(-time.Hour))},
	})
	l.ApplyFullList([]models.Chat{{ChatID: 2, LastMessage: "only survivor", LastMessageTime: tp(baseTime.Add(time.Minute))}})

	chats := l.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, 2, chats[0].ChatID)
}

func TestChatListPushDuringPollSurvivesReplace(t *testing.T) {
	l := newTestChatList()
	l.ApplyFullList([]models.Chat{{ChatID: 1, LastMessage: "stale", LastMessageTime: tp(baseTime)}})

	// A push lands after the next poll's request went out but before its
	// response is applied. The replace must not roll it back.
	l.ApplyPushUpdate(models.Chat{ChatID: 1, LastMessage: "pushed", LastMessageTime: tp(baseTime.Add(2 * time.Second))})
	l.ApplyFullList([]models.Chat{{ChatID: 1, LastMessage: "stale", LastMessageTime: tp(baseTime)}})

	chats := l.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "pushed", chats[0].LastMessage)
}

func TestChatListNewerPollBeatsRecordedPush(t *testing.T) {
	l := newTestChatList()

	l.ApplyPushUpdate(models.Chat{ChatID: 1, LastMessage: "pushed", LastMessageTime: tp(baseTime)})
	l.ApplyFullList([]models.Chat{{ChatID: 1, LastMessage: "polled", LastMessageTime: tp(baseTime.Add(time.Second))}})

	chats := l.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "polled", chats[0].LastMessage)
}

func TestChatListOrderingNilTimesLast(t *testing.T) {
	l := newTestChatList()

	l.ApplyFullList([]models.Chat{
		{ChatID: 1},
		{ChatID: 2, LastMessageTime: tp(baseTime)},
		{ChatID: 3, LastMessageTime: tp(baseTime.Add(time.Hour))},
		{ChatID: 4},
	})

	chats := l.Chats()
	require.Len(t, chats, 4)
	assert.Equal(t, 3, chats[0].ChatID)
	assert.Equal(t, 2, chats[1].ChatID)
	assert.Nil(t, chats[2].LastMessageTime)
	assert.Nil(t, chats[3].LastMessageTime)
}

func TestChatListGenerationOnlyBumpsOnChange(t *testing.T) {
	l := newTestChatList()

	sameList := []models.Chat{{ChatID: 1, LastMessage: "hi", LastMessageTime: tp(baseTime)}}
	l.ApplyFullList(sameList)
	gen := l.Generation()

	l.ApplyFullList(sameList)
	assert.Equal(t, gen, l.Generation())
}

func TestChatListPollUpdatesUnreadCount(t *testing.T) {
	l := newTestChatList()

	l.ApplyFullList([]models.Chat{{
		ChatID:          1,
		LastMessage:     "hi",
		LastMessageTime: tp(baseTime),
		UnreadCount:     map[int]int{1: 3},
	}})
	gen := l.Generation()

	// Reading the chat elsewhere only changes the unread counter, not the
	// last message. The next poll must still replace the view.
	l.ApplyFullList([]models.Chat{{
		ChatID:          1,
		LastMessage:     "hi",
		LastMessageTime: tp(baseTime),
		UnreadCount:     map[int]int{1: 0},
	}})

	chats := l.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, 0, chats[0].UnreadCount[1])
	assert.Greater(t, l.Generation(), gen)
}

func TestChatListOnChangeFiresWithSnapshot(t *testing.T) {
	l := newTestChatList()

	var got [][]models.Chat
	l.OnChange(func(chats []models.Chat) { got = append(got, chats) })

	l.ApplyFullList([]models.Chat{{ChatID: 1, LastMessageTime: tp(baseTime)}})
	l.ApplyFullList([]models.Chat{{ChatID: 1, LastMessageTime: tp(baseTime)}})

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0][0].ChatID)
}

func TestChatListStopBlocksLateMerges(t *testing.T) {
	l := newTestChatList()
	l.ApplyFullList([]models.Chat{{ChatID: 1, LastMessageTime: tp(baseTime)}})
	l.Stop()

	l.ApplyFullList([]models.Chat{{ChatID: 2, LastMessageTime: tp(baseTime)}})
	l.ApplyPushUpdate(models.Chat{ChatID: 3, LastMessageTime: tp(baseTime)})

	chats := l.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, 1, chats[0].ChatID)
}

func TestChatListStartPollsAndSubscribes(t *testing.T) {
	store := new(mocks.StoreMock)
	fanout := push.NewFanout()
	l := NewChatList(store, fanout, Options{ListInterval: time.Hour})

	store.On("FetchChatsForUser", mock.Anything, 1).Return([]models.Chat{
		{ChatID: 1, LastMessageTime: tp(baseTime)},
	}, nil)

	stop := l.Start(1)
	defer stop()

	require.Eventually(t, func() bool {
		return len(l.Chats()) == 1
	}, time.Second, 5*time.Millisecond)

	fanout.Emit(models.ChatEvent{
		Type:   models.EventNewMessage,
		ChatID: 2,
		Chat:   &models.Chat{ChatID: 2, LastMessageTime: tp(baseTime.Add(time.Minute))},
	})

	chats := l.Chats()
	require.Len(t, chats, 2)
	assert.Equal(t, 2, chats[0].ChatID)
}

func TestChatListStopUnsubscribesFromPush(t *testing.T) {
	store := new(mocks.StoreMock)
	fanout := push.NewFanout()
	l := NewChatList(store, fanout, Options{ListInterval: time.Hour})

	store.On("FetchChatsForUser", mock.Anything, 1).Return([]models.Chat{}, nil)

	stop := l.Start(1)
	stop()

	fanout.Emit(models.ChatEvent{
		Type:   models.EventNewMessage,
		ChatID: 2,
		Chat:   &models.Chat{ChatID: 2, LastMessageTime: tp(baseTime)},
	})

	assert.Empty(t, l.Chats())
}

func TestChatListPushWithoutChatPayloadIgnored(t *testing.T) {
	store := new(mocks.StoreMock)
	fanout := push.NewFanout()
	l := NewChatList(store, fanout, Options{ListInterval: time.Hour})

	store.On("FetchChatsForUser", mock.Anything, 1).Return([]models.Chat{}, nil)

	stop := l.Start(1)
	defer stop()

	fanout.Emit(models.ChatEvent{Type: models.EventNewMessage, ChatID: 2})
	assert.Empty(t, l.Chats())
}

func TestChatListPollErrorKeepsView(t *testing.T) {
	store := new(mocks.StoreMock)
	l := NewChatList(store, push.NewFanout(), Options{ListInterval: time.Hour})

	l.ApplyFullList([]models.Chat{{ChatID: 1, LastMessageTime: tp(baseTime)}})
	store.On("FetchChatsForUser", mock.Anything, 1).Return(([]models.Chat)(nil), assert.AnError)

	l.poll(context.Background(), 1)

	chats := l.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, 1, chats[0].ChatID)
}
