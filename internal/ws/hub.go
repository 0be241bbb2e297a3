package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
	"github.com/sun2004ny/bada-builder-sub003/internal/observability"
)

// Hub fans new_message events out to two kinds of subscribers: sockets
// following one open chat, and per-user feed sockets that keep the chat list
// fresh for conversations that are not open.
type Hub struct {
	chatRooms    map[int]map[*websocket.Conn]bool
	userFeeds    map[int]map[*websocket.Conn]bool
	chatConnInfo map[int]map[*websocket.Conn]ConnInfo
	feedConnInfo map[int]map[*websocket.Conn]ConnInfo
	mu           sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		chatRooms:    make(map[int]map[*websocket.Conn]bool),
		userFeeds:    make(map[int]map[*websocket.Conn]bool),
		chatConnInfo: make(map[int]map[*websocket.Conn]ConnInfo),
		feedConnInfo: make(map[int]map[*websocket.Conn]ConnInfo),
	}
}

// AddChatClient registers a websocket connection to a chat room.
func (h *Hub) AddChatClient(chatID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chatRooms[chatID]; !ok {
		h.chatRooms[chatID] = make(map[*websocket.Conn]bool)
	}
	h.chatRooms[chatID][conn] = true
	if _, ok := h.chatConnInfo[chatID]; !ok {
		h.chatConnInfo[chatID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.chatConnInfo[chatID][conn] = info
}

// RemoveChatClient removes a chat websocket connection.
func (h *Hub) RemoveChatClient(chatID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.chatRooms[chatID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.chatRooms, chatID)
		}
	}
	if infos, ok := h.chatConnInfo[chatID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.chatConnInfo, chatID)
		}
	}
}

// AddFeedClient registers a user's feed connection.
func (h *Hub) AddFeedClient(userID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userFeeds[userID]; !ok {
		h.userFeeds[userID] = make(map[*websocket.Conn]bool)
	}
	h.userFeeds[userID][conn] = true
	if _, ok := h.feedConnInfo[userID]; !ok {
		h.feedConnInfo[userID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.feedConnInfo[userID][conn] = info
}

// RemoveFeedClient removes a user's feed connection.
func (h *Hub) RemoveFeedClient(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.userFeeds[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.userFeeds, userID)
		}
	}
	if infos, ok := h.feedConnInfo[userID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.feedConnInfo, userID)
		}
	}
}

// BroadcastNewMessage delivers the event to the chat's room and to both
// participants' feeds. The updated chat summary rides along so list views
// can upsert without a fetch.
func (h *Hub) BroadcastNewMessage(chat models.Chat, msg models.Message) {
	event := models.ChatEvent{
		Type:    models.EventNewMessage,
		ChatID:  chat.ChatID,
		Message: &msg,
		Chat:    &chat,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal chat event", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, 4)
	rooms := map[*websocket.Conn]int{}
	for conn := range h.chatRooms[chat.ChatID] {
		targets = append(targets, conn)
		rooms[conn] = chat.ChatID
	}
	feedOwners := map[*websocket.Conn]int{}
	for _, userID := range []int{chat.BuyerID, chat.OwnerID} {
		for conn := range h.userFeeds[userID] {
			targets = append(targets, conn)
			feedOwners[conn] = userID
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Warn("websocket write error", "error", err)
			conn.Close()
			if chatID, ok := rooms[conn]; ok {
				h.RemoveChatClient(chatID, conn)
				h.publishWSError("chat", chatID, conn, err)
			}
			if userID, ok := feedOwners[conn]; ok {
				h.RemoveFeedClient(userID, conn)
				h.publishWSError("feed", userID, conn, err)
			}
		}
	}
}

func (h *Hub) publishWSError(kind string, resourceID int, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(kind, resourceID, conn)
	if !ok {
		return
	}

	observability.PublishSocketEvent(context.Background(), wsRoutingKey(kind),
		info.socketEvent(kind, "ws_error", resourceID, err.Error()))
	observability.IncWSEvent(kind, "ws_error")
}

func (h *Hub) getConnInfo(kind string, resourceID int, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if kind == "chat" {
		if infos, ok := h.chatConnInfo[resourceID]; ok {
			info, exists := infos[conn]
			return info, exists
		}
		return ConnInfo{}, false
	}
	if infos, ok := h.feedConnInfo[resourceID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

func wsRoutingKey(kind string) string {
	if kind == "feed" {
		return "ws_events.feeds"
	}
	return "ws_events.chats"
}
