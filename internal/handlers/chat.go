package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
	"github.com/sun2004ny/bada-builder-sub003/internal/rabbitmq"
	"github.com/sun2004ny/bada-builder-sub003/internal/repositories"
	"github.com/sun2004ny/bada-builder-sub003/internal/ws"
)

// ChatEventsRoutingKey is where new_message events are mirrored on the bus.
const ChatEventsRoutingKey = "chat_events.new_message"

// ChatHandler serves the chat store operations the sync engine polls.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
	publisher   rabbitmq.Publisher
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, hub *ws.Hub, publisher rabbitmq.Publisher) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		hub:         hub,
		publisher:   publisher,
	}
}

// ListChats returns the caller's chats, most recently active first.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.chatRepo.ListChatsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat creates or returns the chat between the caller and a property
// owner about one listing.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		PropertyID    int    `json:"property_id" binding:"required"`
		OwnerID       int    `json:"owner_id" binding:"required"`
		PropertyTitle string `json:"property_title"`
		PropertyImage string `json:"property_image"`
		OwnerName     string `json:"owner_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.OwnerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat about your own listing"})
		return
	}

	meta := repositories.NewChatMeta{
		PropertyTitle: req.PropertyTitle,
		PropertyImage: req.PropertyImage,
		OwnerName:     req.OwnerName,
		BuyerName:     c.GetString("userName"),
	}
	chat, err := h.chatRepo.CreateOrGetChat(c.Request.Context(), req.PropertyID, userID, req.OwnerID, meta)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	c.JSON(http.StatusOK, chat)
}

// GetChatMessages returns the chat's message log oldest first.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage stores a message, then pushes it to the chat room, both
// participants' feeds, and the event bus.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.chatRepo.GetChat(c.Request.Context(), chatID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "chat not found"})
		return
	}
	if !chat.IsParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), chatID, userID, c.GetString("userName"), req.Text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	// Refetch so the pushed summary carries the bumped unread counters and
	// last-message fields.
	updated, err := h.chatRepo.GetChat(c.Request.Context(), chatID)
	if err != nil {
		updated = chat
	}

	h.hub.BroadcastNewMessage(updated, msg)
	if h.publisher != nil {
		_ = h.publisher.Publish(c.Request.Context(), ChatEventsRoutingKey, models.ChatEvent{
			Type:    models.EventNewMessage,
			ChatID:  chatID,
			Message: &msg,
			Chat:    &updated,
		})
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkRead zeroes the caller's unread counter for the chat.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	if err := h.chatRepo.MarkRead(c.Request.Context(), chatID, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not mark chat read"})
		return
	}

	c.Status(http.StatusNoContent)
}
