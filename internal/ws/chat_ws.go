package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/sun2004ny/bada-builder-sub003/internal/identity"
	"github.com/sun2004ny/bada-builder-sub003/internal/observability"
	"github.com/sun2004ny/bada-builder-sub003/internal/repositories"
)

// SocketHandler upgrades chat-room and user-feed websocket connections.
type SocketHandler struct {
	hub       *Hub
	chatRepo  repositories.ChatRepository
	jwtSecret string
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, chatRepo repositories.ChatRepository, jwtSecret string) *SocketHandler {
	return &SocketHandler{hub: hub, chatRepo: chatRepo, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleChat upgrades a connection scoped to one chat room.
func (h *SocketHandler) HandleChat(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx, span := otel.Tracer("listing-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := newConnInfo(c.Request, userID, span.SpanContext().TraceID().String())
	h.hub.AddChatClient(chatID, conn, info)
	h.watch(ctx, "chat", chatID, conn, info, func() {
		h.hub.RemoveChatClient(chatID, conn)
	})
}

// HandleFeed upgrades the caller's list-update feed connection.
func (h *SocketHandler) HandleFeed(c *gin.Context) {
	ctx, span := otel.Tracer("listing-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := newConnInfo(c.Request, userID, span.SpanContext().TraceID().String())
	h.hub.AddFeedClient(userID, conn, info)
	h.watch(ctx, "feed", userID, conn, info, func() {
		h.hub.RemoveFeedClient(userID, conn)
	})
}

// watch publishes connect/disconnect telemetry and drains the connection
// until the peer goes away. Clients never send application data upstream.
func (h *SocketHandler) watch(ctx context.Context, kind string, resourceID int, conn *websocket.Conn, info ConnInfo, remove func()) {
	observability.IncWSActive(kind)
	observability.IncWSEvent(kind, "ws_connect")
	h.publishLifecycle(ctx, kind, resourceID, "ws_connect", info, "")

	go func() {
		var closeReason string
		defer func() {
			remove()
			observability.DecWSActive(kind)
			observability.IncWSEvent(kind, "ws_disconnect")
			h.publishLifecycle(ctx, kind, resourceID, "ws_disconnect", info, closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(kind, "ws_error")
					h.publishLifecycle(ctx, kind, resourceID, "ws_error", info, closeReason)
				}
				return
			}
		}
	}()
}

func (h *SocketHandler) publishLifecycle(ctx context.Context, kind string, resourceID int, event string, info ConnInfo, reason string) {
	observability.PublishSocketEvent(ctx, wsRoutingKey(kind),
		info.socketEvent(kind, event, resourceID, reason))
}

// authenticate accepts the bearer header or, for browser websocket clients
// that cannot set headers, a token query parameter.
func (h *SocketHandler) authenticate(c *gin.Context) (int, error) {
	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}

	parts := strings.SplitN(token, " ", 2)
	if len(parts) != 2 {
		return 0, identity.ErrInvalidToken
	}
	claims, err := identity.ParseToken(h.jwtSecret, parts[1])
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
