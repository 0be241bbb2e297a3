// Package client talks to the chat store's REST surface on behalf of the
// sync engine. The bearer token carries the caller's identity, so sender
// fields on AppendMessage exist for the store contract but travel implicitly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
	"github.com/sun2004ny/bada-builder-sub003/internal/reconcile"
)

// StoreClient implements reconcile.Store over HTTP.
type StoreClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	tracer     trace.Tracer
}

var _ reconcile.Store = (*StoreClient)(nil)

// New builds a store client for the given base URL and bearer token.
func New(baseURL, token string) *StoreClient {
	return &StoreClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tracer:     otel.Tracer("listing-chat/store-client"),
	}
}

// FetchChatsForUser returns every chat the user takes part in.
func (c *StoreClient) FetchChatsForUser(ctx context.Context, userID int) ([]models.Chat, error) {
	ctx, span := c.tracer.Start(ctx, "store.fetch_chats")
	defer span.End()

	var resp struct {
		Chats []models.Chat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// FetchMessages returns a chat's full message log.
func (c *StoreClient) FetchMessages(ctx context.Context, chatID int) ([]models.Message, error) {
	ctx, span := c.tracer.Start(ctx, "store.fetch_messages")
	defer span.End()

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/chats/%d/messages", chatID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// AppendMessage stores a message and returns the server-confirmed entry.
func (c *StoreClient) AppendMessage(ctx context.Context, chatID int, senderID int, senderName, text string) (models.Message, error) {
	ctx, span := c.tracer.Start(ctx, "store.append_message")
	defer span.End()

	var msg models.Message
	body := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/chats/%d/messages", chatID), body, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkRead zeroes the caller's unread counter for the chat.
func (c *StoreClient) MarkRead(ctx context.Context, chatID int, userID int) error {
	ctx, span := c.tracer.Start(ctx, "store.mark_read")
	defer span.End()

	return c.do(ctx, http.MethodPost, fmt.Sprintf("/chats/%d/read", chatID), nil, nil)
}

// CreateOrGetChat returns the chat for a listing contact, creating it
// lazily on first use.
func (c *StoreClient) CreateOrGetChat(ctx context.Context, propertyID int, ownerID int) (models.Chat, error) {
	ctx, span := c.tracer.Start(ctx, "store.create_or_get_chat")
	defer span.End()

	var chat models.Chat
	body := map[string]int{"property_id": propertyID, "owner_id": ownerID}
	if err := c.do(ctx, http.MethodPost, "/chats/start", body, &chat); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

func (c *StoreClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("store: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
