package push

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
)

const reconnectDelay = 2 * time.Second

// WSChannel streams chat events over one websocket connection for the whole
// client session. It reconnects on its own after transient disconnects;
// subscribers just see events resume. No replay or gap detection happens
// here — missed events are covered by the next poll.
type WSChannel struct {
	*Fanout

	url    string
	token  string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// NewWSChannel builds a channel for the given feed URL and bearer token.
func NewWSChannel(url, token string, logger *slog.Logger) *WSChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSChannel{
		Fanout: NewFanout(),
		url:    url,
		token:  token,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Start opens the connection. Idempotent: a second call while running is a
// no-op returning nil, the existing connection keeps serving.
func (c *WSChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	return nil
}

// Close tears the connection down. Idempotent.
func (c *WSChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	c.cancel()
}

func (c *WSChannel) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		header := http.Header{}
		if c.token != "" {
			header.Set("Authorization", "Bearer "+c.token)
		}
		conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			c.logger.Debug("push channel dial failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		c.readLoop(ctx, conn)
	}
}

func (c *WSChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		var ev models.ChatEvent
		if err := conn.ReadJSON(&ev); err != nil {
			c.logger.Debug("push channel read failed", "error", err)
			return
		}
		c.Emit(ev)
	}
}
