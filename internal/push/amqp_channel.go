package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
)

// AMQPChannel consumes the chat-event exchange the service publishes to.
// It is a drop-in alternative to the websocket channel for clients that sit
// next to the broker, with the same at-least-once, no-replay contract.
type AMQPChannel struct {
	*Fanout

	url      string
	exchange string
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// NewAMQPChannel builds a channel for the given broker URL and exchange.
func NewAMQPChannel(url, exchange string, logger *slog.Logger) *AMQPChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPChannel{
		Fanout:   NewFanout(),
		url:      url,
		exchange: exchange,
		logger:   logger,
	}
}

// Start begins consuming. Idempotent like the websocket channel.
func (c *AMQPChannel) Start(ctx context.Context) error {
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

// Close stops consuming. Idempotent.
func (c *AMQPChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	c.cancel()
}

func (c *AMQPChannel) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.consume(ctx); err != nil {
			c.logger.Debug("amqp push channel disconnected", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *AMQPChannel) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	// Exclusive auto-deleted queue: this client's private tap on the stream.
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(queue.Name, "chat_events.*", c.exchange, false, nil); err != nil {
		return err
	}

	deliveries, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			var ev models.ChatEvent
			if err := json.Unmarshal(delivery.Body, &ev); err != nil {
				// Malformed payload, skipped as if it never arrived.
				c.logger.Debug("amqp push payload malformed", "error", err)
				continue
			}
			c.Emit(ev)
		}
	}
}
