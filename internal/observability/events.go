package observability

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
)

// Publisher mirrors socket lifecycle events onto the message bus. The
// rabbitmq package's publisher satisfies it; nil drops events silently.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

var (
	pubMu        sync.RWMutex
	busPublisher Publisher
)

// SetPublisher installs the process-wide event publisher. Called once at
// startup, before any connection is served.
func SetPublisher(p Publisher) {
	pubMu.Lock()
	defer pubMu.Unlock()
	busPublisher = p
}

// SocketEvent is the bus payload for a websocket lifecycle transition:
// connect, disconnect, or write/read error.
type SocketEvent struct {
	Event      string `json:"event"`
	Kind       string `json:"kind"`
	ResourceID int    `json:"resource_id"`
	ConnID     string `json:"conn_id"`
	UserID     int    `json:"user_id"`
	DeviceID   string `json:"device_id,omitempty"`
	IP         string `json:"ip,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// PublishSocketEvent delivers one lifecycle event, best effort: a failure
// bumps the publish error counter and is otherwise swallowed.
func PublishSocketEvent(ctx context.Context, routingKey string, ev SocketEvent) {
	pubMu.RLock()
	p := busPublisher
	pubMu.RUnlock()
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, ev); err != nil {
		IncAMQPPublishError()
	}
}

func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// IPFromRequest prefers the first forwarded hop; sockets usually arrive
// through the edge proxy.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
