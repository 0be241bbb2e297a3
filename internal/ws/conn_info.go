package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sun2004ny/bada-builder-sub003/internal/observability"
)

// ConnInfo is the per-socket metadata captured at admission and carried
// through lifecycle telemetry until the connection closes.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnInfo(r *http.Request, userID int, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(r),
		IP:          observability.IPFromRequest(r),
		RequestID:   observability.RequestIDFromRequest(r),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

func (i ConnInfo) socketEvent(kind, event string, resourceID int, reason string) observability.SocketEvent {
	return observability.SocketEvent{
		Event:      event,
		Kind:       kind,
		ResourceID: resourceID,
		ConnID:     i.ConnID,
		UserID:     i.UserID,
		DeviceID:   i.DeviceID,
		IP:         i.IP,
		RequestID:  i.RequestID,
		TraceID:    i.TraceID,
		DurationMS: time.Since(i.ConnectedAt).Milliseconds(),
		Reason:     reason,
	}
}
