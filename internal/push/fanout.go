// Package push is the client-side adapter for the real-time event stream:
// one shared inbound connection fanned out to any number of independent
// subscribers, keyed by event type. The adapter forwards payloads without
// interpreting them.
package push

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sun2004ny/bada-builder-sub003/internal/models"
)

// Fanout is the subscriber registry shared by every channel implementation.
// It also works stand-alone as a test double: call Emit directly.
type Fanout struct {
	mu   sync.RWMutex
	subs map[string]map[string]func(models.ChatEvent)
}

// NewFanout creates an empty registry.
func NewFanout() *Fanout {
	return &Fanout{subs: make(map[string]map[string]func(models.ChatEvent))}
}

// Subscribe registers a handler for an event type and returns its
// unsubscribe function. Unsubscribing twice is harmless.
func (f *Fanout) Subscribe(event string, fn func(models.ChatEvent)) (unsubscribe func()) {
	token := uuid.NewString()

	f.mu.Lock()
	if _, ok := f.subs[event]; !ok {
		f.subs[event] = make(map[string]func(models.ChatEvent))
	}
	f.subs[event][token] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if handlers, ok := f.subs[event]; ok {
			delete(handlers, token)
			if len(handlers) == 0 {
				delete(f.subs, event)
			}
		}
	}
}

// Emit delivers an event to every subscriber of its type. Channel read loops
// call this; handlers run on the caller's goroutine.
func (f *Fanout) Emit(ev models.ChatEvent) {
	if ev.Type == "" {
		// Malformed payload, skip rather than crash a merge step.
		return
	}

	f.mu.RLock()
	handlers := make([]func(models.ChatEvent), 0, len(f.subs[ev.Type]))
	for _, fn := range f.subs[ev.Type] {
		handlers = append(handlers, fn)
	}
	f.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
