package events

import (
	"sync"
	"time"
)

// Type names a catalog lifecycle event.
type Type string

const (
	CatalogReloaded     Type = "catalog.reloaded"
	CatalogReloadFailed Type = "catalog.reload_failed"
)

// Event is published whenever the served resource set changes or a reload is rejected.
type Event struct {
	Type      Type
	Revision  string
	Resources int
	Err       error
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for catalog events.
type Bus struct {
	subscribers map[Type][]Handler
	mu          sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for t.
func (b *Bus) Subscribe(t Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], handler)
}

// Publish runs the handlers of event.Type synchronously, in subscription order.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	for _, handler := range handlers {
		handler(event)
	}
}
