// Package events carries core-to-UI notifications. The core never touches
// UI-owned state; it publishes events and the surrounding application
// decides what to re-render.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies a kind of event.
type Type string

const (
	// RecordsChanged signals that a folder's execution record log gained
	// an entry and should be reloaded.
	RecordsChanged Type = "records_changed"
	// PollingStopped signals that a folder's poll loop has shut down.
	PollingStopped Type = "polling_stopped"
)

// Event names the folder the notification is about.
type Event struct {
	Type      Type
	FolderID  uuid.UUID
	Timestamp time.Time
}

// Subscriber receives events asynchronously.
type Subscriber func(Event)

// Bus is a non-blocking publish/subscribe fan-out. Each subscriber gets a
// buffered channel; when the buffer is full the event is dropped for that
// subscriber rather than blocking the publisher.
type Bus struct {
	mu          sync.Mutex
	subscribers map[Type][]chan Event
	bufferSize  int
}

func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[Type][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers fn for events of the given type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(eventType Type, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			fn(event)
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish delivers an event about folderID to every subscriber of the type.
func (b *Bus) Publish(eventType Type, folderID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	event := Event{
		Type:      eventType,
		FolderID:  folderID,
		Timestamp: time.Now().UTC(),
	}

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close tears down all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
}
