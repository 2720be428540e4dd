// Package events provides a simple publish-subscribe bus for configuration
// change and operator interaction notifications.
package events

import (
	"sync"
	"time"
)

const subBufferSize = 8

// Notification types.
const (
	TypeChange      = "change"      // a byte was committed
	TypeInteraction = "interaction" // an operator event was handled
	TypeReload      = "reload"      // the whole array was loaded, saved or erased
)

// Notification is one message delivered to subscribers.
type Notification struct {
	Type    string    `json:"type"`
	Index   int       `json:"index,omitempty"`
	Value   int       `json:"value,omitempty"`
	Event   string    `json:"event,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Action  string    `json:"action,omitempty"`
	Time    time.Time `json:"time"`
}

// Bus is a non-blocking publish-subscribe event bus.
// Subscribers that are slow to consume events will have events dropped rather
// than blocking publishers.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan Notification
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan Notification),
	}
}

// Subscribe creates a new subscription with the given ID.
// Call Unsubscribe when done to clean up.
func (b *Bus) Subscribe(id string) <-chan Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Notification, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends n to all subscribers, stamping it with the current time if
// unset. If a subscriber's channel is full, the event is dropped.
func (b *Bus) Publish(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			// Drop if subscriber is slow
		}
	}
}

// Changed publishes a change notification. It lets the bus serve directly as
// a configuration change handler.
func (b *Bus) Changed(index int, value byte) {
	b.Publish(Notification{Type: TypeChange, Index: index, Value: int(value)})
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
