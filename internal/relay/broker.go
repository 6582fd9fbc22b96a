// Package relay fans smoke run progress out to SSE and WebSocket clients.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

const subscriberBufSize = 256

// Event is one progress message as delivered to clients.
type Event struct {
	Type    string
	RunID   string
	Payload string
}

// Broker fans out events to all subscribed clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
	dropped     atomic.Int64
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new client. Returns the subscriber ID and a channel
// to receive events on. The channel is buffered; slow consumers will have
// events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers. Non-blocking: slow clients
// have events dropped.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Observer returns a smoke.Observer publishing each run event as JSON.
func (b *Broker) Observer() smoke.Observer {
	return func(e smoke.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			slog.Warn("relay: marshal event", "type", e.Type, "error", err)
			return
		}
		b.Publish(Event{Type: e.Type, RunID: e.RunID, Payload: string(data)})
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }
