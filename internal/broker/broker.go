// Package broker implements the in-process publish/subscribe hub used to fan
// out realtime chat and presence events to every live connection.
package broker

import (
	"sync"

	"go.uber.org/zap"
)

// Event names delivered through the hub.
const (
	EventChats        = "chats"
	EventUpdatedChats = "updatedChats"
	EventChatDelete   = "chatDelete"
	EventUserOnline   = "userOnline"
	EventUserOffline  = "userOffline"
)

// subscriberBuffer is the per-subscriber event queue size. A subscriber whose
// buffer is full misses the event instead of blocking the publisher.
const subscriberBuffer = 256

// Message is one broadcast unit: an event name and its payload. Payloads are
// JSON-marshalable values produced by the core services.
type Message struct {
	Event string
	Data  interface{}
}

// Subscriber receives every message published on the hub while it stays
// subscribed. Events carries messages in global publish order.
type Subscriber struct {
	events chan Message
}

// Events returns the channel of broadcast messages. The channel is closed on
// Unsubscribe and on hub Close.
func (s *Subscriber) Events() <-chan Message {
	return s.events
}

// Hub owns the current set of subscribers and nothing else: no history, no
// queueing for clients that are not connected. Publish holds the hub lock for
// the whole fan-out, so all subscribers observe a single global publish order.
type Hub struct {
	logger *zap.SugaredLogger

	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

// NewHub returns a Hub ready for Subscribe and Publish calls.
func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new subscriber. Returns nil after the hub is closed.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	sub := &Subscriber{events: make(chan Message, subscriberBuffer)}
	h.subs[sub] = struct{}{}

	h.logger.Debugf("Subscriber added, %d active", len(h.subs))

	return sub
}

// Unsubscribe removes the subscriber and closes its event channel. Calling it
// twice, or with a subscriber from a closed hub, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.events)

	h.logger.Debugf("Subscriber removed, %d active", len(h.subs))
}

// Publish delivers the event to every current subscriber, the publisher
// included. Delivery is best effort: a subscriber with a full buffer misses
// the event.
func (h *Hub) Publish(event string, data interface{}) {
	h.publish(event, data, nil)
}

// PublishExcept delivers the event to every current subscriber but the given
// one. Used for presence events, which the originating connection does not
// receive.
func (h *Hub) PublishExcept(event string, data interface{}, except *Subscriber) {
	h.publish(event, data, except)
}

func (h *Hub) publish(event string, data interface{}, except *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	msg := Message{Event: event, Data: data}
	for sub := range h.subs {
		if sub == except {
			continue
		}
		select {
		case sub.events <- msg:
		default:
			h.logger.Warnf("Dropping %q event for slow subscriber", event)
		}
	}
}

// Len reports the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close terminates every subscriber channel and rejects further subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.events)
	}

	h.logger.Info("Broker hub is closed")
}
