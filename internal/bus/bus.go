package bus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tablerie/possync/internal/service/models/event"
)

// Handler consumes one event. Handlers run synchronously on the publisher's
// goroutine; they must not block.
type Handler func(event.Event)

type subscription struct {
	id       uuid.UUID
	channels map[event.Channel]struct{}
	handler  Handler
}

func (s *subscription) wants(ch event.Channel) bool {
	if ch == event.ChannelGlobal {
		return true
	}
	_, ok := s.channels[ch]
	return ok
}

// Bus is the in-process publish/subscribe router. Producers publish typed
// events on a channel; only subscribers declared on that channel (or on
// global) receive them. Events are transient and lost on restart.
type Bus struct {
	mu   sync.RWMutex
	subs map[event.Type]map[uuid.UUID]*subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs: make(map[event.Type]map[uuid.UUID]*subscription),
	}
}

// Subscribe registers a handler for one event type, scoped to the given
// channels. Multiple handlers per type are permitted and all matching ones
// are invoked; invocation order is unspecified.
func (b *Bus) Subscribe(t event.Type, channels []event.Channel, h Handler) uuid.UUID {
	sub := &subscription{
		id:       uuid.New(),
		channels: make(map[event.Channel]struct{}, len(channels)),
		handler:  h,
	}
	for _, ch := range channels {
		sub.channels[ch] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[t] == nil {
		b.subs[t] = make(map[uuid.UUID]*subscription)
	}
	b.subs[t][sub.id] = sub

	return sub.id
}

// Unsubscribe removes one handler. It is a no-op if the id is unknown.
func (b *Bus) Unsubscribe(t event.Type, id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs[t], id)
}

// Publish delivers the event synchronously to all current subscribers of its
// type whose channel set matches the event's channel. Events published on the
// global channel reach every subscriber of the type.
func (b *Bus) Publish(e event.Event) {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.subs[e.EventType()]))
	for _, sub := range b.subs[e.EventType()] {
		if sub.wants(e.EventChannel()) {
			matched = append(matched, sub.handler)
		}
	}
	b.mu.RUnlock()

	// Handlers run outside the lock so they may subscribe or unsubscribe.
	for _, h := range matched {
		h(e)
	}

	slog.Debug("event published",
		"type", e.EventType(),
		"channel", e.EventChannel(),
		"delivered", len(matched),
	)
}

// Conn is a role-scoped view of the bus. Every subscription made through the
// connection is limited to the role's channels and released on Close, so a
// screen teardown cannot leak handlers.
type Conn struct {
	bus      *Bus
	role     event.Role
	channels []event.Channel

	mu     sync.Mutex
	subs   map[event.Type][]uuid.UUID
	closed bool
}

// Connect establishes the role context for a consumer.
func (b *Bus) Connect(role event.Role) *Conn {
	return &Conn{
		bus:      b,
		role:     role,
		channels: role.Channels(),
		subs:     make(map[event.Type][]uuid.UUID),
	}
}

// Role returns the role this connection was opened for.
func (c *Conn) Role() event.Role {
	return c.role
}

// Subscribe registers a handler scoped to the connection's role channels.
func (c *Conn) Subscribe(t event.Type, h Handler) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return uuid.Nil
	}

	id := c.bus.Subscribe(t, c.channels, h)
	c.subs[t] = append(c.subs[t], id)

	return id
}

// Unsubscribe removes one handler registered through this connection.
func (c *Conn) Unsubscribe(t event.Type, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.subs[t]
	for i, known := range ids {
		if known == id {
			c.subs[t] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	c.bus.Unsubscribe(t, id)
}

// Close tears down the role context and releases every handler registered
// through the connection.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for t, ids := range c.subs {
		for _, id := range ids {
			c.bus.Unsubscribe(t, id)
		}
	}
	c.subs = nil
}
