package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/service/models/table"
)

// Channel is a logical delivery scope on the notification bus. Channel
// membership is enforced: a subscriber only receives events published on one
// of its channels, Global excepted.
type Channel string

const (
	ChannelServer  Channel = "server"
	ChannelKitchen Channel = "kitchen"
	ChannelCashier Channel = "cashier"
	ChannelGlobal  Channel = "global"
)

// Role identifies a POS screen role and maps onto the channels it listens on.
type Role string

const (
	RoleServer  Role = "server"
	RoleKitchen Role = "kitchen"
	RoleCashier Role = "cashier"
)

// Channel returns the role's own bus channel.
func (r Role) Channel() Channel {
	return Channel(r)
}

// Channels returns the bus channels a role subscribes to.
func (r Role) Channels() []Channel {
	switch r {
	case RoleServer:
		return []Channel{ChannelServer, ChannelGlobal}
	case RoleKitchen:
		return []Channel{ChannelKitchen, ChannelGlobal}
	case RoleCashier:
		return []Channel{ChannelCashier, ChannelGlobal}
	default:
		return []Channel{ChannelGlobal}
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleServer, RoleKitchen, RoleCashier:
		return true
	default:
		return false
	}
}

// Type discriminates event payloads on the bus.
type Type string

const (
	TypeOrderCreated       Type = "order.new"
	TypeOrderStatusChanged Type = "order.updated"
	TypeTableChanged       Type = "table.updated"
)

// Event is a transient notification delivered in-process. Events are not
// persisted and are lost on restart; cross-process consistency comes from the
// polling reconcilers, with the AMQP relay as a best-effort push path.
type Event interface {
	EventID() uuid.UUID
	EventType() Type
	EventChannel() Channel
	OccurredAt() time.Time
}

// Meta carries the fields common to every event.
type Meta struct {
	ID      uuid.UUID `json:"id"`
	Channel Channel   `json:"channel"`
	At      time.Time `json:"at"`
}

// NewMeta stamps a fresh event identity for the given channel.
func NewMeta(ch Channel) Meta {
	return Meta{
		ID:      uuid.New(),
		Channel: ch,
		At:      time.Now(),
	}
}

func (m Meta) EventID() uuid.UUID    { return m.ID }
func (m Meta) EventChannel() Channel { return m.Channel }
func (m Meta) OccurredAt() time.Time { return m.At }

// OrderCreated announces an order a channel has not seen before. It carries
// the full order so consumers can render without a follow-up fetch.
type OrderCreated struct {
	Meta
	Order order.Order `json:"order"`
}

func (OrderCreated) EventType() Type { return TypeOrderCreated }

// OrderStatusChanged announces an accepted lifecycle transition.
type OrderStatusChanged struct {
	Meta
	OrderID int64         `json:"orderId"`
	From    status.Status `json:"from"`
	To      status.Status `json:"to"`
}

func (OrderStatusChanged) EventType() Type { return TypeOrderStatusChanged }

// TableChanged announces an occupancy change on a table.
type TableChanged struct {
	Meta
	Table table.Table `json:"table"`
}

func (TableChanged) EventType() Type { return TypeTableChanged }
