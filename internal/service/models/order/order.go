package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/tablerie/possync/internal/service/models/orderline"
	"github.com/tablerie/possync/internal/service/models/status"
)

var (
	// ErrNotFound is returned when an order id does not exist in the store.
	ErrNotFound = errors.New("order not found")

	// ErrVersionConflict is returned when a write carries a stale version
	// token. The caller should re-fetch and retry instead of overwriting.
	ErrVersionConflict = errors.New("order version conflict")
)

// Type is the canonical order type. The backend speaks the French values.
type Type string

const (
	TypeDineIn   Type = "dine_in"
	TypeTakeaway Type = "takeaway"
	TypeDelivery Type = "delivery"
)

var typeLabels = map[Type]string{
	TypeDineIn:   "sur place",
	TypeTakeaway: "à emporter",
	TypeDelivery: "livraison",
}

// ParseType normalizes an order type from either canonical or wire form.
func ParseType(s string) (Type, error) {
	for t, label := range typeLabels {
		if s == string(t) || s == label {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown order type %q", s)
}

func (t Type) String() string {
	return string(t)
}

// Label returns the localized wire value for the type.
func (t Type) Label() string {
	return typeLabels[t]
}

// Order represents a customer order in the system.
type Order struct {
	ID              int64                 `json:"id"`
	TableID         *int64                `json:"tableId,omitempty"`
	Type            Type                  `json:"type"`
	Status          status.Status         `json:"status"`
	CustomerName    string                `json:"customerName,omitempty"`
	CustomerPhone   string                `json:"customerPhone,omitempty"`
	DeliveryAddress string                `json:"deliveryAddress,omitempty"`
	Lines           []orderline.OrderLine `json:"lines"`
	TotalCents      int64                 `json:"totalCents"`
	NotifiedKitchen bool                  `json:"notifiedKitchen"`
	NotifiedCashier bool                  `json:"notifiedCashier"`
	Version         int64                 `json:"version"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// RecomputeTotal derives TotalCents from the lines. The total is never
// accepted from a caller; it is recomputed on every line mutation.
func (o *Order) RecomputeTotal() {
	var total int64
	for _, l := range o.Lines {
		total += l.Subtotal()
	}
	o.TotalCents = total
}

// Active reports whether the order still holds its table.
func (o *Order) Active() bool {
	return o.Status.Active()
}
