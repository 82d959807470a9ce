package table

import "errors"

// ErrNotFound is returned when a table id does not exist in the store.
var ErrNotFound = errors.New("table not found")

// Status is the occupancy state of a table.
type Status string

const (
	StatusFree     Status = "free"
	StatusOccupied Status = "occupied"
	StatusReserved Status = "reserved"
)

// Table represents a physical seating unit on the floor plan. Tables are
// created once as static data and mutated only through order lifecycle
// transitions.
//
// Invariant: Status == occupied iff OrderID points at an active order;
// Status == free implies OrderID is nil.
type Table struct {
	ID      int64  `json:"id"`
	Number  int    `json:"number"`
	Seats   int    `json:"seats"`
	Status  Status `json:"status"`
	OrderID *int64 `json:"orderId,omitempty"`
}

// Occupied reports whether the table is linked to an active order.
func (t Table) Occupied() bool {
	return t.Status == StatusOccupied && t.OrderID != nil
}
