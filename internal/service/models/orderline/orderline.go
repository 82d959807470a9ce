package orderline

// OrderLine represents one line of an order. Name and unit price are a
// snapshot of the menu item taken at order-creation time; they do not follow
// later menu edits.
type OrderLine struct {
	ID             int64  `json:"id"`
	OrderID        int64  `json:"orderId"`
	MenuItemID     int64  `json:"menuItemId"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
}

// Subtotal returns the line total in cents.
func (l OrderLine) Subtotal() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}
