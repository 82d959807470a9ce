package converters

import (
	"time"

	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/orderline"
	"github.com/tablerie/possync/internal/service/models/statuslog"
	"github.com/tablerie/possync/internal/service/models/table"
)

// OrderLineResponse is the rendered form of one order line.
type OrderLineResponse struct {
	ID         int64   `json:"id"`
	MenuItemID int64   `json:"menuItemId"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unitPrice"`
	Quantity   int     `json:"quantity"`
}

// OrderResponse is the rendered form of an order. Status and type carry both
// the canonical value and the localized label so every role renders from the
// same lookup.
type OrderResponse struct {
	ID              int64               `json:"id"`
	TableID         *int64              `json:"tableId,omitempty"`
	Type            string              `json:"type"`
	TypeLabel       string              `json:"typeLabel"`
	Status          string              `json:"status"`
	StatusLabel     string              `json:"statusLabel"`
	StatusColor     string              `json:"statusColor"`
	CustomerName    string              `json:"customerName,omitempty"`
	CustomerPhone   string              `json:"customerPhone,omitempty"`
	DeliveryAddress string              `json:"deliveryAddress,omitempty"`
	Lines           []OrderLineResponse `json:"lines"`
	Total           float64             `json:"total"`
	NotifiedKitchen bool                `json:"notifiedKitchen"`
	NotifiedCashier bool                `json:"notifiedCashier"`
	Version         int64               `json:"version"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func lineToResponse(l orderline.OrderLine) OrderLineResponse {
	return OrderLineResponse{
		ID:         l.ID,
		MenuItemID: l.MenuItemID,
		Name:       l.Name,
		UnitPrice:  float64(l.UnitPriceCents) / 100,
		Quantity:   l.Quantity,
	}
}

// OrderToResponse denormalizes an order for display.
func OrderToResponse(o order.Order) OrderResponse {
	lines := make([]OrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = lineToResponse(l)
	}

	return OrderResponse{
		ID:              o.ID,
		TableID:         o.TableID,
		Type:            o.Type.String(),
		TypeLabel:       o.Type.Label(),
		Status:          o.Status.String(),
		StatusLabel:     o.Status.Label(),
		StatusColor:     o.Status.Color(),
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		DeliveryAddress: o.DeliveryAddress,
		Lines:           lines,
		Total:           float64(o.TotalCents) / 100,
		NotifiedKitchen: o.NotifiedKitchen,
		NotifiedCashier: o.NotifiedCashier,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// OrdersToResponse denormalizes a collection for display.
func OrdersToResponse(orders []order.Order) []OrderResponse {
	result := make([]OrderResponse, len(orders))
	for i, o := range orders {
		result[i] = OrderToResponse(o)
	}
	return result
}

// TableResponse is the rendered form of a table.
type TableResponse struct {
	ID      int64  `json:"id"`
	Number  int    `json:"number"`
	Seats   int    `json:"seats"`
	Status  string `json:"status"`
	OrderID *int64 `json:"orderId,omitempty"`
}

// TablesToResponse denormalizes the floor plan for display.
func TablesToResponse(tables []table.Table) []TableResponse {
	result := make([]TableResponse, len(tables))
	for i, t := range tables {
		result[i] = TableResponse{
			ID:      t.ID,
			Number:  t.Number,
			Seats:   t.Seats,
			Status:  string(t.Status),
			OrderID: t.OrderID,
		}
	}
	return result
}

// HistoryEntryResponse is one rendered audit-trail entry.
type HistoryEntryResponse struct {
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	ToLabel   string    `json:"toLabel"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
}

// HistoryToResponse denormalizes an audit trail for display.
func HistoryToResponse(trail []statuslog.StatusLog) []HistoryEntryResponse {
	result := make([]HistoryEntryResponse, len(trail))
	for i, entry := range trail {
		result[i] = HistoryEntryResponse{
			From:      string(entry.From),
			To:        string(entry.To),
			ToLabel:   entry.To.Label(),
			ChangedBy: entry.ChangedBy,
			ChangedAt: entry.ChangedAt,
		}
	}
	return result
}
