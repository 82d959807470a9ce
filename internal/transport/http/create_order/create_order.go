package createorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tablerie/possync/internal/service/models/event"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/orderline"
	"github.com/tablerie/possync/internal/transport/http/converters"
)

// service is an interface for the service layer.
type service interface {
	Create(ctx context.Context, actor event.Role, draft order.Order) (order.Order, error)
}

type createLineRequest struct {
	MenuItemID int64 `json:"menuItemId"`
	Quantity   int   `json:"quantity"`
}

type createOrderRequest struct {
	Type            string              `json:"type"`
	TableID         *int64              `json:"tableId,omitempty"`
	CustomerName    string              `json:"customerName,omitempty"`
	CustomerPhone   string              `json:"customerPhone,omitempty"`
	DeliveryAddress string              `json:"deliveryAddress,omitempty"`
	Lines           []createLineRequest `json:"lines"`
}

func (req *createOrderRequest) toModel() (order.Order, error) {
	typ, err := order.ParseType(req.Type)
	if err != nil {
		return order.Order{}, err
	}

	lines := make([]orderline.OrderLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = orderline.OrderLine{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
		}
	}

	return order.Order{
		Type:            typ,
		TableID:         req.TableID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		Lines:           lines,
	}, nil
}

// CreateOrder handles the order creation request.
func CreateOrder(w http.ResponseWriter, r *http.Request, actor event.Role, svc service, onError func(http.ResponseWriter, error)) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		slog.Error("Error decoding request body for create order", "error", err)

		return
	}

	draft, err := req.toModel()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	created, err := svc.Create(r.Context(), actor, draft)
	if err != nil {
		onError(w, err)
		slog.Error("Error creating order", "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(converters.OrderToResponse(created)); err != nil {
		slog.Error("Error writing response for create order", "error", err)
	}
}
