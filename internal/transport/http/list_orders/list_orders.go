package listorders

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/transport/http/converters"
)

type service interface {
	GetOrders(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
}

func parseFilter(r *http.Request) (*order.QueryOrdersModel, error) {
	filter := &order.QueryOrdersModel{}
	query := r.URL.Query()

	if raw := query.Get("statuses"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, err := status.Parse(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}

	if raw := query.Get("types"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			t, err := order.ParseType(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			filter.Types = append(filter.Types, t)
		}
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		filter.Limit = limit
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		filter.Offset = offset
	}

	return filter, nil
}

// ListOrders handles the order listing request.
func ListOrders(w http.ResponseWriter, r *http.Request, svc service) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request", "error", err)

		return
	}

	orders, err := svc.GetOrders(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		slog.Error("Error getting orders", "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(converters.OrdersToResponse(orders)); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}
