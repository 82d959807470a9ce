package iorderrepo

import (
	"context"

	"github.com/tablerie/possync/internal/service/models/order"
)

// IOrderRepository is the order side of the store, shared by the Postgres
// repository and the REST collaborator adapter.
type IOrderRepository interface {
	// Insert persists a new order with its lines and returns it with the
	// store-assigned id and version.
	Insert(ctx context.Context, o order.Order) (order.Order, error)

	// GetByID returns one order or order.ErrNotFound.
	GetByID(ctx context.Context, id int64) (order.Order, error)

	// Query retrieves orders matching the filter, lines included.
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)

	// Update writes the order back. The write is rejected with
	// order.ErrVersionConflict when o.Version is stale; on success the
	// returned order carries the bumped version.
	Update(ctx context.Context, o order.Order) (order.Order, error)
}
