package itablerepo

import (
	"context"

	"github.com/tablerie/possync/internal/service/models/table"
)

// ITableRepository is the table side of the store.
type ITableRepository interface {
	// List returns the full floor plan.
	List(ctx context.Context) ([]table.Table, error)

	// GetByID returns one table or table.ErrNotFound.
	GetByID(ctx context.Context, id int64) (table.Table, error)

	// SetOccupancy updates a table's status and order back-reference.
	// orderID must be nil unless st is occupied.
	SetOccupancy(ctx context.Context, id int64, st table.Status, orderID *int64) (table.Table, error)
}
