package imenuitemrepo

import (
	"context"

	"github.com/tablerie/possync/internal/service/models/menuitem"
)

// IMenuItemRepository exposes the menu reference data.
type IMenuItemRepository interface {
	// List returns all menu items.
	List(ctx context.Context) ([]menuitem.MenuItem, error)

	// GetByIDs resolves the given ids. A missing id yields
	// menuitem.ErrNotFound.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]menuitem.MenuItem, error)
}
