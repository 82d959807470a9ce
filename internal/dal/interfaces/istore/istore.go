package istore

import (
	"context"

	"github.com/tablerie/possync/internal/dal/interfaces/imenuitemrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/iorderrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/istatuslogrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/itablerepo"
)

// IUnitOfWork groups order and table writes into one logical unit. The
// Postgres implementation runs a real transaction; the REST implementation
// records applied calls and issues compensating calls on Rollback, since the
// collaborator API cannot wrap two endpoints in a transaction.
type IUnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Orders() iorderrepo.IOrderRepository
	Tables() itablerepo.ITableRepository
	StatusLogs() istatuslogrepo.IStatusLogRepository
}

// IStore is the authoritative order/table store injected into the lifecycle
// controller and the reconcilers. All mutation funnels through units of work
// created here so the model invariants are checked in one place.
type IStore interface {
	NewUnitOfWork() IUnitOfWork

	Orders() iorderrepo.IOrderRepository
	Tables() itablerepo.ITableRepository
	MenuItems() imenuitemrepo.IMenuItemRepository
	StatusLogs() istatuslogrepo.IStatusLogRepository
}
