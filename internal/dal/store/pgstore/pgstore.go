package pgstore

import (
	"github.com/tablerie/possync/internal/dal/interfaces/imenuitemrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/iorderrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/istatuslogrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/istore"
	"github.com/tablerie/possync/internal/dal/interfaces/itablerepo"
	"github.com/tablerie/possync/internal/dal/postgres"
	menuitemrepo "github.com/tablerie/possync/internal/dal/repositories/menuitem/postgres"
	orderrepo "github.com/tablerie/possync/internal/dal/repositories/order/postgres"
	statuslogrepo "github.com/tablerie/possync/internal/dal/repositories/statuslog/postgres"
	tablerepo "github.com/tablerie/possync/internal/dal/repositories/table/postgres"
	"github.com/tablerie/possync/internal/dal/uow"
)

// PostgresStore is the embedded store backend. It keeps the order/table data
// locally so the system can run without the remote collaborator, with real
// transactions backing the unit of work.
type PostgresStore struct {
	client *postgres.Client
}

// NewPostgresStore creates a store over an existing Postgres client.
func NewPostgresStore(client *postgres.Client) *PostgresStore {
	return &PostgresStore{
		client: client,
	}
}

func (s *PostgresStore) NewUnitOfWork() istore.IUnitOfWork {
	return uow.NewUnitOfWork(s.client)
}

func (s *PostgresStore) Orders() iorderrepo.IOrderRepository {
	return orderrepo.NewPostgresOrderRepository(s.client.Pool())
}

func (s *PostgresStore) Tables() itablerepo.ITableRepository {
	return tablerepo.NewPostgresTableRepository(s.client.Pool())
}

func (s *PostgresStore) MenuItems() imenuitemrepo.IMenuItemRepository {
	return menuitemrepo.NewPostgresMenuItemRepository(s.client.Pool())
}

func (s *PostgresStore) StatusLogs() istatuslogrepo.IStatusLogRepository {
	return statuslogrepo.NewPostgresStatusLogRepository(s.client.Pool())
}
