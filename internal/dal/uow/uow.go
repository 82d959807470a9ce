package uow

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/tablerie/possync/internal/dal/interfaces/iorderrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/istatuslogrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/itablerepo"
	"github.com/tablerie/possync/internal/dal/postgres"
	orderrepo "github.com/tablerie/possync/internal/dal/repositories/order/postgres"
	statuslogrepo "github.com/tablerie/possync/internal/dal/repositories/statuslog/postgres"
	tablerepo "github.com/tablerie/possync/internal/dal/repositories/table/postgres"
)

// unitOfWork wraps the order, table and status-log repositories in one
// Postgres transaction.
type unitOfWork struct {
	client        *postgres.Client
	tx            pgx.Tx
	orderRepo     iorderrepo.IOrderRepository
	tableRepo     itablerepo.ITableRepository
	statusLogRepo istatuslogrepo.IStatusLogRepository
}

func NewUnitOfWork(client *postgres.Client) *unitOfWork {
	return &unitOfWork{
		client:        client,
		orderRepo:     orderrepo.NewPostgresOrderRepository(client.Pool()),
		tableRepo:     tablerepo.NewPostgresTableRepository(client.Pool()),
		statusLogRepo: statuslogrepo.NewPostgresStatusLogRepository(client.Pool()),
	}
}

func (u *unitOfWork) Orders() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) Tables() itablerepo.ITableRepository {
	return u.tableRepo
}

func (u *unitOfWork) StatusLogs() istatuslogrepo.IStatusLogRepository {
	return u.statusLogRepo
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	// Rebind the repositories to the transaction
	u.orderRepo = orderrepo.NewPostgresOrderRepository(tx)
	u.tableRepo = tablerepo.NewPostgresTableRepository(tx)
	u.statusLogRepo = statuslogrepo.NewPostgresStatusLogRepository(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	return u.tx.Rollback(ctx)
}
