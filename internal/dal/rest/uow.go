package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tablerie/possync/internal/dal/interfaces/iorderrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/istatuslogrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/itablerepo"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/statuslog"
	"github.com/tablerie/possync/internal/service/models/table"
)

// unitOfWork emulates atomicity over the collaborator API. The API cannot
// wrap an order write and a table write in one transaction, so every applied
// mutation records a compensating call; Rollback replays them in reverse.
// Compensation is best effort — a failed inverse call is logged, leaving the
// stores flagged inconsistent for the reconciler to repair.
type unitOfWork struct {
	store         *Store
	compensations []func(ctx context.Context) error
}

func newUnitOfWork(store *Store) *unitOfWork {
	return &unitOfWork{
		store: store,
	}
}

func (u *unitOfWork) Begin(_ context.Context) error {
	u.compensations = u.compensations[:0]
	return nil
}

func (u *unitOfWork) Commit(_ context.Context) error {
	u.compensations = nil
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	var failed int
	for i := len(u.compensations) - 1; i >= 0; i-- {
		if err := u.compensations[i](ctx); err != nil {
			failed++
			slog.Error("compensating call failed, stores may be inconsistent", "error", err)
		}
	}
	u.compensations = nil

	if failed > 0 {
		return fmt.Errorf("%d compensating calls failed", failed)
	}

	return nil
}

func (u *unitOfWork) record(inverse func(ctx context.Context) error) {
	u.compensations = append(u.compensations, inverse)
}

func (u *unitOfWork) Orders() iorderrepo.IOrderRepository {
	return &compensatingOrderRepository{uow: u}
}

func (u *unitOfWork) Tables() itablerepo.ITableRepository {
	return &compensatingTableRepository{uow: u}
}

func (u *unitOfWork) StatusLogs() istatuslogrepo.IStatusLogRepository {
	return &compensatingStatusLogRepository{uow: u}
}

type compensatingOrderRepository struct {
	uow *unitOfWork
}

func (r *compensatingOrderRepository) repo() iorderrepo.IOrderRepository {
	return r.uow.store.Orders()
}

func (r *compensatingOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	inserted, err := r.repo().Insert(ctx, o)
	if err != nil {
		return order.Order{}, err
	}

	id := inserted.ID
	r.uow.record(func(ctx context.Context) error {
		return r.uow.store.client.do(ctx, http.MethodDelete, fmt.Sprintf("/orders/%d", id), nil, nil)
	})

	return inserted, nil
}

func (r *compensatingOrderRepository) GetByID(ctx context.Context, id int64) (order.Order, error) {
	return r.repo().GetByID(ctx, id)
}

func (r *compensatingOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	return r.repo().Query(ctx, filter)
}

func (r *compensatingOrderRepository) Update(ctx context.Context, o order.Order) (order.Order, error) {
	previous, err := r.repo().GetByID(ctx, o.ID)
	if err != nil {
		return order.Order{}, err
	}

	updated, err := r.repo().Update(ctx, o)
	if err != nil {
		return order.Order{}, err
	}

	r.uow.record(func(ctx context.Context) error {
		restore := previous
		restore.Version = updated.Version
		_, err := r.repo().Update(ctx, restore)
		return err
	})

	return updated, nil
}

type compensatingTableRepository struct {
	uow *unitOfWork
}

func (r *compensatingTableRepository) repo() itablerepo.ITableRepository {
	return r.uow.store.Tables()
}

func (r *compensatingTableRepository) List(ctx context.Context) ([]table.Table, error) {
	return r.repo().List(ctx)
}

func (r *compensatingTableRepository) GetByID(ctx context.Context, id int64) (table.Table, error) {
	return r.repo().GetByID(ctx, id)
}

func (r *compensatingTableRepository) SetOccupancy(ctx context.Context, id int64, st table.Status, orderID *int64) (table.Table, error) {
	previous, err := r.repo().GetByID(ctx, id)
	if err != nil {
		return table.Table{}, err
	}

	updated, err := r.repo().SetOccupancy(ctx, id, st, orderID)
	if err != nil {
		return table.Table{}, err
	}

	r.uow.record(func(ctx context.Context) error {
		_, err := r.repo().SetOccupancy(ctx, id, previous.Status, previous.OrderID)
		return err
	})

	return updated, nil
}

type compensatingStatusLogRepository struct {
	uow *unitOfWork
}

func (r *compensatingStatusLogRepository) Insert(ctx context.Context, entry statuslog.StatusLog) error {
	if err := r.uow.store.statusLogs.Insert(ctx, entry); err != nil {
		return err
	}

	orderID := entry.OrderID
	r.uow.record(func(context.Context) error {
		r.uow.store.statusLogs.removeLast(orderID)
		return nil
	})

	return nil
}

func (r *compensatingStatusLogRepository) ListByOrder(ctx context.Context, orderID int64) ([]statuslog.StatusLog, error) {
	return r.uow.store.statusLogs.ListByOrder(ctx, orderID)
}
