package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/viper"
	"github.com/tablerie/possync/internal/bus"
	"github.com/tablerie/possync/internal/dal/interfaces/istore"
	"github.com/tablerie/possync/internal/service/models/event"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/service/models/table"
	"github.com/tablerie/possync/internal/view"
	"golang.org/x/sync/errgroup"
)

// Reconciler bridges server-authoritative state and one role's rendered view
// on a fixed cadence, independent of the bus. Push events may arrive sooner;
// the poll guarantees convergence within one interval even when they don't.
// One scheduler runs both resource loops so a role never stacks redundant
// timers.
type Reconciler struct {
	role          event.Role
	store         istore.IStore
	bus           *bus.Bus
	view          *view.View
	orderInterval time.Duration
	tableInterval time.Duration
	healLinks     bool
	stopCh        chan struct{}
}

// NewReconciler creates a reconciler for one role. Only the server role
// repairs inconsistent order/table links: its working set spans all active
// orders, so it is the only role that can judge a link safely.
func NewReconciler(
	role event.Role,
	store istore.IStore,
	b *bus.Bus,
	v *view.View,
) *Reconciler {
	orderIntervalSeconds := viper.GetInt("reconciler.order_interval_seconds")
	if orderIntervalSeconds == 0 {
		orderIntervalSeconds = 3
	}

	tableIntervalSeconds := viper.GetInt("reconciler.table_interval_seconds")
	if tableIntervalSeconds == 0 {
		tableIntervalSeconds = 10
	}

	return &Reconciler{
		role:          role,
		store:         store,
		bus:           b,
		view:          v,
		orderInterval: time.Duration(orderIntervalSeconds) * time.Second,
		tableInterval: time.Duration(tableIntervalSeconds) * time.Second,
		healLinks:     role == event.RoleServer,
		stopCh:        make(chan struct{}),
	}
}

// Start runs the poll loops until the context is cancelled or Stop is
// called.
func (r *Reconciler) Start(ctx context.Context) error {
	slog.Info("reconciler started",
		"role", r.role,
		"order_interval", r.orderInterval,
		"table_interval", r.tableInterval,
	)

	// Prime the view before the first tick so screens don't open empty.
	r.syncOrders(ctx)
	r.syncTables(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.loop(ctx, r.orderInterval, r.syncOrders)
	})
	g.Go(func() error {
		return r.loop(ctx, r.tableInterval, r.syncTables)
	})

	return g.Wait()
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler loop shutting down", "role", r.role)
			return ctx.Err()
		case <-r.stopCh:
			slog.Info("reconciler loop stopped", "role", r.role)
			return nil
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// syncOrders fetches the role's working set and merges it into the view. A
// fetch failure keeps the last-known-good set and only flags the view
// degraded.
func (r *Reconciler) syncOrders(ctx context.Context) {
	fetched, err := r.store.Orders().Query(ctx, workingSetFilter(r.role))
	if err != nil {
		slog.Warn("order poll failed, keeping last known state", "role", r.role, "error", err)
		r.view.SetDegraded()
		return
	}

	res := r.view.MergeOrders(filterWorkingSet(r.role, fetched))

	for _, o := range res.New {
		r.bus.Publish(event.OrderCreated{
			Meta:  event.NewMeta(r.role.Channel()),
			Order: o,
		})
	}
	for _, ch := range res.Changed {
		r.bus.Publish(event.OrderStatusChanged{
			Meta:    event.NewMeta(r.role.Channel()),
			OrderID: ch.OrderID,
			From:    ch.From,
			To:      ch.To,
		})
	}
}

// syncTables refreshes table occupancy and, for the server role, verifies
// the bidirectional order/table link, repairing the table side from the
// order store's view.
func (r *Reconciler) syncTables(ctx context.Context) {
	tables, err := r.store.Tables().List(ctx)
	if err != nil {
		slog.Warn("table poll failed, keeping last known state", "role", r.role, "error", err)
		r.view.SetDegraded()
		return
	}

	r.view.MergeTables(tables)

	if r.healLinks {
		r.healInconsistentLinks(ctx, tables)
	}
}

func (r *Reconciler) healInconsistentLinks(ctx context.Context, tables []table.Table) {
	byID := make(map[int64]table.Table, len(tables))
	for _, t := range tables {
		byID[t.ID] = t
	}

	for _, o := range r.view.Orders() {
		if !o.Active() || o.TableID == nil {
			continue
		}

		t, ok := byID[*o.TableID]
		if !ok {
			slog.Error("order references unknown table", "order_id", o.ID, "table_id", *o.TableID)
			continue
		}
		if t.OrderID != nil && *t.OrderID == o.ID {
			continue
		}

		slog.Error("inconsistent order/table link, repairing from order store",
			"order_id", o.ID,
			"table_id", t.ID,
			"table_order_id", t.OrderID,
		)

		orderID := o.ID
		if _, err := r.store.Tables().SetOccupancy(ctx, t.ID, table.StatusOccupied, &orderID); err != nil {
			slog.Error("failed to repair table link", "table_id", t.ID, "error", err)
		}
	}
}

// workingSetFilter narrows the fetch to the statuses a role can act on.
func workingSetFilter(role event.Role) *order.QueryOrdersModel {
	switch role {
	case event.RoleKitchen:
		return &order.QueryOrdersModel{
			Statuses: []status.Status{status.Pending, status.Preparing},
		}
	case event.RoleCashier:
		return &order.QueryOrdersModel{
			Statuses: []status.Status{status.Ready, status.Completed},
		}
	default:
		return &order.QueryOrdersModel{
			Statuses: []status.Status{status.Pending, status.Preparing, status.Ready, status.Completed},
		}
	}
}

// filterWorkingSet applies the notification gates the store cannot filter
// by: the kitchen only sees pending orders it has been told about, the
// cashier only sees orders flagged for payment.
func filterWorkingSet(role event.Role, orders []order.Order) []order.Order {
	switch role {
	case event.RoleKitchen:
		kept := orders[:0]
		for _, o := range orders {
			if o.Status == status.Pending && !o.NotifiedKitchen {
				continue
			}
			kept = append(kept, o)
		}
		return kept
	case event.RoleCashier:
		kept := orders[:0]
		for _, o := range orders {
			if o.Status == status.Ready && !o.NotifiedCashier {
				continue
			}
			kept = append(kept, o)
		}
		return kept
	default:
		return orders
	}
}
