package lifecyclesvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tablerie/possync/internal/bus"
	"github.com/tablerie/possync/internal/dal/interfaces/istore"
	"github.com/tablerie/possync/internal/service/models/event"
	"github.com/tablerie/possync/internal/service/models/menuitem"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/service/models/statuslog"
	"github.com/tablerie/possync/internal/service/models/table"
)

var (
	// ErrInvalidTransition is returned when a requested status change is not
	// legal from the order's current status. Nothing is written.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation is returned when a draft is rejected before any store
	// call.
	ErrValidation = errors.New("validation failed")
)

// LifecycleService is the single mutation path for orders and tables. It
// enforces the status state machine and runs the side effects of each
// transition in a fixed sequence: persist the order, update table occupancy,
// then publish.
type LifecycleService struct {
	store istore.IStore
	bus   *bus.Bus
	now   func() time.Time
}

// option is a function that configures the LifecycleService.
type option func(*LifecycleService)

// MustNewLifecycleService creates a new LifecycleService.
func MustNewLifecycleService(opts ...option) *LifecycleService {
	s := &LifecycleService{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		panic("lifecyclesvc: store is required")
	}
	if s.bus == nil {
		panic("lifecyclesvc: bus is required")
	}

	return s
}

// WithStore sets the order/table store for the LifecycleService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithStore(store istore.IStore) option {
	return func(s *LifecycleService) {
		s.store = store
	}
}

// WithBus sets the notification bus for the LifecycleService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBus(b *bus.Bus) option {
	return func(s *LifecycleService) {
		s.bus = b
	}
}

// WithClock overrides the time source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *LifecycleService) {
		s.now = now
	}
}

// Create validates a draft and persists it as a new pending order. For
// dine-in orders the table is marked occupied in the same unit of work; if
// the table write fails the order insert is rolled back (or compensated when
// the store cannot run transactions).
func (s *LifecycleService) Create(ctx context.Context, actor event.Role, draft order.Order) (order.Order, error) {
	if err := s.validateDraft(draft); err != nil {
		return order.Order{}, err
	}

	if err := s.resolveLines(ctx, &draft); err != nil {
		return order.Order{}, err
	}

	now := s.now()
	draft.Status = status.Pending
	draft.NotifiedKitchen = false
	draft.NotifiedCashier = false
	draft.CreatedAt = now
	draft.UpdatedAt = now
	draft.RecomputeTotal()

	work := s.store.NewUnitOfWork()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, err
	}

	inserted, err := work.Orders().Insert(ctx, draft)
	if err != nil {
		rollback(ctx, work)
		return order.Order{}, err
	}

	if inserted.TableID != nil {
		if err := s.occupyTable(ctx, work, *inserted.TableID, inserted.ID); err != nil {
			rollback(ctx, work)
			return order.Order{}, err
		}
	}

	entry := statuslog.StatusLog{
		OrderID:   inserted.ID,
		To:        status.Pending,
		ChangedBy: string(actor),
		ChangedAt: now,
	}
	if err := work.StatusLogs().Insert(ctx, entry); err != nil {
		rollback(ctx, work)
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		rollback(ctx, work)
		return order.Order{}, err
	}

	slog.Info("order created",
		"order_id", inserted.ID,
		"type", inserted.Type,
		"total_cents", inserted.TotalCents,
		"actor", actor,
	)

	return inserted, nil
}

// NotifyKitchen marks a pending order as handed to the kitchen and announces
// it on the kitchen channel. Calling it again for an already-notified order
// is a no-op and publishes nothing.
func (s *LifecycleService) NotifyKitchen(ctx context.Context, actor event.Role, orderID int64) (order.Order, error) {
	o, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}

	if o.Status != status.Pending {
		return order.Order{}, fmt.Errorf("%w: notify kitchen from %s", ErrInvalidTransition, o.Status)
	}
	if o.NotifiedKitchen {
		return o, nil
	}

	o.NotifiedKitchen = true
	o.UpdatedAt = s.now()

	updated, err := s.store.Orders().Update(ctx, o)
	if err != nil {
		return order.Order{}, err
	}

	s.bus.Publish(event.OrderCreated{
		Meta:  event.NewMeta(event.ChannelKitchen),
		Order: updated,
	})

	slog.Info("kitchen notified", "order_id", updated.ID, "actor", actor)

	return updated, nil
}

// Advance moves an order one step along the state machine and runs the
// transition's side effects. A request from a non-adjacent state fails with
// ErrInvalidTransition before anything is written.
func (s *LifecycleService) Advance(ctx context.Context, actor event.Role, orderID int64, next status.Status) (order.Order, error) {
	if !next.Valid() {
		return order.Order{}, fmt.Errorf("%w: unknown target status %q", ErrInvalidTransition, next)
	}

	o, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}

	prev := o.Status
	if !prev.CanTransitionTo(next) {
		return order.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
	}
	if prev == status.Pending && next == status.Preparing && !o.NotifiedKitchen {
		return order.Order{}, fmt.Errorf("%w: order %d not yet notified to kitchen", ErrInvalidTransition, orderID)
	}

	now := s.now()
	o.Status = next
	o.UpdatedAt = now
	if next == status.Ready {
		o.NotifiedCashier = true
	}

	work := s.store.NewUnitOfWork()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, err
	}

	updated, err := work.Orders().Update(ctx, o)
	if err != nil {
		rollback(ctx, work)
		return order.Order{}, err
	}

	var freed *table.Table
	if !next.Active() && updated.TableID != nil {
		t, err := work.Tables().SetOccupancy(ctx, *updated.TableID, table.StatusFree, nil)
		if err != nil {
			rollback(ctx, work)
			return order.Order{}, err
		}
		freed = &t
	}

	entry := statuslog.StatusLog{
		OrderID:   updated.ID,
		From:      prev,
		To:        next,
		ChangedBy: string(actor),
		ChangedAt: now,
	}
	if err := work.StatusLogs().Insert(ctx, entry); err != nil {
		rollback(ctx, work)
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		rollback(ctx, work)
		return order.Order{}, err
	}

	s.publishTransition(updated, prev, next, freed)

	slog.Info("order advanced",
		"order_id", updated.ID,
		"from", prev,
		"to", next,
		"actor", actor,
	)

	return updated, nil
}

// Pay marks an order paid and frees its table. Paid orders are immutable.
func (s *LifecycleService) Pay(ctx context.Context, actor event.Role, orderID int64) (order.Order, error) {
	return s.Advance(ctx, actor, orderID, status.Paid)
}

// Cancel cancels a pending order. The linked table, if any, is freed in the
// same unit of work.
func (s *LifecycleService) Cancel(ctx context.Context, actor event.Role, orderID int64) (order.Order, error) {
	return s.Advance(ctx, actor, orderID, status.Cancelled)
}

// GetOrder returns one order.
func (s *LifecycleService) GetOrder(ctx context.Context, orderID int64) (order.Order, error) {
	return s.store.Orders().GetByID(ctx, orderID)
}

// GetOrders retrieves orders matching the filter.
func (s *LifecycleService) GetOrders(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	return s.store.Orders().Query(ctx, filter)
}

// GetHistory returns the status audit trail for one order.
func (s *LifecycleService) GetHistory(ctx context.Context, orderID int64) ([]statuslog.StatusLog, error) {
	return s.store.StatusLogs().ListByOrder(ctx, orderID)
}

// GetTables returns the floor plan.
func (s *LifecycleService) GetTables(ctx context.Context) ([]table.Table, error) {
	return s.store.Tables().List(ctx)
}

// GetMenuItems returns the menu reference data.
func (s *LifecycleService) GetMenuItems(ctx context.Context) ([]menuitem.MenuItem, error) {
	return s.store.MenuItems().List(ctx)
}

func (s *LifecycleService) validateDraft(draft order.Order) error {
	if len(draft.Lines) == 0 {
		return fmt.Errorf("%w: order has no lines", ErrValidation)
	}
	for _, l := range draft.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line for menu item %d has quantity %d", ErrValidation, l.MenuItemID, l.Quantity)
		}
	}

	switch draft.Type {
	case order.TypeDineIn:
		if draft.TableID == nil {
			return fmt.Errorf("%w: dine-in order requires a table", ErrValidation)
		}
	case order.TypeTakeaway:
	case order.TypeDelivery:
		if draft.CustomerName == "" || draft.CustomerPhone == "" || draft.DeliveryAddress == "" {
			return fmt.Errorf("%w: delivery order requires customer name, phone and address", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrValidation, draft.Type)
	}

	return nil
}

// resolveLines snapshots menu item name and price onto each line. The
// snapshot is taken once at creation; later menu edits do not affect it.
func (s *LifecycleService) resolveLines(ctx context.Context, draft *order.Order) error {
	ids := make([]int64, 0, len(draft.Lines))
	for _, l := range draft.Lines {
		ids = append(ids, l.MenuItemID)
	}

	items, err := s.store.MenuItems().GetByIDs(ctx, ids)
	if err != nil {
		if errors.Is(err, menuitem.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return err
	}

	for i := range draft.Lines {
		item, ok := items[draft.Lines[i].MenuItemID]
		if !ok {
			return fmt.Errorf("%w: unknown menu item %d", ErrValidation, draft.Lines[i].MenuItemID)
		}
		if !item.IsAvailable {
			return fmt.Errorf("%w: menu item %q is unavailable", ErrValidation, item.Name)
		}
		draft.Lines[i].Name = item.Name
		draft.Lines[i].UnitPriceCents = item.PriceCents
	}

	return nil
}

// occupyTable links a table to a new order, rejecting the write if the table
// already holds an active order.
func (s *LifecycleService) occupyTable(ctx context.Context, work istore.IUnitOfWork, tableID, orderID int64) error {
	t, err := work.Tables().GetByID(ctx, tableID)
	if err != nil {
		return err
	}
	if t.Status == table.StatusOccupied {
		return fmt.Errorf("%w: table %d already holds order %v", ErrValidation, tableID, t.OrderID)
	}

	if _, err := work.Tables().SetOccupancy(ctx, tableID, table.StatusOccupied, &orderID); err != nil {
		return err
	}

	return nil
}

// publishTransition emits the bus events a committed transition owes its
// consumers. Publishing happens strictly after the store commit.
func (s *LifecycleService) publishTransition(o order.Order, prev, next status.Status, freed *table.Table) {
	changed := func(ch event.Channel) event.OrderStatusChanged {
		return event.OrderStatusChanged{
			Meta:    event.NewMeta(ch),
			OrderID: o.ID,
			From:    prev,
			To:      next,
		}
	}

	switch next {
	case status.Preparing:
		s.bus.Publish(changed(event.ChannelKitchen))
	case status.Ready:
		s.bus.Publish(changed(event.ChannelCashier))
		s.bus.Publish(changed(event.ChannelServer))
	default:
		s.bus.Publish(changed(event.ChannelGlobal))
	}

	if freed != nil {
		s.bus.Publish(event.TableChanged{
			Meta:  event.NewMeta(event.ChannelGlobal),
			Table: *freed,
		})
	}
}

func rollback(ctx context.Context, work istore.IUnitOfWork) {
	if err := work.Rollback(ctx); err != nil {
		slog.Error("unit of work rollback failed", "error", err)
	}
}
