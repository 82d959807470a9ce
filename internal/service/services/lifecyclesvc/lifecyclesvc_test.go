package lifecyclesvc_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablerie/possync/internal/bus"
	"github.com/tablerie/possync/internal/dal/interfaces/imenuitemrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/iorderrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/istatuslogrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/istore"
	"github.com/tablerie/possync/internal/dal/interfaces/itablerepo"
	"github.com/tablerie/possync/internal/service/models/event"
	"github.com/tablerie/possync/internal/service/models/menuitem"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/orderline"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/service/models/statuslog"
	"github.com/tablerie/possync/internal/service/models/table"
	"github.com/tablerie/possync/internal/service/services/lifecyclesvc"
)

// fakeStore is an in-memory store with snapshot-based unit-of-work rollback.
type fakeStore struct {
	mu         sync.Mutex
	orders     map[int64]order.Order
	tables     map[int64]table.Table
	menu       map[int64]menuitem.MenuItem
	logs       map[int64][]statuslog.StatusLog
	nextID     int64
	nextLineID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders: make(map[int64]order.Order),
		tables: map[int64]table.Table{
			1: {ID: 1, Number: 1, Seats: 2, Status: table.StatusFree},
			2: {ID: 2, Number: 2, Seats: 4, Status: table.StatusFree},
		},
		menu: map[int64]menuitem.MenuItem{
			1: {ID: 1, Name: "Steak frites", PriceCents: 850, Category: menuitem.CategoryMain, IsAvailable: true},
			2: {ID: 2, Name: "Café", PriceCents: 350, Category: menuitem.CategoryDrink, IsAvailable: true},
			3: {ID: 3, Name: "Tarte tatin", PriceCents: 800, Category: menuitem.CategoryDessert, IsAvailable: false},
		},
		logs: make(map[int64][]statuslog.StatusLog),
	}
}

func copyOrder(o order.Order) order.Order {
	lines := make([]orderline.OrderLine, len(o.Lines))
	copy(lines, o.Lines)
	o.Lines = lines
	return o
}

func (s *fakeStore) NewUnitOfWork() istore.IUnitOfWork { return &fakeUnitOfWork{store: s} }
func (s *fakeStore) Orders() iorderrepo.IOrderRepository { return fakeOrderRepo{s} }
func (s *fakeStore) Tables() itablerepo.ITableRepository { return fakeTableRepo{s} }
func (s *fakeStore) MenuItems() imenuitemrepo.IMenuItemRepository {
	return fakeMenuItemRepo{s}
}
func (s *fakeStore) StatusLogs() istatuslogrepo.IStatusLogRepository {
	return fakeStatusLogRepo{s}
}

type fakeUnitOfWork struct {
	store      *fakeStore
	snapOrders map[int64]order.Order
	snapTables map[int64]table.Table
	snapLogs   map[int64][]statuslog.StatusLog
	active     bool
}

func (u *fakeUnitOfWork) Begin(context.Context) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	u.snapOrders = make(map[int64]order.Order, len(u.store.orders))
	for id, o := range u.store.orders {
		u.snapOrders[id] = copyOrder(o)
	}
	u.snapTables = make(map[int64]table.Table, len(u.store.tables))
	for id, t := range u.store.tables {
		u.snapTables[id] = t
	}
	u.snapLogs = make(map[int64][]statuslog.StatusLog, len(u.store.logs))
	for id, trail := range u.store.logs {
		cp := make([]statuslog.StatusLog, len(trail))
		copy(cp, trail)
		u.snapLogs[id] = cp
	}
	u.active = true

	return nil
}

func (u *fakeUnitOfWork) Commit(context.Context) error {
	u.active = false
	return nil
}

func (u *fakeUnitOfWork) Rollback(context.Context) error {
	if !u.active {
		return nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	u.store.orders = u.snapOrders
	u.store.tables = u.snapTables
	u.store.logs = u.snapLogs
	u.active = false

	return nil
}

func (u *fakeUnitOfWork) Orders() iorderrepo.IOrderRepository { return fakeOrderRepo{u.store} }
func (u *fakeUnitOfWork) Tables() itablerepo.ITableRepository { return fakeTableRepo{u.store} }
func (u *fakeUnitOfWork) StatusLogs() istatuslogrepo.IStatusLogRepository {
	return fakeStatusLogRepo{u.store}
}

type fakeOrderRepo struct{ s *fakeStore }

func (r fakeOrderRepo) Insert(_ context.Context, o order.Order) (order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextID++
	o.ID = r.s.nextID
	o.Version = 1
	for i := range o.Lines {
		r.s.nextLineID++
		o.Lines[i].ID = r.s.nextLineID
		o.Lines[i].OrderID = o.ID
	}
	r.s.orders[o.ID] = copyOrder(o)

	return o, nil
}

func (r fakeOrderRepo) GetByID(_ context.Context, id int64) (order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return copyOrder(o), nil
}

func (r fakeOrderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []order.Order
	for _, o := range r.s.orders {
		if filter != nil && len(filter.Statuses) > 0 {
			found := false
			for _, st := range filter.Statuses {
				if o.Status == st {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		result = append(result, copyOrder(o))
	}
	return result, nil
}

func (r fakeOrderRepo) Update(_ context.Context, o order.Order) (order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.orders[o.ID]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	if stored.Version != o.Version {
		return order.Order{}, order.ErrVersionConflict
	}
	o.Version++
	r.s.orders[o.ID] = copyOrder(o)

	return o, nil
}

type fakeTableRepo struct{ s *fakeStore }

func (r fakeTableRepo) List(context.Context) ([]table.Table, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := make([]table.Table, 0, len(r.s.tables))
	for _, t := range r.s.tables {
		result = append(result, t)
	}
	return result, nil
}

func (r fakeTableRepo) GetByID(_ context.Context, id int64) (table.Table, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tables[id]
	if !ok {
		return table.Table{}, table.ErrNotFound
	}
	return t, nil
}

func (r fakeTableRepo) SetOccupancy(_ context.Context, id int64, st table.Status, orderID *int64) (table.Table, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tables[id]
	if !ok {
		return table.Table{}, table.ErrNotFound
	}
	t.Status = st
	t.OrderID = orderID
	r.s.tables[id] = t

	return t, nil
}

type fakeMenuItemRepo struct{ s *fakeStore }

func (r fakeMenuItemRepo) List(context.Context) ([]menuitem.MenuItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := make([]menuitem.MenuItem, 0, len(r.s.menu))
	for _, item := range r.s.menu {
		result = append(result, item)
	}
	return result, nil
}

func (r fakeMenuItemRepo) GetByIDs(_ context.Context, ids []int64) (map[int64]menuitem.MenuItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := make(map[int64]menuitem.MenuItem, len(ids))
	for _, id := range ids {
		item, ok := r.s.menu[id]
		if !ok {
			return nil, menuitem.ErrNotFound
		}
		result[id] = item
	}
	return result, nil
}

type fakeStatusLogRepo struct{ s *fakeStore }

func (r fakeStatusLogRepo) Insert(_ context.Context, entry statuslog.StatusLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entry.ID = int64(len(r.s.logs[entry.OrderID]) + 1)
	r.s.logs[entry.OrderID] = append(r.s.logs[entry.OrderID], entry)
	return nil
}

func (r fakeStatusLogRepo) ListByOrder(_ context.Context, orderID int64) ([]statuslog.StatusLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	trail := r.s.logs[orderID]
	result := make([]statuslog.StatusLog, len(trail))
	copy(result, trail)
	return result, nil
}

// eventSpy records every event published on the bus, on every channel.
type eventSpy struct {
	mu     sync.Mutex
	events []event.Event
}

func newEventSpy(b *bus.Bus) *eventSpy {
	spy := &eventSpy{}
	channels := []event.Channel{
		event.ChannelServer, event.ChannelKitchen, event.ChannelCashier, event.ChannelGlobal,
	}
	for _, t := range []event.Type{
		event.TypeOrderCreated, event.TypeOrderStatusChanged, event.TypeTableChanged,
	} {
		b.Subscribe(t, channels, func(e event.Event) {
			spy.mu.Lock()
			spy.events = append(spy.events, e)
			spy.mu.Unlock()
		})
	}
	return spy
}

func (s *eventSpy) byType(t event.Type) []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []event.Event
	for _, e := range s.events {
		if e.EventType() == t {
			result = append(result, e)
		}
	}
	return result
}

func newTestService(t *testing.T) (*lifecyclesvc.LifecycleService, *fakeStore, *eventSpy) {
	t.Helper()

	store := newFakeStore()
	b := bus.New()
	spy := newEventSpy(b)
	svc := lifecyclesvc.MustNewLifecycleService(
		lifecyclesvc.WithStore(store),
		lifecyclesvc.WithBus(b),
		lifecyclesvc.WithClock(func() time.Time {
			return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		}),
	)

	return svc, store, spy
}

func dineInDraft(tableID int64) order.Order {
	return order.Order{
		Type:    order.TypeDineIn,
		TableID: &tableID,
		Lines: []orderline.OrderLine{
			{MenuItemID: 1, Quantity: 2},
			{MenuItemID: 2, Quantity: 1},
		},
	}
}

func TestCreateDineInOrder(t *testing.T) {
	svc, store, spy := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, event.RoleServer, dineInDraft(1))
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, status.Pending, created.Status)
	assert.Equal(t, int64(2050), created.TotalCents, "2x850 + 1x350")
	assert.False(t, created.NotifiedKitchen)
	assert.False(t, created.NotifiedCashier)
	assert.Equal(t, int64(1), created.Version)

	// Lines are snapshotted from the menu at creation.
	require.Len(t, created.Lines, 2)
	assert.Equal(t, "Steak frites", created.Lines[0].Name)
	assert.Equal(t, int64(850), created.Lines[0].UnitPriceCents)

	tbl, err := store.Tables().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, table.StatusOccupied, tbl.Status)
	require.NotNil(t, tbl.OrderID)
	assert.Equal(t, created.ID, *tbl.OrderID)

	trail, err := store.StatusLogs().ListByOrder(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, status.Pending, trail[0].To)

	// Creation itself announces nothing; the kitchen hears about the order
	// only once it is explicitly notified.
	assert.Empty(t, spy.byType(event.TypeOrderCreated))
}

func TestCreateValidation(t *testing.T) {
	tableID := int64(1)
	tests := []struct {
		name  string
		draft order.Order
	}{
		{
			name:  "no lines",
			draft: order.Order{Type: order.TypeTakeaway},
		},
		{
			name: "zero quantity",
			draft: order.Order{
				Type:  order.TypeTakeaway,
				Lines: []orderline.OrderLine{{MenuItemID: 1, Quantity: 0}},
			},
		},
		{
			name: "dine-in without table",
			draft: order.Order{
				Type:  order.TypeDineIn,
				Lines: []orderline.OrderLine{{MenuItemID: 1, Quantity: 1}},
			},
		},
		{
			name: "delivery without contact details",
			draft: order.Order{
				Type:         order.TypeDelivery,
				CustomerName: "Claire",
				Lines:        []orderline.OrderLine{{MenuItemID: 1, Quantity: 1}},
			},
		},
		{
			name: "unknown menu item",
			draft: order.Order{
				Type:    order.TypeDineIn,
				TableID: &tableID,
				Lines:   []orderline.OrderLine{{MenuItemID: 99, Quantity: 1}},
			},
		},
		{
			name: "unavailable menu item",
			draft: order.Order{
				Type:    order.TypeDineIn,
				TableID: &tableID,
				Lines:   []orderline.OrderLine{{MenuItemID: 3, Quantity: 1}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)

			_, err := svc.Create(context.Background(), event.RoleServer, tt.draft)
			assert.ErrorIs(t, err, lifecyclesvc.ErrValidation)

			orders, err := store.Orders().Query(context.Background(), nil)
			require.NoError(t, err)
			assert.Empty(t, orders, "rejected draft must not be persisted")
		})
	}
}

func TestCreateRejectsOccupiedTableAndRollsBack(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	otherOrder := int64(42)
	_, err := store.Tables().SetOccupancy(ctx, 1, table.StatusOccupied, &otherOrder)
	require.NoError(t, err)

	_, err = svc.Create(ctx, event.RoleServer, dineInDraft(1))
	assert.ErrorIs(t, err, lifecyclesvc.ErrValidation)

	orders, err := store.Orders().Query(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, orders, "order insert must be rolled back with the failed table write")

	tbl, err := store.Tables().GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, tbl.OrderID)
	assert.Equal(t, otherOrder, *tbl.OrderID)
}

func TestNotifyKitchenIsIdempotent(t *testing.T) {
	svc, _, spy := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, event.RoleServer, dineInDraft(1))
	require.NoError(t, err)

	notified, err := svc.NotifyKitchen(ctx, event.RoleServer, created.ID)
	require.NoError(t, err)
	assert.True(t, notified.NotifiedKitchen)

	events := spy.byType(event.TypeOrderCreated)
	require.Len(t, events, 1)
	assert.Equal(t, event.ChannelKitchen, events[0].EventChannel())

	// Second call is a no-op and publishes nothing.
	again, err := svc.NotifyKitchen(ctx, event.RoleServer, created.ID)
	require.NoError(t, err)
	assert.Equal(t, notified.Version, again.Version)
	assert.Len(t, spy.byType(event.TypeOrderCreated), 1)
}

func TestAdvanceRequiresKitchenNotification(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, event.RoleServer, dineInDraft(1))
	require.NoError(t, err)

	_, err = svc.Advance(ctx, event.RoleKitchen, created.ID, status.Preparing)
	assert.ErrorIs(t, err, lifecyclesvc.ErrInvalidTransition)

	_, err = svc.NotifyKitchen(ctx, event.RoleServer, created.ID)
	require.NoError(t, err)

	advanced, err := svc.Advance(ctx, event.RoleKitchen, created.ID, status.Preparing)
	require.NoError(t, err)
	assert.Equal(t, status.Preparing, advanced.Status)
}

func TestAdvanceToReadyFlagsCashier(t *testing.T) {
	svc, _, spy := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, event.RoleServer, dineInDraft(1))
	require.NoError(t, err)
	_, err = svc.NotifyKitchen(ctx, event.RoleServer, created.ID)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, event.RoleKitchen, created.ID, status.Preparing)
	require.NoError(t, err)

	ready, err := svc.Advance(ctx, event.RoleKitchen, created.ID, status.Ready)
	require.NoError(t, err)
	assert.True(t, ready.NotifiedCashier)

	// Ready is announced to both the cashier and the server.
	var channels []event.Channel
	for _, e := range spy.byType(event.TypeOrderStatusChanged) {
		if e.(event.OrderStatusChanged).To == status.Ready {
			channels = append(channels, e.EventChannel())
		}
	}
	assert.ElementsMatch(t, []event.Channel{event.ChannelCashier, event.ChannelServer}, channels)
}

func TestPayFreesTableAndIsFinal(t *testing.T) {
	svc, store, spy := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, event.RoleServer, dineInDraft(1))
	require.NoError(t, err)
	_, err = svc.NotifyKitchen(ctx, event.RoleServer, created.ID)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, event.RoleKitchen, created.ID, status.Preparing)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, event.RoleKitchen, created.ID, status.Ready)
	require.NoError(t, err)

	paid, err := svc.Pay(ctx, event.RoleCashier, created.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Paid, paid.Status)

	tbl, err := store.Tables().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, table.StatusFree, tbl.Status)
	assert.Nil(t, tbl.OrderID)

	require.Len(t, spy.byType(event.TypeTableChanged), 1)

	trail, err := svc.GetHistory(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 4, "pending, preparing, ready, paid")

	_, err = svc.Pay(ctx, event.RoleCashier, created.ID)
	assert.ErrorIs(t, err, lifecyclesvc.ErrInvalidTransition)
}

func TestAdvanceRejectsBackwardTransition(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, event.RoleServer, dineInDraft(1))
	require.NoError(t, err)
	_, err = svc.NotifyKitchen(ctx, event.RoleServer, created.ID)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, event.RoleKitchen, created.ID, status.Preparing)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, event.RoleKitchen, created.ID, status.Ready)
	require.NoError(t, err)

	_, err = svc.Advance(ctx, event.RoleKitchen, created.ID, status.Preparing)
	assert.ErrorIs(t, err, lifecyclesvc.ErrInvalidTransition)

	current, err := store.Orders().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Ready, current.Status, "rejected transition must not write")
}

func TestCancelFreesTable(t *testing.T) {
	svc, store, spy := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, event.RoleServer, dineInDraft(2))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, event.RoleServer, created.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Cancelled, cancelled.Status)

	tbl, err := store.Tables().GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, table.StatusFree, tbl.Status)
	assert.Nil(t, tbl.OrderID)

	require.Len(t, spy.byType(event.TypeTableChanged), 1)
}

func TestAdvanceUnknownOrder(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Advance(context.Background(), event.RoleServer, 999, status.Preparing)
	assert.ErrorIs(t, err, order.ErrNotFound)
}
