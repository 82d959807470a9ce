package reconciler

import (
	"context"
	"errors"
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
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/service/models/table"
	"github.com/tablerie/possync/internal/view"
)

type occupancyCall struct {
	tableID int64
	status  table.Status
	orderID *int64
}

// stubStore serves canned fetch results and records occupancy repairs.
type stubStore struct {
	mu         sync.Mutex
	orders     []order.Order
	ordersErr  error
	tables     []table.Table
	tablesErr  error
	lastFilter *order.QueryOrdersModel
	repairs    []occupancyCall
}

func (s *stubStore) setOrders(orders []order.Order, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = orders
	s.ordersErr = err
}

func (s *stubStore) NewUnitOfWork() istore.IUnitOfWork { panic("not used") }
func (s *stubStore) Orders() iorderrepo.IOrderRepository {
	return stubOrderRepo{s}
}
func (s *stubStore) Tables() itablerepo.ITableRepository {
	return stubTableRepo{s}
}
func (s *stubStore) MenuItems() imenuitemrepo.IMenuItemRepository { panic("not used") }
func (s *stubStore) StatusLogs() istatuslogrepo.IStatusLogRepository {
	panic("not used")
}

type stubOrderRepo struct{ s *stubStore }

func (r stubOrderRepo) Insert(context.Context, order.Order) (order.Order, error) {
	panic("not used")
}

func (r stubOrderRepo) GetByID(context.Context, int64) (order.Order, error) {
	panic("not used")
}

func (r stubOrderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.lastFilter = filter
	if r.s.ordersErr != nil {
		return nil, r.s.ordersErr
	}
	return r.s.orders, nil
}

func (r stubOrderRepo) Update(context.Context, order.Order) (order.Order, error) {
	panic("not used")
}

type stubTableRepo struct{ s *stubStore }

func (r stubTableRepo) List(context.Context) ([]table.Table, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.tablesErr != nil {
		return nil, r.s.tablesErr
	}
	return r.s.tables, nil
}

func (r stubTableRepo) GetByID(context.Context, int64) (table.Table, error) {
	panic("not used")
}

func (r stubTableRepo) SetOccupancy(_ context.Context, id int64, st table.Status, orderID *int64) (table.Table, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.repairs = append(r.s.repairs, occupancyCall{tableID: id, status: st, orderID: orderID})
	return table.Table{ID: id, Status: st, OrderID: orderID}, nil
}

func collectEvents(b *bus.Bus, t event.Type) *[]event.Event {
	events := &[]event.Event{}
	b.Subscribe(t, []event.Channel{
		event.ChannelServer, event.ChannelKitchen, event.ChannelCashier, event.ChannelGlobal,
	}, func(e event.Event) {
		*events = append(*events, e)
	})
	return events
}

func testOrder(id int64, st status.Status, notifiedKitchen bool) order.Order {
	return order.Order{
		ID:              id,
		Status:          st,
		NotifiedKitchen: notifiedKitchen,
		CreatedAt:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSyncOrdersAnnouncesNewOrderExactlyOnce(t *testing.T) {
	store := &stubStore{}
	b := bus.New()
	v := view.New(event.RoleKitchen)
	r := NewReconciler(event.RoleKitchen, store, b, v)

	created := collectEvents(b, event.TypeOrderCreated)

	// Priming sync: whatever is already in the store is not news.
	store.setOrders([]order.Order{testOrder(1, status.Preparing, true)}, nil)
	r.syncOrders(context.Background())
	assert.Empty(t, *created)

	// A genuinely new order is announced once, then never again.
	store.setOrders([]order.Order{
		testOrder(1, status.Preparing, true),
		testOrder(2, status.Pending, true),
	}, nil)
	r.syncOrders(context.Background())
	require.Len(t, *created, 1)
	assert.Equal(t, event.ChannelKitchen, (*created)[0].EventChannel())

	r.syncOrders(context.Background())
	assert.Len(t, *created, 1)
}

func TestSyncOrdersAnnouncesStatusChanges(t *testing.T) {
	store := &stubStore{}
	b := bus.New()
	v := view.New(event.RoleServer)
	r := NewReconciler(event.RoleServer, store, b, v)

	changed := collectEvents(b, event.TypeOrderStatusChanged)

	store.setOrders([]order.Order{testOrder(1, status.Pending, false)}, nil)
	r.syncOrders(context.Background())

	store.setOrders([]order.Order{testOrder(1, status.Preparing, true)}, nil)
	r.syncOrders(context.Background())

	require.Len(t, *changed, 1)
	e := (*changed)[0].(event.OrderStatusChanged)
	assert.Equal(t, int64(1), e.OrderID)
	assert.Equal(t, status.Pending, e.From)
	assert.Equal(t, status.Preparing, e.To)
}

func TestSyncOrdersKeepsStateOnFetchFailure(t *testing.T) {
	store := &stubStore{}
	b := bus.New()
	v := view.New(event.RoleCashier)
	r := NewReconciler(event.RoleCashier, store, b, v)

	store.setOrders([]order.Order{testOrder(1, status.Ready, true)}, nil)
	r.syncOrders(context.Background())
	require.Len(t, v.Orders(), 1)

	store.setOrders(nil, errors.New("connection refused"))
	r.syncOrders(context.Background())

	assert.True(t, v.Degraded())
	assert.Len(t, v.Orders(), 1, "failed fetch must keep the last known working set")

	// Recovery clears the degraded flag.
	store.setOrders([]order.Order{testOrder(1, status.Ready, true)}, nil)
	r.syncOrders(context.Background())
	assert.False(t, v.Degraded())
}

func TestKitchenOnlySeesNotifiedPendingOrders(t *testing.T) {
	store := &stubStore{}
	b := bus.New()
	v := view.New(event.RoleKitchen)
	r := NewReconciler(event.RoleKitchen, store, b, v)

	store.setOrders([]order.Order{
		testOrder(1, status.Pending, false),
		testOrder(2, status.Pending, true),
	}, nil)
	r.syncOrders(context.Background())

	orders := v.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2), orders[0].ID)

	// The store fetch itself is narrowed to the kitchen's statuses.
	require.NotNil(t, store.lastFilter)
	assert.ElementsMatch(t,
		[]status.Status{status.Pending, status.Preparing},
		store.lastFilter.Statuses,
	)
}

func TestCashierGateOnNotifiedCashier(t *testing.T) {
	store := &stubStore{}
	b := bus.New()
	v := view.New(event.RoleCashier)
	r := NewReconciler(event.RoleCashier, store, b, v)

	flagged := testOrder(2, status.Ready, true)
	flagged.NotifiedCashier = true

	store.setOrders([]order.Order{
		testOrder(1, status.Ready, true), // not yet flagged for payment
		flagged,
	}, nil)
	r.syncOrders(context.Background())

	orders := v.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2), orders[0].ID)
}

func TestServerHealsInconsistentTableLink(t *testing.T) {
	store := &stubStore{}
	b := bus.New()
	v := view.New(event.RoleServer)
	r := NewReconciler(event.RoleServer, store, b, v)

	tableID := int64(5)
	o := testOrder(1, status.Preparing, true)
	o.TableID = &tableID

	store.setOrders([]order.Order{o}, nil)
	r.syncOrders(context.Background())

	// The table side lost its back-reference.
	store.tables = []table.Table{{ID: 5, Number: 5, Status: table.StatusFree}}
	r.syncTables(context.Background())

	require.Len(t, store.repairs, 1)
	repair := store.repairs[0]
	assert.Equal(t, tableID, repair.tableID)
	assert.Equal(t, table.StatusOccupied, repair.status)
	require.NotNil(t, repair.orderID)
	assert.Equal(t, int64(1), *repair.orderID)
}

func TestNonServerRolesDoNotHeal(t *testing.T) {
	store := &stubStore{}
	b := bus.New()
	v := view.New(event.RoleKitchen)
	r := NewReconciler(event.RoleKitchen, store, b, v)

	tableID := int64(5)
	o := testOrder(1, status.Preparing, true)
	o.TableID = &tableID

	store.setOrders([]order.Order{o}, nil)
	r.syncOrders(context.Background())

	store.tables = []table.Table{{ID: 5, Number: 5, Status: table.StatusFree}}
	r.syncTables(context.Background())

	assert.Empty(t, store.repairs)
}
