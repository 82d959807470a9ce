package rest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/tablerie/possync/internal/dal/interfaces/imenuitemrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/iorderrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/istatuslogrepo"
	"github.com/tablerie/possync/internal/dal/interfaces/istore"
	"github.com/tablerie/possync/internal/dal/interfaces/itablerepo"
	"github.com/tablerie/possync/internal/service/models/menuitem"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/statuslog"
	"github.com/tablerie/possync/internal/service/models/table"
)

// Store adapts the collaborator REST API to the store interface. It is the
// production backend: orders and tables live on the remote side, while the
// status audit trail is kept locally because the collaborator has no endpoint
// for it.
type Store struct {
	client     *Client
	statusLogs *memoryStatusLogRepository
}

// NewStore creates a store over an existing collaborator client.
func NewStore(client *Client) *Store {
	return &Store{
		client:     client,
		statusLogs: newMemoryStatusLogRepository(),
	}
}

func (s *Store) NewUnitOfWork() istore.IUnitOfWork {
	return newUnitOfWork(s)
}

func (s *Store) Orders() iorderrepo.IOrderRepository {
	return (*orderRepository)(s.client)
}

func (s *Store) Tables() itablerepo.ITableRepository {
	return (*tableRepository)(s.client)
}

func (s *Store) MenuItems() imenuitemrepo.IMenuItemRepository {
	return (*menuItemRepository)(s.client)
}

func (s *Store) StatusLogs() istatuslogrepo.IStatusLogRepository {
	return s.statusLogs
}

type orderRepository Client

func (r *orderRepository) client() *Client { return (*Client)(r) }

func (r *orderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	c := r.client()

	var resp struct {
		Order orderWire `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", fromModel(o), &resp); err != nil {
		return order.Order{}, err
	}

	return c.toModel(ctx, resp.Order)
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (order.Order, error) {
	c := r.client()

	var resp struct {
		Order orderWire `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, &resp); err != nil {
		return order.Order{}, err
	}

	return c.toModel(ctx, resp.Order)
}

// Query fetches the full collection and filters locally; the collaborator
// API exposes no server-side filters.
func (r *orderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	c := r.client()

	var resp struct {
		Orders []orderWire `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &resp); err != nil {
		return nil, err
	}

	result := make([]order.Order, 0, len(resp.Orders))
	for _, w := range resp.Orders {
		o, err := c.toModel(ctx, w)
		if err != nil {
			return nil, err
		}
		if matches(o, filter) {
			result = append(result, o)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if filter != nil && filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []order.Order{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter != nil && filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

func (r *orderRepository) Update(ctx context.Context, o order.Order) (order.Order, error) {
	c := r.client()

	var resp struct {
		Order orderWire `json:"order"`
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", o.ID), fromModel(o), &resp); err != nil {
		return order.Order{}, err
	}

	return c.toModel(ctx, resp.Order)
}

func matches(o order.Order, filter *order.QueryOrdersModel) bool {
	if filter == nil {
		return true
	}
	if len(filter.Ids) > 0 && !containsInt64(filter.Ids, o.ID) {
		return false
	}
	if len(filter.TableIds) > 0 {
		if o.TableID == nil || !containsInt64(filter.TableIds, *o.TableID) {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, st := range filter.Statuses {
			if o.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if o.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func containsInt64(haystack []int64, needle int64) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

type tableRepository Client

func (r *tableRepository) client() *Client { return (*Client)(r) }

func (r *tableRepository) List(ctx context.Context) ([]table.Table, error) {
	var resp struct {
		Tables []tableWire `json:"tables"`
	}
	if err := r.client().do(ctx, http.MethodGet, "/tables", nil, &resp); err != nil {
		return nil, err
	}

	result := make([]table.Table, 0, len(resp.Tables))
	for _, w := range resp.Tables {
		result = append(result, tableToModel(w))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Number < result[j].Number
	})

	return result, nil
}

func (r *tableRepository) GetByID(ctx context.Context, id int64) (table.Table, error) {
	tables, err := r.List(ctx)
	if err != nil {
		return table.Table{}, err
	}
	for _, t := range tables {
		if t.ID == id {
			return t, nil
		}
	}

	return table.Table{}, table.ErrNotFound
}

func (r *tableRepository) SetOccupancy(ctx context.Context, id int64, st table.Status, orderID *int64) (table.Table, error) {
	body := map[string]any{
		"status":   string(st),
		"order_id": orderID,
	}

	var resp struct {
		Table tableWire `json:"table"`
	}
	if err := r.client().do(ctx, http.MethodPut, fmt.Sprintf("/tables/%d", id), body, &resp); err != nil {
		return table.Table{}, err
	}

	return tableToModel(resp.Table), nil
}

type menuItemRepository Client

func (r *menuItemRepository) client() *Client { return (*Client)(r) }

func (r *menuItemRepository) List(ctx context.Context) ([]menuitem.MenuItem, error) {
	menu, err := r.client().menu(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]menuitem.MenuItem, 0, len(menu))
	for _, item := range menu {
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Name < result[j].Name
	})

	return result, nil
}

func (r *menuItemRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]menuitem.MenuItem, error) {
	menu, err := r.client().menu(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[int64]menuitem.MenuItem, len(ids))
	for _, id := range ids {
		item, ok := menu[id]
		if !ok {
			return nil, fmt.Errorf("menu item %d: %w", id, menuitem.ErrNotFound)
		}
		result[id] = item
	}

	return result, nil
}

// memoryStatusLogRepository keeps the audit trail in memory; the collaborator
// API has no status-log endpoint. The trail is transient like the bus.
type memoryStatusLogRepository struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64][]statuslog.StatusLog
}

func newMemoryStatusLogRepository() *memoryStatusLogRepository {
	return &memoryStatusLogRepository{
		nextID:  1,
		entries: make(map[int64][]statuslog.StatusLog),
	}
}

func (r *memoryStatusLogRepository) Insert(_ context.Context, entry statuslog.StatusLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = r.nextID
	r.nextID++
	r.entries[entry.OrderID] = append(r.entries[entry.OrderID], entry)

	return nil
}

func (r *memoryStatusLogRepository) ListByOrder(_ context.Context, orderID int64) ([]statuslog.StatusLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	trail := r.entries[orderID]
	result := make([]statuslog.StatusLog, len(trail))
	copy(result, trail)

	return result, nil
}

func (r *memoryStatusLogRepository) removeLast(orderID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	trail := r.entries[orderID]
	if len(trail) > 0 {
		r.entries[orderID] = trail[:len(trail)-1]
	}
}
