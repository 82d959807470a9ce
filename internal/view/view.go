package view

import (
	"sort"
	"sync"

	"github.com/tablerie/possync/internal/service/models/event"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/service/models/table"
)

// StatusChange describes one order whose status moved between two merges.
type StatusChange struct {
	OrderID int64
	From    status.Status
	To      status.Status
}

// MergeResult is the diff produced by merging a fresh fetch into the view.
type MergeResult struct {
	New     []order.Order
	Changed []StatusChange
}

// View is the locally rendered state of one role: the last-known-good
// working set of orders and tables, merged from polls and push events. A
// failed fetch never clears it; it only marks the view degraded until the
// next successful merge.
type View struct {
	role event.Role

	mu       sync.RWMutex
	orders   map[int64]order.Order
	tables   map[int64]table.Table
	staged   map[int64]*order.Order // pre-mutation backups, nil for tentative inserts
	degraded bool
	primed   bool
}

// New creates an empty view for a role.
func New(role event.Role) *View {
	return &View{
		role:   role,
		orders: make(map[int64]order.Order),
		tables: make(map[int64]table.Table),
		staged: make(map[int64]*order.Order),
	}
}

// Role returns the role this view renders for.
func (v *View) Role() event.Role {
	return v.role
}

// MergeOrders replaces the working set with server truth and reports the
// diff. The first merge primes the view silently: there is no previously
// held collection to diff against, so nothing is reported as new. A merge
// discards any staged optimistic state for the ids it covers.
func (v *View) MergeOrders(fresh []order.Order) MergeResult {
	v.mu.Lock()
	defer v.mu.Unlock()

	var res MergeResult
	next := make(map[int64]order.Order, len(fresh))
	for _, o := range fresh {
		next[o.ID] = o

		prev, known := v.orders[o.ID]
		if !known {
			if v.primed {
				res.New = append(res.New, o)
			}
			continue
		}
		if prev.Status != o.Status {
			res.Changed = append(res.Changed, StatusChange{
				OrderID: o.ID,
				From:    prev.Status,
				To:      o.Status,
			})
		}
	}

	v.orders = next
	v.staged = make(map[int64]*order.Order)
	v.primed = true
	v.degraded = false

	return res
}

// MergeTables replaces the table working set with server truth.
func (v *View) MergeTables(fresh []table.Table) {
	v.mu.Lock()
	defer v.mu.Unlock()

	next := make(map[int64]table.Table, len(fresh))
	for _, t := range fresh {
		next[t.ID] = t
	}
	v.tables = next
}

// SetDegraded marks the view as serving stale data after a failed fetch.
func (v *View) SetDegraded() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.degraded = true
}

// Degraded reports whether the last fetch failed and the view is stale.
func (v *View) Degraded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.degraded
}

// Orders returns the working set ordered by creation time.
func (v *View) Orders() []order.Order {
	v.mu.RLock()
	defer v.mu.RUnlock()

	result := make([]order.Order, 0, len(v.orders))
	for _, o := range v.orders {
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result
}

// Order returns one order from the working set.
func (v *View) Order(id int64) (order.Order, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	o, ok := v.orders[id]
	return o, ok
}

// Tables returns the floor plan ordered by display number.
func (v *View) Tables() []table.Table {
	v.mu.RLock()
	defer v.mu.RUnlock()

	result := make([]table.Table, 0, len(v.tables))
	for _, t := range v.tables {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Number < result[j].Number
	})

	return result
}

// Apply upserts one order into the working set, used by push-event handlers.
func (v *View) Apply(o order.Order) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orders[o.ID] = o
}

// Stage applies a tentative order state and returns the inverse operation.
// The caller runs the store mutation after staging and invokes the returned
// revert if it fails, so a rejected write never leaves the view showing a
// state the store refused.
func (v *View) Stage(o order.Order) (revert func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var backup *order.Order
	if prev, ok := v.orders[o.ID]; ok {
		prevCopy := prev
		backup = &prevCopy
	}
	v.orders[o.ID] = o
	v.staged[o.ID] = backup

	id := o.ID
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()

		backup, ok := v.staged[id]
		if !ok {
			// A merge already replaced the tentative state with server truth.
			return
		}
		delete(v.staged, id)
		if backup == nil {
			delete(v.orders, id)
			return
		}
		v.orders[id] = *backup
	}
}
