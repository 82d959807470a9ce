package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablerie/possync/internal/service/models/event"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/service/models/table"
)

func testOrder(id int64, st status.Status) order.Order {
	return order.Order{
		ID:        id,
		Status:    st,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
	}
}

func TestFirstMergePrimesSilently(t *testing.T) {
	v := New(event.RoleKitchen)

	res := v.MergeOrders([]order.Order{
		testOrder(1, status.Pending),
		testOrder(2, status.Preparing),
	})

	assert.Empty(t, res.New, "priming merge must not report pre-existing orders as new")
	assert.Empty(t, res.Changed)
	assert.Len(t, v.Orders(), 2)
}

func TestMergeReportsNewAndChanged(t *testing.T) {
	v := New(event.RoleKitchen)
	v.MergeOrders([]order.Order{testOrder(1, status.Pending)})

	res := v.MergeOrders([]order.Order{
		testOrder(1, status.Preparing),
		testOrder(2, status.Pending),
	})

	require.Len(t, res.New, 1)
	assert.Equal(t, int64(2), res.New[0].ID)
	require.Len(t, res.Changed, 1)
	assert.Equal(t, StatusChange{OrderID: 1, From: status.Pending, To: status.Preparing}, res.Changed[0])
}

func TestMergeDropsOrdersLeavingWorkingSet(t *testing.T) {
	v := New(event.RoleKitchen)
	v.MergeOrders([]order.Order{testOrder(1, status.Pending), testOrder(2, status.Pending)})

	v.MergeOrders([]order.Order{testOrder(2, status.Pending)})

	orders := v.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2), orders[0].ID)
}

func TestDegradedKeepsLastKnownState(t *testing.T) {
	v := New(event.RoleCashier)
	v.MergeOrders([]order.Order{testOrder(1, status.Ready)})

	v.SetDegraded()

	assert.True(t, v.Degraded())
	assert.Len(t, v.Orders(), 1, "a failed fetch must not flash the screen to empty")

	// The next successful merge clears the flag.
	v.MergeOrders([]order.Order{testOrder(1, status.Ready)})
	assert.False(t, v.Degraded())
}

func TestOrdersSortedByCreationTime(t *testing.T) {
	v := New(event.RoleServer)
	v.MergeOrders([]order.Order{
		testOrder(3, status.Pending),
		testOrder(1, status.Pending),
		testOrder(2, status.Pending),
	})

	orders := v.Orders()
	require.Len(t, orders, 3)
	assert.Equal(t, int64(1), orders[0].ID)
	assert.Equal(t, int64(2), orders[1].ID)
	assert.Equal(t, int64(3), orders[2].ID)
}

func TestStageRevertRestoresPreviousState(t *testing.T) {
	v := New(event.RoleServer)
	v.MergeOrders([]order.Order{testOrder(1, status.Pending)})

	staged := testOrder(1, status.Preparing)
	revert := v.Stage(staged)

	o, ok := v.Order(1)
	require.True(t, ok)
	assert.Equal(t, status.Preparing, o.Status)

	revert()

	o, ok = v.Order(1)
	require.True(t, ok)
	assert.Equal(t, status.Pending, o.Status)
}

func TestStageRevertRemovesTentativeInsert(t *testing.T) {
	v := New(event.RoleServer)
	v.MergeOrders(nil)

	revert := v.Stage(testOrder(7, status.Pending))
	_, ok := v.Order(7)
	require.True(t, ok)

	revert()

	_, ok = v.Order(7)
	assert.False(t, ok)
}

func TestMergeSupersedesPendingRevert(t *testing.T) {
	v := New(event.RoleServer)
	v.MergeOrders([]order.Order{testOrder(1, status.Pending)})

	revert := v.Stage(testOrder(1, status.Preparing))

	// Server truth arrives before the revert fires.
	v.MergeOrders([]order.Order{testOrder(1, status.Preparing)})
	revert()

	o, ok := v.Order(1)
	require.True(t, ok)
	assert.Equal(t, status.Preparing, o.Status, "revert must not undo merged server truth")
}

func TestMergeTables(t *testing.T) {
	v := New(event.RoleServer)
	v.MergeTables([]table.Table{
		{ID: 2, Number: 2},
		{ID: 1, Number: 1},
	})

	tables := v.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, 1, tables[0].Number)
	assert.Equal(t, 2, tables[1].Number)
}
