package listorders

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/status"
)

func TestParseFilter(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/orders?statuses=pending,ready&types=dine_in&limit=10&offset=5", nil)

	filter, err := parseFilter(r)
	require.NoError(t, err)

	assert.Equal(t, []status.Status{status.Pending, status.Ready}, filter.Statuses)
	assert.Equal(t, []order.Type{order.TypeDineIn}, filter.Types)
	assert.Equal(t, 10, filter.Limit)
	assert.Equal(t, 5, filter.Offset)
}

func TestParseFilterAcceptsLocalizedStatuses(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/orders?statuses=Pr%C3%AAte", nil)

	filter, err := parseFilter(r)
	require.NoError(t, err)
	assert.Equal(t, []status.Status{status.Ready}, filter.Statuses)
}

func TestParseFilterRejectsUnknownStatus(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/orders?statuses=shipped", nil)

	_, err := parseFilter(r)
	assert.Error(t, err)
}

func TestParseFilterEmptyQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)

	filter, err := parseFilter(r)
	require.NoError(t, err)
	assert.Empty(t, filter.Statuses)
	assert.Empty(t, filter.Types)
	assert.Zero(t, filter.Limit)
	assert.Zero(t, filter.Offset)
}
