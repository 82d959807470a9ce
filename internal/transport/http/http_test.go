package httptransport

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tablerie/possync/internal/service/models/event"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/services/lifecyclesvc"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: order has no lines", lifecyclesvc.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: ready -> preparing", lifecyclesvc.ErrInvalidTransition), http.StatusConflict},
		{order.ErrVersionConflict, http.StatusConflict},
		{order.ErrNotFound, http.StatusNotFound},
		{errors.New("pool exhausted"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tt.err)
		assert.Equal(t, tt.code, rec.Code, "error %v", tt.err)
	}
}

func TestActorFromHeader(t *testing.T) {
	tests := []struct {
		header string
		want   event.Role
	}{
		{header: "kitchen", want: event.RoleKitchen},
		{header: "cashier", want: event.RoleCashier},
		{header: "server", want: event.RoleServer},
		{header: "", want: event.RoleServer},
		{header: "manager", want: event.RoleServer},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		if tt.header != "" {
			r.Header.Set(roleHeader, tt.header)
		}
		assert.Equal(t, tt.want, actorFrom(r), "header %q", tt.header)
	}
}
