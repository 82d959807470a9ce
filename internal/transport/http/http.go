package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	"github.com/tablerie/possync/internal/service/models/event"
	"github.com/tablerie/possync/internal/service/models/menuitem"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/service/models/statuslog"
	"github.com/tablerie/possync/internal/service/models/table"
	"github.com/tablerie/possync/internal/service/services/lifecyclesvc"
	"github.com/tablerie/possync/internal/transport/http/converters"
	createorder "github.com/tablerie/possync/internal/transport/http/create_order"
	listorders "github.com/tablerie/possync/internal/transport/http/list_orders"
	"github.com/tablerie/possync/internal/view"
	"github.com/tablerie/possync/pkg/http/middleware/trace"
	"github.com/tablerie/possync/pkg/logger"
)

// roleHeader names the caller's screen role. Unset or unknown values fall
// back to the server role.
const roleHeader = "X-Pos-Role"

type service interface {
	Create(ctx context.Context, actor event.Role, draft order.Order) (order.Order, error)
	NotifyKitchen(ctx context.Context, actor event.Role, orderID int64) (order.Order, error)
	Advance(ctx context.Context, actor event.Role, orderID int64, next status.Status) (order.Order, error)
	Pay(ctx context.Context, actor event.Role, orderID int64) (order.Order, error)
	Cancel(ctx context.Context, actor event.Role, orderID int64) (order.Order, error)
	GetOrder(ctx context.Context, orderID int64) (order.Order, error)
	GetOrders(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
	GetHistory(ctx context.Context, orderID int64) ([]statuslog.StatusLog, error)
	GetTables(ctx context.Context) ([]table.Table, error)
	GetMenuItems(ctx context.Context) ([]menuitem.MenuItem, error)
}

type HTTPTransport struct {
	server  *http.Server
	router  *chi.Mux
	service service
	views   map[event.Role]*view.View
}

func NewHTTPTransport(svc service, views map[event.Role]*view.View) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	return &HTTPTransport{
		server:  server,
		router:  router,
		service: svc,
		views:   views,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.getOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/history", h.getHistory)
		r.Post("/orders/{id}/notify-kitchen", h.notifyKitchen)
		r.Post("/orders/{id}/advance", h.advanceOrder)
		r.Post("/orders/{id}/pay", h.payOrder)
		r.Patch("/orders/cancel/{id}", h.cancelOrder)
		r.Get("/tables", h.getTables)
		r.Get("/menu-items", h.getMenuItems)
		r.Get("/views/{role}/orders", h.getViewOrders)
		r.Get("/views/{role}/tables", h.getViewTables)
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, actorFrom(r), h.service, writeError)
}

func (h *HTTPTransport) getOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.service)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, converters.OrderToResponse(o))
}

func (h *HTTPTransport) getHistory(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	trail, err := h.service.GetHistory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, converters.HistoryToResponse(trail))
}

func (h *HTTPTransport) notifyKitchen(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.service.NotifyKitchen(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, converters.OrderToResponse(o))
}

type advanceRequest struct {
	Status string `json:"status"`
}

func (h *HTTPTransport) advanceOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		return
	}

	next, err := status.Parse(req.Status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.service.Advance(r.Context(), actorFrom(r), id, next)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, converters.OrderToResponse(o))
}

func (h *HTTPTransport) payOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.service.Pay(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, converters.OrderToResponse(o))
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.service.Cancel(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, converters.OrderToResponse(o))
}

func (h *HTTPTransport) getTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.GetTables(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, converters.TablesToResponse(tables))
}

type menuItemResponse struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Price         float64 `json:"price"`
	CategoryID    int     `json:"categoryId"`
	CategoryLabel string  `json:"categoryLabel"`
	IsAvailable   bool    `json:"isAvailable"`
	ImageURL      string  `json:"imageUrl,omitempty"`
}

func (h *HTTPTransport) getMenuItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetMenuItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	result := make([]menuItemResponse, len(items))
	for i, item := range items {
		result[i] = menuItemResponse{
			ID:            item.ID,
			Name:          item.Name,
			Description:   item.Description,
			Price:         float64(item.PriceCents) / 100,
			CategoryID:    int(item.Category),
			CategoryLabel: item.Category.Label(),
			IsAvailable:   item.IsAvailable,
			ImageURL:      item.ImageURL,
		}
	}

	writeJSON(w, http.StatusOK, result)
}

type viewOrdersResponse struct {
	Degraded bool                       `json:"degraded"`
	Orders   []converters.OrderResponse `json:"orders"`
}

type viewTablesResponse struct {
	Degraded bool                       `json:"degraded"`
	Tables   []converters.TableResponse `json:"tables"`
}

func (h *HTTPTransport) roleView(w http.ResponseWriter, r *http.Request) *view.View {
	role := event.Role(chi.URLParam(r, "role"))
	v, ok := h.views[role]
	if !ok {
		http.Error(w, "unknown role", http.StatusNotFound)
		return nil
	}
	return v
}

func (h *HTTPTransport) getViewOrders(w http.ResponseWriter, r *http.Request) {
	v := h.roleView(w, r)
	if v == nil {
		return
	}

	writeJSON(w, http.StatusOK, viewOrdersResponse{
		Degraded: v.Degraded(),
		Orders:   converters.OrdersToResponse(v.Orders()),
	})
}

func (h *HTTPTransport) getViewTables(w http.ResponseWriter, r *http.Request) {
	v := h.roleView(w, r)
	if v == nil {
		return
	}

	writeJSON(w, http.StatusOK, viewTablesResponse{
		Degraded: v.Degraded(),
		Tables:   converters.TablesToResponse(v.Tables()),
	})
}

func orderID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func actorFrom(r *http.Request) event.Role {
	role := event.Role(r.Header.Get(roleHeader))
	if !role.Valid() {
		return event.RoleServer
	}
	return role
}

// writeError maps service errors onto HTTP statuses. Conflicts cover both
// illegal transitions and optimistic-concurrency rejections.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecyclesvc.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, lifecyclesvc.ErrInvalidTransition),
		errors.Is(err, order.ErrVersionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, table.ErrNotFound),
		errors.Is(err, menuitem.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
