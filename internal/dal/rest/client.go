package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/tablerie/possync/internal/service/models/menuitem"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/orderline"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/service/models/table"
)

// ErrFetchFailure wraps network and server-side errors from the collaborator
// API. Reconcilers treat it as transient: keep last-known-good state and
// retry on the next tick.
var ErrFetchFailure = errors.New("collaborator fetch failed")

const defaultTimeout = 8 * time.Second

// Client talks to the collaborator REST API and translates between its wire
// representation (snake_case fields, French status strings, denormalized
// order details) and the canonical models. Status strings never cross this
// boundary unparsed.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string

	menuMu      sync.RWMutex
	menuCache   map[int64]menuitem.MenuItem
	menuFetched time.Time
	menuTTL     time.Duration
}

// option is a function that configures the Client.
type option func(*Client)

// NewClient creates a collaborator API client.
func NewClient(baseURL, token string, opts ...option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		token:      token,
		menuTTL:    time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// MustNewClient creates a client from configuration.
func MustNewClient() *Client {
	baseURL := viper.GetString("collaborator.base_url")
	if baseURL == "" {
		panic("collaborator.base_url is not configured")
	}

	timeoutSeconds := viper.GetInt("collaborator.timeout_seconds")
	if timeoutSeconds == 0 {
		timeoutSeconds = 8
	}

	return NewClient(
		baseURL,
		os.Getenv("POSSYNC_API_TOKEN"),
		WithTimeout(time.Duration(timeoutSeconds)*time.Second),
	)
}

// WithTimeout overrides the per-request timeout.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithTimeout(d time.Duration) option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMenuTTL overrides how long the resolved menu reference set is cached.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMenuTTL(d time.Duration) option {
	return func(c *Client) {
		c.menuTTL = d
	}
}

// tableWire mirrors GET /tables entries.
type tableWire struct {
	ID       int64  `json:"id"`
	NumTable int    `json:"num_table"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
	OrderID  *int64 `json:"order_id"`
}

// menuItemWire mirrors GET /menuItems entries. The accented key is part of
// the backend contract.
type menuItemWire struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	CategoryID  int     `json:"catégory_id"`
	IsAvailable bool    `json:"is_available"`
	ImageURL    string  `json:"imageUrl"`
}

// orderDetailWire mirrors one entry of order_details.
type orderDetailWire struct {
	ID       int64   `json:"id,omitempty"`
	ItemID   int64   `json:"item_id"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// orderWire mirrors GET /orders entries. Status arrives as a localized label.
type orderWire struct {
	ID              int64             `json:"id"`
	TableID         *int64            `json:"table_id"`
	Type            string            `json:"type"`
	Date            time.Time         `json:"date"`
	Status          string            `json:"status"`
	CustomerName    string            `json:"customer_name,omitempty"`
	CustomerPhone   string            `json:"customer_phone,omitempty"`
	DeliveryAddress string            `json:"delivery_address,omitempty"`
	OrderDetails    []orderDetailWire `json:"order_details"`
	NotifiedKitchen bool              `json:"notified_kitchen"`
	NotifiedCashier bool              `json:"notified_cashier"`
	Version         int64             `json:"version"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func centsFromWire(price float64) int64 {
	return int64(math.Round(price * 100))
}

func wireFromCents(cents int64) float64 {
	return float64(cents) / 100
}

// toModel normalizes a wire order into the canonical model, resolving line
// names against the cached menu reference set.
func (c *Client) toModel(ctx context.Context, w orderWire) (order.Order, error) {
	st, err := status.Parse(w.Status)
	if err != nil {
		return order.Order{}, fmt.Errorf("order %d: %w", w.ID, err)
	}
	typ, err := order.ParseType(w.Type)
	if err != nil {
		return order.Order{}, fmt.Errorf("order %d: %w", w.ID, err)
	}

	menu, err := c.menu(ctx)
	if err != nil {
		return order.Order{}, err
	}

	lines := make([]orderline.OrderLine, 0, len(w.OrderDetails))
	for _, d := range w.OrderDetails {
		line := orderline.OrderLine{
			ID:             d.ID,
			OrderID:        w.ID,
			MenuItemID:     d.ItemID,
			UnitPriceCents: centsFromWire(d.Price),
			Quantity:       d.Quantity,
		}
		// Resolve the display name once here so renders don't re-join.
		if item, ok := menu[d.ItemID]; ok {
			line.Name = item.Name
		}
		lines = append(lines, line)
	}

	o := order.Order{
		ID:              w.ID,
		TableID:         w.TableID,
		Type:            typ,
		Status:          st,
		CustomerName:    w.CustomerName,
		CustomerPhone:   w.CustomerPhone,
		DeliveryAddress: w.DeliveryAddress,
		Lines:           lines,
		NotifiedKitchen: w.NotifiedKitchen,
		NotifiedCashier: w.NotifiedCashier,
		Version:         w.Version,
		CreatedAt:       w.Date,
		UpdatedAt:       w.UpdatedAt,
	}
	o.RecomputeTotal()

	return o, nil
}

// fromModel denormalizes a canonical order for the wire.
func fromModel(o order.Order) orderWire {
	details := make([]orderDetailWire, 0, len(o.Lines))
	for _, l := range o.Lines {
		details = append(details, orderDetailWire{
			ID:       l.ID,
			ItemID:   l.MenuItemID,
			Quantity: l.Quantity,
			Price:    wireFromCents(l.UnitPriceCents),
		})
	}

	return orderWire{
		ID:              o.ID,
		TableID:         o.TableID,
		Type:            o.Type.Label(),
		Date:            o.CreatedAt,
		Status:          o.Status.Label(),
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		DeliveryAddress: o.DeliveryAddress,
		OrderDetails:    details,
		NotifiedKitchen: o.NotifiedKitchen,
		NotifiedCashier: o.NotifiedCashier,
		Version:         o.Version,
		UpdatedAt:       o.UpdatedAt,
	}
}

func tableToModel(w tableWire) table.Table {
	return table.Table{
		ID:      w.ID,
		Number:  w.NumTable,
		Seats:   w.Capacity,
		Status:  table.Status(w.Status),
		OrderID: w.OrderID,
	}
}

func menuItemToModel(w menuItemWire) (menuitem.MenuItem, error) {
	category, err := menuitem.ParseCategory(w.CategoryID)
	if err != nil {
		return menuitem.MenuItem{}, fmt.Errorf("menu item %d: %w", w.ID, err)
	}

	return menuitem.MenuItem{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		PriceCents:  centsFromWire(w.Price),
		Category:    category,
		IsAvailable: w.IsAvailable,
		ImageURL:    w.ImageURL,
	}, nil
}

// menu returns the resolved menu reference set, refreshing the cache when it
// is stale.
func (c *Client) menu(ctx context.Context) (map[int64]menuitem.MenuItem, error) {
	c.menuMu.RLock()
	if c.menuCache != nil && time.Since(c.menuFetched) < c.menuTTL {
		cached := c.menuCache
		c.menuMu.RUnlock()
		return cached, nil
	}
	c.menuMu.RUnlock()

	var resp struct {
		MenuItems []menuItemWire `json:"Menu Items"`
	}
	if err := c.do(ctx, http.MethodGet, "/menuItems", nil, &resp); err != nil {
		return nil, err
	}

	items := make(map[int64]menuitem.MenuItem, len(resp.MenuItems))
	for _, w := range resp.MenuItems {
		item, err := menuItemToModel(w)
		if err != nil {
			return nil, err
		}
		items[item.ID] = item
	}

	c.menuMu.Lock()
	c.menuCache = items
	c.menuFetched = time.Now()
	c.menuMu.Unlock()

	return items, nil
}

// do performs one request against the collaborator API, attaching the bearer
// token and mapping failure classes onto the error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts are treated identically to any other fetch failure.
		return fmt.Errorf("%w: %s %s: %v", ErrFetchFailure, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return order.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return order.ErrVersionConflict
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s: status %d", ErrFetchFailure, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("collaborator rejected %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: decode: %v", ErrFetchFailure, method, path, err)
	}

	return nil
}
