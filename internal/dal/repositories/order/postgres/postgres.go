package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/tablerie/possync/internal/dal/postgres"
	"github.com/tablerie/possync/internal/service/models/order"
	"github.com/tablerie/possync/internal/service/models/orderline"
	"github.com/tablerie/possync/internal/service/models/status"
)

// OrderDal represents order data access layer model
type OrderDal struct {
	Id              int64     `db:"id"`
	TableId         *int64    `db:"table_id"`
	Type            string    `db:"type"`
	Status          string    `db:"status"`
	CustomerName    string    `db:"customer_name"`
	CustomerPhone   string    `db:"customer_phone"`
	DeliveryAddress string    `db:"delivery_address"`
	TotalCents      int64     `db:"total_cents"`
	NotifiedKitchen bool      `db:"notified_kitchen"`
	NotifiedCashier bool      `db:"notified_cashier"`
	Version         int64     `db:"version"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model
func (o *OrderDal) ToModel() (*order.Order, error) {
	st, err := status.Parse(o.Status)
	if err != nil {
		return nil, err
	}
	typ, err := order.ParseType(o.Type)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:              o.Id,
		TableID:         o.TableId,
		Type:            typ,
		Status:          st,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		DeliveryAddress: o.DeliveryAddress,
		TotalCents:      o.TotalCents,
		NotifiedKitchen: o.NotifiedKitchen,
		NotifiedCashier: o.NotifiedCashier,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Lines:           []orderline.OrderLine{}, // Will be populated separately
	}, nil
}

var orderColumns = []string{
	"id",
	"table_id",
	"type",
	"status",
	"customer_name",
	"customer_phone",
	"delivery_address",
	"total_cents",
	"notified_kitchen",
	"notified_cashier",
	"version",
	"created_at",
	"updated_at",
}

type PostgresOrderRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderRepository(conn postgres.Querier) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
	}
}

// Insert persists a new order with its lines and returns it with the
// store-assigned id and initial version.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	query, args, err := sq.Insert("orders").
		Columns(
			"table_id",
			"type",
			"status",
			"customer_name",
			"customer_phone",
			"delivery_address",
			"total_cents",
			"notified_kitchen",
			"notified_cashier",
			"created_at",
			"updated_at",
		).
		Values(
			o.TableID,
			o.Type.String(),
			o.Status.String(),
			o.CustomerName,
			o.CustomerPhone,
			o.DeliveryAddress,
			o.TotalCents,
			o.NotifiedKitchen,
			o.NotifiedCashier,
			o.CreatedAt,
			o.UpdatedAt,
		).
		Suffix("RETURNING id, version").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&o.ID, &o.Version); err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	if len(o.Lines) > 0 {
		builder := sq.Insert("order_lines").
			Columns("order_id", "menu_item_id", "name", "unit_price_cents", "quantity").
			Suffix("RETURNING id").
			PlaceholderFormat(sq.Dollar)
		for _, l := range o.Lines {
			builder = builder.Values(o.ID, l.MenuItemID, l.Name, l.UnitPriceCents, l.Quantity)
		}

		query, args, err := builder.ToSql()
		if err != nil {
			return order.Order{}, fmt.Errorf("failed to build lines insert query: %w", err)
		}

		rows, err := r.conn.Query(ctx, query, args...)
		if err != nil {
			return order.Order{}, fmt.Errorf("failed to insert order lines: %w", err)
		}
		defer rows.Close()

		i := 0
		for rows.Next() {
			if err := rows.Scan(&o.Lines[i].ID); err != nil {
				return order.Order{}, fmt.Errorf("failed to scan order line id: %w", err)
			}
			o.Lines[i].OrderID = o.ID
			i++
		}
		if err := rows.Err(); err != nil {
			return order.Order{}, fmt.Errorf("rows iteration error: %w", err)
		}
	}

	return o, nil
}

// GetByID returns one order with its lines.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (order.Order, error) {
	query, args, err := sq.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal OrderDal
	if err := scanOrder(r.conn.QueryRow(ctx, query, args...), &dal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, order.ErrNotFound
		}
		return order.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	model, err := dal.ToModel()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to convert order dal to model: %w", err)
	}

	lines, err := r.queryLines(ctx, []int64{model.ID})
	if err != nil {
		return order.Order{}, err
	}
	model.Lines = lines[model.ID]

	return *model, nil
}

// Query retrieves orders based on filter criteria, lines included.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	builder := sq.Select(orderColumns...).
		From("orders").
		OrderBy("created_at ASC").
		PlaceholderFormat(sq.Dollar)

	if filter != nil {
		if len(filter.Ids) > 0 {
			builder = builder.Where(sq.Eq{"id": filter.Ids})
		}
		if len(filter.TableIds) > 0 {
			builder = builder.Where(sq.Eq{"table_id": filter.TableIds})
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, len(filter.Statuses))
			for i, st := range filter.Statuses {
				statuses[i] = st.String()
			}
			builder = builder.Where(sq.Eq{"status": statuses})
		}
		if len(filter.Types) > 0 {
			types := make([]string, len(filter.Types))
			for i, t := range filter.Types {
				types[i] = t.String()
			}
			builder = builder.Where(sq.Eq{"type": types})
		}
		if filter.Limit > 0 {
			builder = builder.Limit(uint64(filter.Limit))
		}
		if filter.Offset > 0 {
			builder = builder.Offset(uint64(filter.Offset))
		}
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	var ids []int64
	for rows.Next() {
		var dal OrderDal
		if err := scanOrder(rows, &dal); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, *model)
		ids = append(ids, model.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(ids) == 0 {
		return []order.Order{}, nil
	}

	lines, err := r.queryLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Lines = lines[result[i].ID]
	}

	return result, nil
}

// Update writes the order row back, guarded by the version token. Lines are
// immutable after creation and are not touched here.
func (r *PostgresOrderRepository) Update(ctx context.Context, o order.Order) (order.Order, error) {
	query, args, err := sq.Update("orders").
		Set("table_id", o.TableID).
		Set("status", o.Status.String()).
		Set("customer_name", o.CustomerName).
		Set("customer_phone", o.CustomerPhone).
		Set("delivery_address", o.DeliveryAddress).
		Set("total_cents", o.TotalCents).
		Set("notified_kitchen", o.NotifiedKitchen).
		Set("notified_cashier", o.NotifiedCashier).
		Set("version", o.Version+1).
		Set("updated_at", o.UpdatedAt).
		Where(sq.Eq{"id": o.ID, "version": o.Version}).
		Suffix("RETURNING version").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build update query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&o.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, r.classifyMissedUpdate(ctx, o.ID)
		}
		return order.Order{}, fmt.Errorf("failed to update order: %w", err)
	}

	return o, nil
}

// classifyMissedUpdate distinguishes a missing row from a stale version.
func (r *PostgresOrderRepository) classifyMissedUpdate(ctx context.Context, id int64) error {
	query, args, err := sq.Select("1").
		From("orders").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build existence query: %w", err)
	}

	var one int
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("failed to check order existence: %w", err)
	}

	return order.ErrVersionConflict
}

func (r *PostgresOrderRepository) queryLines(ctx context.Context, orderIds []int64) (map[int64][]orderline.OrderLine, error) {
	query, args, err := sq.Select("id", "order_id", "menu_item_id", "name", "unit_price_cents", "quantity").
		From("order_lines").
		Where(sq.Eq{"order_id": orderIds}).
		OrderBy("id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build lines query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]orderline.OrderLine)
	for rows.Next() {
		var l orderline.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.MenuItemID, &l.Name, &l.UnitPriceCents, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		result[l.OrderID] = append(result[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

func scanOrder(row pgx.Row, dal *OrderDal) error {
	return row.Scan(
		&dal.Id,
		&dal.TableId,
		&dal.Type,
		&dal.Status,
		&dal.CustomerName,
		&dal.CustomerPhone,
		&dal.DeliveryAddress,
		&dal.TotalCents,
		&dal.NotifiedKitchen,
		&dal.NotifiedCashier,
		&dal.Version,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
}
