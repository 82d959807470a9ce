package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/tablerie/possync/internal/dal/postgres"
	"github.com/tablerie/possync/internal/service/models/table"
)

var tableColumns = []string{"id", "number", "seats", "status", "order_id"}

type PostgresTableRepository struct {
	conn postgres.Querier
}

func NewPostgresTableRepository(conn postgres.Querier) *PostgresTableRepository {
	return &PostgresTableRepository{
		conn: conn,
	}
}

// List returns the full floor plan ordered by display number.
func (r *PostgresTableRepository) List(ctx context.Context) ([]table.Table, error) {
	query, args, err := sq.Select(tableColumns...).
		From("tables").
		OrderBy("number ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build tables query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var result []table.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// GetByID returns one table or table.ErrNotFound.
func (r *PostgresTableRepository) GetByID(ctx context.Context, id int64) (table.Table, error) {
	query, args, err := sq.Select(tableColumns...).
		From("tables").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return table.Table{}, fmt.Errorf("failed to build table query: %w", err)
	}

	t, err := scanTable(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return table.Table{}, table.ErrNotFound
		}
		return table.Table{}, err
	}

	return t, nil
}

// SetOccupancy updates a table's status and order back-reference and returns
// the new row.
func (r *PostgresTableRepository) SetOccupancy(ctx context.Context, id int64, st table.Status, orderID *int64) (table.Table, error) {
	query, args, err := sq.Update("tables").
		Set("status", string(st)).
		Set("order_id", orderID).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, number, seats, status, order_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return table.Table{}, fmt.Errorf("failed to build table update query: %w", err)
	}

	t, err := scanTable(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return table.Table{}, table.ErrNotFound
		}
		return table.Table{}, err
	}

	return t, nil
}

func scanTable(row pgx.Row) (table.Table, error) {
	var t table.Table
	var st string
	if err := row.Scan(&t.ID, &t.Number, &t.Seats, &st, &t.OrderID); err != nil {
		return table.Table{}, fmt.Errorf("failed to scan table: %w", err)
	}
	t.Status = table.Status(st)

	return t, nil
}
