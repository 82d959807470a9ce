package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/tablerie/possync/internal/dal/postgres"
	"github.com/tablerie/possync/internal/service/models/menuitem"
)

var menuItemColumns = []string{
	"id",
	"name",
	"description",
	"price_cents",
	"category_id",
	"is_available",
	"image_url",
}

type PostgresMenuItemRepository struct {
	conn postgres.Querier
}

func NewPostgresMenuItemRepository(conn postgres.Querier) *PostgresMenuItemRepository {
	return &PostgresMenuItemRepository{
		conn: conn,
	}
}

// List returns all menu items ordered by category and name.
func (r *PostgresMenuItemRepository) List(ctx context.Context) ([]menuitem.MenuItem, error) {
	query, args, err := sq.Select(menuItemColumns...).
		From("menu_items").
		OrderBy("category_id ASC", "name ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build menu items query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	var result []menuitem.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// GetByIDs resolves the given menu item ids.
func (r *PostgresMenuItemRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]menuitem.MenuItem, error) {
	if len(ids) == 0 {
		return map[int64]menuitem.MenuItem{}, nil
	}

	query, args, err := sq.Select(menuItemColumns...).
		From("menu_items").
		Where(sq.Eq{"id": ids}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build menu items query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]menuitem.MenuItem, len(ids))
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	for _, id := range ids {
		if _, ok := result[id]; !ok {
			return nil, fmt.Errorf("menu item %d: %w", id, menuitem.ErrNotFound)
		}
	}

	return result, nil
}

func scanMenuItem(row pgx.Row) (menuitem.MenuItem, error) {
	var item menuitem.MenuItem
	var categoryID int
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.PriceCents,
		&categoryID,
		&item.IsAvailable,
		&item.ImageURL,
	); err != nil {
		return menuitem.MenuItem{}, fmt.Errorf("failed to scan menu item: %w", err)
	}

	category, err := menuitem.ParseCategory(categoryID)
	if err != nil {
		return menuitem.MenuItem{}, err
	}
	item.Category = category

	return item, nil
}
