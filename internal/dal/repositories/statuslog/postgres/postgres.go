package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/tablerie/possync/internal/dal/postgres"
	"github.com/tablerie/possync/internal/service/models/status"
	"github.com/tablerie/possync/internal/service/models/statuslog"
)

type PostgresStatusLogRepository struct {
	conn postgres.Querier
}

func NewPostgresStatusLogRepository(conn postgres.Querier) *PostgresStatusLogRepository {
	return &PostgresStatusLogRepository{
		conn: conn,
	}
}

// Insert appends one transition entry to the audit trail.
func (r *PostgresStatusLogRepository) Insert(ctx context.Context, entry statuslog.StatusLog) error {
	query, args, err := sq.Insert("status_logs").
		Columns("order_id", "from_status", "to_status", "changed_by", "changed_at").
		Values(entry.OrderID, string(entry.From), string(entry.To), entry.ChangedBy, entry.ChangedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build status log insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}

	return nil
}

// ListByOrder returns the trail for one order, oldest first.
func (r *PostgresStatusLogRepository) ListByOrder(ctx context.Context, orderID int64) ([]statuslog.StatusLog, error) {
	query, args, err := sq.Select("id", "order_id", "from_status", "to_status", "changed_by", "changed_at").
		From("status_logs").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build status log query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query status logs: %w", err)
	}
	defer rows.Close()

	var result []statuslog.StatusLog
	for rows.Next() {
		var entry statuslog.StatusLog
		var from, to string
		if err := rows.Scan(&entry.ID, &entry.OrderID, &from, &to, &entry.ChangedBy, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		entry.From = status.Status(from)
		entry.To = status.Status(to)
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
