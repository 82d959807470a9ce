package istatuslogrepo

import (
	"context"

	"github.com/tablerie/possync/internal/service/models/statuslog"
)

// IStatusLogRepository stores the order status audit trail.
type IStatusLogRepository interface {
	// Insert appends one transition entry.
	Insert(ctx context.Context, entry statuslog.StatusLog) error

	// ListByOrder returns the trail for one order, oldest first.
	ListByOrder(ctx context.Context, orderID int64) ([]statuslog.StatusLog, error)
}
