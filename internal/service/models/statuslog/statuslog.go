package statuslog

import (
	"time"

	"github.com/tablerie/possync/internal/service/models/status"
)

// StatusLog is one entry of the order status audit trail. A row is appended
// for every accepted lifecycle transition.
type StatusLog struct {
	ID        int64         `json:"id"`
	OrderID   int64         `json:"orderId"`
	From      status.Status `json:"from"`
	To        status.Status `json:"to"`
	ChangedBy string        `json:"changedBy"`
	ChangedAt time.Time     `json:"changedAt"`
}
