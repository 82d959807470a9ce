package order

import "github.com/tablerie/possync/internal/service/models/status"

// QueryOrdersModel represents filter parameters for querying orders.
type QueryOrdersModel struct {
	Ids      []int64         `json:"ids,omitempty"`
	TableIds []int64         `json:"tableIds,omitempty"`
	Statuses []status.Status `json:"statuses,omitempty"`
	Types    []Type          `json:"types,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset,omitempty"`
}
