package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// ListFilters describe the inputs supported by the order lists.
type ListFilters struct {
	Status       *enums.OrderStatus
	RefundStatus *enums.OrderRefundStatus
	DateFrom     *time.Time
	DateTo       *time.Time
}

// OrderSummary exposes the aggregated fields returned in list endpoints.
type OrderSummary struct {
	ID           uuid.UUID               `json:"id"`
	Code         string                  `json:"code"`
	CreatedAt    time.Time               `json:"created_at"`
	Status       enums.OrderStatus       `json:"status"`
	RefundStatus enums.OrderRefundStatus `json:"refund_status"`
	TotalMinor   int64                   `json:"total_minor"`
	Currency     enums.Currency          `json:"currency"`
	TotalItems   int                     `json:"total_items"`
	BuyerID      uuid.UUID               `json:"buyer_id"`
	VendorID     uuid.UUID               `json:"vendor_id"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
