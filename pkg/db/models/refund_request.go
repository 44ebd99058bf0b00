package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// RefundRequest is the decision record for a buyer-initiated refund. The
// order's refund_status column mirrors the outcome as a projection, updated
// in the same transaction that resolves this record.
type RefundRequest struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	PaymentID *uuid.UUID `gorm:"column:payment_id;type:uuid" json:"payment_id,omitempty"`
	BuyerID   uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null" json:"buyer_id"`
	VendorID  uuid.UUID  `gorm:"column:vendor_id;type:uuid;not null" json:"vendor_id"`

	Status enums.RefundRequestStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	Reason string                    `gorm:"column:reason;not null" json:"reason"`

	RequestedMinor int64  `gorm:"column:requested_minor;not null" json:"requested_minor"`
	ApprovedMinor  *int64 `gorm:"column:approved_minor" json:"approved_minor,omitempty"`

	DecisionNote *string    `gorm:"column:decision_note" json:"decision_note,omitempty"`
	DecidedByID  *uuid.UUID `gorm:"column:decided_by_id;type:uuid" json:"decided_by_id,omitempty"`
	DecidedAt    *time.Time `gorm:"column:decided_at" json:"decided_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
