package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// Payment tracks settlement for exactly one order. The gateway order id is
// assigned before the buyer pays; payment id and signature only exist after
// capture. Rows are never deleted, only terminally marked.
type Payment struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID  uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex" json:"order_id"`
	BuyerID  uuid.UUID `gorm:"column:buyer_id;type:uuid;not null" json:"buyer_id"`
	VendorID uuid.UUID `gorm:"column:vendor_id;type:uuid;not null" json:"vendor_id"`

	Status      enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	AmountMinor int64               `gorm:"column:amount_minor;not null" json:"amount_minor"`
	Currency    enums.Currency      `gorm:"column:currency;type:text;not null;default:'INR'" json:"currency"`

	GatewayOrderID   *string `gorm:"column:gateway_order_id;index" json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string `gorm:"column:gateway_payment_id" json:"gateway_payment_id,omitempty"`
	GatewaySignature *string `gorm:"column:gateway_signature" json:"-"`

	Method *string `gorm:"column:method" json:"method,omitempty"`
	Bank   *string `gorm:"column:bank" json:"bank,omitempty"`
	Wallet *string `gorm:"column:wallet" json:"wallet,omitempty"`
	VPA    *string `gorm:"column:vpa" json:"vpa,omitempty"`

	ErrorCode        *string `gorm:"column:error_code" json:"error_code,omitempty"`
	ErrorDescription *string `gorm:"column:error_description" json:"error_description,omitempty"`

	PaidToVendor bool `gorm:"column:paid_to_vendor;not null;default:false" json:"paid_to_vendor"`

	RefundID          *string    `gorm:"column:refund_id" json:"refund_id,omitempty"`
	RefundAmountMinor int64      `gorm:"column:refund_amount_minor;not null;default:0" json:"refund_amount_minor"`
	RefundedAt        *time.Time `gorm:"column:refunded_at" json:"refunded_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
