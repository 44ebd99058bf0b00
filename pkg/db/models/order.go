package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/vendorahq/vendora-backend/pkg/types"
)

// Order is the per-vendor order created at checkout. Multi-vendor carts are
// split upstream; each Order references exactly one vendor and at most one
// active Payment. Rows are never deleted; terminal orders stay for audit.
type Order struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code     string    `gorm:"column:code;not null;uniqueIndex" json:"code"`
	BuyerID  uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index" json:"buyer_id"`
	VendorID uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendor_id"`

	Status       enums.OrderStatus       `gorm:"column:status;type:text;not null;default:'placed'" json:"status"`
	RefundStatus enums.OrderRefundStatus `gorm:"column:refund_status;type:text;not null;default:'none'" json:"refund_status"`

	Currency      enums.Currency `gorm:"column:currency;type:text;not null;default:'INR'" json:"currency"`
	SubtotalMinor int64          `gorm:"column:subtotal_minor;not null" json:"subtotal_minor"`
	TaxMinor      int64          `gorm:"column:tax_minor;not null;default:0" json:"tax_minor"`
	ShippingMinor int64          `gorm:"column:shipping_minor;not null;default:0" json:"shipping_minor"`
	TotalMinor    int64          `gorm:"column:total_minor;not null" json:"total_minor"`

	ShippingAddress *types.Address `gorm:"column:shipping_address;type:jsonb" json:"shipping_address,omitempty"`
	Timeline        types.Timeline `gorm:"column:timeline;type:jsonb" json:"timeline"`

	// Delivery OTP fields are write-only from the API's perspective: the
	// code surfaces once at generation time and never on read paths.
	DeliveryOTP          *string    `gorm:"column:delivery_otp" json:"-"`
	DeliveryOTPExpiresAt *time.Time `gorm:"column:delivery_otp_expires_at" json:"-"`
	DeliveryOTPVerified  bool       `gorm:"column:delivery_otp_verified;not null;default:false" json:"delivery_otp_verified"`

	RefundRequested bool    `gorm:"column:refund_requested;not null;default:false" json:"refund_requested"`
	RefundReason    *string `gorm:"column:refund_reason" json:"refund_reason,omitempty"`

	CancelReason *string    `gorm:"column:cancel_reason" json:"cancel_reason,omitempty"`
	DeliveredAt  *time.Time `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	Items   []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payment *Payment        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"payment,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
