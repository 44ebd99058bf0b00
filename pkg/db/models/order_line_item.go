package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem snapshots one product at order time. Catalog edits after
// checkout never alter the historical record.
type OrderLineItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid" json:"product_id,omitempty"`
	Name           string     `gorm:"column:name;not null" json:"name"`
	UnitPriceMinor int64      `gorm:"column:unit_price_minor;not null" json:"unit_price_minor"`
	Qty            int        `gorm:"column:qty;not null" json:"qty"`
	ImageURL       *string    `gorm:"column:image_url" json:"image_url,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
