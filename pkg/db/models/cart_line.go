package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one (product, variant) row inside a cart. UnitPriceSnapshot is
// captured on insert and never recomputed.
type CartLine struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CartID            uuid.UUID           `gorm:"column:cart_id;type:uuid;not null"`
	ProductID         uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	VariantID         *uuid.UUID          `gorm:"column:variant_id;type:uuid"`
	VariantKey        string              `gorm:"column:variant_key;not null;default:''"`
	Quantity          int                 `gorm:"column:quantity;not null"`
	UnitPriceSnapshot decimal.NullDecimal `gorm:"column:unit_price_snapshot;type:numeric(12,2)"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartLine) TableName() string { return "cart_lines" }

// VariantKeyFor renders the conflict key used by the line identity index.
func VariantKeyFor(variantID *uuid.UUID) string {
	if variantID == nil {
		return ""
	}
	return variantID.String()
}
