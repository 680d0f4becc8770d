package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog listing. Price is live; cart lines keep their own snapshot.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name          string          `gorm:"column:name;not null"`
	Slug          string          `gorm:"column:slug;not null;uniqueIndex"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	InStock       bool            `gorm:"column:in_stock;not null"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0"`
	Thumbnail     *string         `gorm:"column:thumbnail"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
