package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Cart is the mutable pre-order container owned by exactly one user or guest session.
type Cart struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID      *string          `gorm:"column:user_id"`
	SessionID   *string          `gorm:"column:session_id"`
	Status      enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	AbandonedAt *time.Time       `gorm:"column:abandoned_at"`
	ConvertedAt *time.Time       `gorm:"column:converted_at"`
	Lines       []CartLine       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Cart) TableName() string { return "carts" }
