package cart

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// IdentityOf returns the owner of a stored cart.
func IdentityOf(cart models.Cart) Identity {
	var id Identity
	if cart.UserID != nil {
		id.UserID = *cart.UserID
	}
	if cart.SessionID != nil {
		id.SessionID = *cart.SessionID
	}
	return id.Normalize()
}

// LineStats summarises a cart's contents.
type LineStats struct {
	LineCount  int `gorm:"column:line_count"`
	TotalItems int `gorm:"column:total_items"`
}

// FindIdleActive returns active carts untouched since cutoff, oldest first.
func (r *Repository) FindIdleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.CartStatusActive, cutoff.UTC()).
		Order("updated_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

// MarkAbandoned moves an active cart untouched since cutoff to abandoned. It
// reports false when the cart was no longer active or was touched after the
// sweep selected it.
func (r *Repository) MarkAbandoned(ctx context.Context, cartID uuid.UUID, cutoff, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ? AND updated_at < ?", cartID, enums.CartStatusActive, cutoff.UTC()).
		Updates(map[string]any{
			"status":       enums.CartStatusAbandoned,
			"abandoned_at": at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Stats counts the lines and units of a cart.
func (r *Repository) Stats(ctx context.Context, cartID uuid.UUID) (LineStats, error) {
	var stats LineStats
	err := r.db.WithContext(ctx).
		Raw(`SELECT COUNT(*) AS line_count, COALESCE(SUM(quantity), 0) AS total_items FROM cart_lines WHERE cart_id = ?`, cartID).
		Scan(&stats).Error
	return stats, err
}
