package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// LocateActive returns the active cart for identity, creating it when absent.
// The insert relies on the partial unique owner indexes, so concurrent callers
// converge on a single row.
func (r *Repository) LocateActive(ctx context.Context, identity Identity) (*models.Cart, error) {
	column, value := identity.owner()
	now := time.Now().UTC()

	insert := "INSERT INTO carts (id, " + column + ", status, created_at, updated_at) " +
		"VALUES (?, ?, 'active', ?, ?) " +
		"ON CONFLICT (" + column + ") WHERE status = 'active' AND " + column + " IS NOT NULL DO NOTHING"
	if err := r.db.WithContext(ctx).Exec(insert, uuid.New(), value, now, now).Error; err != nil {
		return nil, err
	}
	cart, err := r.FindActive(ctx, identity)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The conflicting active cart was closed after the insert skipped.
		return nil, pkgerrors.Wrap(pkgerrors.CodeTxConflict, err, "active cart closed concurrently")
	}
	return cart, err
}

// FindActive loads the active cart for identity without creating one.
func (r *Repository) FindActive(ctx context.Context, identity Identity) (*models.Cart, error) {
	column, value := identity.owner()
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where(column+" = ? AND status = ?", value, enums.CartStatusActive).
		Take(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByID loads a cart in any status.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// Touch bumps updated_at, which drives abandonment. A cart that stopped being
// active since it was located is a conflict.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusActive).
		Update("updated_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeTxConflict, "cart is no longer active")
	}
	return nil
}

// MergeInput describes one add-to-cart line merge.
type MergeInput struct {
	CartID    uuid.UUID
	Product   models.Product
	VariantID *uuid.UUID
	Quantity  int
}

const mergeLineSQL = `INSERT INTO cart_lines
	(id, cart_id, product_id, variant_id, variant_key, quantity, unit_price_snapshot, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (cart_id, product_id, variant_key) DO UPDATE SET
	quantity = cart_lines.quantity + excluded.quantity,
	updated_at = excluded.updated_at`

// MergeLine inserts the line or increments the existing line's quantity in a
// single statement. The price snapshot is only written on insert.
func (r *Repository) MergeLine(ctx context.Context, input MergeInput) (*models.CartLine, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	variantKey := models.VariantKeyFor(input.VariantID)
	now := time.Now().UTC()
	snapshot := decimal.NewNullDecimal(input.Product.Price)

	conn := r.db.WithContext(ctx)
	if err := conn.Exec(mergeLineSQL,
		id, input.CartID, input.Product.ID, input.VariantID, variantKey,
		input.Quantity, snapshot, now, now,
	).Error; err != nil {
		return nil, err
	}

	var line models.CartLine
	err = conn.
		Where("cart_id = ? AND product_id = ? AND variant_key = ?", input.CartID, input.Product.ID, variantKey).
		Take(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// LineRecord is a cart line joined with the live product fields the view needs.
type LineRecord struct {
	ID                   uuid.UUID           `gorm:"column:id"`
	CartID               uuid.UUID           `gorm:"column:cart_id"`
	ProductID            uuid.UUID           `gorm:"column:product_id"`
	VariantID            *uuid.UUID          `gorm:"column:variant_id"`
	Quantity             int                 `gorm:"column:quantity"`
	UnitPriceSnapshot    decimal.NullDecimal `gorm:"column:unit_price_snapshot"`
	CreatedAt            time.Time           `gorm:"column:created_at"`
	ProductName          string              `gorm:"column:product_name"`
	ProductPrice         decimal.Decimal     `gorm:"column:product_price"`
	ProductThumbnail     *string             `gorm:"column:product_thumbnail"`
	ProductInStock       bool                `gorm:"column:product_in_stock"`
	ProductStockQuantity int                 `gorm:"column:product_stock_quantity"`
}

const listLinesSQL = `SELECT
	l.id, l.cart_id, l.product_id, l.variant_id, l.quantity, l.unit_price_snapshot, l.created_at,
	p.name AS product_name, p.price AS product_price, p.thumbnail AS product_thumbnail,
	p.in_stock AS product_in_stock, p.stock_quantity AS product_stock_quantity
FROM cart_lines l
JOIN products p ON p.id = l.product_id
WHERE l.cart_id = ?
ORDER BY l.created_at ASC, l.id ASC`

// ListLines returns the lines of a cart in insertion order.
func (r *Repository) ListLines(ctx context.Context, cartID uuid.UUID) ([]LineRecord, error) {
	var rows []LineRecord
	if err := r.db.WithContext(ctx).Raw(listLinesSQL, cartID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
