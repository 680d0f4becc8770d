package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	LocateActive(ctx context.Context, identity Identity) (*models.Cart, error)
	FindActive(ctx context.Context, identity Identity) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Touch(ctx context.Context, cartID uuid.UUID, at time.Time) error
	MergeLine(ctx context.Context, input MergeInput) (*models.CartLine, error)
	ListLines(ctx context.Context, cartID uuid.UUID) ([]LineRecord, error)
}
