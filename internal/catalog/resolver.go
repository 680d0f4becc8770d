package catalog

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Resolver turns a ProductRef into a product that can be added to a cart.
type Resolver struct {
	repo *Repository
}

// NewResolver wires a resolver over the catalog repository.
func NewResolver(repo *Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Lookup loads the referenced product without checking stock.
func (r *Resolver) Lookup(ctx context.Context, tx *gorm.DB, ref ProductRef) (models.Product, error) {
	switch v := ref.(type) {
	case ByID:
		return r.repo.FindByID(ctx, tx, v.ID)
	case ByName:
		value := strings.TrimSpace(v.Value)
		if value == "" {
			return models.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product reference is required")
		}
		return r.repo.FindByNameOrSlug(ctx, tx, value)
	case Resolved:
		return v.Product, nil
	case nil:
		return models.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product reference is required")
	default:
		return models.Product{}, pkgerrors.New(pkgerrors.CodeInternal, "unsupported product reference")
	}
}

// Resolve loads the referenced product and rejects it when out of stock.
func (r *Resolver) Resolve(ctx context.Context, tx *gorm.DB, ref ProductRef) (models.Product, error) {
	product, err := r.Lookup(ctx, tx, ref)
	if err != nil {
		return models.Product{}, err
	}
	if !product.InStock {
		return models.Product{}, pkgerrors.Newf(pkgerrors.CodeOutOfStock, "%s is out of stock", product.Name).
			WithDetails(map[string]any{"product_id": product.ID.String(), "name": product.Name})
	}
	return product, nil
}
