package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/internal/catalog/slug"
	"github.com/angelmondragon/storefront-backend/internal/repo"
	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository persists catalog products.
type Repository struct {
	products repo.Table[models.Product]
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{products: repo.NewTable[models.Product](db)}
}

// FindByID loads a product by primary key. A nil tx reads outside any transaction.
func (r *Repository) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (models.Product, error) {
	product, err := r.products.Take(ctx, tx, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	})
	if err != nil {
		return models.Product{}, notFoundOr(err, "product "+id.String())
	}
	return product, nil
}

// FindByNameOrSlug matches an exact name or the slug derived from value. An
// exact name match wins when both exist.
func (r *Repository) FindByNameOrSlug(ctx context.Context, tx *gorm.DB, value string) (models.Product, error) {
	product, err := r.products.Take(ctx, tx, func(db *gorm.DB) *gorm.DB {
		return db.
			Where("name = ? OR slug = ?", value, slug.Make(value)).
			Order(clause.OrderBy{Expression: clause.Expr{
				SQL:                "CASE WHEN name = ? THEN 0 ELSE 1 END, created_at ASC, id ASC",
				Vars:               []any{value},
				WithoutParentheses: true,
			}})
	})
	if err != nil {
		return models.Product{}, notFoundOr(err, "product "+value)
	}
	return product, nil
}

// Create inserts a product, deriving the slug from the name when absent.
func (r *Repository) Create(ctx context.Context, tx *gorm.DB, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.Slug == "" {
		product.Slug = slug.Make(product.Name)
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	if err := r.products.Insert(ctx, tx, product); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "slug already in use").
				WithDetails(map[string]any{"slug": product.Slug})
		}
		return dbpkg.ClassifyError(err, "create product")
	}
	return nil
}

// List returns products ordered by name using keyset pagination.
func (r *Repository) List(ctx context.Context, params pagination.Params) (ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return ListResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := r.products.Find(ctx, nil, pagination.Keyset(cursor, "name", params.Limit))
	if err != nil {
		return ListResult{}, dbpkg.ClassifyError(err, "list products")
	}

	page, next := pagination.Window(rows, params.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{Key: p.Name, ID: p.ID}
	})
	return ListResult{Products: page, NextCursor: next}, nil
}

// ListResult is one page of products.
type ListResult struct {
	Products   []models.Product
	NextCursor string
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, what+" not found")
	}
	return dbpkg.ClassifyError(err, "load "+what)
}
