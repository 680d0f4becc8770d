package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/catalog/slug"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes catalog reads and product creation.
type Service interface {
	Get(ctx context.Context, ref ProductRef) (*ProductDTO, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	List(ctx context.Context, params pagination.Params) (*ProductListDTO, error)
}

type service struct {
	repo     *Repository
	resolver *Resolver
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, resolver *Resolver) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("product resolver required")
	}
	return &service{repo: repo, resolver: resolver}, nil
}

// Get looks a product up without the stock gate so clients can still see
// out-of-stock listings.
func (s *service) Get(ctx context.Context, ref ProductRef) (*ProductDTO, error) {
	product, err := s.resolver.Lookup(ctx, nil, ref)
	if err != nil {
		return nil, err
	}
	dto := toProductDTO(product)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if input.StockQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity must be non-negative")
	}

	productSlug := slug.Make(input.Slug)
	if productSlug == "" {
		productSlug = slug.Make(name)
	}
	if productSlug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must contain letters or digits")
	}

	product := &models.Product{
		Name:          name,
		Slug:          productSlug,
		Price:         input.Price.Round(2),
		InStock:       input.InStock,
		StockQuantity: input.StockQuantity,
		Thumbnail:     input.Thumbnail,
	}
	if err := s.repo.Create(ctx, nil, product); err != nil {
		return nil, err
	}
	dto := toProductDTO(*product)
	return &dto, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (*ProductListDTO, error) {
	page, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	out := &ProductListDTO{
		Products:   make([]ProductDTO, 0, len(page.Products)),
		NextCursor: page.NextCursor,
	}
	for _, p := range page.Products {
		out.Products = append(out.Products, toProductDTO(p))
	}
	return out, nil
}
