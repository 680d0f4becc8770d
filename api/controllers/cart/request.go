package cart

import (
	"strings"

	"github.com/google/uuid"

	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type addItemRequest struct {
	Product   string     `json:"product" validate:"required,max=200"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Quantity  *int       `json:"quantity,omitempty" validate:"omitempty,min=1"`
	Source    string     `json:"source,omitempty" validate:"omitempty,oneof=api chatbot_auto"`
}

func (r addItemRequest) toInput(identity cartsvc.Identity) (cartsvc.AddItemInput, error) {
	product := strings.TrimSpace(r.Product)
	if product == "" {
		return cartsvc.AddItemInput{}, pkgerrors.New(pkgerrors.CodeValidation, "product is required")
	}

	quantity := 1
	if r.Quantity != nil {
		quantity = *r.Quantity
	}

	return cartsvc.AddItemInput{
		Product:       catalog.ParseRef(product),
		VariantID:     r.VariantID,
		Quantity:      quantity,
		Identity:      identity,
		Source:        r.Source,
		OriginalInput: product,
	}, nil
}
