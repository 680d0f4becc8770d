package chatbot

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const ActionAddToCart = "add_to_cart"

type cartActionRequest struct {
	Action    string     `json:"action" validate:"required"`
	ProductID string     `json:"productId" validate:"required,max=200"`
	Quantity  *int       `json:"quantity,omitempty" validate:"omitempty,min=1"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Message   string     `json:"message,omitempty" validate:"omitempty,max=500"`
}

type cartActionResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Cart    *cartsvc.CartView `json:"cart"`
}

// CartAction applies an automated cart action requested by the assistant.
// The product reference is whatever the user typed, so it goes through the
// same id/name/slug resolution as the public route.
func CartAction(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload cartActionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		action := strings.ToLower(strings.TrimSpace(payload.Action))
		if action != ActionAddToCart {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported cart action").
				WithDetails(map[string]any{"action": payload.Action}))
			return
		}

		raw := strings.TrimSpace(payload.ProductID)
		quantity := 1
		if payload.Quantity != nil {
			quantity = *payload.Quantity
		}

		view, err := svc.AddItem(r.Context(), cartsvc.AddItemInput{
			Product:       catalog.ParseRef(raw),
			VariantID:     payload.VariantID,
			Quantity:      quantity,
			Identity:      middleware.IdentityFromContext(r.Context()),
			Source:        cartsvc.SourceChatbot,
			OriginalInput: raw,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message := strings.TrimSpace(payload.Message)
		if message == "" {
			message = fmt.Sprintf("Added %d x %s to your cart.", quantity, addedName(view, raw))
		}

		responses.WriteSuccess(w, cartActionResponse{Success: true, Message: message, Cart: view})
	}
}

func addedName(view *cartsvc.CartView, fallback string) string {
	if view == nil {
		return fallback
	}
	for _, item := range view.Items {
		if item.Name != "" && (strings.EqualFold(item.Name, fallback) || item.ProductID.String() == fallback) {
			return item.Name
		}
	}
	return fallback
}
