package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const moneyScale = 2

// CartView is the read model returned after every cart mutation.
type CartView struct {
	ID         uuid.UUID        `json:"id"`
	Status     enums.CartStatus `json:"status"`
	UserID     *string          `json:"userId,omitempty"`
	SessionID  *string          `json:"sessionId,omitempty"`
	Items      []LineView       `json:"items"`
	TotalItems int              `json:"totalItems"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
}

// LineView is one cart line with display fields from the live product.
type LineView struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"productId"`
	VariantID     *uuid.UUID      `json:"variantId,omitempty"`
	Name          string          `json:"name"`
	Image         *string         `json:"image,omitempty"`
	InStock       bool            `json:"inStock"`
	StockQuantity int             `json:"stockQuantity"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	LineTotal     decimal.Decimal `json:"lineTotal"`
}

// Project folds a cart and its lines into a CartView. The unit price is the
// snapshot taken when the line was created, or the live price if none exists.
func Project(cart models.Cart, lines []LineRecord) CartView {
	view := CartView{
		ID:        cart.ID,
		Status:    cart.Status,
		UserID:    cart.UserID,
		SessionID: cart.SessionID,
		Items:     make([]LineView, 0, len(lines)),
		Subtotal:  decimal.Zero,
	}
	for _, line := range lines {
		unit := line.ProductPrice
		if line.UnitPriceSnapshot.Valid {
			unit = line.UnitPriceSnapshot.Decimal
		}
		total := unit.Mul(decimal.NewFromInt(int64(line.Quantity)))

		view.Items = append(view.Items, LineView{
			ID:            line.ID,
			ProductID:     line.ProductID,
			VariantID:     line.VariantID,
			Name:          line.ProductName,
			Image:         line.ProductThumbnail,
			InStock:       line.ProductInStock,
			StockQuantity: line.ProductStockQuantity,
			Quantity:      line.Quantity,
			UnitPrice:     unit.Round(moneyScale),
			LineTotal:     total.Round(moneyScale),
		})
		view.TotalItems += line.Quantity
		view.Subtotal = view.Subtotal.Add(total)
	}
	view.Subtotal = view.Subtotal.Round(moneyScale)
	return view
}
