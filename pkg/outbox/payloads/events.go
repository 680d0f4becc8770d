package payloads

import (
	"time"

	"github.com/google/uuid"
)

// CartItemAddedEvent records one successful add-to-cart. Identity is the user
// id, or guest_<sessionId> for anonymous carts.
type CartItemAddedEvent struct {
	Event     string                `json:"event"`
	Identity  string                `json:"identity"`
	UserID    *string               `json:"userId,omitempty"`
	SessionID *string               `json:"sessionId,omitempty"`
	CartID    uuid.UUID             `json:"cartId"`
	ProductID uuid.UUID             `json:"productId"`
	Quantity  int                   `json:"quantity"`
	Timestamp time.Time             `json:"timestamp"`
	Metadata  CartItemAddedMetadata `json:"metadata"`
}

type CartItemAddedMetadata struct {
	VariantID     *uuid.UUID `json:"variantId,omitempty"`
	Source        string     `json:"source"`
	ProductName   string     `json:"productName"`
	OriginalInput string     `json:"originalInput,omitempty"`
}

// CartAbandonedEvent is emitted by the expiry job when an idle active cart is closed.
type CartAbandonedEvent struct {
	Event          string    `json:"event"`
	Identity       string    `json:"identity"`
	UserID         *string   `json:"userId,omitempty"`
	SessionID      *string   `json:"sessionId,omitempty"`
	CartID         uuid.UUID `json:"cartId"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	AbandonedAt    time.Time `json:"abandonedAt"`
	LineCount      int       `json:"lineCount"`
	TotalItems     int       `json:"totalItems"`
}
