package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/cart"
)

type identityKey struct{}

// IdentityFromContext returns the cart owner resolved for the request. It may
// be empty; the cart service reports a missing identity itself.
func IdentityFromContext(ctx context.Context) cart.Identity {
	if ctx == nil {
		return cart.Identity{}
	}
	id, _ := ctx.Value(identityKey{}).(cart.Identity)
	return id
}

func UserIDFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).UserID
}

func SessionIDFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).SessionID
}

// WithUserID marks the request as signed in. Any guest session is dropped.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityKey{}, cart.Identity{UserID: userID})
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, identityKey{}, cart.Identity{SessionID: sessionID})
}
