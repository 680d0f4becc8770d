package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// Identity resolves the cart owner. A bearer token identifies a user and wins
// over the guest session header. Requests carrying neither pass through.
func Identity(tokens TokenVerifier, sessionHeader string, logg *logger.Logger) func(http.Handler) http.Handler {
	if strings.TrimSpace(sessionHeader) == "" {
		sessionHeader = config.DefaultSessionHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if header := r.Header.Get("Authorization"); strings.TrimSpace(header) != "" {
				raw, ok := auth.BearerToken(header)
				if !ok || tokens == nil {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				claims, err := tokens.Verify(raw)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				ctx = WithUserID(ctx, claims.UserID())
				if logg != nil {
					ctx = logg.WithUserID(ctx, claims.UserID())
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if sid := strings.TrimSpace(r.Header.Get(sessionHeader)); sid != "" {
				if !cart.ValidSessionID(sid) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id is malformed").
						WithDetails(map[string]any{"header": sessionHeader}))
					return
				}
				ctx = WithSessionID(ctx, sid)
				if logg != nil {
					ctx = logg.WithSessionID(ctx, sid)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that did not present a valid bearer token.
func RequireAuth(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
