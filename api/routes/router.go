package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	chatbotcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/chatbot"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer depends on.
type RedisStore interface {
	redis.IdempotencyStore
	redis.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps holds everything the API router wires into handlers.
type Deps struct {
	DB       db.Pinger
	Redis    RedisStore
	Catalog  catalog.Service
	Cart     cart.Service
	Tokens   *auth.Tokens
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.RateLimit.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins, cfg.Cart.SessionHeader),
	)

	var redisPinger controllers.Pinger
	var idempotencyStore redis.IdempotencyStore
	if deps.Redis != nil {
		redisPinger = deps.Redis
		idempotencyStore = deps.Redis
	}
	var dbPinger controllers.Pinger
	if deps.DB != nil {
		dbPinger = deps.DB
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	chatbotPolicy := middleware.NewRateLimitPolicy("chatbot", cfg.RateLimit.ChatbotWindow, cfg.RateLimit.ChatbotLimit)

	r.Route("/api/v1", func(r chi.Router) {
		var tokens middleware.TokenVerifier
		if deps.Tokens != nil {
			tokens = deps.Tokens
		}
		r.Use(middleware.Identity(tokens, cfg.Cart.SessionHeader, logg))
		if cfg.FeatureFlags.RequireAuth {
			r.Use(middleware.RequireAuth(logg))
		}
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Catalog, logg))
			r.Post("/", controllers.ProductCreate(deps.Catalog, logg))
			r.Get("/{ref}", controllers.ProductGet(deps.Catalog, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, logg))
		})

		r.Route("/chatbot", func(r chi.Router) {
			if deps.Redis != nil {
				r.Use(middleware.RateLimit(chatbotPolicy, deps.Redis, logg))
			}
			r.Post("/cart-actions", chatbotcontrollers.CartAction(deps.Cart, logg))
		})
	})

	return r
}
