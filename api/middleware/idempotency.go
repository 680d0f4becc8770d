package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL  = 24 * time.Hour
	idempotencyPendingTTL  = 30 * time.Second
	maxIdempotencyKeyBytes = 255
)

// idempotentRoutes lists the "METHOD /path" pairs that require a key.
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /api/v1/cart/items": defaultIdempotencyTTL,
	http.MethodPost + " /api/v1/products":   defaultIdempotencyTTL,
}

// storedResponse is what a replay writes back. Pending marks a key whose
// first request is still running.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key on the routes above. Keys are scoped to the caller's
// identity and route; reusing a key with a different body is rejected.
// Retryable outcomes (409 and 5xx) are not stored so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			g := idempotencyGuard{store: store, logg: logg}
			g.serve(w, r, next, ttl)
		})
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

func (g idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	switch {
	case clientKey == "":
		g.reject(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required"))
		return
	case len(clientKey) > maxIdempotencyKeyBytes:
		g.reject(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header too long"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.reject(ctx, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	hash := requestHash(body)
	key := g.store.IdempotencyKey(requestScope(r), clientKey)

	pending, _ := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
	won, err := g.store.SetNX(ctx, key, string(pending), idempotencyPendingTTL)
	if err != nil {
		g.reject(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
		return
	}
	if !won {
		g.replay(ctx, w, key, hash)
		return
	}

	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	var captured bytes.Buffer
	ww.Tee(&captured)
	next.ServeHTTP(ww, r)

	// WithoutCancel keeps a client that hung up from leaving the key pending
	// until it expires.
	saveCtx := context.WithoutCancel(ctx)
	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	if !replayable(status) {
		if _, err := g.store.DeleteIfValue(saveCtx, key, string(pending)); err != nil {
			g.logError(saveCtx, "release idempotency reservation", err)
		}
		return
	}
	record, _ := json.Marshal(storedResponse{
		RequestHash: hash,
		Status:      status,
		ContentType: ww.Header().Get("Content-Type"),
		Body:        captured.Bytes(),
	})
	// The pending value is swapped in place, so a retry never finds the key
	// free between the handler finishing and the record landing.
	swapped, err := g.store.ReplaceIfValue(saveCtx, key, string(pending), string(record), ttl)
	switch {
	case err != nil:
		g.logError(saveCtx, "persist idempotency record", err)
	case !swapped && g.logg != nil:
		g.logg.Warn(g.logg.WithField(saveCtx, "status", status), "idempotency reservation expired before the response was recorded")
	}
}

func (g idempotencyGuard) replay(ctx context.Context, w http.ResponseWriter, key, hash string) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The first request finished with a retryable status in between.
		g.reject(ctx, w, pkgerrors.New(pkgerrors.CodeTxConflict, "previous request with this key did not complete, retry"))
		return
	}
	if err != nil {
		g.reject(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		g.reject(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		g.reject(ctx, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.Pending:
		g.reject(ctx, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func (g idempotencyGuard) reject(ctx context.Context, w http.ResponseWriter, err error) {
	responses.WriteError(ctx, g.logg, w, err)
}

func (g idempotencyGuard) logError(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

func requestScope(r *http.Request) string {
	ctx := r.Context()
	return strings.Join([]string{UserIDFromContext(ctx), SessionIDFromContext(ctx), r.Method, trimSlash(r.URL.Path)}, "|")
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func replayable(status int) bool {
	return status < http.StatusInternalServerError && status != http.StatusConflict
}

// routePattern prefers chi's matched pattern. Mounted on a subrouter the
// pattern is still partial ("/api/v1/*"), so the path is used instead.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.Contains(pattern, "*") {
			return trimSlash(pattern)
		}
	}
	return trimSlash(r.URL.Path)
}

func trimSlash(path string) string {
	if len(path) > 1 {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	ttl, ok := idempotentRoutes[method+" "+pattern]
	return ttl, ok
}
