// Package dbtest opens throwaway in-memory SQLite databases carrying the same
// table shapes, owner checks and unique indexes as the Postgres migrations.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/internal/catalog/slug"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

var schema = []string{
	`CREATE TABLE products (
		id text PRIMARY KEY,
		name text NOT NULL,
		slug text NOT NULL,
		price numeric NOT NULL CHECK (price >= 0),
		in_stock boolean NOT NULL DEFAULT 1,
		stock_quantity integer NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
		thumbnail text,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE UNIQUE INDEX ux_products_slug ON products (slug)`,
	`CREATE TABLE carts (
		id text PRIMARY KEY,
		user_id text,
		session_id text,
		status text NOT NULL DEFAULT 'active',
		abandoned_at datetime,
		converted_at datetime,
		created_at datetime,
		updated_at datetime,
		CHECK ((user_id IS NULL) <> (session_id IS NULL))
	)`,
	`CREATE UNIQUE INDEX ux_carts_active_user ON carts (user_id) WHERE status = 'active' AND user_id IS NOT NULL`,
	`CREATE UNIQUE INDEX ux_carts_active_session ON carts (session_id) WHERE status = 'active' AND session_id IS NOT NULL`,
	`CREATE TABLE cart_lines (
		id text PRIMARY KEY,
		cart_id text NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id text NOT NULL REFERENCES products(id),
		variant_id text,
		variant_key text NOT NULL DEFAULT '',
		quantity integer NOT NULL CHECK (quantity >= 1),
		unit_price_snapshot numeric,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE UNIQUE INDEX ux_cart_lines_identity ON cart_lines (cart_id, product_id, variant_key)`,
	`CREATE TABLE outbox_events (
		id text PRIMARY KEY,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_id text NOT NULL,
		payload text NOT NULL,
		created_at datetime,
		published_at datetime,
		attempt_count integer NOT NULL DEFAULT 0,
		last_error text
	)`,
	`CREATE UNIQUE INDEX ux_outbox_events_event_aggregate ON outbox_events (event_type, aggregate_id) WHERE event_type = 'cart_abandoned'`,
	`CREATE TABLE outbox_dlq (
		id text PRIMARY KEY,
		event_id text NOT NULL,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_id text NOT NULL,
		payload text NOT NULL,
		error_reason text NOT NULL,
		error_message text,
		attempt_count integer NOT NULL DEFAULT 0,
		failed_at datetime,
		created_at datetime
	)`,
	`CREATE UNIQUE INDEX ux_outbox_dlq_event_id ON outbox_dlq (event_id)`,
}

// Open returns a fresh database with the storefront schema. A single pooled
// connection serialises concurrent transactions the way row locks would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:storefront_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}

// ProductOption tweaks a seeded product.
type ProductOption func(*models.Product)

func OutOfStock() ProductOption {
	return func(p *models.Product) {
		p.InStock = false
		p.StockQuantity = 0
	}
}

func WithSlug(s string) ProductOption {
	return func(p *models.Product) { p.Slug = s }
}

// SeedProduct inserts an in-stock product priced at price.
func SeedProduct(t testing.TB, conn *gorm.DB, name, price string, opts ...ProductOption) models.Product {
	t.Helper()
	now := time.Now().UTC()
	product := models.Product{
		ID:            uuid.New(),
		Name:          name,
		Slug:          slug.Make(name),
		Price:         decimal.RequireFromString(price),
		InStock:       true,
		StockQuantity: 10,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, opt := range opts {
		opt(&product)
	}
	if err := conn.WithContext(context.Background()).Create(&product).Error; err != nil {
		t.Fatalf("seed product %q: %v", name, err)
	}
	return product
}
