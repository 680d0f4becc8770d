package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/dbtest"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo, NewResolver(repo))
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}

func TestServiceCreateDerivesSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateProductInput{
		Name:          "  Áo thun Nike ",
		Price:         decimal.RequireFromString("250000"),
		InStock:       true,
		StockQuantity: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Áo thun Nike", created.Name)
	assert.Equal(t, "ao-thun-nike", created.Slug)

	got, err := svc.Get(ctx, ByName{Value: "ao-thun-nike"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("250000")))

	_, err = svc.Create(ctx, CreateProductInput{Name: "Ao thun NIKE", Price: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestServiceCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := map[string]CreateProductInput{
		"blank name":     {Name: " ", Price: decimal.NewFromInt(1)},
		"negative price": {Name: "Mũ", Price: decimal.NewFromInt(-1)},
		"negative stock": {Name: "Mũ", Price: decimal.NewFromInt(1), StockQuantity: -2},
		"symbols only":   {Name: "!!!", Price: decimal.NewFromInt(1)},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestServiceGetSkipsStockGate(t *testing.T) {
	conn := dbtest.Open(t)
	sold := dbtest.SeedProduct(t, conn, "Giày Adidas", "10", dbtest.OutOfStock())
	repo := NewRepository(conn)
	svc, err := NewService(repo, NewResolver(repo))
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), ByID{ID: sold.ID})
	require.NoError(t, err)
	assert.False(t, got.InStock)
}

func TestServiceListPagesByName(t *testing.T) {
	conn := dbtest.Open(t)
	for _, name := range []string{"Cam", "Bưởi", "Dưa", "Anh đào", "Ổi"} {
		dbtest.SeedProduct(t, conn, name, "1")
	}
	repo := NewRepository(conn)
	svc, err := NewService(repo, NewResolver(repo))
	require.NoError(t, err)
	ctx := context.Background()

	var names []string
	cursor := ""
	for pages := 0; pages < 5; pages++ {
		page, err := svc.List(ctx, pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, p := range page.Products {
			names = append(names, p.Name)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Len(t, names, 5)
	assert.Equal(t, []string{"Anh đào", "Bưởi", "Cam", "Dưa", "Ổi"}, names)

	_, err = svc.List(ctx, pagination.Params{Cursor: "not a cursor"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
