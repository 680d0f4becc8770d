package chatbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stubCartService struct {
	added *cartsvc.AddItemInput
	view  *cartsvc.CartView
	err   error
}

func (s *stubCartService) AddItem(_ context.Context, input cartsvc.AddItemInput) (*cartsvc.CartView, error) {
	s.added = &input
	return s.view, s.err
}

func (s *stubCartService) Project(context.Context, uuid.UUID) (*cartsvc.CartView, error) {
	return s.view, s.err
}

func (s *stubCartService) GetActive(context.Context, cartsvc.Identity) (*cartsvc.CartView, error) {
	return s.view, s.err
}

func postAction(svc cartsvc.Service, body string) *httptest.ResponseRecorder {
	ctx := middleware.WithSessionID(context.Background(), "sess_bot")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chatbot/cart-actions", strings.NewReader(body)).WithContext(ctx)
	rec := httptest.NewRecorder()
	CartAction(svc, logger.Nop()).ServeHTTP(rec, req)
	return rec
}

type actionBody struct {
	Data cartActionResponse `json:"data"`
}

func TestCartActionAddsWithChatbotSource(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{view: &cartsvc.CartView{
		Items: []cartsvc.LineView{{ProductID: productID, Name: "Blue Shirt", Quantity: 2}},
	}}

	rec := postAction(svc, `{"action":"add_to_cart","productId":"blue shirt","quantity":2}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.added)
	assert.Equal(t, cartsvc.SourceChatbot, svc.added.Source)
	assert.Equal(t, "blue shirt", svc.added.OriginalInput)
	assert.Equal(t, catalog.ByName{Value: "blue shirt"}, svc.added.Product)
	assert.Equal(t, "sess_bot", svc.added.Identity.SessionID)

	var body actionBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Success)
	assert.Equal(t, "Added 2 x Blue Shirt to your cart.", body.Data.Message)
	require.NotNil(t, body.Data.Cart)
}

func TestCartActionPassesLargeQuantityThrough(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.CartView{}}

	rec := postAction(svc, `{"action":"add_to_cart","productId":"mug","quantity":1000}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.added)
	assert.Equal(t, 1000, svc.added.Quantity)
}

func TestCartActionKeepsCallerMessage(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.CartView{}}
	rec := postAction(svc, `{"action":"ADD_TO_CART","productId":"mug","message":"Done!"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.added.Quantity)

	var body actionBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Done!", body.Data.Message)
}

func TestCartActionRejectsUnknownAction(t *testing.T) {
	svc := &stubCartService{}
	rec := postAction(svc, `{"action":"remove_from_cart","productId":"mug"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.added)
}

func TestCartActionSurfacesOutOfStock(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeOutOfStock, "Mug is out of stock")}
	rec := postAction(svc, `{"action":"add_to_cart","productId":"mug"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mug is out of stock")
}
