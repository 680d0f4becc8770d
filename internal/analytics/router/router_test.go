package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.AnalyticsEventType("order_created"),
		Payload:   []byte(`{"foo":"bar"}`),
	}
	err := router.Handle(context.Background(), env)
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestRouterRejectsEmptyPayload(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	err := router.Handle(context.Background(), types.Envelope{EventType: enums.AnalyticsEventCartAbandoned})
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestRouterRejectsUnknownVersion(t *testing.T) {
	router, w := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.AnalyticsEventCartAbandoned,
		Version:   7,
		Payload:   []byte(`{}`),
	}
	require.ErrorIs(t, router.Handle(context.Background(), env), ErrInvalidPayload)
	assert.Empty(t, w.rows)
}

func TestRouterRoutesToOverride(t *testing.T) {
	handler := &stubHandler{}
	router, w := newTestRouter(t, map[enums.AnalyticsEventType]Handler{
		enums.AnalyticsEventProductAddedToCart: handler,
	})
	data, _ := json.Marshal(payloads.CartItemAddedEvent{CartID: uuid.New(), ProductID: uuid.New(), Quantity: 1})
	env := types.Envelope{
		EventType: enums.AnalyticsEventProductAddedToCart,
		Payload:   data,
	}
	require.NoError(t, router.Handle(context.Background(), env))
	assert.True(t, handler.called)
	assert.IsType(t, &payloads.CartItemAddedEvent{}, handler.payload)
	assert.Empty(t, w.rows)
}

func TestCartItemAddedRow(t *testing.T) {
	router, w := newTestRouter(t, nil)

	cartID := uuid.New()
	productID := uuid.New()
	variantID := uuid.New()
	sid := "sess_abc"
	occurred := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	data, err := json.Marshal(payloads.CartItemAddedEvent{
		Event:     string(enums.EventProductAddedToCart),
		Identity:  "guest_sess_abc",
		SessionID: &sid,
		CartID:    cartID,
		ProductID: productID,
		Quantity:  2,
		Timestamp: occurred,
		Metadata: payloads.CartItemAddedMetadata{
			VariantID:     &variantID,
			Source:        "chatbot_auto",
			ProductName:   "Áo thun Nike",
			OriginalInput: "ao thun nike",
		},
	})
	require.NoError(t, err)

	env := types.Envelope{
		EventID:   uuid.NewString(),
		EventType: enums.AnalyticsEventProductAddedToCart,
		Version:   1,
		Payload:   data,
	}
	require.NoError(t, router.Handle(context.Background(), env))
	require.Len(t, w.rows, 1)

	row := w.rows[0]
	assert.Equal(t, env.EventID, row.EventID)
	assert.Equal(t, "product_added_to_cart", row.EventType)
	assert.Equal(t, occurred, row.OccurredAt)
	assert.Equal(t, "guest_sess_abc", row.Identity)
	assert.Nil(t, row.UserID)
	require.NotNil(t, row.SessionID)
	assert.Equal(t, sid, *row.SessionID)
	assert.Equal(t, cartID.String(), row.CartID)
	require.NotNil(t, row.ProductID)
	assert.Equal(t, productID.String(), *row.ProductID)
	require.NotNil(t, row.VariantID)
	assert.Equal(t, variantID.String(), *row.VariantID)
	require.NotNil(t, row.Quantity)
	assert.EqualValues(t, 2, *row.Quantity)
	require.NotNil(t, row.Source)
	assert.Equal(t, "chatbot_auto", *row.Source)
	require.NotNil(t, row.OriginalInput)
	assert.Equal(t, "ao thun nike", *row.OriginalInput)
	assert.Nil(t, row.LineCount)
	assert.True(t, row.Payload.Valid)
}

func TestCartAbandonedRow(t *testing.T) {
	router, w := newTestRouter(t, nil)

	uid := "user-42"
	abandoned := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	envelopeTime := abandoned.Add(time.Second)
	data, err := json.Marshal(payloads.CartAbandonedEvent{
		Event:       string(enums.EventCartAbandoned),
		Identity:    uid,
		UserID:      &uid,
		CartID:      uuid.New(),
		AbandonedAt: abandoned,
		LineCount:   3,
		TotalItems:  7,
	})
	require.NoError(t, err)

	env := types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  enums.AnalyticsEventCartAbandoned,
		OccurredAt: envelopeTime,
		Payload:    data,
	}
	require.NoError(t, router.Handle(context.Background(), env))
	require.Len(t, w.rows, 1)

	row := w.rows[0]
	assert.Equal(t, envelopeTime, row.OccurredAt)
	require.NotNil(t, row.UserID)
	assert.Equal(t, uid, *row.UserID)
	assert.Nil(t, row.ProductID)
	require.NotNil(t, row.LineCount)
	assert.EqualValues(t, 3, *row.LineCount)
	require.NotNil(t, row.TotalItems)
	assert.EqualValues(t, 7, *row.TotalItems)
}

func TestRouterSurfacesWriterError(t *testing.T) {
	w := &stubWriter{err: errors.New("bigquery down")}
	router, err := NewRouter(w, registry.NewCartDecoderRegistry(), logger.Nop(), nil)
	require.NoError(t, err)

	data, _ := json.Marshal(payloads.CartAbandonedEvent{CartID: uuid.New()})
	err = router.Handle(context.Background(), types.Envelope{
		EventType: enums.AnalyticsEventCartAbandoned,
		Payload:   data,
	})
	require.ErrorIs(t, err, w.err)
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, registry.NewCartDecoderRegistry(), logger.Nop(), nil)
	assert.Error(t, err)
	_, err = NewRouter(&stubWriter{}, nil, logger.Nop(), nil)
	assert.Error(t, err)
	_, err = NewRouter(&stubWriter{}, registry.NewCartDecoderRegistry(), nil, nil)
	assert.Error(t, err)
}

func newTestRouter(t *testing.T, overrides map[enums.AnalyticsEventType]Handler) (*Router, *stubWriter) {
	t.Helper()
	w := &stubWriter{}
	router, err := NewRouter(w, registry.NewCartDecoderRegistry(), logger.New(logger.Options{ServiceName: "router-test"}), overrides)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router, w
}

type stubHandler struct {
	called  bool
	payload any
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	s.called = true
	s.payload = payload
	return nil
}

type stubWriter struct {
	rows []types.CartEventRow
	err  error
}

func (s *stubWriter) InsertCartEvent(ctx context.Context, row types.CartEventRow) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, row)
	return nil
}
