package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/safisha/laundry-api/internal/auth"
	"github.com/safisha/laundry-api/internal/cart"
	"github.com/safisha/laundry-api/internal/models"
	"github.com/safisha/laundry-api/internal/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrderCreator struct {
	userID  int64
	sel     *order.CartSelection
	created models.Order
}

func (s *stubOrderCreator) CreateOrder(ctx context.Context, userID int64, sel order.CartSelection) (*models.Order, error) {
	s.userID = userID
	s.sel = &sel
	ord := s.created
	return &ord, nil
}

func seedCart(t *testing.T, carts cart.Repository, session string, items ...cart.Item) {
	t.Helper()
	c := cart.New(session)
	c.Items = items
	require.NoError(t, carts.Save(context.Background(), c))
}

func doCartCheckout(handler http.HandlerFunc, session, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/cart/checkout", strings.NewReader(body))
	if session != "" {
		req.Header.Set(cartSessionHeader, session)
	}
	req = req.WithContext(auth.WithUserID(req.Context(), 7))

	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCartCheckoutDirectCreatesOrderAndClearsCart(t *testing.T) {
	carts := cart.NewMemoryRepository()
	// The line's price is deliberately wrong; the order creation path prices
	// laundry plans from (plan, weight), never from the cart line.
	seedCart(t, carts, "sess-1", cart.Item{
		ID:       "svc-premium",
		Name:     "Premium wash",
		Price:    decimal.NewFromInt(1),
		Quantity: 1,
		Type:     cart.ItemTypeService,
		Details:  map[string]string{"plan": "premium", "weight_kg": "2.5"},
	})

	stub := &stubOrderCreator{created: models.Order{
		ID:          42,
		OrderNumber: "LND-TEST0001",
		Status:      models.OrderStatusPending,
		TotalPrice:  decimal.NewFromInt(200),
	}}
	handler := handleCartCheckout(carts, stub)

	rec := doCartCheckout(handler, "sess-1", `{"address": "12 Riverside Drive"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "created", body["status"])
	assert.Equal(t, "LND-TEST0001", body["order_number"])

	require.NotNil(t, stub.sel)
	assert.Equal(t, int64(7), stub.userID)
	assert.Equal(t, models.PlanPremium, stub.sel.Plan)
	require.NotNil(t, stub.sel.WeightKg)
	assert.True(t, stub.sel.WeightKg.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, "12 Riverside Drive", stub.sel.Address)

	c, err := carts.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, c.Items, "cart must be cleared after the order is persisted")
}

func TestCartCheckoutMultiLineReturnsReview(t *testing.T) {
	carts := cart.NewMemoryRepository()
	seedCart(t, carts, "sess-2",
		cart.Item{ID: "svc-basic", Price: decimal.NewFromInt(50), Quantity: 1, Type: cart.ItemTypeService,
			Details: map[string]string{"plan": "basic", "weight_kg": "3"}},
		cart.Item{ID: "soap-1", Price: decimal.NewFromInt(120), Quantity: 2, Type: cart.ItemTypeProduct},
	)

	stub := &stubOrderCreator{}
	handler := handleCartCheckout(carts, stub)

	rec := doCartCheckout(handler, "sess-2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "review", body["status"])
	items, ok := body["items"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 2)

	assert.Nil(t, stub.sel, "review must not create an order")
	c, err := carts.Load(context.Background(), "sess-2")
	require.NoError(t, err)
	assert.Len(t, c.Items, 2, "review must not clear the cart")
}

func TestCartCheckoutInvalidWeightDetail(t *testing.T) {
	carts := cart.NewMemoryRepository()
	seedCart(t, carts, "sess-3", cart.Item{
		ID:       "svc-premium",
		Price:    decimal.NewFromInt(80),
		Quantity: 1,
		Type:     cart.ItemTypeService,
		Details:  map[string]string{"plan": "premium", "weight_kg": "heavy"},
	})

	stub := &stubOrderCreator{}
	handler := handleCartCheckout(carts, stub)

	rec := doCartCheckout(handler, "sess-3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, stub.sel)

	c, err := carts.Load(context.Background(), "sess-3")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1, "rejected checkout must leave the cart intact")
}

func TestCartCheckoutEmptyCart(t *testing.T) {
	carts := cart.NewMemoryRepository()
	handler := handleCartCheckout(carts, &stubOrderCreator{})

	rec := doCartCheckout(handler, "sess-4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "empty", decodeBody(t, rec)["status"])
}

func TestCartCheckoutRequiresSession(t *testing.T) {
	handler := handleCartCheckout(cart.NewMemoryRepository(), &stubOrderCreator{})

	rec := doCartCheckout(handler, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
