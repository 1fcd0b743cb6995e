package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAddress = model.Address{
	Name:    "Asha Rao",
	Phone:   "9876543210",
	Street:  "12 MG Road",
	City:    "Bengaluru",
	State:   "Karnataka",
	ZipCode: "560001",
}

func (s *testStack) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	assert.NotEmpty(t, resp.CorrelationID)
	return resp.Error
}

func decodeOrder(t *testing.T, w *httptest.ResponseRecorder) model.Order {
	t.Helper()
	var order model.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order), w.Body.String())
	return order
}

func queryInt(t *testing.T, s *testStack, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.Pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

func seedPromo(t *testing.T, s *testStack, code string, mode model.PromoMode, value int64, minimumOrder int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := s.db.Pool.Exec(context.Background(), `
		INSERT INTO promo_codes (id, code, mode, value, minimum_order, active, expiry_date)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
	`, id, code, string(mode), decimal.NewFromInt(value), decimal.NewFromInt(minimumOrder), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	return id
}

func TestCartCODCheckout_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	s := newTestStack(t)
	SeedProduct(t, s.db.Pool, "kurta-1", "Cotton Kurta", 5,
		model.ProductVariant{Label: "S", Value: 1, Price: decimal.NewFromInt(400)},
		model.ProductVariant{Label: "L", Value: 2, Price: decimal.NewFromInt(500)},
	)
	// The stored unit price is stale and gets re-synced from the catalogue.
	SeedCart(t, s.db.Pool, model.CartOwner{UserID: "user-1"}, model.CartLine{
		ProductID: "kurta-1",
		Quantity:  2,
		UnitPrice: decimal.NewFromInt(350),
		Variant:   model.Variant{Label: "S", Value: 1},
	})
	promoID := seedPromo(t, s, "FLAT50", model.PromoModeFlat, 50, 500)
	auth := map[string]string{"Authorization": bearer(t, "user-1")}

	t.Run("finalizing requires a signed in user", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/checkout/cod", model.CheckoutRequest{ShippingAddress: testAddress}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("delivery quote picks the cheapest courier", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/checkout/delivery-rate", model.DeliveryQuoteRequest{Pincode: "110001", COD: true}, auth)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var quote model.DeliveryQuote
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
		assert.Equal(t, "Delhivery", quote.CourierName)
		assert.True(t, quote.Rate.Equal(decimal.NewFromInt(80)))
	})

	t.Run("unserviceable pincode", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/checkout/delivery-rate", model.DeliveryQuoteRequest{Pincode: "000000"}, auth)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, model.ErrCodeDeliveryUnavailable, errorCode(t, w))
	})

	t.Run("promo preview", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/promos/apply", model.ApplyPromoRequest{Code: " flat50 "}, auth)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var result model.PromoResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.DiscountAmount.Equal(decimal.NewFromInt(50)))
		assert.True(t, result.FinalAmount.Equal(decimal.NewFromInt(750)))
		assert.Equal(t, promoID, result.PromoCodeID)
	})

	t.Run("mismatched discount hint is rejected without side effects", func(t *testing.T) {
		code := "FLAT50"
		hint := decimal.NewFromInt(60)
		w := s.do(t, http.MethodPost, "/api/checkout/cod", model.CheckoutRequest{
			ShippingAddress:   testAddress,
			DeliveryRate:      decimal.NewFromInt(80),
			PromoCode:         &code,
			PromoCodeDiscount: &hint,
		}, auth)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, model.ErrCodePromoMismatch, errorCode(t, w))
		assert.Equal(t, 5, queryInt(t, s, `SELECT stock FROM products WHERE id = 'kurta-1'`))
		assert.Equal(t, 0, queryInt(t, s, `SELECT used_count FROM promo_codes WHERE id = $1`, promoID))
	})

	var orderID uuid.UUID
	t.Run("cod order commits every effect", func(t *testing.T) {
		code := "FLAT50"
		hint := decimal.NewFromInt(50)
		w := s.do(t, http.MethodPost, "/api/checkout/cod", model.CheckoutRequest{
			ShippingAddress:   testAddress,
			DeliveryRate:      decimal.NewFromInt(80),
			PromoCode:         &code,
			PromoCodeDiscount: &hint,
		}, auth)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		order := decodeOrder(t, w)
		orderID = order.ID
		assert.Equal(t, model.OrderTypeCOD, order.Type)
		assert.Equal(t, model.OrderStatusPending, order.Status)
		assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(800)))
		assert.True(t, order.Total.Equal(decimal.NewFromInt(830)))
		assert.False(t, order.FreeShipping)
		require.Len(t, order.Items, 1)
		assert.Equal(t, "Cotton Kurta", order.Items[0].ProductName)
		assert.True(t, order.Items[0].Price.Equal(decimal.NewFromInt(400)))
		assert.Equal(t, "India", order.ShippingAddress.Country)

		assert.Equal(t, 3, queryInt(t, s, `SELECT stock FROM products WHERE id = 'kurta-1'`))
		assert.Equal(t, 1, queryInt(t, s, `SELECT used_count FROM promo_codes WHERE id = $1`, promoID))
		assert.Equal(t, 0, queryInt(t, s, `SELECT COUNT(*) FROM carts WHERE user_id = 'user-1'`))
		assert.Equal(t, 1, queryInt(t, s,
			`SELECT COUNT(*) FROM shipment_jobs WHERE order_id = $1 AND kind = 'register' AND status = 'pending'`, orderID))
	})
	require.NotEqual(t, uuid.Nil, orderID)

	t.Run("second checkout finds no cart", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/checkout/cod", model.CheckoutRequest{
			ShippingAddress: testAddress,
			DeliveryRate:    decimal.NewFromInt(80),
		}, auth)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, model.ErrCodeCartEmpty, errorCode(t, w))
	})

	t.Run("dispatcher registers the shipment", func(t *testing.T) {
		n, err := s.dispatcher.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		w := s.do(t, http.MethodGet, "/api/orders/"+orderID.String(), nil, auth)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		order := decodeOrder(t, w)
		require.NotNil(t, order.ShipmentID)
		require.NotNil(t, order.AWBCode)
		assert.Equal(t, "shp-1", *order.ShipmentID)
		assert.Equal(t, "AWB-shp-1", *order.AWBCode)
	})

	t.Run("orders are private to their owner", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/orders/"+orderID.String(), nil,
			map[string]string{"Authorization": bearer(t, "user-2")})
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = s.do(t, http.MethodGet, "/api/orders", nil, auth)
		require.Equal(t, http.StatusOK, w.Code)
		var orders []model.Order
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
		require.Len(t, orders, 1)
		assert.Equal(t, orderID, orders[0].ID)
	})

	t.Run("admin cancel queues a courier cancellation", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/admin/orders/"+orderID.String()+"/cancel",
			model.CancelOrderRequest{Reason: "customer request"}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = s.do(t, http.MethodPost, "/api/admin/orders/"+orderID.String()+"/cancel",
			model.CancelOrderRequest{Reason: "customer request"}, map[string]string{"X-API-Key": testAPIKey})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, model.OrderStatusCancelled, decodeOrder(t, w).Status)

		n, err := s.dispatcher.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		s.courier.mu.Lock()
		defer s.courier.mu.Unlock()
		assert.Equal(t, []string{"co-1"}, s.courier.cancelled)
	})

	t.Run("cancelled order cannot move on", func(t *testing.T) {
		w := s.do(t, http.MethodPut, "/api/admin/orders/"+orderID.String()+"/status",
			model.UpdateStatusRequest{Status: model.OrderStatusShipped}, map[string]string{"X-API-Key": testAPIKey})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, model.ErrCodeInvalidStatusTransition, errorCode(t, w))
	})
}

func TestDirectPrepaidCheckout_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	s := newTestStack(t)
	SeedProduct(t, s.db.Pool, "lamp-1", "Brass Lamp", 3,
		model.ProductVariant{Label: "Standard", Value: 0, Price: decimal.NewFromInt(1200)},
	)
	auth := map[string]string{"Authorization": bearer(t, "user-9")}

	req := model.DirectCheckoutRequest{
		CheckoutRequest: model.CheckoutRequest{
			ShippingAddress: testAddress,
			DeliveryRate:    decimal.NewFromInt(80),
		},
		Item: model.DirectLine{ProductID: "lamp-1", Quantity: 1, Variant: model.Variant{Label: "Standard"}},
	}

	w := s.do(t, http.MethodPost, "/api/checkout/direct/sessions", req, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var session model.PaymentSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	// Free shipping applies above the threshold.
	assert.Equal(t, int64(120000), session.AmountMinor)
	assert.Equal(t, "INR", session.Currency)
	assert.Equal(t, "rzp_test", session.KeyID)

	confirm := func(signature string) *httptest.ResponseRecorder {
		return s.do(t, http.MethodPost, "/api/checkout/direct/confirm", model.DirectConfirmRequest{
			DirectCheckoutRequest: req,
			Payment: model.PaymentConfirmation{
				GatewayOrderID:   session.GatewayOrderID,
				GatewayPaymentID: "pay_001",
				Signature:        signature,
			},
		}, auth)
	}

	t.Run("forged signature", func(t *testing.T) {
		w := confirm("deadbeef")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, model.ErrCodeInvalidSignature, errorCode(t, w))
		assert.Equal(t, 3, queryInt(t, s, `SELECT stock FROM products WHERE id = 'lamp-1'`))
	})

	t.Run("other user cannot consume the session", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/checkout/direct/confirm", model.DirectConfirmRequest{
			DirectCheckoutRequest: req,
			Payment: model.PaymentConfirmation{
				GatewayOrderID:   session.GatewayOrderID,
				GatewayPaymentID: "pay_001",
				Signature:        s.verifier.Sign(session.GatewayOrderID, "pay_001"),
			},
		}, map[string]string{"Authorization": bearer(t, "user-10")})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, model.ErrCodePaymentSessionNotFound, errorCode(t, w))
	})

	t.Run("verified payment creates a confirmed order", func(t *testing.T) {
		w := confirm(s.verifier.Sign(session.GatewayOrderID, "pay_001"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		order := decodeOrder(t, w)
		assert.Equal(t, model.OrderTypePrepaid, order.Type)
		assert.Equal(t, model.OrderStatusConfirmed, order.Status)
		assert.True(t, order.FreeShipping)
		assert.True(t, order.Total.Equal(decimal.NewFromInt(1200)))
		require.NotNil(t, order.PaymentID)
		assert.Equal(t, "pay_001", *order.PaymentID)

		assert.Equal(t, 2, queryInt(t, s, `SELECT stock FROM products WHERE id = 'lamp-1'`))
		assert.Equal(t, 1, queryInt(t, s,
			`SELECT COUNT(*) FROM payment_sessions WHERE gateway_order_id = $1 AND status = 'consumed'`, session.GatewayOrderID))
	})

	t.Run("replayed confirmation is rejected", func(t *testing.T) {
		w := confirm(s.verifier.Sign(session.GatewayOrderID, "pay_001"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, model.ErrCodePaymentSessionConsumed, errorCode(t, w))
		assert.Equal(t, 2, queryInt(t, s, `SELECT stock FROM products WHERE id = 'lamp-1'`))
		assert.Equal(t, 1, queryInt(t, s, `SELECT COUNT(*) FROM orders WHERE user_id = 'user-9'`))
	})
}

func TestDirectCOD_LastUnitSellsOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	s := newTestStack(t)
	SeedProduct(t, s.db.Pool, "vase-1", "Clay Vase", 1,
		model.ProductVariant{Label: "One size", Value: 0, Price: decimal.NewFromInt(300)},
	)

	req := model.DirectCheckoutRequest{
		CheckoutRequest: model.CheckoutRequest{ShippingAddress: testAddress, DeliveryRate: decimal.NewFromInt(60)},
		Item:            model.DirectLine{ProductID: "vase-1", Quantity: 1},
	}

	const buyers = 4
	codes := make([]int, buyers)
	bodies := make([]*httptest.ResponseRecorder, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := s.do(t, http.MethodPost, "/api/checkout/direct/cod", req,
				map[string]string{"Authorization": bearer(t, uuid.NewString())})
			codes[i] = w.Code
			bodies[i] = w
		}(i)
	}
	wg.Wait()

	created := 0
	for i, code := range codes {
		if code == http.StatusCreated {
			created++
			continue
		}
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, model.ErrCodeInsufficientStock, errorCode(t, bodies[i]))
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, queryInt(t, s, `SELECT stock FROM products WHERE id = 'vase-1'`))
	assert.Equal(t, 1, queryInt(t, s, `SELECT COUNT(*) FROM orders`))
}
