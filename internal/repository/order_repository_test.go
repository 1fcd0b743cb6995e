package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(userID string) *model.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Order{
		ID:                uuid.New(),
		UserID:            userID,
		Subtotal:          money(1200),
		DeliveryRate:      money(0),
		FreeShipping:      true,
		PromoCodeDiscount: money(100),
		Total:             money(1100),
		Type:              model.OrderTypeCOD,
		Status:            model.OrderStatusPending,
		ShippingAddress: model.Address{
			Name: "Asha", Phone: "9999999999", Street: "1 MG Road",
			City: "Bengaluru", State: "KA", ZipCode: "560001", Country: "India",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_BeginTx(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	logger := zerolog.Nop()
	repo := NewOrderRepository(pool, logger)

	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)

	require.NoError(t, err)
	require.NotNil(t, tx)

	// Rollback to cleanup
	err = tx.Rollback(ctx)
	assert.NoError(t, err)
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	order := newTestOrder("user-1")
	order.CourierID = 12
	items := []model.OrderItem{
		{
			ID: uuid.New(), OrderID: order.ID, ProductID: "almonds", ProductName: "Almonds",
			Quantity: 2, Price: money(500),
			Variant:    model.Variant{Label: "500g", Value: 500},
			Dimensions: model.Dimensions{Length: 20, Breadth: 15, Height: 5},
		},
		{
			ID: uuid.New(), OrderID: order.ID, ProductID: "cashews", ProductName: "Cashews",
			Quantity: 1, Price: money(200),
			Variant: model.Variant{Label: "250g", Value: 250},
		},
	}

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, order))
	require.NoError(t, repo.CreateOrderItems(ctx, tx, items))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "user-1", got.UserID)
	assert.True(t, got.Total.Equal(money(1100)))
	assert.True(t, got.FreeShipping)
	assert.Equal(t, model.OrderStatusPending, got.Status)
	assert.Equal(t, "560001", got.ShippingAddress.ZipCode)
	assert.Equal(t, 12, got.CourierID)
	assert.Nil(t, got.PromoCodeID)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "almonds", got.Items[0].ProductID, "items keep insertion order")
	assert.Equal(t, 500.0, got.Items[0].Variant.Value)
	assert.True(t, got.Items[0].Price.Equal(money(500)))

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepository_CreateOrder_DuplicatePayment(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	paymentID := "pay_123"
	first := newTestOrder("user-1")
	first.PaymentID = &paymentID
	second := newTestOrder("user-1")
	second.PaymentID = &paymentID

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, first))
	require.NoError(t, tx.Commit(ctx))

	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = repo.CreateOrder(ctx, tx, second)
	assert.ErrorIs(t, err, model.ErrPaymentSessionConsumed)
}

func TestOrderRepository_ListByUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	older := newTestOrder("user-1")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := newTestOrder("user-1")
	other := newTestOrder("user-2")

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	for _, o := range []*model.Order{older, newer, other} {
		require.NoError(t, repo.CreateOrder(ctx, tx, o))
	}
	require.NoError(t, repo.CreateOrderItems(ctx, tx, []model.OrderItem{
		{ID: uuid.New(), OrderID: newer.ID, ProductID: "p1", ProductName: "P1", Quantity: 1, Price: money(10)},
	}))
	require.NoError(t, tx.Commit(ctx))

	orders, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer.ID, orders[0].ID)
	assert.Len(t, orders[0].Items, 1)
	assert.Equal(t, older.ID, orders[1].ID)
	assert.Empty(t, orders[1].Items)
}

func TestOrderRepository_StatusAndShipment(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	order := newTestOrder("user-1")
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, order))
	require.NoError(t, tx.Commit(ctx))

	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	locked, err := repo.GetByIDForUpdate(ctx, tx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, locked)
	require.NoError(t, repo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusProcessing))
	require.NoError(t, tx.Commit(ctx))

	shipmentID, courierOrderID := "ship-1", "co-1"
	status, err := repo.SetShipment(ctx, order.ID, &shipmentID, &courierOrderID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, status)
	awb := "AWB42"
	_, err = repo.SetShipment(ctx, order.ID, nil, nil, &awb)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, got.Status)
	require.NotNil(t, got.ShipmentID)
	assert.Equal(t, "ship-1", *got.ShipmentID)
	require.NotNil(t, got.AWBCode)
	assert.Equal(t, "AWB42", *got.AWBCode)

	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Cancel(ctx, tx, order.ID, "customer request"))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, tx, uuid.New(), model.OrderStatusShipped), model.ErrOrderNotFound)
	require.NoError(t, tx.Rollback(ctx))
}

func TestOrderRepository_SetShipmentOnCancelledOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	order := newTestOrder("user-1")
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, order))
	require.NoError(t, tx.Commit(ctx))

	// The customer cancels while the courier order is being created.
	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Cancel(ctx, tx, order.ID, "changed my mind"))
	require.NoError(t, tx.Commit(ctx))

	shipmentID, courierOrderID := "ship-1", "co-1"
	status, err := repo.SetShipment(ctx, order.ID, &shipmentID, &courierOrderID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, status)

	var (
		kind   string
		reason *string
	)
	err = pool.QueryRow(ctx,
		`SELECT kind, reason FROM shipment_jobs WHERE order_id = $1 AND status = 'pending'`, order.ID,
	).Scan(&kind, &reason)
	require.NoError(t, err)
	assert.Equal(t, string(model.ShipmentJobCancel), kind)
	require.NotNil(t, reason)
	assert.Equal(t, "changed my mind", *reason)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CourierOrderID)
	assert.Equal(t, "co-1", *got.CourierOrderID)

	// Later writes that carry no courier order do not queue again.
	awb := "AWB1"
	_, err = repo.SetShipment(ctx, order.ID, nil, nil, &awb)
	require.NoError(t, err)
	var jobs int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM shipment_jobs WHERE order_id = $1`, order.ID).Scan(&jobs))
	assert.Equal(t, 1, jobs)

	_, err = repo.SetShipment(ctx, uuid.New(), &shipmentID, nil, nil)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}
