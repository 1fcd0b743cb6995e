package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const orderColumns = `
	id, user_id, subtotal, delivery_rate, free_shipping, promo_code_id, promo_code,
	promo_code_discount, total, type, status, shipping_address, courier_id, payment_id,
	payment_order_id, shipment_id, courier_order_id, awb_code, cancellation_reason, created_at, updated_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err := tx.Exec(ctx, query,
		order.ID, order.UserID, order.Subtotal, order.DeliveryRate, order.FreeShipping,
		order.PromoCodeID, order.PromoCode, order.PromoCodeDiscount, order.Total,
		order.Type, order.Status, order.ShippingAddress, order.CourierID, order.PaymentID, order.PaymentOrderID,
		order.ShipmentID, order.CourierOrderID, order.AWBCode, order.CancellationReason,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if violatedConstraint(err) == "orders_payment_id_key" {
			return model.ErrPaymentSessionConsumed
		}
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, position, product_id, product_name, quantity, price,
			variant_label, variant_value, length, breadth, height)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	batch := &pgx.Batch{}
	for i, item := range items {
		batch.Queue(query,
			item.ID, item.OrderID, i, item.ProductID, item.ProductName, item.Quantity, item.Price,
			item.Variant.Label, item.Variant.Value,
			item.Dimensions.Length, item.Dimensions.Breadth, item.Dimensions.Height,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		_, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_id", items[i].ProductID).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// GetByID retrieves an order by its ID along with its items.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getByID(ctx, r.pool, id, false)
}

func (r *orderRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	return r.getByID(ctx, tx, id, true)
}

func (r *orderRepository) getByID(ctx context.Context, q Querier, id uuid.UUID, forUpdate bool) (*model.Order, error) {
	query := lockClause(`SELECT `+orderColumns+` FROM orders WHERE id = $1`, forUpdate)

	order, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	if err := r.loadItems(ctx, q, []*model.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	var orders []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if err := r.loadItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}

	out := make([]model.Order, len(orders))
	for i, o := range orders {
		out[i] = *o
	}
	return out, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus) error {
	tag, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update order status")
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) Cancel(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, cancellation_reason = $3, updated_at = NOW()
		WHERE id = $1
	`, id, model.OrderStatusCancelled, reason)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to cancel order")
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) SetShipment(ctx context.Context, id uuid.UUID, shipmentID, courierOrderID, awb *string) (_ model.OrderStatus, err error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	var (
		status model.OrderStatus
		reason *string
	)
	err = tx.QueryRow(ctx, `
		UPDATE orders SET
			shipment_id = COALESCE($2, shipment_id),
			courier_order_id = COALESCE($3, courier_order_id),
			awb_code = COALESCE($4, awb_code),
			updated_at = NOW()
		WHERE id = $1
		RETURNING status, cancellation_reason
	`, id, shipmentID, courierOrderID, awb).Scan(&status, &reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.ErrOrderNotFound
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to record shipment")
		return "", fmt.Errorf("failed to record shipment: %w", err)
	}

	// A cancellation that committed before the courier order existed queued nothing.
	if courierOrderID != nil && status == model.OrderStatusCancelled {
		_, err = tx.Exec(ctx, `
			INSERT INTO shipment_jobs (id, order_id, kind, reason, attempts, next_attempt_at, status)
			VALUES ($1, $2, $3, $4, 0, NOW(), $5)
		`, uuid.New(), id, model.ShipmentJobCancel, reason, model.ShipmentJobPending)
		if err != nil {
			r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to enqueue courier cancellation")
			return "", fmt.Errorf("failed to enqueue courier cancellation: %w", err)
		}
		r.logger.Info().Str("order_id", id.String()).Msg("order cancelled during registration, courier cancellation queued")
	}

	if err = tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to commit shipment")
		return "", fmt.Errorf("failed to commit shipment: %w", err)
	}
	return status, nil
}

func (r *orderRepository) loadItems(ctx context.Context, q Querier, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*model.Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	itemsQuery := `
		SELECT id, order_id, product_id, product_name, quantity, price,
			variant_label, variant_value, length, breadth, height
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`

	rows, err := q.Query(ctx, itemsQuery, ids)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query order items")
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price,
			&item.Variant.Label, &item.Variant.Value,
			&item.Dimensions.Length, &item.Dimensions.Breadth, &item.Dimensions.Height,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return fmt.Errorf("error iterating order items: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Subtotal, &o.DeliveryRate, &o.FreeShipping, &o.PromoCodeID, &o.PromoCode,
		&o.PromoCodeDiscount, &o.Total, &o.Type, &o.Status, &o.ShippingAddress, &o.CourierID, &o.PaymentID,
		&o.PaymentOrderID, &o.ShipmentID, &o.CourierOrderID, &o.AWBCode, &o.CancellationReason,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
