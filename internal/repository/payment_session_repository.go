package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type paymentSessionRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentSessionRepository creates a new PostgreSQL-backed payment session repository.
func NewPaymentSessionRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentSessionRepository {
	return &paymentSessionRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment_session").Logger(),
	}
}

func (r *paymentSessionRepository) Create(ctx context.Context, s *model.PaymentSession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payment_sessions (gateway_order_id, user_id, amount, amount_minor, currency,
			receipt, delivery_rate, promo_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.GatewayOrderID, s.UserID, s.Amount, s.AmountMinor, s.Currency,
		s.Receipt, s.DeliveryRate, s.PromoCode, s.Status, s.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("gateway_order_id", s.GatewayOrderID).Msg("failed to create payment session")
		return fmt.Errorf("failed to create payment session: %w", err)
	}
	return nil
}

func (r *paymentSessionRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, gatewayOrderID string) (*model.PaymentSession, error) {
	var s model.PaymentSession
	err := tx.QueryRow(ctx, `
		SELECT gateway_order_id, user_id, amount, amount_minor, currency, receipt,
			delivery_rate, promo_code, status, created_at
		FROM payment_sessions
		WHERE gateway_order_id = $1
		FOR UPDATE
	`, gatewayOrderID).Scan(
		&s.GatewayOrderID, &s.UserID, &s.Amount, &s.AmountMinor, &s.Currency, &s.Receipt,
		&s.DeliveryRate, &s.PromoCode, &s.Status, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("gateway_order_id", gatewayOrderID).Msg("failed to query payment session")
		return nil, fmt.Errorf("failed to query payment session: %w", err)
	}
	return &s, nil
}

func (r *paymentSessionRepository) MarkConsumed(ctx context.Context, tx pgx.Tx, gatewayOrderID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE payment_sessions SET status = $2, consumed_at = NOW()
		WHERE gateway_order_id = $1 AND status = $3
	`, gatewayOrderID, model.PaymentSessionConsumed, model.PaymentSessionCreated)
	if err != nil {
		r.logger.Error().Err(err).Str("gateway_order_id", gatewayOrderID).Msg("failed to consume payment session")
		return fmt.Errorf("failed to consume payment session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPaymentSessionConsumed
	}
	return nil
}
