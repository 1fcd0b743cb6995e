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

type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

func (r *cartRepository) GetByOwner(ctx context.Context, owner model.CartOwner) (*model.Cart, error) {
	return r.getByOwner(ctx, r.pool, owner, false)
}

func (r *cartRepository) GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, owner model.CartOwner) (*model.Cart, error) {
	return r.getByOwner(ctx, tx, owner, true)
}

func (r *cartRepository) getByOwner(ctx context.Context, q Querier, owner model.CartOwner, forUpdate bool) (*model.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, updated_at
		FROM carts
		WHERE user_id IS NOT DISTINCT FROM NULLIF($1, '')
		  AND guest_token IS NOT DISTINCT FROM NULLIF($2, '')`

	cart := model.Cart{Owner: owner}
	err := q.QueryRow(ctx, lockClause(query, forUpdate), owner.UserID, owner.GuestToken).
		Scan(&cart.ID, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("user_id", owner.UserID).Bool("guest", owner.IsGuest()).Msg("cart not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("user_id", owner.UserID).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}

	linesQuery := `
		SELECT id, product_id, quantity, unit_price, variant_label, variant_value, length, breadth, height
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY created_at, id
	`

	rows, err := q.Query(ctx, linesQuery, cart.ID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to query cart lines")
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.CartLine
		err := rows.Scan(
			&l.ID, &l.ProductID, &l.Quantity, &l.UnitPrice,
			&l.Variant.Label, &l.Variant.Value,
			&l.Dimensions.Length, &l.Dimensions.Breadth, &l.Dimensions.Height,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart line row")
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, l)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart line rows")
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return &cart, nil
}

// UpdateLinePrices persists re-synced unit prices in one batch.
func (r *cartRepository) UpdateLinePrices(ctx context.Context, q Querier, lines []model.CartLine) error {
	if len(lines) == 0 {
		return nil
	}
	if q == nil {
		q = r.pool
	}

	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`UPDATE cart_lines SET unit_price = $2 WHERE id = $1`, l.ID, l.UnitPrice)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()

	for i := range lines {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().Err(err).Str("line_id", lines[i].ID.String()).Msg("failed to update cart line price")
			return fmt.Errorf("failed to update cart line price: %w", err)
		}
	}

	return nil
}

func (r *cartRepository) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id); err != nil {
		r.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to delete cart")
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	r.logger.Debug().Str("cart_id", id.String()).Msg("cart deleted")
	return nil
}
