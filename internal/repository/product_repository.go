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

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, q Querier, id string) (*model.Product, error) {
	products, err := r.GetByIDs(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	p, ok := products[id]
	if !ok {
		r.logger.Debug().Str("product_id", id).Msg("product not found")
		return nil, nil
	}
	return p, nil
}

// GetByIDs retrieves multiple products by their IDs.
func (r *productRepository) GetByIDs(ctx context.Context, q Querier, ids []string) (map[string]*model.Product, error) {
	products := make(map[string]*model.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}
	if q == nil {
		q = r.pool
	}

	query := `
		SELECT id, name, stock, created_at
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query products by IDs")
		return nil, fmt.Errorf("failed to query products by IDs: %w", err)
	}
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Stock, &p.CreatedAt); err != nil {
			rows.Close()
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = &p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	if len(products) == 0 {
		return products, nil
	}

	if err := r.loadVariants(ctx, q, ids, products); err != nil {
		return nil, err
	}
	if err := r.loadDimensions(ctx, q, ids, products); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepository) loadVariants(ctx context.Context, q Querier, ids []string, products map[string]*model.Product) error {
	query := `
		SELECT product_id, label, value, price
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, position
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query product variants")
		return fmt.Errorf("failed to query product variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var v model.ProductVariant
		if err := rows.Scan(&productID, &v.Label, &v.Value, &v.Price); err != nil {
			return fmt.Errorf("failed to scan product variant: %w", err)
		}
		if p, ok := products[productID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	return rows.Err()
}

func (r *productRepository) loadDimensions(ctx context.Context, q Querier, ids []string, products map[string]*model.Product) error {
	query := `
		SELECT product_id, length, breadth, height
		FROM product_dimensions
		WHERE product_id = ANY($1)
		ORDER BY product_id, position
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query product dimensions")
		return fmt.Errorf("failed to query product dimensions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var d model.Dimensions
		if err := rows.Scan(&productID, &d.Length, &d.Breadth, &d.Height); err != nil {
			return fmt.Errorf("failed to scan product dimensions: %w", err)
		}
		if p, ok := products[productID]; ok {
			p.Dimensions = append(p.Dimensions, d)
		}
	}
	return rows.Err()
}

// DecrementStock atomically reserves qty units.
func (r *productRepository) DecrementStock(ctx context.Context, tx pgx.Tx, id string, qty int) error {
	if qty < 1 {
		return model.ErrInvalidQuantity
	}

	query := `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`

	var remaining int
	err := tx.QueryRow(ctx, query, id, qty).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn().Str("product_id", id).Int("quantity", qty).Msg("insufficient stock")
			return model.ErrInsufficientStock.WithMessage(fmt.Sprintf("Insufficient stock for product %s", id))
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to decrement stock")
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	r.logger.Debug().
		Str("product_id", id).
		Int("quantity", qty).
		Int("remaining", remaining).
		Msg("stock reserved")

	return nil
}
