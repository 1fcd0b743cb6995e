package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/promo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const promoColumns = `
	id, code, description, mode, value, max_discount, bundle_min_items, bundle_price,
	minimum_order, max_uses, used_count, one_time_use_per_user, active, expiry_date,
	created_at, updated_at`

type promoRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPromoRepository creates a new PostgreSQL-backed promo repository.
func NewPromoRepository(pool *pgxpool.Pool, logger zerolog.Logger) PromoRepository {
	return &promoRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "promo").Logger(),
	}
}

// PromoStore is the read/deactivate view the promo evaluator works against.
type PromoStore struct {
	q         Querier
	forUpdate bool
	repo      *promoRepository
}

func (r *promoRepository) Store() promo.Store {
	return &PromoStore{q: r.pool, repo: r}
}

func (r *promoRepository) TxStore(tx pgx.Tx) promo.Store {
	return &PromoStore{q: tx, forUpdate: true, repo: r}
}

// FindByCode returns the promo with the given normalised code, or nil.
func (s *PromoStore) FindByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	query := lockClause(`SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, s.forUpdate)
	promo, err := s.repo.scanOne(ctx, s.q, query, code)
	if err != nil || promo == nil {
		return promo, err
	}
	if err := s.repo.loadEligible(ctx, s.q, []*model.PromoCode{promo}); err != nil {
		return nil, err
	}
	return promo, nil
}

// Deactivate persists active=false.
func (s *PromoStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := s.q.Exec(ctx, `UPDATE promo_codes SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		s.repo.logger.Error().Err(err).Str("promo_id", id.String()).Msg("failed to deactivate promo")
		return fmt.Errorf("failed to deactivate promo: %w", err)
	}
	s.repo.logger.Info().Str("promo_id", id.String()).Msg("expired promo deactivated")
	return nil
}

// HasRedeemed reports whether any order by userID references promoID.
func (s *PromoStore) HasRedeemed(ctx context.Context, userID string, promoID uuid.UUID) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE user_id = $1 AND promo_code_id = $2)`,
		userID, promoID,
	).Scan(&exists)
	if err != nil {
		s.repo.logger.Error().Err(err).Str("user_id", userID).Msg("failed to check promo redemption")
		return false, fmt.Errorf("failed to check promo redemption: %w", err)
	}
	return exists, nil
}

// IncrementUsage consumes one use of the promo if the cap allows it.
func (r *promoRepository) IncrementUsage(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE promo_codes
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
	`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("promo_id", id.String()).Msg("failed to increment promo usage")
		return fmt.Errorf("failed to increment promo usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUsageLimitReached
	}
	return nil
}

func (r *promoRepository) DeactivateExpired(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE promo_codes SET active = FALSE, updated_at = NOW()
		WHERE code = $1 AND active AND expiry_date < NOW()
	`, code)
	if err != nil {
		r.logger.Error().Err(err).Str("code", code).Msg("failed to deactivate expired promo")
		return fmt.Errorf("failed to deactivate expired promo: %w", err)
	}
	return nil
}

func (r *promoRepository) List(ctx context.Context, activeOnly bool) ([]model.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes`
	if activeOnly {
		query += ` WHERE active AND expiry_date >= NOW()`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query promos")
		return nil, fmt.Errorf("failed to query promos: %w", err)
	}
	defer rows.Close()

	var promos []*model.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan promo row")
			return nil, fmt.Errorf("failed to scan promo: %w", err)
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating promos: %w", err)
	}
	rows.Close()

	if err := r.loadEligible(ctx, r.pool, promos); err != nil {
		return nil, err
	}

	out := make([]model.PromoCode, len(promos))
	for i, p := range promos {
		out[i] = *p
	}
	return out, nil
}

func (r *promoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error) {
	promo, err := r.scanOne(ctx, r.pool, `SELECT `+promoColumns+` FROM promo_codes WHERE id = $1`, id)
	if err != nil || promo == nil {
		return promo, err
	}
	if err := r.loadEligible(ctx, r.pool, []*model.PromoCode{promo}); err != nil {
		return nil, err
	}
	return promo, nil
}

func (r *promoRepository) Create(ctx context.Context, promo *model.PromoCode) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO promo_codes (`+promoColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`, promoArgs(promo)...)
		if err != nil {
			if isUniqueViolation(err) {
				return model.ErrPromoExists
			}
			r.logger.Error().Err(err).Str("code", promo.Code).Msg("failed to create promo")
			return fmt.Errorf("failed to create promo: %w", err)
		}
		return r.replaceEligible(ctx, tx, promo)
	})
}

func (r *promoRepository) Update(ctx context.Context, promo *model.PromoCode) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE promo_codes SET
				code = $2, description = $3, mode = $4, value = $5, max_discount = $6,
				bundle_min_items = $7, bundle_price = $8, minimum_order = $9, max_uses = $10,
				one_time_use_per_user = $11, active = $12, expiry_date = $13, updated_at = $14
			WHERE id = $1
		`,
			promo.ID, promo.Code, promo.Description, promo.Mode,
			nullDecimal(promo.Value), nullDecimal(promo.MaxDiscount),
			bundleMinItems(promo), nullDecimal(bundlePrice(promo)),
			nullDecimal(promo.MinimumOrder), promo.MaxUses,
			promo.OneTimeUsePerUser, promo.Active, promo.ExpiryDate, promo.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return model.ErrPromoExists
			}
			r.logger.Error().Err(err).Str("promo_id", promo.ID.String()).Msg("failed to update promo")
			return fmt.Errorf("failed to update promo: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrPromoNotFound
		}
		return r.replaceEligible(ctx, tx, promo)
	})
}

func (r *promoRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE promo_codes SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		r.logger.Error().Err(err).Str("promo_id", id.String()).Msg("failed to toggle promo")
		return fmt.Errorf("failed to toggle promo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPromoNotFound
	}
	return nil
}

func (r *promoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("promo_id", id.String()).Msg("failed to delete promo")
		return fmt.Errorf("failed to delete promo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPromoNotFound
	}
	return nil
}

// Upsert writes a seeded definition. used_count, created_at and the active flag survive
// re-seeding; only a newly inserted row takes the seeded active value.
func (r *promoRepository) Upsert(ctx context.Context, promo *model.PromoCode) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO promo_codes (`+promoColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (code) DO UPDATE SET
				description = EXCLUDED.description,
				mode = EXCLUDED.mode,
				value = EXCLUDED.value,
				max_discount = EXCLUDED.max_discount,
				bundle_min_items = EXCLUDED.bundle_min_items,
				bundle_price = EXCLUDED.bundle_price,
				minimum_order = EXCLUDED.minimum_order,
				max_uses = EXCLUDED.max_uses,
				one_time_use_per_user = EXCLUDED.one_time_use_per_user,
				expiry_date = EXCLUDED.expiry_date,
				updated_at = EXCLUDED.updated_at
			RETURNING id, active
		`, promoArgs(promo)...).Scan(&promo.ID, &promo.Active)
		if err != nil {
			r.logger.Error().Err(err).Str("code", promo.Code).Msg("failed to upsert promo")
			return fmt.Errorf("failed to upsert promo: %w", err)
		}
		return r.replaceEligible(ctx, tx, promo)
	})
}

func (r *promoRepository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *promoRepository) replaceEligible(ctx context.Context, tx pgx.Tx, promo *model.PromoCode) error {
	if _, err := tx.Exec(ctx, `DELETE FROM promo_eligible_products WHERE promo_id = $1`, promo.ID); err != nil {
		return fmt.Errorf("failed to clear eligible products: %w", err)
	}
	if len(promo.EligibleProducts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, productID := range promo.EligibleProducts {
		batch.Queue(`INSERT INTO promo_eligible_products (promo_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			promo.ID, productID)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range promo.EligibleProducts {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().Err(err).Str("promo_id", promo.ID.String()).Msg("failed to insert eligible product")
			return fmt.Errorf("failed to insert eligible product: %w", err)
		}
	}
	return nil
}

func (r *promoRepository) loadEligible(ctx context.Context, q Querier, promos []*model.PromoCode) error {
	if len(promos) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*model.PromoCode, len(promos))
	ids := make([]uuid.UUID, 0, len(promos))
	for _, p := range promos {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT promo_id, product_id FROM promo_eligible_products
		WHERE promo_id = ANY($1)
		ORDER BY product_id
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query eligible products")
		return fmt.Errorf("failed to query eligible products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var promoID uuid.UUID
		var productID string
		if err := rows.Scan(&promoID, &productID); err != nil {
			return fmt.Errorf("failed to scan eligible product: %w", err)
		}
		if p, ok := byID[promoID]; ok {
			p.EligibleProducts = append(p.EligibleProducts, productID)
		}
	}
	return rows.Err()
}

func (r *promoRepository) scanOne(ctx context.Context, q Querier, query string, arg any) (*model.PromoCode, error) {
	promo, err := scanPromo(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to query promo")
		return nil, fmt.Errorf("failed to query promo: %w", err)
	}
	return promo, nil
}

func scanPromo(row pgx.Row) (*model.PromoCode, error) {
	var (
		p                                       model.PromoCode
		value, maxDiscount, bundlePrice, minimum decimal.NullDecimal
		bundleMin                               *int
		expiry                                  time.Time
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Description, &p.Mode, &value, &maxDiscount, &bundleMin, &bundlePrice,
		&minimum, &p.MaxUses, &p.UsedCount, &p.OneTimeUsePerUser, &p.Active, &expiry,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Value = decimalPtr(value)
	p.MaxDiscount = decimalPtr(maxDiscount)
	p.MinimumOrder = decimalPtr(minimum)
	p.ExpiryDate = expiry
	if bundleMin != nil && bundlePrice.Valid {
		p.Bundle = &model.Bundle{MinItems: *bundleMin, BundlePrice: bundlePrice.Decimal}
	}
	return &p, nil
}

func promoArgs(p *model.PromoCode) []any {
	return []any{
		p.ID, p.Code, p.Description, p.Mode,
		nullDecimal(p.Value), nullDecimal(p.MaxDiscount),
		bundleMinItems(p), nullDecimal(bundlePrice(p)),
		nullDecimal(p.MinimumOrder), p.MaxUses, p.UsedCount,
		p.OneTimeUsePerUser, p.Active, p.ExpiryDate, p.CreatedAt, p.UpdatedAt,
	}
}

func bundleMinItems(p *model.PromoCode) *int {
	if p.Bundle == nil {
		return nil
	}
	n := p.Bundle.MinItems
	return &n
}

func bundlePrice(p *model.PromoCode) *decimal.Decimal {
	if p.Bundle == nil {
		return nil
	}
	d := p.Bundle.BundlePrice
	return &d
}
