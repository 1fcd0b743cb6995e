// Package promo evaluates promo codes against a cart and loads seeded promo definitions.
package promo

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// Store is the persistence the evaluator reads promo state from.
type Store interface {
	// FindByCode returns the promo stored under the normalised code, or nil.
	FindByCode(ctx context.Context, code string) (*model.PromoCode, error)

	// Deactivate persists active=false for an expired promo.
	Deactivate(ctx context.Context, id uuid.UUID) error

	// HasRedeemed reports whether the user already has an order that used the promo.
	HasRedeemed(ctx context.Context, userID string, promoID uuid.UUID) (bool, error)
}

// Request is one evaluation of a code against resolved cart lines.
type Request struct {
	Code   string
	UserID string
	Lines  []model.CartLine
}

// Loader defines the interface for loading promo seed files.
type Loader interface {
	// Load reads a gzipped JSON-lines file of promo definitions.
	Load(ctx context.Context, path string) ([]model.PromoCode, error)
}

// Writer persists seeded definitions.
type Writer interface {
	Upsert(ctx context.Context, promo *model.PromoCode) error
}
