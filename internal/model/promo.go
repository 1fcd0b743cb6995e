package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PromoMode selects the discount strategy of a promo code.
type PromoMode string

const (
	PromoModePercent PromoMode = "PERCENT"
	PromoModeFlat    PromoMode = "FLAT"
	PromoModeBundle  PromoMode = "BUNDLE"
)

// Bundle describes a BUNDLE promo: at least MinItems eligible units cost BundlePrice together.
type Bundle struct {
	MinItems    int   `json:"minItems"`
	BundlePrice Money `json:"bundlePrice"`
}

// PromoCode is a discount definition.
type PromoCode struct {
	ID                uuid.UUID `json:"id"`
	Code              string    `json:"code"`
	Description       string    `json:"description,omitempty"`
	Mode              PromoMode `json:"mode"`
	Value             *Money    `json:"value,omitempty"`
	MaxDiscount       *Money    `json:"maxDiscount,omitempty"`
	Bundle            *Bundle   `json:"bundle,omitempty"`
	EligibleProducts  []string  `json:"eligibleProducts,omitempty"`
	MinimumOrder      *Money    `json:"minimumOrder,omitempty"`
	MaxUses           *int      `json:"maxUses,omitempty"`
	UsedCount         int       `json:"usedCount"`
	OneTimeUsePerUser bool      `json:"oneTimeUsePerUser"`
	Active            bool      `json:"active"`
	ExpiryDate        time.Time `json:"expiryDate"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// NormalizeCode trims and uppercases a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Expired reports whether the promo has passed its expiry date.
func (p *PromoCode) Expired(now time.Time) bool {
	return p.ExpiryDate.Before(now)
}

// Validate checks that the definition is coherent for its mode.
func (p *PromoCode) Validate() error {
	if NormalizeCode(p.Code) == "" {
		return ErrInvalidRequest.WithMessage("promo code is required")
	}
	if p.ExpiryDate.IsZero() {
		return ErrInvalidRequest.WithMessage("expiry date is required")
	}
	if p.MaxUses != nil && *p.MaxUses < 0 {
		return ErrInvalidRequest.WithMessage("max uses cannot be negative")
	}
	if p.MinimumOrder != nil && p.MinimumOrder.IsNegative() {
		return ErrInvalidRequest.WithMessage("minimum order cannot be negative")
	}

	switch p.Mode {
	case PromoModePercent, PromoModeFlat:
		if p.Value == nil || !p.Value.IsPositive() {
			return ErrInvalidRequest.WithMessage("value must be positive for " + string(p.Mode) + " promos")
		}
		if p.Bundle != nil {
			return ErrInvalidRequest.WithMessage("bundle is only allowed for BUNDLE promos")
		}
		if p.Mode == PromoModePercent && p.Value.GreaterThan(hundred) {
			return ErrInvalidRequest.WithMessage("percent value cannot exceed 100")
		}
		if p.Mode == PromoModeFlat && p.MaxDiscount != nil {
			return ErrInvalidRequest.WithMessage("max discount is only allowed for PERCENT promos")
		}
	case PromoModeBundle:
		if p.Bundle == nil {
			return ErrInvalidRequest.WithMessage("bundle is required for BUNDLE promos")
		}
		if p.Value != nil || p.MaxDiscount != nil {
			return ErrInvalidRequest.WithMessage("value and max discount are not allowed for BUNDLE promos")
		}
		if p.Bundle.MinItems < 1 {
			return ErrInvalidRequest.WithMessage("bundle min items must be at least 1")
		}
		if p.Bundle.BundlePrice.IsNegative() {
			return ErrInvalidRequest.WithMessage("bundle price cannot be negative")
		}
		if len(p.EligibleProducts) == 0 {
			return ErrInvalidRequest.WithMessage("eligible products are required for BUNDLE promos")
		}
	default:
		return ErrInvalidRequest.WithMessage("mode must be PERCENT, FLAT or BUNDLE")
	}
	return nil
}
