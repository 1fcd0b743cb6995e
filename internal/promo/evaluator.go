package promo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	tracer  = otel.Tracer("storefront/internal/promo")
	hundred = decimal.NewFromInt(100)
)

// Evaluator decides whether a promo code applies to a cart and computes its discount.
// It never consumes a use; that happens only when an order is finalized.
type Evaluator struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator creates an evaluator reading from store.
func NewEvaluator(store Store, logger zerolog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:  store,
		now:    time.Now,
		logger: logger.With().Str("component", "promo-evaluator").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithStore returns a copy of the evaluator bound to another store, such as one scoped to a transaction.
func (e *Evaluator) WithStore(store Store) *Evaluator {
	c := *e
	c.store = store
	return &c
}

// Evaluate runs every applicability check in order and returns the discount for the cart.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (result *model.PromoResult, err error) {
	code := model.NormalizeCode(req.Code)

	ctx, span := tracer.Start(ctx, "promo.Evaluate")
	span.SetAttributes(attribute.String("promo.code", code), attribute.Int("cart.lines", len(req.Lines)))
	defer func() {
		outcome := "applied"
		if err != nil {
			outcome = "error"
			if de, ok := model.AsDomainError(err); ok {
				outcome = strings.ToLower(de.Code)
			} else {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.SetAttributes(attribute.String("promo.outcome", outcome))
		metrics.PromoEvaluations.WithLabelValues(outcome).Inc()
		span.End()
	}()

	if code == "" {
		return nil, model.ErrInvalidRequest.WithMessage("promo code is required")
	}

	promo, err := e.store.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up promo: %w", err)
	}
	if promo == nil || !promo.Active {
		e.logger.Debug().Str("code", code).Msg("promo not found or inactive")
		return nil, model.ErrPromoNotFound
	}

	if promo.Expired(e.now()) {
		if derr := e.store.Deactivate(ctx, promo.ID); derr != nil {
			e.logger.Error().Err(derr).Str("code", code).Msg("failed to deactivate expired promo")
		}
		return nil, model.ErrPromoExpired
	}

	subtotal := model.Subtotal(req.Lines)

	if promo.MinimumOrder != nil && subtotal.LessThan(*promo.MinimumOrder) {
		return nil, model.ErrMinimumOrderNotMet.WithMessage(
			fmt.Sprintf("Minimum order value of %s required", promo.MinimumOrder.StringFixed(2)))
	}

	if promo.MaxUses != nil && promo.UsedCount >= *promo.MaxUses {
		return nil, model.ErrUsageLimitReached
	}

	if promo.OneTimeUsePerUser {
		if req.UserID == "" {
			return nil, model.ErrInvalidRequest.WithMessage("Sign in to use this promo code")
		}
		used, err := e.store.HasRedeemed(ctx, req.UserID, promo.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check promo usage: %w", err)
		}
		if used {
			return nil, model.ErrPromoAlreadyUsed
		}
	}

	discount, err := Discount(promo, req.Lines, subtotal)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("code", code).
		Str("subtotal", subtotal.String()).
		Str("discount", discount.String()).
		Msg("promo applied")

	return &model.PromoResult{
		DiscountAmount: discount,
		FinalAmount:    decimal.Max(subtotal.Sub(discount), decimal.Zero),
		PromoCode:      promo.Code,
		PromoCodeID:    promo.ID,
	}, nil
}

// Discount computes the mode-specific discount for lines whose total is subtotal.
func Discount(promo *model.PromoCode, lines []model.CartLine, subtotal model.Money) (model.Money, error) {
	switch promo.Mode {
	case model.PromoModePercent:
		if promo.Value == nil {
			return decimal.Zero, nil
		}
		discount := subtotal.Mul(*promo.Value).Div(hundred).Floor()
		if promo.MaxDiscount != nil && discount.GreaterThan(*promo.MaxDiscount) {
			discount = *promo.MaxDiscount
		}
		return discount, nil

	case model.PromoModeFlat:
		if promo.Value == nil {
			return decimal.Zero, nil
		}
		return decimal.Min(*promo.Value, subtotal), nil

	case model.PromoModeBundle:
		if promo.Bundle == nil {
			return decimal.Zero, model.ErrBundleNotMet
		}
		eligible := make(map[string]struct{}, len(promo.EligibleProducts))
		for _, id := range promo.EligibleProducts {
			eligible[id] = struct{}{}
		}

		count := 0
		eligibleSubtotal := decimal.Zero
		for _, l := range lines {
			if _, ok := eligible[l.ProductID]; !ok {
				continue
			}
			count += l.Quantity
			eligibleSubtotal = eligibleSubtotal.Add(l.LineTotal())
		}

		if count < promo.Bundle.MinItems {
			return decimal.Zero, model.ErrBundleNotMet.WithMessage(
				fmt.Sprintf("Add %d more eligible item(s) to use this bundle", promo.Bundle.MinItems-count))
		}
		return decimal.Max(eligibleSubtotal.Sub(promo.Bundle.BundlePrice), decimal.Zero), nil
	}

	return decimal.Zero, model.ErrInvalidRequest.WithMessage("unknown promo mode " + string(promo.Mode))
}
