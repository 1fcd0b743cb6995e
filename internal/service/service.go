package service

import (
	"context"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// ProductService prices lines against the live catalogue.
type ProductService interface {
	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// PriceLines re-derives every line's unit price from the catalogue.
	// It returns the repriced lines, the products keyed by ID and the lines whose price changed.
	PriceLines(ctx context.Context, q repository.Querier, lines []model.CartLine) (*PricedLines, error)

	// ResolveDirect turns an ad-hoc line into a priced cart line.
	ResolveDirect(ctx context.Context, q repository.Querier, item model.DirectLine) (*PricedLines, error)
}

// CheckoutService quotes, prices and finalizes orders.
type CheckoutService interface {
	// QuoteDelivery returns the cheapest courier option for the owner's cart.
	QuoteDelivery(ctx context.Context, owner model.CartOwner, req model.DeliveryQuoteRequest) (*model.DeliveryQuote, error)

	// QuoteDirectDelivery returns the cheapest courier option for a single ad-hoc line.
	QuoteDirectDelivery(ctx context.Context, req model.DirectDeliveryQuoteRequest) (*model.DeliveryQuote, error)

	// ApplyPromo evaluates code against the owner's cart without consuming a use.
	ApplyPromo(ctx context.Context, userID string, owner model.CartOwner, code string) (*model.PromoResult, error)

	// CreatePaymentSession authorises the payable amount of the user's cart with the gateway.
	CreatePaymentSession(ctx context.Context, userID string, req model.CheckoutRequest) (*model.PaymentSessionResponse, error)

	// CreateDirectPaymentSession authorises the payable amount of a single ad-hoc line.
	CreateDirectPaymentSession(ctx context.Context, userID string, req model.DirectCheckoutRequest) (*model.PaymentSessionResponse, error)

	// ConfirmPrepaid verifies the gateway signature and finalizes the user's cart.
	ConfirmPrepaid(ctx context.Context, userID string, req model.ConfirmRequest) (*model.Order, error)

	// ConfirmDirectPrepaid verifies the gateway signature and finalizes a direct order.
	ConfirmDirectPrepaid(ctx context.Context, userID string, req model.DirectConfirmRequest) (*model.Order, error)

	// PlaceCOD finalizes the user's cart as a cash-on-delivery order.
	PlaceCOD(ctx context.Context, userID string, req model.CheckoutRequest) (*model.Order, error)

	// PlaceDirectCOD finalizes a single ad-hoc line as a cash-on-delivery order.
	PlaceDirectCOD(ctx context.Context, userID string, req model.DirectCheckoutRequest) (*model.Order, error)
}

// OrderService defines operations for order management.
type OrderService interface {
	// GetByID retrieves an order by its ID with all items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetForUser retrieves an order only if it belongs to userID.
	GetForUser(ctx context.Context, userID string, id uuid.UUID) (*model.Order, error)

	// ListForUser returns the user's order history, newest first.
	ListForUser(ctx context.Context, userID string) ([]model.Order, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Order, error)
}

// PromoService manages promo code definitions.
type PromoService interface {
	List(ctx context.Context, activeOnly bool) ([]model.PromoCode, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error)
	Create(ctx context.Context, p *model.PromoCode) (*model.PromoCode, error)
	Update(ctx context.Context, id uuid.UUID, p *model.PromoCode) (*model.PromoCode, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}
