package repository

import (
	"context"
	"time"

	"storefront/internal/model"
	"storefront/internal/promo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines the interface for catalogue reads and stock reservation.
type ProductRepository interface {
	// GetByID retrieves a single product with its price tiers and dimensions.
	// Returns nil when the product does not exist.
	GetByID(ctx context.Context, q Querier, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products keyed by ID.
	GetByIDs(ctx context.Context, q Querier, ids []string) (map[string]*model.Product, error)

	// DecrementStock reserves qty units. Returns model.ErrInsufficientStock when
	// fewer than qty units remain.
	DecrementStock(ctx context.Context, tx pgx.Tx, id string, qty int) error
}

// CartRepository defines the interface for cart data access.
type CartRepository interface {
	// GetByOwner retrieves the owner's cart with its lines. Returns nil when absent.
	GetByOwner(ctx context.Context, owner model.CartOwner) (*model.Cart, error)

	// GetByOwnerForUpdate is GetByOwner with the cart row locked for the transaction.
	GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, owner model.CartOwner) (*model.Cart, error)

	// UpdateLinePrices persists re-synced unit prices.
	UpdateLinePrices(ctx context.Context, q Querier, lines []model.CartLine) error

	// Delete removes the cart and its lines.
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// PromoRepository defines the interface for promo code persistence.
type PromoRepository interface {
	// Store returns a pool-backed view used for evaluation outside checkout.
	Store() promo.Store

	// TxStore returns a view bound to tx that locks the promo row it reads.
	TxStore(tx pgx.Tx) promo.Store

	// IncrementUsage consumes one use. Returns model.ErrUsageLimitReached when the cap is hit.
	IncrementUsage(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	// DeactivateExpired flips active=false on code if it has expired.
	DeactivateExpired(ctx context.Context, code string) error

	List(ctx context.Context, activeOnly bool) ([]model.PromoCode, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error)
	Create(ctx context.Context, promo *model.PromoCode) error
	Update(ctx context.Context, promo *model.PromoCode) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Upsert inserts or replaces a definition by code, preserving used_count and the active flag.
	Upsert(ctx context.Context, promo *model.PromoCode) error
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// GetByID retrieves an order by its ID along with its items. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetByIDForUpdate locks the order row for a status change.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// ListByUser returns the user's order history, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)

	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus) error
	Cancel(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) error

	// SetShipment records courier references and returns the order's status. Nil arguments
	// leave the stored value unchanged. Recording a courier order on an order that is already
	// cancelled queues a cancel job in the same transaction.
	SetShipment(ctx context.Context, id uuid.UUID, shipmentID, courierOrderID, awb *string) (model.OrderStatus, error)
}

// PaymentSessionRepository persists gateway authorisations.
type PaymentSessionRepository interface {
	Create(ctx context.Context, session *model.PaymentSession) error

	// GetForUpdate locks the session row. Returns nil when absent.
	GetForUpdate(ctx context.Context, tx pgx.Tx, gatewayOrderID string) (*model.PaymentSession, error)

	MarkConsumed(ctx context.Context, tx pgx.Tx, gatewayOrderID string) error
}

// ShipmentJobRepository is the shipment outbox.
type ShipmentJobRepository interface {
	Enqueue(ctx context.Context, tx pgx.Tx, job *model.ShipmentJob) error

	// ClaimDue leases up to limit due jobs until leaseUntil, skipping rows claimed by other workers.
	ClaimDue(ctx context.Context, limit int, leaseUntil time.Time) ([]model.ShipmentJob, error)

	Complete(ctx context.Context, id uuid.UUID) error

	// Fail records lastErr and either reschedules the job or marks it failed.
	Fail(ctx context.Context, id uuid.UUID, lastErr string, nextAttempt time.Time, terminal bool) error
}
