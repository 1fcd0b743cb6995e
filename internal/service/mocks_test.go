package service

import (
	"context"
	"sync/atomic"
	"time"

	"storefront/internal/model"
	"storefront/internal/payment"
	"storefront/internal/promo"
	"storefront/internal/repository"
	"storefront/internal/shipping"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetByID(ctx context.Context, q repository.Querier, id string) (*model.Product, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, q repository.Querier, ids []string) (map[string]*model.Product, error) {
	args := m.Called(ctx, q, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*model.Product), args.Error(1)
}

func (m *MockProductRepository) DecrementStock(ctx context.Context, tx pgx.Tx, id string, qty int) error {
	return m.Called(ctx, tx, id, qty).Error(0)
}

// MockCartRepository is a mock implementation of CartRepository.
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) GetByOwner(ctx context.Context, owner model.CartOwner) (*model.Cart, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartRepository) GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, owner model.CartOwner) (*model.Cart, error) {
	args := m.Called(ctx, tx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartRepository) UpdateLinePrices(ctx context.Context, q repository.Querier, lines []model.CartLine) error {
	return m.Called(ctx, q, lines).Error(0)
}

func (m *MockCartRepository) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

// MockPromoStore is a mock implementation of promo.Store.
type MockPromoStore struct {
	mock.Mock
}

func (m *MockPromoStore) FindByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPromoStore) HasRedeemed(ctx context.Context, userID string, promoID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, promoID)
	return args.Bool(0), args.Error(1)
}

// MockPromoRepository is a mock implementation of PromoRepository.
type MockPromoRepository struct {
	mock.Mock
}

func (m *MockPromoRepository) Store() promo.Store {
	return m.Called().Get(0).(promo.Store)
}

func (m *MockPromoRepository) TxStore(tx pgx.Tx) promo.Store {
	return m.Called(tx).Get(0).(promo.Store)
}

func (m *MockPromoRepository) IncrementUsage(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockPromoRepository) DeactivateExpired(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

func (m *MockPromoRepository) List(ctx context.Context, activeOnly bool) ([]model.PromoCode, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PromoCode), args.Error(1)
}

func (m *MockPromoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoRepository) Create(ctx context.Context, p *model.PromoCode) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPromoRepository) Update(ctx context.Context, p *model.PromoCode) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPromoRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *MockPromoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPromoRepository) Upsert(ctx context.Context, p *model.PromoCode) error {
	return m.Called(ctx, p).Error(0)
}

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	// Return a MockTx interface value, not a pointer
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *MockOrderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	return m.Called(ctx, tx, items).Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus) error {
	return m.Called(ctx, tx, id, status).Error(0)
}

func (m *MockOrderRepository) Cancel(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) error {
	return m.Called(ctx, tx, id, reason).Error(0)
}

func (m *MockOrderRepository) SetShipment(ctx context.Context, id uuid.UUID, shipmentID, courierOrderID, awb *string) (model.OrderStatus, error) {
	args := m.Called(ctx, id, shipmentID, courierOrderID, awb)
	return args.Get(0).(model.OrderStatus), args.Error(1)
}

// MockPaymentSessionRepository is a mock implementation of PaymentSessionRepository.
type MockPaymentSessionRepository struct {
	mock.Mock
}

func (m *MockPaymentSessionRepository) Create(ctx context.Context, session *model.PaymentSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockPaymentSessionRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, gatewayOrderID string) (*model.PaymentSession, error) {
	args := m.Called(ctx, tx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentSession), args.Error(1)
}

func (m *MockPaymentSessionRepository) MarkConsumed(ctx context.Context, tx pgx.Tx, gatewayOrderID string) error {
	return m.Called(ctx, tx, gatewayOrderID).Error(0)
}

// MockShipmentJobRepository is a mock implementation of ShipmentJobRepository.
type MockShipmentJobRepository struct {
	mock.Mock
}

func (m *MockShipmentJobRepository) Enqueue(ctx context.Context, tx pgx.Tx, job *model.ShipmentJob) error {
	return m.Called(ctx, tx, job).Error(0)
}

func (m *MockShipmentJobRepository) ClaimDue(ctx context.Context, limit int, leaseUntil time.Time) ([]model.ShipmentJob, error) {
	args := m.Called(ctx, limit, leaseUntil)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ShipmentJob), args.Error(1)
}

func (m *MockShipmentJobRepository) Complete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockShipmentJobRepository) Fail(ctx context.Context, id uuid.UUID, lastErr string, nextAttempt time.Time, terminal bool) error {
	return m.Called(ctx, id, lastErr, nextAttempt, terminal).Error(0)
}

// MockGateway is a mock implementation of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

// MockRateResolver is a mock implementation of shipping.RateResolver.
type MockRateResolver struct {
	mock.Mock
}

func (m *MockRateResolver) Quote(ctx context.Context, req shipping.QuoteRequest) ([]shipping.RateOption, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shipping.RateOption), args.Error(1)
}

type countingNotifier struct {
	calls atomic.Int32
}

func (n *countingNotifier) Notify() { n.calls.Add(1) }

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.committed = true
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.rolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }
