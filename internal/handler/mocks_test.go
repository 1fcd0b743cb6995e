package handler

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCheckoutService is a mock implementation of CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) QuoteDelivery(ctx context.Context, owner model.CartOwner, req model.DeliveryQuoteRequest) (*model.DeliveryQuote, error) {
	args := m.Called(ctx, owner, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeliveryQuote), args.Error(1)
}

func (m *MockCheckoutService) QuoteDirectDelivery(ctx context.Context, req model.DirectDeliveryQuoteRequest) (*model.DeliveryQuote, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeliveryQuote), args.Error(1)
}

func (m *MockCheckoutService) ApplyPromo(ctx context.Context, userID string, owner model.CartOwner, code string) (*model.PromoResult, error) {
	args := m.Called(ctx, userID, owner, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoResult), args.Error(1)
}

func (m *MockCheckoutService) CreatePaymentSession(ctx context.Context, userID string, req model.CheckoutRequest) (*model.PaymentSessionResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentSessionResponse), args.Error(1)
}

func (m *MockCheckoutService) CreateDirectPaymentSession(ctx context.Context, userID string, req model.DirectCheckoutRequest) (*model.PaymentSessionResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentSessionResponse), args.Error(1)
}

func (m *MockCheckoutService) ConfirmPrepaid(ctx context.Context, userID string, req model.ConfirmRequest) (*model.Order, error) {
	return m.order(m.Called(ctx, userID, req))
}

func (m *MockCheckoutService) ConfirmDirectPrepaid(ctx context.Context, userID string, req model.DirectConfirmRequest) (*model.Order, error) {
	return m.order(m.Called(ctx, userID, req))
}

func (m *MockCheckoutService) PlaceCOD(ctx context.Context, userID string, req model.CheckoutRequest) (*model.Order, error) {
	return m.order(m.Called(ctx, userID, req))
}

func (m *MockCheckoutService) PlaceDirectCOD(ctx context.Context, userID string, req model.DirectCheckoutRequest) (*model.Order, error) {
	return m.order(m.Called(ctx, userID, req))
}

func (m *MockCheckoutService) order(args mock.Arguments) (*model.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetForUser(ctx context.Context, userID string, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ListForUser(ctx context.Context, userID string) ([]model.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Order, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockPromoService is a mock implementation of PromoService.
type MockPromoService struct {
	mock.Mock
}

func (m *MockPromoService) List(ctx context.Context, activeOnly bool) ([]model.PromoCode, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PromoCode), args.Error(1)
}

func (m *MockPromoService) GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoService) Create(ctx context.Context, p *model.PromoCode) (*model.PromoCode, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoService) Update(ctx context.Context, id uuid.UUID, p *model.PromoCode) (*model.PromoCode, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *MockPromoService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}
