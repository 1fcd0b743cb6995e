package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) PriceLines(ctx context.Context, q repository.Querier, lines []model.CartLine) (*service.PricedLines, error) {
	args := m.Called(ctx, q, lines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PricedLines), args.Error(1)
}

func (m *MockProductService) ResolveDirect(ctx context.Context, q repository.Querier, item model.DirectLine) (*service.PricedLines, error) {
	args := m.Called(ctx, q, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PricedLines), args.Error(1)
}

func TestProductHandler_GetByID(t *testing.T) {
	logger := zerolog.Nop()

	testProduct := &model.Product{
		ID:    "almonds",
		Name:  "California Almonds",
		Stock: 10,
		Variants: []model.ProductVariant{
			{Label: "500g", Value: 0.5, Price: decimal.NewFromInt(300)},
		},
	}

	tests := []struct {
		name           string
		productID      string
		mockReturn     *model.Product
		mockError      error
		expectedStatus int
	}{
		{
			name:           "Success",
			productID:      "almonds",
			mockReturn:     testProduct,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Product not found",
			productID:      "P999",
			mockError:      model.ErrProductNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Service error",
			productID:      "almonds",
			mockError:      errors.New("database error"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			handler := NewProductHandler(mockService, logger)

			mockService.On("GetByID", mock.Anything, tt.productID).Return(tt.mockReturn, tt.mockError)

			w := serve("/api/products/{id}", http.MethodGet, "/api/products/"+tt.productID, nil, middleware.Identity{}, handler.GetByID)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var got model.Product
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, "almonds", got.ID)
			}
			mockService.AssertExpectations(t)
		})
	}
}
