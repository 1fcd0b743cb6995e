package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	reworded := ErrInsufficientStock.WithMessage("Insufficient stock for Almonds")
	wrapped := fmt.Errorf("finalize: %w", reworded)

	assert.True(t, errors.Is(wrapped, ErrInsufficientStock))
	assert.False(t, errors.Is(wrapped, ErrProductNotFound))
	assert.Equal(t, "Insufficient stock for Almonds", reworded.Error())
	assert.Equal(t, KindConflict, reworded.Kind)

	de, ok := AsDomainError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeInsufficientStock, de.Code)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(63000), ToMinorUnits(decimal.NewFromInt(630)))
	assert.Equal(t, int64(1999), ToMinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1000), ToMinorUnits(decimal.RequireFromString("9.995")))
}

func TestProduct_PriceFor(t *testing.T) {
	p := &Product{Variants: []ProductVariant{
		{Label: "250g", Value: 250, Price: decimal.NewFromInt(200)},
		{Label: "500g", Value: 500, Price: decimal.NewFromInt(380)},
	}}

	price, ok := p.PriceFor(500)
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(380)))

	price, ok = p.PriceFor(750)
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(200)), "unknown variant falls back to first tier")

	_, ok = (&Product{}).PriceFor(250)
	assert.False(t, ok)
}

func TestCartOwner_Validate(t *testing.T) {
	assert.NoError(t, CartOwner{UserID: "u1"}.Validate())
	assert.NoError(t, CartOwner{GuestToken: "g1"}.Validate())
	assert.ErrorIs(t, CartOwner{}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, CartOwner{UserID: "u1", GuestToken: "g1"}.Validate(), ErrInvalidRequest)
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderType_InitialStatus(t *testing.T) {
	assert.Equal(t, OrderStatusConfirmed, OrderTypePrepaid.InitialStatus())
	assert.Equal(t, OrderStatusPending, OrderTypeCOD.InitialStatus())
}

func TestCheckoutRequest_Validate(t *testing.T) {
	addr := Address{Name: "Asha", Phone: "99", Street: "1 MG Road", City: "Bengaluru", State: "KA", ZipCode: "560001"}

	assert.NoError(t, CheckoutRequest{ShippingAddress: addr, DeliveryRate: decimal.NewFromInt(80), CourierID: 12}.Validate())
	assert.NoError(t, CheckoutRequest{ShippingAddress: addr}.Validate())
	assert.ErrorIs(t, CheckoutRequest{ShippingAddress: addr, CourierID: -1}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, CheckoutRequest{ShippingAddress: addr, DeliveryRate: decimal.NewFromInt(-1)}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, CheckoutRequest{DeliveryRate: decimal.NewFromInt(80)}.Validate(), ErrInvalidRequest)
}

func TestPromoCode_Validate(t *testing.T) {
	ten := decimal.NewFromInt(10)
	expiry := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name    string
		promo   PromoCode
		wantErr bool
	}{
		{
			name:  "percent",
			promo: PromoCode{Code: "save10", Mode: PromoModePercent, Value: &ten, ExpiryDate: expiry},
		},
		{
			name:    "percent without value",
			promo:   PromoCode{Code: "SAVE10", Mode: PromoModePercent, ExpiryDate: expiry},
			wantErr: true,
		},
		{
			name: "flat with bundle",
			promo: PromoCode{Code: "FLAT", Mode: PromoModeFlat, Value: &ten, ExpiryDate: expiry,
				Bundle: &Bundle{MinItems: 2, BundlePrice: ten}},
			wantErr: true,
		},
		{
			name: "bundle",
			promo: PromoCode{Code: "B4", Mode: PromoModeBundle, ExpiryDate: expiry,
				Bundle: &Bundle{MinItems: 4, BundlePrice: decimal.NewFromInt(700)}, EligibleProducts: []string{"p1"}},
		},
		{
			name: "bundle with value",
			promo: PromoCode{Code: "B4", Mode: PromoModeBundle, Value: &ten, ExpiryDate: expiry,
				Bundle: &Bundle{MinItems: 4, BundlePrice: decimal.NewFromInt(700)}, EligibleProducts: []string{"p1"}},
			wantErr: true,
		},
		{
			name:    "unknown mode",
			promo:   PromoCode{Code: "X", Mode: "BOGO", ExpiryDate: expiry},
			wantErr: true,
		},
		{
			name:    "blank code",
			promo:   PromoCode{Code: "  ", Mode: PromoModeFlat, Value: &ten, ExpiryDate: expiry},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.promo.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCode("  save10 "))
}
