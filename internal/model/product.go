package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money is an amount in the store currency's major unit (rupees).
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts an amount to the gateway's integer minor units (paise).
func ToMinorUnits(m Money) int64 {
	return m.Mul(hundred).Round(0).IntPart()
}

// Variant identifies the purchasable variant of a product by its label and numeric weight value.
type Variant struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Dimensions of a single packed unit.
type Dimensions struct {
	Length  float64 `json:"length"`
	Breadth float64 `json:"breadth"`
	Height  float64 `json:"height"`
}

// ProductVariant is one price tier of a product.
type ProductVariant struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Price Money   `json:"price"`
}

// Product represents a catalogue item with price tiers and stock.
type Product struct {
	ID         string           `json:"id" db:"id"`
	Name       string           `json:"name" db:"name"`
	Stock      int              `json:"stock" db:"stock"`
	Variants   []ProductVariant `json:"variants"`
	Dimensions []Dimensions     `json:"dimensions"`
	CreatedAt  time.Time        `json:"createdAt" db:"created_at"`
}

// PriceFor returns the catalogue price of the variant whose value matches, falling back to the first tier.
func (p *Product) PriceFor(variantValue float64) (Money, bool) {
	if len(p.Variants) == 0 {
		return decimal.Zero, false
	}
	for _, v := range p.Variants {
		if v.Value == variantValue {
			return v.Price, true
		}
	}
	return p.Variants[0].Price, true
}
