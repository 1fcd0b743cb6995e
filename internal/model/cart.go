package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartOwner identifies who a cart belongs to: an authenticated user or a guest session, never both.
type CartOwner struct {
	UserID     string `json:"userId,omitempty"`
	GuestToken string `json:"guestToken,omitempty"`
}

// Validate enforces that exactly one owner key is set.
func (o CartOwner) Validate() error {
	if (o.UserID == "") == (o.GuestToken == "") {
		return ErrInvalidRequest.WithMessage("cart owner must be exactly one of user or guest session")
	}
	return nil
}

// IsGuest reports whether the cart belongs to a guest session.
func (o CartOwner) IsGuest() bool {
	return o.UserID == "" && o.GuestToken != ""
}

// CartLine is a single product/variant entry in a cart.
type CartLine struct {
	ID         uuid.UUID  `json:"id"`
	ProductID  string     `json:"productId"`
	Quantity   int        `json:"quantity"`
	UnitPrice  Money      `json:"unitPrice"`
	Variant    Variant    `json:"variant"`
	Dimensions Dimensions `json:"dimensions"`
}

// LineTotal returns unitPrice × quantity.
func (l CartLine) LineTotal() Money {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds the lines a customer intends to buy.
type Cart struct {
	ID        uuid.UUID  `json:"id"`
	Owner     CartOwner  `json:"owner"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Subtotal sums every line total.
func Subtotal(lines []CartLine) Money {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}
