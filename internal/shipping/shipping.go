// Package shipping quotes delivery rates and registers shipments with the courier.
package shipping

import (
	"context"

	"storefront/internal/model"
)

// defaultDimension replaces a zero parcel dimension.
const defaultDimension = 10

// Parcel is the combined package sent to the courier.
type Parcel struct {
	Weight  float64
	Length  float64
	Breadth float64
	Height  float64
}

type unit struct {
	quantity   int
	weight     float64
	dimensions model.Dimensions
}

func newParcel(units []unit) Parcel {
	var p Parcel
	for _, u := range units {
		q := float64(u.quantity)
		p.Weight += u.weight * q
		if u.dimensions.Length > p.Length {
			p.Length = u.dimensions.Length
		}
		p.Breadth += u.dimensions.Breadth * q
		p.Height += u.dimensions.Height
	}
	if p.Length == 0 {
		p.Length = defaultDimension
	}
	if p.Breadth == 0 {
		p.Breadth = defaultDimension
	}
	if p.Height == 0 {
		p.Height = defaultDimension
	}
	return p
}

// ParcelForLines packs cart lines. Weight is the variant value times quantity.
func ParcelForLines(lines []model.CartLine) Parcel {
	units := make([]unit, len(lines))
	for i, l := range lines {
		units[i] = unit{quantity: l.Quantity, weight: l.Variant.Value, dimensions: l.Dimensions}
	}
	return newParcel(units)
}

// ParcelForItems packs order snapshot items.
func ParcelForItems(items []model.OrderItem) Parcel {
	units := make([]unit, len(items))
	for i, it := range items {
		units[i] = unit{quantity: it.Quantity, weight: it.Variant.Value, dimensions: it.Dimensions}
	}
	return newParcel(units)
}

// QuoteRequest asks for courier options between two postcodes.
type QuoteRequest struct {
	OriginPostcode string
	DestPostcode   string
	Parcel         Parcel
	COD            bool
}

// RateOption is one courier's offer.
type RateOption struct {
	CourierID   int
	CourierName string
	Rate        model.Money
	EtaDays     int
}

// RateResolver lists courier options for a parcel.
type RateResolver interface {
	Quote(ctx context.Context, req QuoteRequest) ([]RateOption, error)
}

// Cheapest picks the lowest rate. Ties keep the first option.
func Cheapest(options []RateOption) (*RateOption, error) {
	if len(options) == 0 {
		return nil, model.ErrDeliveryUnavailable
	}
	best := options[0]
	for _, o := range options[1:] {
		if o.Rate.LessThan(best.Rate) {
			best = o
		}
	}
	return &best, nil
}

// Shipment holds the courier's references for a registered order.
type Shipment struct {
	ShipmentID     string
	CourierOrderID string
}

// Registrar registers and cancels shipments with the courier.
type Registrar interface {
	CreateShipment(ctx context.Context, order *model.Order) (*Shipment, error)

	// AssignCarrier returns the AWB code. A zero courierID lets the courier choose.
	AssignCarrier(ctx context.Context, shipmentID string, courierID int) (string, error)

	SchedulePickup(ctx context.Context, shipmentID string) error
	CancelShipment(ctx context.Context, courierOrderID, reason string) error
}
