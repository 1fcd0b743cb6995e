package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"storefront/internal/config"
	"storefront/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultShiprocketURL = "https://apiv2.shiprocket.in/v1/external"
	shiprocketCircuit    = "shiprocket"
)

// ShiprocketClient implements RateResolver and Registrar against the Shiprocket API.
// The login token is cached and refreshed once when a call comes back 401.
type ShiprocketClient struct {
	client         *resty.Client
	breaker        *breaker
	email          string
	password       string
	pickupLocation string
	logger         zerolog.Logger

	mu    sync.Mutex
	token string
}

// NewShiprocketClient creates a courier client.
func NewShiprocketClient(cfg config.ShippingConfig, logger zerolog.Logger) *ShiprocketClient {
	logger = logger.With().Str("component", "shiprocket-client").Logger()

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultShiprocketURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pickup := cfg.PickupLocation
	if pickup == "" {
		pickup = "Warehouse"
	}

	return &ShiprocketClient{
		client: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout).
			SetRetryCount(0),
		breaker:        newBreaker(shiprocketCircuit, logger),
		email:          cfg.Email,
		password:       cfg.Password,
		pickupLocation: pickup,
		logger:         logger,
	}
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *ShiprocketClient) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": c.email, "password": c.password}).
		Post("/auth/login")
	if err != nil {
		return "", fmt.Errorf("courier login: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("courier login returned status %d", resp.StatusCode())
	}

	var out loginResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("courier login: failed to parse response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("courier login returned no token")
	}

	c.token = out.Token
	c.logger.Debug().Msg("courier token refreshed")
	return c.token, nil
}

func (c *ShiprocketClient) dropToken(stale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == stale {
		c.token = ""
	}
}

// call sends an authenticated request through the circuit breaker and returns the response body.
func (c *ShiprocketClient) call(ctx context.Context, op string, send func(r *resty.Request) (*resty.Response, error)) ([]byte, error) {
	result, err := c.breaker.execute(func() (any, error) {
		for attempt := 0; attempt < 2; attempt++ {
			token, err := c.authToken(ctx)
			if err != nil {
				return nil, err
			}

			resp, err := send(c.client.R().SetContext(ctx).SetAuthToken(token))
			if err != nil {
				return nil, fmt.Errorf("%s: HTTP error: %w", op, err)
			}
			if resp.StatusCode() == http.StatusUnauthorized && attempt == 0 {
				c.dropToken(token)
				continue
			}
			if resp.IsError() {
				return nil, fmt.Errorf("%s: courier returned status %d: %s", op, resp.StatusCode(), resp.String())
			}
			return resp.Body(), nil
		}
		return nil, fmt.Errorf("%s: courier rejected credentials", op)
	})
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("courier call failed")
		return nil, err
	}
	return result.([]byte), nil
}

type serviceabilityResponse struct {
	Data struct {
		Companies []struct {
			CourierCompanyID      int             `json:"courier_company_id"`
			CourierName           string          `json:"courier_name"`
			Rate                  decimal.Decimal `json:"rate"`
			EstimatedDeliveryDays json.RawMessage `json:"estimated_delivery_days"`
		} `json:"available_courier_companies"`
	} `json:"data"`
}

// Quote lists serviceable couriers. Transport failures are ErrDeliveryUnavailable.
func (c *ShiprocketClient) Quote(ctx context.Context, req QuoteRequest) ([]RateOption, error) {
	cod := "0"
	if req.COD {
		cod = "1"
	}

	body, err := c.call(ctx, "serviceability", func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(map[string]string{
			"pickup_postcode":   req.OriginPostcode,
			"delivery_postcode": req.DestPostcode,
			"weight":            formatFloat(req.Parcel.Weight),
			"length":            formatFloat(req.Parcel.Length),
			"breadth":           formatFloat(req.Parcel.Breadth),
			"height":            formatFloat(req.Parcel.Height),
			"cod":               cod,
		}).Get("/courier/serviceability/")
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDeliveryUnavailable, err)
	}

	var out serviceabilityResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to parse serviceability: %v", model.ErrDeliveryUnavailable, err)
	}

	options := make([]RateOption, 0, len(out.Data.Companies))
	for _, co := range out.Data.Companies {
		if co.Rate.IsNegative() {
			continue
		}
		options = append(options, RateOption{
			CourierID:   co.CourierCompanyID,
			CourierName: co.CourierName,
			Rate:        co.Rate.Round(2),
			EtaDays:     parseDays(co.EstimatedDeliveryDays),
		})
	}

	c.logger.Debug().
		Str("dest_postcode", req.DestPostcode).
		Int("options", len(options)).
		Msg("delivery rates quoted")

	return options, nil
}

type adhocItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
	Discount     float64 `json:"discount"`
	Tax          float64 `json:"tax"`
}

type adhocOrder struct {
	OrderID           string      `json:"order_id"`
	OrderDate         string      `json:"order_date"`
	PickupLocation    string      `json:"pickup_location"`
	BillingName       string      `json:"billing_customer_name"`
	BillingAddress    string      `json:"billing_address"`
	BillingAddress2   string      `json:"billing_address_2,omitempty"`
	BillingCity       string      `json:"billing_city"`
	BillingPincode    string      `json:"billing_pincode"`
	BillingState      string      `json:"billing_state"`
	BillingCountry    string      `json:"billing_country"`
	BillingPhone      string      `json:"billing_phone"`
	ShippingIsBilling bool        `json:"shipping_is_billing"`
	OrderItems        []adhocItem `json:"order_items"`
	PaymentMethod     string      `json:"payment_method"`
	ShippingCharges   float64     `json:"shipping_charges"`
	TotalDiscount     float64     `json:"total_discount"`
	SubTotal          float64     `json:"sub_total"`
	Length            float64     `json:"length"`
	Breadth           float64     `json:"breadth"`
	Height            float64     `json:"height"`
	Weight            float64     `json:"weight"`
}

type adhocResponse struct {
	OrderID    json.Number `json:"order_id"`
	ShipmentID json.Number `json:"shipment_id"`
}

// CreateShipment registers the order with the courier.
func (c *ShiprocketClient) CreateShipment(ctx context.Context, order *model.Order) (*Shipment, error) {
	parcel := ParcelForItems(order.Items)

	items := make([]adhocItem, len(order.Items))
	for i, it := range order.Items {
		items[i] = adhocItem{
			Name:         it.ProductName,
			SKU:          it.ProductID,
			Units:        it.Quantity,
			SellingPrice: it.Price.InexactFloat64(),
		}
	}

	method := "Prepaid"
	if order.Type == model.OrderTypeCOD {
		method = "COD"
	}
	shipping := order.DeliveryRate
	if order.FreeShipping {
		shipping = decimal.Zero
	}

	addr := order.ShippingAddress
	country := addr.Country
	if country == "" {
		country = "India"
	}

	req := adhocOrder{
		OrderID:           order.ID.String(),
		OrderDate:         order.CreatedAt.Format("2006-01-02 15:04"),
		PickupLocation:    c.pickupLocation,
		BillingName:       addr.Name,
		BillingAddress:    addr.Street,
		BillingAddress2:   addr.StreetOptional,
		BillingCity:       addr.City,
		BillingPincode:    addr.ZipCode,
		BillingState:      addr.State,
		BillingCountry:    country,
		BillingPhone:      addr.Phone,
		ShippingIsBilling: true,
		OrderItems:        items,
		PaymentMethod:     method,
		ShippingCharges:   shipping.InexactFloat64(),
		TotalDiscount:     order.PromoCodeDiscount.InexactFloat64(),
		SubTotal:          order.Total.InexactFloat64(),
		Length:            parcel.Length,
		Breadth:           parcel.Breadth,
		Height:            parcel.Height,
		Weight:            parcel.Weight,
	}

	body, err := c.call(ctx, "create order", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(req).Post("/orders/create/adhoc")
	})
	if err != nil {
		return nil, err
	}

	var out adhocResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("create order: failed to parse response: %w", err)
	}
	if out.ShipmentID == "" || out.OrderID == "" {
		return nil, fmt.Errorf("create order: courier returned no shipment")
	}

	c.logger.Info().
		Str("order_id", order.ID.String()).
		Str("shipment_id", out.ShipmentID.String()).
		Msg("shipment created")

	return &Shipment{ShipmentID: out.ShipmentID.String(), CourierOrderID: out.OrderID.String()}, nil
}

type awbResponse struct {
	AWBAssignStatus int `json:"awb_assign_status"`
	Response        struct {
		Data struct {
			AWBCode string `json:"awb_code"`
		} `json:"data"`
	} `json:"response"`
}

// AssignCarrier requests an AWB for the shipment.
func (c *ShiprocketClient) AssignCarrier(ctx context.Context, shipmentID string, courierID int) (string, error) {
	id, err := strconv.ParseInt(shipmentID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("assign awb: invalid shipment id %q", shipmentID)
	}

	payload := map[string]any{"shipment_id": id}
	if courierID > 0 {
		payload["courier_id"] = courierID
	}

	body, err := c.call(ctx, "assign awb", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(payload).Post("/courier/assign/awb")
	})
	if err != nil {
		return "", err
	}

	var out awbResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("assign awb: failed to parse response: %w", err)
	}
	if out.AWBAssignStatus != 1 || out.Response.Data.AWBCode == "" {
		return "", fmt.Errorf("assign awb: courier did not assign an AWB")
	}
	return out.Response.Data.AWBCode, nil
}

type pickupResponse struct {
	PickupStatus int `json:"pickup_status"`
}

// SchedulePickup requests a pickup for the shipment.
func (c *ShiprocketClient) SchedulePickup(ctx context.Context, shipmentID string) error {
	id, err := strconv.ParseInt(shipmentID, 10, 64)
	if err != nil {
		return fmt.Errorf("generate pickup: invalid shipment id %q", shipmentID)
	}

	body, err := c.call(ctx, "generate pickup", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(map[string]any{"shipment_id": []int64{id}}).Post("/courier/generate/pickup")
	})
	if err != nil {
		return err
	}

	var out pickupResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("generate pickup: failed to parse response: %w", err)
	}
	if out.PickupStatus != 1 {
		return fmt.Errorf("generate pickup: courier did not schedule pickup")
	}
	return nil
}

// CancelShipment cancels the courier order.
func (c *ShiprocketClient) CancelShipment(ctx context.Context, courierOrderID, reason string) error {
	id, err := strconv.ParseInt(courierOrderID, 10, 64)
	if err != nil {
		return fmt.Errorf("cancel order: invalid courier order id %q", courierOrderID)
	}

	_, err = c.call(ctx, "cancel order", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(map[string]any{"ids": []int64{id}}).Post("/orders/cancel")
	})
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("courier_order_id", courierOrderID).
		Str("reason", reason).
		Msg("shipment cancelled")
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// parseDays accepts both numeric and quoted day counts.
func parseDays(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}
