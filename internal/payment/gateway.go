package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const defaultGatewayURL = "https://api.razorpay.com"

// IntentRequest asks the gateway to authorise an amount.
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Intent is the gateway's handle for an authorisable payment.
type Intent struct {
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	Receipt        string
}

// Gateway creates payment intents.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// NewReceipt returns a unique, time-ordered receipt id.
func NewReceipt() string {
	return ulid.Make().String()
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// RazorpayGateway implements Gateway against the Razorpay orders API.
type RazorpayGateway struct {
	client *resty.Client
	logger zerolog.Logger
}

// NewRazorpayGateway creates a gateway client authenticated with the key pair.
func NewRazorpayGateway(baseURL, keyID, keySecret string, timeout time.Duration, logger zerolog.Logger) *RazorpayGateway {
	if baseURL == "" {
		baseURL = defaultGatewayURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(keyID, keySecret).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(0)

	return &RazorpayGateway{
		client: client,
		logger: logger.With().Str("component", "razorpay-gateway").Logger(),
	}
}

// CreatePaymentIntent creates a gateway order for the amount in minor units.
func (g *RazorpayGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.AmountMinor <= 0 {
		return nil, model.ErrInvalidRequest.WithMessage("payment amount must be positive")
	}
	if req.Receipt == "" {
		req.Receipt = NewReceipt()
	}

	var out razorpayOrder
	var apiErr razorpayError
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(razorpayOrderRequest{
			Amount:   req.AmountMinor,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Notes:    req.Notes,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/orders")
	if err != nil {
		g.logger.Error().Err(err).Str("receipt", req.Receipt).Msg("payment gateway request failed")
		return nil, fmt.Errorf("%w: %v", model.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode() != http.StatusOK {
		g.logger.Error().
			Int("status", resp.StatusCode()).
			Str("code", apiErr.Error.Code).
			Str("description", apiErr.Error.Description).
			Msg("payment gateway rejected order")
		return nil, fmt.Errorf("%w: gateway returned status %d", model.ErrGatewayUnavailable, resp.StatusCode())
	}

	if out.ID == "" {
		return nil, fmt.Errorf("%w: gateway returned no order id", model.ErrGatewayUnavailable)
	}

	g.logger.Info().
		Str("gateway_order_id", out.ID).
		Int64("amount_minor", out.Amount).
		Str("receipt", out.Receipt).
		Msg("payment intent created")

	return &Intent{
		GatewayOrderID: out.ID,
		AmountMinor:    out.Amount,
		Currency:       out.Currency,
		Receipt:        out.Receipt,
	}, nil
}
