package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/payment"
	"storefront/internal/promo"
	"storefront/internal/repository"
	"storefront/internal/shipping"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("storefront/internal/service")

var errSignInRequired = model.ErrInvalidRequest.WithMessage("Sign in to check out")

// Totals is the priced breakdown of an order.
type Totals struct {
	Subtotal     model.Money
	FreeShipping bool
	DeliveryRate model.Money
	Discount     model.Money
	Total        model.Money
}

// Price applies the free shipping rule and floors the total at zero.
// Payment sessions and finalization both price through here so the authorised amount can be reproduced.
func Price(subtotal, deliveryRate, discount, threshold model.Money) Totals {
	t := Totals{
		Subtotal:     subtotal,
		DeliveryRate: deliveryRate,
		Discount:     discount,
	}
	if subtotal.GreaterThanOrEqual(threshold) {
		t.FreeShipping = true
		t.DeliveryRate = decimal.Zero
	}
	t.Total = subtotal.Add(t.DeliveryRate).Sub(discount)
	if t.Total.IsNegative() {
		t.Total = decimal.Zero
	}
	return t
}

// ShipmentNotifier is woken after an order commits.
type ShipmentNotifier interface {
	Notify()
}

// CheckoutConfig holds checkout settings.
type CheckoutConfig struct {
	FreeShippingThreshold model.Money
	PickupPostcode        string
	Currency              string
	KeyID                 string
}

// CheckoutDeps are the collaborators of the checkout service.
type CheckoutDeps struct {
	Carts     repository.CartRepository
	Products  repository.ProductRepository
	Promos    repository.PromoRepository
	Orders    repository.OrderRepository
	Sessions  repository.PaymentSessionRepository
	Jobs      repository.ShipmentJobRepository
	Catalog   ProductService
	Evaluator *promo.Evaluator
	Verifier  *payment.Verifier
	Gateway   payment.Gateway
	Rates     shipping.RateResolver
	Notifier  ShipmentNotifier
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	CheckoutDeps
	cfg    CheckoutConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(deps CheckoutDeps, cfg CheckoutConfig, logger zerolog.Logger) CheckoutService {
	return &checkoutService{
		CheckoutDeps: deps,
		cfg:          cfg,
		now:          time.Now,
		logger:       logger.With().Str("service", "checkout").Logger(),
	}
}

// QuoteDelivery returns the cheapest courier option for the owner's cart.
func (s *checkoutService) QuoteDelivery(ctx context.Context, owner model.CartOwner, req model.DeliveryQuoteRequest) (*model.DeliveryQuote, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if req.Pincode == "" {
		return nil, model.ErrInvalidRequest.WithMessage("pincode is required")
	}

	cart, err := s.Carts.GetByOwner(ctx, owner)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load cart")
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil || len(cart.Lines) == 0 {
		return nil, model.ErrCartEmpty
	}

	return s.quote(ctx, shipping.ParcelForLines(cart.Lines), req)
}

// QuoteDirectDelivery returns the cheapest courier option for a single ad-hoc line.
func (s *checkoutService) QuoteDirectDelivery(ctx context.Context, req model.DirectDeliveryQuoteRequest) (*model.DeliveryQuote, error) {
	if req.Pincode == "" {
		return nil, model.ErrInvalidRequest.WithMessage("pincode is required")
	}

	priced, err := s.Catalog.ResolveDirect(ctx, nil, req.Item)
	if err != nil {
		return nil, err
	}

	return s.quote(ctx, shipping.ParcelForLines(priced.Lines), req.DeliveryQuoteRequest)
}

func (s *checkoutService) quote(ctx context.Context, parcel shipping.Parcel, req model.DeliveryQuoteRequest) (*model.DeliveryQuote, error) {
	options, err := s.Rates.Quote(ctx, shipping.QuoteRequest{
		OriginPostcode: s.cfg.PickupPostcode,
		DestPostcode:   req.Pincode,
		Parcel:         parcel,
		COD:            req.COD,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("pincode", req.Pincode).Msg("delivery quote failed")
		return nil, err
	}

	best, err := shipping.Cheapest(options)
	if err != nil {
		s.logger.Info().Str("pincode", req.Pincode).Msg("no courier serves pincode")
		return nil, err
	}

	return &model.DeliveryQuote{
		Rate:        best.Rate,
		CourierID:   best.CourierID,
		CourierName: best.CourierName,
		EtaDays:     best.EtaDays,
	}, nil
}

// ApplyPromo evaluates code against the owner's live cart.
func (s *checkoutService) ApplyPromo(ctx context.Context, userID string, owner model.CartOwner, code string) (*model.PromoResult, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	priced, err := s.loadCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	return s.Evaluator.Evaluate(ctx, promo.Request{Code: code, UserID: userID, Lines: priced.Lines})
}

// loadCart reads the owner's cart and reprices it, persisting any stale prices.
func (s *checkoutService) loadCart(ctx context.Context, owner model.CartOwner) (*PricedLines, error) {
	cart, err := s.Carts.GetByOwner(ctx, owner)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load cart")
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil || len(cart.Lines) == 0 {
		return nil, model.ErrCartEmpty
	}

	priced, err := s.Catalog.PriceLines(ctx, nil, cart.Lines)
	if err != nil {
		return nil, err
	}

	if len(priced.Changed) > 0 {
		if err := s.Carts.UpdateLinePrices(ctx, nil, priced.Changed); err != nil {
			s.logger.Warn().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to persist re-synced prices")
		}
	}

	return priced, nil
}

type pricing struct {
	totals Totals
	promo  *model.PromoResult
}

// price checks stock, re-derives the promo discount and totals the order.
func (s *checkoutService) price(ctx context.Context, evaluator *promo.Evaluator, userID string, req model.CheckoutRequest, priced *PricedLines) (*pricing, error) {
	if err := priced.CheckStock(); err != nil {
		return nil, err
	}

	p := &pricing{}
	discount := decimal.Zero
	if code := promoCode(req); code != "" {
		result, err := evaluator.Evaluate(ctx, promo.Request{Code: code, UserID: userID, Lines: priced.Lines})
		if err != nil {
			return nil, err
		}
		p.promo = result
		discount = result.DiscountAmount
	}

	if req.PromoCodeDiscount != nil && !req.PromoCodeDiscount.Equal(discount) {
		s.logger.Warn().
			Str("client_discount", req.PromoCodeDiscount.String()).
			Str("discount", discount.String()).
			Msg("promo discount hint does not match")
		return nil, model.ErrPromoMismatch
	}

	p.totals = Price(priced.Subtotal(), req.DeliveryRate, discount, s.cfg.FreeShippingThreshold)
	return p, nil
}

func promoCode(req model.CheckoutRequest) string {
	if req.PromoCode == nil {
		return ""
	}
	return model.NormalizeCode(*req.PromoCode)
}

// CreatePaymentSession authorises the payable amount of the user's cart.
func (s *checkoutService) CreatePaymentSession(ctx context.Context, userID string, req model.CheckoutRequest) (*model.PaymentSessionResponse, error) {
	if userID == "" {
		return nil, errSignInRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	priced, err := s.loadCart(ctx, model.CartOwner{UserID: userID})
	if err != nil {
		return nil, err
	}

	return s.openSession(ctx, userID, req, priced)
}

// CreateDirectPaymentSession authorises the payable amount of a single ad-hoc line.
func (s *checkoutService) CreateDirectPaymentSession(ctx context.Context, userID string, req model.DirectCheckoutRequest) (*model.PaymentSessionResponse, error) {
	if userID == "" {
		return nil, errSignInRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	priced, err := s.Catalog.ResolveDirect(ctx, nil, req.Item)
	if err != nil {
		return nil, err
	}

	return s.openSession(ctx, userID, req.CheckoutRequest, priced)
}

func (s *checkoutService) openSession(ctx context.Context, userID string, req model.CheckoutRequest, priced *PricedLines) (*model.PaymentSessionResponse, error) {
	p, err := s.price(ctx, s.Evaluator, userID, req, priced)
	if err != nil {
		return nil, err
	}

	amountMinor := model.ToMinorUnits(p.totals.Total)
	intent, err := s.Gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		AmountMinor: amountMinor,
		Currency:    s.cfg.Currency,
		Receipt:     payment.NewReceipt(),
		Notes:       map[string]string{"user_id": userID},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Int64("amount_minor", amountMinor).Msg("failed to create payment intent")
		return nil, err
	}

	currency := intent.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}

	session := &model.PaymentSession{
		GatewayOrderID: intent.GatewayOrderID,
		UserID:         userID,
		Amount:         p.totals.Total,
		AmountMinor:    amountMinor,
		Currency:       currency,
		Receipt:        intent.Receipt,
		DeliveryRate:   p.totals.DeliveryRate,
		Status:         model.PaymentSessionCreated,
		CreatedAt:      s.now(),
	}
	if p.promo != nil {
		code := p.promo.PromoCode
		session.PromoCode = &code
	}

	if err := s.Sessions.Create(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("gateway_order_id", session.GatewayOrderID).Msg("failed to save payment session")
		return nil, fmt.Errorf("failed to save payment session: %w", err)
	}

	s.logger.Info().
		Str("gateway_order_id", session.GatewayOrderID).
		Str("user_id", userID).
		Str("amount", session.Amount.StringFixed(2)).
		Msg("payment session created")

	return &model.PaymentSessionResponse{
		GatewayOrderID: session.GatewayOrderID,
		Amount:         session.Amount,
		AmountMinor:    session.AmountMinor,
		Currency:       session.Currency,
		KeyID:          s.cfg.KeyID,
	}, nil
}

// ConfirmPrepaid verifies the gateway signature and finalizes the user's cart.
func (s *checkoutService) ConfirmPrepaid(ctx context.Context, userID string, req model.ConfirmRequest) (*model.Order, error) {
	if userID == "" {
		return nil, errSignInRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.Verifier.VerifyConfirmation(req.Payment); err != nil {
		s.logger.Warn().Str("gateway_order_id", req.Payment.GatewayOrderID).Msg("payment signature rejected")
		return nil, err
	}

	return s.finalize(ctx, finalizeInput{
		userID:    userID,
		req:       req.CheckoutRequest,
		orderType: model.OrderTypePrepaid,
		payment:   &req.Payment,
	})
}

// ConfirmDirectPrepaid verifies the gateway signature and finalizes a direct order.
func (s *checkoutService) ConfirmDirectPrepaid(ctx context.Context, userID string, req model.DirectConfirmRequest) (*model.Order, error) {
	if userID == "" {
		return nil, errSignInRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.Verifier.VerifyConfirmation(req.Payment); err != nil {
		s.logger.Warn().Str("gateway_order_id", req.Payment.GatewayOrderID).Msg("payment signature rejected")
		return nil, err
	}

	return s.finalize(ctx, finalizeInput{
		userID:    userID,
		req:       req.CheckoutRequest,
		direct:    &req.Item,
		orderType: model.OrderTypePrepaid,
		payment:   &req.Payment,
	})
}

// PlaceCOD finalizes the user's cart as a cash-on-delivery order.
func (s *checkoutService) PlaceCOD(ctx context.Context, userID string, req model.CheckoutRequest) (*model.Order, error) {
	if userID == "" {
		return nil, errSignInRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return s.finalize(ctx, finalizeInput{
		userID:    userID,
		req:       req,
		orderType: model.OrderTypeCOD,
	})
}

// PlaceDirectCOD finalizes a single ad-hoc line as a cash-on-delivery order.
func (s *checkoutService) PlaceDirectCOD(ctx context.Context, userID string, req model.DirectCheckoutRequest) (*model.Order, error) {
	if userID == "" {
		return nil, errSignInRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return s.finalize(ctx, finalizeInput{
		userID:    userID,
		req:       req.CheckoutRequest,
		direct:    &req.Item,
		orderType: model.OrderTypeCOD,
	})
}

type finalizeInput struct {
	userID    string
	req       model.CheckoutRequest
	direct    *model.DirectLine
	orderType model.OrderType
	payment   *model.PaymentConfirmation
}

// finalize turns a cart or direct line into an order in a single transaction.
// Either every effect commits (stock, promo usage, order, payment session, shipment job, cart removal)
// or none does.
func (s *checkoutService) finalize(ctx context.Context, in finalizeInput) (order *model.Order, err error) {
	ctx, span := tracer.Start(ctx, "checkout.Finalize", trace.WithAttributes(
		attribute.String("order.type", string(in.orderType)),
		attribute.Bool("checkout.direct", in.direct != nil),
	))
	defer func() {
		if err != nil {
			if de, ok := model.AsDomainError(err); ok {
				span.SetAttributes(attribute.String("checkout.error", de.Code))
			} else {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
	}()

	tx, err := s.Orders.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to finalize order: %w", err)
	}

	var expiredPromo string
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		// The evaluator's deactivation ran inside the rolled back transaction.
		if expiredPromo != "" {
			if derr := s.Promos.DeactivateExpired(ctx, expiredPromo); derr != nil {
				s.logger.Error().Err(derr).Str("code", expiredPromo).Msg("failed to deactivate expired promo")
			}
		}
	}()

	cart, priced, err := s.lockLines(ctx, tx, in)
	if err != nil {
		return nil, err
	}

	p, err := s.price(ctx, s.Evaluator.WithStore(s.Promos.TxStore(tx)), in.userID, in.req, priced)
	if err != nil {
		if errors.Is(err, model.ErrPromoExpired) {
			expiredPromo = promoCode(in.req)
		}
		return nil, err
	}

	for _, l := range priced.Lines {
		if err = s.Products.DecrementStock(ctx, tx, l.ProductID, l.Quantity); err != nil {
			return nil, err
		}
	}

	if p.promo != nil {
		if err = s.Promos.IncrementUsage(ctx, tx, p.promo.PromoCodeID); err != nil {
			return nil, err
		}
	}

	order = s.buildOrder(in, priced, p)

	if in.payment != nil {
		if err = s.consumeSession(ctx, tx, in.userID, in.payment.GatewayOrderID, p); err != nil {
			return nil, err
		}
	}

	if err = s.Orders.CreateOrder(ctx, tx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err = s.Orders.CreateOrderItems(ctx, tx, order.Items); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Int("item_count", len(order.Items)).
			Msg("failed to create order items")
		return nil, fmt.Errorf("failed to create order items: %w", err)
	}

	if err = s.Jobs.Enqueue(ctx, tx, &model.ShipmentJob{
		OrderID:       order.ID,
		Kind:          model.ShipmentJobRegister,
		NextAttemptAt: order.CreatedAt,
	}); err != nil {
		return nil, err
	}

	if cart != nil {
		if err = s.Carts.Delete(ctx, tx, cart.ID); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to finalize order: %w", err)
	}

	if s.Notifier != nil {
		s.Notifier.Notify()
	}
	metrics.OrdersFinalized.WithLabelValues(string(order.Type)).Inc()
	span.SetAttributes(attribute.String("order.id", order.ID.String()))

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", order.UserID).
		Str("type", string(order.Type)).
		Str("total", order.Total.StringFixed(2)).
		Int("item_count", len(order.Items)).
		Msg("order finalized")

	return order, nil
}

// lockLines loads the lines to order. For a cart checkout the cart row stays locked until the transaction ends.
func (s *checkoutService) lockLines(ctx context.Context, tx pgx.Tx, in finalizeInput) (*model.Cart, *PricedLines, error) {
	if in.direct != nil {
		priced, err := s.Catalog.ResolveDirect(ctx, tx, *in.direct)
		return nil, priced, err
	}

	cart, err := s.Carts.GetByOwnerForUpdate(ctx, tx, model.CartOwner{UserID: in.userID})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", in.userID).Msg("failed to lock cart")
		return nil, nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil || len(cart.Lines) == 0 {
		return nil, nil, model.ErrCartEmpty
	}

	priced, err := s.Catalog.PriceLines(ctx, tx, cart.Lines)
	if err != nil {
		return nil, nil, err
	}
	return cart, priced, nil
}

// consumeSession accepts the authorisation only when the re-derived order matches it
// component by component. Equal totals reached with a different promo or delivery rate
// are rejected.
func (s *checkoutService) consumeSession(ctx context.Context, tx pgx.Tx, userID, gatewayOrderID string, p *pricing) error {
	session, err := s.Sessions.GetForUpdate(ctx, tx, gatewayOrderID)
	if err != nil {
		return err
	}
	if session == nil || session.UserID != userID {
		return model.ErrPaymentSessionNotFound
	}
	if session.Status == model.PaymentSessionConsumed {
		return model.ErrPaymentSessionConsumed
	}
	if !payment.AmountsMatch(session, p.totals.Total) {
		s.logger.Warn().
			Str("gateway_order_id", gatewayOrderID).
			Int64("authorised_minor", session.AmountMinor).
			Int64("payable_minor", model.ToMinorUnits(p.totals.Total)).
			Msg("payable amount diverged from authorisation")
		return model.ErrPaymentAmountMismatch
	}
	var code string
	if p.promo != nil {
		code = p.promo.PromoCode
	}
	if !sessionPromoMatches(session, code) || !session.DeliveryRate.Equal(p.totals.DeliveryRate) {
		s.logger.Warn().
			Str("gateway_order_id", gatewayOrderID).
			Str("authorised_delivery", session.DeliveryRate.StringFixed(2)).
			Str("payable_delivery", p.totals.DeliveryRate.StringFixed(2)).
			Str("payable_promo", code).
			Msg("order components diverged from authorisation")
		return model.ErrPaymentAmountMismatch
	}
	return s.Sessions.MarkConsumed(ctx, tx, gatewayOrderID)
}

func sessionPromoMatches(session *model.PaymentSession, code string) bool {
	if session.PromoCode == nil {
		return code == ""
	}
	return *session.PromoCode == code
}

func (s *checkoutService) buildOrder(in finalizeInput, priced *PricedLines, p *pricing) *model.Order {
	now := s.now()
	order := &model.Order{
		ID:                uuid.New(),
		UserID:            in.userID,
		Subtotal:          p.totals.Subtotal,
		DeliveryRate:      p.totals.DeliveryRate,
		FreeShipping:      p.totals.FreeShipping,
		PromoCodeDiscount: p.totals.Discount,
		Total:             p.totals.Total,
		Type:              in.orderType,
		Status:            in.orderType.InitialStatus(),
		ShippingAddress:   in.req.ShippingAddress,
		CourierID:         in.req.CourierID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if order.ShippingAddress.Country == "" {
		order.ShippingAddress.Country = "India"
	}

	if p.promo != nil {
		id := p.promo.PromoCodeID
		code := p.promo.PromoCode
		order.PromoCodeID = &id
		order.PromoCode = &code
	}

	if in.payment != nil {
		paymentID := in.payment.GatewayPaymentID
		paymentOrderID := in.payment.GatewayOrderID
		order.PaymentID = &paymentID
		order.PaymentOrderID = &paymentOrderID
	}

	order.Items = make([]model.OrderItem, len(priced.Lines))
	for i, l := range priced.Lines {
		order.Items[i] = model.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   l.ProductID,
			ProductName: priced.Products[l.ProductID].Name,
			Quantity:    l.Quantity,
			Price:       l.UnitPrice,
			Variant:     l.Variant,
			Dimensions:  l.Dimensions,
		}
	}

	return order
}
