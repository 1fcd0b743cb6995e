package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// CheckoutHandler handles delivery quotes, payment sessions and order finalization.
type CheckoutHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// DeliveryRate handles POST /api/checkout/delivery-rate.
func (h *CheckoutHandler) DeliveryRate(w http.ResponseWriter, r *http.Request) {
	var req model.DeliveryQuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	owner := middleware.IdentityFrom(r.Context()).Owner()
	quote, err := h.service.QuoteDelivery(r.Context(), owner, req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// DirectDeliveryRate handles POST /api/checkout/direct/delivery-rate.
func (h *CheckoutHandler) DirectDeliveryRate(w http.ResponseWriter, r *http.Request) {
	var req model.DirectDeliveryQuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	quote, err := h.service.QuoteDirectDelivery(r.Context(), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// CreateSession handles POST /api/checkout/sessions.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	session, err := h.service.CreatePaymentSession(r.Context(), userID(r), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// CreateDirectSession handles POST /api/checkout/direct/sessions.
func (h *CheckoutHandler) CreateDirectSession(w http.ResponseWriter, r *http.Request) {
	var req model.DirectCheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	session, err := h.service.CreateDirectPaymentSession(r.Context(), userID(r), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Confirm handles POST /api/checkout/confirm.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.ConfirmPrepaid(r.Context(), userID(r), req)
	h.writeOrder(w, r, order, err)
}

// ConfirmDirect handles POST /api/checkout/direct/confirm.
func (h *CheckoutHandler) ConfirmDirect(w http.ResponseWriter, r *http.Request) {
	var req model.DirectConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.ConfirmDirectPrepaid(r.Context(), userID(r), req)
	h.writeOrder(w, r, order, err)
}

// PlaceCOD handles POST /api/checkout/cod.
func (h *CheckoutHandler) PlaceCOD(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.PlaceCOD(r.Context(), userID(r), req)
	h.writeOrder(w, r, order, err)
}

// PlaceDirectCOD handles POST /api/checkout/direct/cod.
func (h *CheckoutHandler) PlaceDirectCOD(w http.ResponseWriter, r *http.Request) {
	var req model.DirectCheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.PlaceDirectCOD(r.Context(), userID(r), req)
	h.writeOrder(w, r, order, err)
}

func (h *CheckoutHandler) writeOrder(w http.ResponseWriter, r *http.Request, order *model.Order, err error) {
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func userID(r *http.Request) string {
	return middleware.IdentityFrom(r.Context()).UserID
}
