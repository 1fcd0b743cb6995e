package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// PromoHandler serves promo code application for shoppers and promo management for admins.
type PromoHandler struct {
	checkout service.CheckoutService
	promos   service.PromoService
	logger   zerolog.Logger
}

// NewPromoHandler creates a new promo handler.
func NewPromoHandler(checkout service.CheckoutService, promos service.PromoService, logger zerolog.Logger) *PromoHandler {
	return &PromoHandler{
		checkout: checkout,
		promos:   promos,
		logger:   logger.With().Str("handler", "promo").Logger(),
	}
}

// Apply handles POST /api/promos/apply.
func (h *PromoHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req model.ApplyPromoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	id := middleware.IdentityFrom(r.Context())
	result, err := h.checkout.ApplyPromo(r.Context(), id.UserID, id.Owner(), req.Code)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListActive handles GET /api/promos.
func (h *PromoHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// List handles GET /api/admin/promos. Pass ?active=true to hide inactive codes.
func (h *PromoHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.URL.Query().Get("active") == "true")
}

func (h *PromoHandler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	promos, err := h.promos.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, promos)
}

// GetByID handles GET /api/admin/promos/{id}.
func (h *PromoHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", model.ErrPromoNotFound)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	promo, err := h.promos.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, promo)
}

// Create handles POST /api/admin/promos.
func (h *PromoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.PromoCode
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	promo, err := h.promos.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.logger.Info().Str("code", promo.Code).Str("promo_id", promo.ID.String()).Msg("promo created")
	writeJSON(w, http.StatusCreated, promo)
}

// Update handles PUT /api/admin/promos/{id}.
func (h *PromoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", model.ErrPromoNotFound)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.PromoCode
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	promo, err := h.promos.Update(r.Context(), id, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, promo)
}

// SetStatus handles PUT /api/admin/promos/{id}/status.
func (h *PromoHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", model.ErrPromoNotFound)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.SetPromoStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.promos.SetActive(r.Context(), id, req.Active); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "active": req.Active})
}

// Delete handles DELETE /api/admin/promos/{id}.
func (h *PromoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", model.ErrPromoNotFound)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.promos.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
