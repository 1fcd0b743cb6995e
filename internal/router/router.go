package router

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Product  *handler.ProductHandler
	Checkout *handler.CheckoutHandler
	Promo    *handler.PromoHandler
	Order    *handler.OrderHandler
}

// Auth holds the credentials checked by the admin and customer route groups.
type Auth struct {
	APIKey    string
	JWTSecret []byte
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, auth Auth, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> RequestID -> Logging -> Metrics -> CORS
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS)

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/products/{id}", h.Product.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(auth.JWTSecret, logger))

			r.Get("/promos", h.Promo.ListActive)
			r.Post("/checkout/direct/delivery-rate", h.Checkout.DirectDeliveryRate)

			r.With(middleware.RequireOwner).Post("/checkout/delivery-rate", h.Checkout.DeliveryRate)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)

				r.Post("/promos/apply", h.Promo.Apply)

				r.Post("/checkout/sessions", h.Checkout.CreateSession)
				r.Post("/checkout/direct/sessions", h.Checkout.CreateDirectSession)
				r.Post("/checkout/confirm", h.Checkout.Confirm)
				r.Post("/checkout/direct/confirm", h.Checkout.ConfirmDirect)
				r.Post("/checkout/cod", h.Checkout.PlaceCOD)
				r.Post("/checkout/direct/cod", h.Checkout.PlaceDirectCOD)

				r.Get("/orders", h.Order.List)
				r.Get("/orders/{id}", h.Order.GetMine)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(auth.APIKey, logger))

			r.Get("/promos", h.Promo.List)
			r.Post("/promos", h.Promo.Create)
			r.Get("/promos/{id}", h.Promo.GetByID)
			r.Put("/promos/{id}", h.Promo.Update)
			r.Put("/promos/{id}/status", h.Promo.SetStatus)
			r.Delete("/promos/{id}", h.Promo.Delete)

			r.Get("/orders/{id}", h.Order.GetByID)
			r.Put("/orders/{id}/status", h.Order.UpdateStatus)
			r.Post("/orders/{id}/cancel", h.Order.Cancel)
		})
	})

	return r
}
