package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// OrdersFinalized counts committed orders by type (prepaid, cod)
	OrdersFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_finalized_total",
			Help: "Total number of finalized orders",
		},
		[]string{"type"},
	)

	// PromoEvaluations counts promo evaluations by outcome (applied or an error code)
	PromoEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_evaluations_total",
			Help: "Total number of promo code evaluations",
		},
		[]string{"outcome"},
	)

	// ShipmentJobs counts processed outbox jobs
	ShipmentJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipment_jobs_total",
			Help: "Total number of processed shipment jobs",
		},
		[]string{"kind", "outcome"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit"},
	)

	// CircuitBreakerFailures tracks calls rejected or failed through a breaker
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"circuit"},
	)
)
