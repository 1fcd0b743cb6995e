package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/model"
	"storefront/internal/payment"
	"storefront/internal/promo"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/shipping"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAPIKey    = "test-api-key"
	testJWTSecret = "test-jwt-secret"
	testKeySecret = "test-gateway-secret"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container with the application schema applied.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	if err := database.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// fakeGateway issues sequential gateway order ids and records the requested amounts.
type fakeGateway struct {
	seq     atomic.Int64
	mu      sync.Mutex
	amounts map[string]int64
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	id := fmt.Sprintf("order_test_%d", g.seq.Add(1))
	g.mu.Lock()
	if g.amounts == nil {
		g.amounts = make(map[string]int64)
	}
	g.amounts[id] = req.AmountMinor
	g.mu.Unlock()
	return &payment.Intent{GatewayOrderID: id, AmountMinor: req.AmountMinor, Currency: req.Currency, Receipt: req.Receipt}, nil
}

// fakeCourier quotes fixed rates and registers shipments in memory.
type fakeCourier struct {
	mu         sync.Mutex
	failCreate int
	onCreate   func(orderID uuid.UUID)
	created    []uuid.UUID
	assigned   []int
	pickups    []string
	cancelled  []string
}

func (c *fakeCourier) Quote(_ context.Context, req shipping.QuoteRequest) ([]shipping.RateOption, error) {
	if req.DestPostcode == "000000" {
		return nil, nil
	}
	return []shipping.RateOption{
		{CourierID: 1, CourierName: "Bluedart", Rate: decimal.NewFromInt(120), EtaDays: 2},
		{CourierID: 2, CourierName: "Delhivery", Rate: decimal.NewFromInt(80), EtaDays: 4},
	}, nil
}

func (c *fakeCourier) CreateShipment(_ context.Context, order *model.Order) (*shipping.Shipment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCreate > 0 {
		c.failCreate--
		return nil, errors.New("courier unavailable")
	}
	c.created = append(c.created, order.ID)
	n := len(c.created)
	if c.onCreate != nil {
		c.onCreate(order.ID)
	}
	return &shipping.Shipment{ShipmentID: fmt.Sprintf("shp-%d", n), CourierOrderID: fmt.Sprintf("co-%d", n)}, nil
}

func (c *fakeCourier) AssignCarrier(_ context.Context, shipmentID string, courierID int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assigned = append(c.assigned, courierID)
	return "AWB-" + shipmentID, nil
}

func (c *fakeCourier) SchedulePickup(_ context.Context, shipmentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pickups = append(c.pickups, shipmentID)
	return nil
}

func (c *fakeCourier) calls() (assigned []int, pickups, cancelled []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.assigned...), append([]string(nil), c.pickups...), append([]string(nil), c.cancelled...)
}

func (c *fakeCourier) CancelShipment(_ context.Context, courierOrderID, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, courierOrderID)
	return nil
}

// testStack is the API wired against a real database with fake payment and courier integrations.
type testStack struct {
	db         *TestDB
	handler    http.Handler
	dispatcher *shipping.Dispatcher
	verifier   *payment.Verifier
	gateway    *fakeGateway
	courier    *fakeCourier
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := SetupTestDB(t)
	logger := zerolog.Nop()

	productRepo := repository.NewProductRepository(db.Pool, logger)
	cartRepo := repository.NewCartRepository(db.Pool, logger)
	promoRepo := repository.NewPromoRepository(db.Pool, logger)
	orderRepo := repository.NewOrderRepository(db.Pool, logger)
	sessionRepo := repository.NewPaymentSessionRepository(db.Pool, logger)
	jobRepo := repository.NewShipmentJobRepository(db.Pool, logger)

	gateway := &fakeGateway{}
	courier := &fakeCourier{}
	verifier := payment.NewVerifier(testKeySecret)
	dispatcher := shipping.NewDispatcher(jobRepo, orderRepo, courier, shipping.DispatcherConfig{Workers: 2}, logger)

	productService := service.NewProductService(productRepo, logger)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Carts:     cartRepo,
		Products:  productRepo,
		Promos:    promoRepo,
		Orders:    orderRepo,
		Sessions:  sessionRepo,
		Jobs:      jobRepo,
		Catalog:   productService,
		Evaluator: promo.NewEvaluator(promoRepo.Store(), logger),
		Verifier:  verifier,
		Gateway:   gateway,
		Rates:     courier,
		Notifier:  dispatcher,
	}, service.CheckoutConfig{
		FreeShippingThreshold: decimal.NewFromInt(1000),
		PickupPostcode:        "560001",
		Currency:              "INR",
		KeyID:                 "rzp_test",
	}, logger)
	orderService := service.NewOrderService(orderRepo, jobRepo, dispatcher, logger)
	promoService := service.NewPromoService(promoRepo, logger)

	h := router.New(router.Handlers{
		Product:  handler.NewProductHandler(productService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
		Promo:    handler.NewPromoHandler(checkoutService, promoService, logger),
		Order:    handler.NewOrderHandler(orderService, logger),
	}, router.Auth{APIKey: testAPIKey, JWTSecret: []byte(testJWTSecret)}, logger)

	return &testStack{
		db:         db,
		handler:    h,
		dispatcher: dispatcher,
		verifier:   verifier,
		gateway:    gateway,
		courier:    courier,
	}
}

// bearer mints a customer token for userID.
func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + token
}

// SeedProduct inserts a product with one price tier per variant.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, id, name string, stock int, variants ...model.ProductVariant) {
	t.Helper()
	ctx := context.Background()

	if _, err := pool.Exec(ctx, `INSERT INTO products (id, name, stock) VALUES ($1, $2, $3)`, id, name, stock); err != nil {
		t.Fatalf("failed to seed product %s: %v", id, err)
	}
	for i, v := range variants {
		if _, err := pool.Exec(ctx,
			`INSERT INTO product_variants (product_id, position, label, value, price) VALUES ($1, $2, $3, $4, $5)`,
			id, i, v.Label, v.Value, v.Price); err != nil {
			t.Fatalf("failed to seed variant of %s: %v", id, err)
		}
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO product_dimensions (product_id, position, length, breadth, height) VALUES ($1, 0, 20, 15, 5)`, id); err != nil {
		t.Fatalf("failed to seed dimensions of %s: %v", id, err)
	}
}

// SeedCart creates a cart for owner holding lines.
func SeedCart(t *testing.T, pool *pgxpool.Pool, owner model.CartOwner, lines ...model.CartLine) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	cartID := uuid.New()
	if _, err := pool.Exec(ctx,
		`INSERT INTO carts (id, user_id, guest_token) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))`,
		cartID, owner.UserID, owner.GuestToken); err != nil {
		t.Fatalf("failed to seed cart: %v", err)
	}
	for _, l := range lines {
		if _, err := pool.Exec(ctx, `
			INSERT INTO cart_lines (id, cart_id, product_id, quantity, unit_price, variant_label, variant_value)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New(), cartID, l.ProductID, l.Quantity, l.UnitPrice, l.Variant.Label, l.Variant.Value); err != nil {
			t.Fatalf("failed to seed cart line: %v", err)
		}
	}
	return cartID
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{
		"shipment_jobs", "payment_sessions", "order_items", "orders",
		"promo_eligible_products", "promo_codes", "cart_lines", "carts",
		"product_dimensions", "product_variants", "products",
	}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
