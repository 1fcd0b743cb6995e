package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/payment"
	"storefront/internal/promo"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/shipping"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	// Create context for application lifecycle, cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	promoRepo := repository.NewPromoRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	sessionRepo := repository.NewPaymentSessionRepository(pool, logger)
	jobRepo := repository.NewShipmentJobRepository(pool, logger)

	if err := seedPromos(ctx, cfg, promoRepo, logger); err != nil {
		return err
	}

	// Initialize integrations
	verifier := payment.NewVerifier(cfg.Payment.KeySecret)
	gateway := payment.NewRazorpayGateway(cfg.Payment.BaseURL, cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.Timeout, logger)
	courier := shipping.NewShiprocketClient(cfg.Shipping, logger)

	dispatcher := shipping.NewDispatcher(jobRepo, orderRepo, courier, shipping.DispatcherConfig{
		Workers:      cfg.Dispatcher.Workers,
		PollInterval: cfg.Dispatcher.PollInterval,
		MaxAttempts:  cfg.Dispatcher.MaxAttempts,
		BaseBackoff:  cfg.Dispatcher.BaseBackoff,
	}, logger)

	// Initialize services
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
		FreeShippingThreshold: cfg.Checkout.FreeShippingThreshold,
		PickupPostcode:        cfg.Shipping.PickupPostcode,
		Currency:              cfg.Payment.Currency,
		KeyID:                 cfg.Payment.KeyID,
	}, logger)
	orderService := service.NewOrderService(orderRepo, jobRepo, dispatcher, logger)
	promoService := service.NewPromoService(promoRepo, logger)

	// Initialize router
	mux := router.New(router.Handlers{
		Product:  handler.NewProductHandler(productService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
		Promo:    handler.NewPromoHandler(checkoutService, promoService, logger),
		Order:    handler.NewOrderHandler(orderService, logger),
	}, router.Auth{
		APIKey:    cfg.Auth.APIKey,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info().Msg("server shutdown completed")
	return nil
}

// seedPromos upserts promo definitions from the configured seed files, reading S3 first when enabled.
func seedPromos(ctx context.Context, cfg *config.Config, promoRepo repository.PromoRepository, logger zerolog.Logger) error {
	if len(cfg.Promo.SeedFiles) == 0 {
		logger.Info().Msg("no promo seed files configured")
		return nil
	}

	fileLoader := promo.NewFileLoader(logger)
	var s3Loader promo.Loader
	if cfg.S3.Enabled {
		loader, err := promo.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = loader
		}
	} else {
		logger.Info().Msg("using local file system for promo seed files (S3 disabled)")
	}

	loader := promo.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, s3Loader != nil, logger)
	seeded, err := promo.NewSeeder(loader, promoRepo, logger).Seed(ctx, cfg.Promo.SeedFiles)
	if err != nil {
		return fmt.Errorf("failed to seed promo codes: %w", err)
	}

	logger.Info().Int("count", seeded).Msg("promo codes seeded")
	return nil
}
