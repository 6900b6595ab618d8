// Package app wires configuration, storage, services and the HTTP server
// into a running process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/cache"
	"github.com/plutoshop/shop-api/internal/domain/order"
	"github.com/plutoshop/shop-api/internal/handler"
	"github.com/plutoshop/shop-api/internal/payment"
	"github.com/plutoshop/shop-api/internal/reaper"
	"github.com/plutoshop/shop-api/internal/storage/postgres"
	"github.com/plutoshop/shop-api/pkg/health"
	"github.com/plutoshop/shop-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the stale-order
// reaper, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis is optional: without it the service runs with no status cache,
	// no webhook dedup and no realtime events, all of which are safe to lose.
	var rdb *cache.Cache
	if cfg.RedisAddr != "" {
		rdb = cache.New(cfg.RedisAddr, lg.Named("cache"))
		defer func() { _ = rdb.Close() }()
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if rdb != nil {
		healthSvc.AddReadinessCheck("redis", 2*time.Second, rdb.Ping)
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	statsRepo := postgres.NewStatsRepository(pool)

	var events order.EventPublisher
	var dedup payment.Deduper
	if rdb != nil {
		events = rdb
		dedup = rdb
	}

	// Domain services.
	orderService := order.NewService(productRepo, orderRepo, events, lg.Named("orders"))
	stripeProvider := payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.Timeout)
	paymentService := payment.NewService(orderRepo, stripeProvider, events, dedup, payment.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Currency:      cfg.Stripe.Currency,
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
		Timeout:       cfg.Stripe.Timeout,
	}, lg.Named("payments"))

	// Stale-order reaper.
	if !cfg.Reaper.Disabled {
		sweeper := reaper.New(orderService, stripeProvider, reaper.Config{
			Interval:  cfg.Reaper.Interval,
			MaxAge:    cfg.Reaper.MaxAge,
			BatchSize: cfg.Reaper.BatchSize,
		}, lg.Named("reaper"))
		go sweeper.Run(ctx)
	}

	// HTTP handlers.
	h := handler.New(handler.Config{
		Products: productRepo,
		Orders:   orderService,
		Payments: paymentService,
		Stats:    statsRepo,
		Keys:     apikeyRepo,
		Cache:    rdb,
		Pepper:   cfg.APIKeyPepper,
		Logger:   lg.Named("http"),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key", "Stripe-Signature"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("shop-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
