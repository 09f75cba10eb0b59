package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/nimbusmart/order-service/internal/domain/order"
	"github.com/nimbusmart/order-service/internal/handler"
	"github.com/nimbusmart/order-service/internal/inventory"
	"github.com/nimbusmart/order-service/internal/notify"
	"github.com/nimbusmart/order-service/internal/resilience"
	"github.com/nimbusmart/order-service/internal/storage/postgres"
	"github.com/nimbusmart/order-service/pkg/health"
	"github.com/nimbusmart/order-service/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
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

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Notification channel.
	publisher := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, lg.Named("notify"))
	defer func() {
		if err := publisher.Close(); err != nil {
			lg.Error("Closing publisher failed", zap.Error(err))
		}
	}()

	// Inventory lookup behind the named resilience policy.
	stock := inventory.NewClient(cfg.InventoryURL)
	policy := resilience.New[inventory.Availability]("inventory", resilience.Config{
		FailureRatio:  cfg.Resilience.FailureRatio,
		MinRequests:   uint32(cfg.Resilience.MinRequests),
		Window:        cfg.Resilience.Window,
		OpenWait:      cfg.Resilience.OpenWait,
		HalfOpenCalls: uint32(cfg.Resilience.HalfOpenCalls),
		MaxRetries:    uint64(cfg.Resilience.MaxRetries),
		RetryInterval: cfg.Resilience.RetryInterval,
		CallTimeout:   cfg.Resilience.CallTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Info("Circuit state changed",
				zap.String("policy", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	// Orchestrator + HTTP surface.
	orderRepo := postgres.NewOrderRepository(pool)
	orderService := order.NewService(
		orderRepo,
		stock,
		publisher,
		policy,
		m.TracerProvider().Tracer("order-service"),
	)
	h := handler.New(orderService, orderRepo)

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/api", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
