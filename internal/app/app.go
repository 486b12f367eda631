// Package app wires the API server together: storage, domain services,
// HTTP routing and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopkeep/internal/domain/item"
	"github.com/xenking/shopkeep/internal/domain/order"
	"github.com/xenking/shopkeep/internal/domain/user"
	"github.com/xenking/shopkeep/internal/handler"
	"github.com/xenking/shopkeep/internal/storage/postgres"
	"github.com/xenking/shopkeep/pkg/health"
	"github.com/xenking/shopkeep/pkg/httpmiddleware"
)

const serviceName = "shopkeep-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("postgres_pool", time.Second, health.PoolSaturation(1, func() (int32, int32) {
		st := pool.Stat()
		return st.AcquiredConns(), st.MaxConns()
	}))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineLimit(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.RecentGCPause(time.Second, time.Minute))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	orderService, err := order.NewService(postgres.NewTransactor(pool), order.Options{
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.NewHandler(
		handler.HandlerConfig{
			TopDefault: cfg.Stats.TopDefault,
			ActiveDays: cfg.Stats.ActiveDays,
		},
		orderService,
		item.NewCatalog(postgres.NewItemRepository(pool)),
		user.NewDirectory(postgres.NewUserRepository(pool), nil),
	)

	r := chi.NewRouter()
	r.Use(
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RequestID(),
		httpmiddleware.Recovery(),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:        cfg.RateLimit.Max,
			Window:     cfg.RateLimit.Window,
			TrustProxy: cfg.RateLimit.TrustProxy,
		}),
		httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
		httpmiddleware.LogRequests(),
	)
	healthSvc.Register(r)
	h.RegisterRoutes(r)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           r,
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
