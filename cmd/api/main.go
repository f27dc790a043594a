package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/alxgalache/kuadrat-backend/api/routes"
	"github.com/alxgalache/kuadrat-backend/internal/inventory"
	"github.com/alxgalache/kuadrat-backend/internal/notifications"
	"github.com/alxgalache/kuadrat-backend/internal/orders"
	"github.com/alxgalache/kuadrat-backend/internal/payments"
	"github.com/alxgalache/kuadrat-backend/internal/pricing"
	"github.com/alxgalache/kuadrat-backend/internal/shipping"
	"github.com/alxgalache/kuadrat-backend/internal/stats"
	"github.com/alxgalache/kuadrat-backend/pkg/config"
	"github.com/alxgalache/kuadrat-backend/pkg/db"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	"github.com/alxgalache/kuadrat-backend/pkg/env"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
	"github.com/alxgalache/kuadrat-backend/pkg/metrics"
	"github.com/alxgalache/kuadrat-backend/pkg/migrate"
	"github.com/alxgalache/kuadrat-backend/pkg/outbox"
	"github.com/alxgalache/kuadrat-backend/pkg/redis"
	"github.com/alxgalache/kuadrat-backend/pkg/revolut"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reg := metrics.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(reg)

	gateway, err := revolut.NewClient(context.Background(), cfg.Revolut, logg, metrics.NewGatewayMetrics(reg))
	if err != nil {
		logg.Error(context.Background(), "failed to create revolut client", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	catalog, err := pricing.NewCatalog(conn)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog", err)
		os.Exit(1)
	}
	resolver, err := shipping.NewResolver(conn)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping resolver", err)
		os.Exit(1)
	}
	builder, err := pricing.NewBuilder(catalog, resolver, pricing.Options{
		FrontendURL: cfg.App.FrontendURL,
		Currency:    enums.Currency(cfg.App.Currency),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing builder", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(conn)
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:        ordersRepo,
		Tx:          dbClient,
		Pricing:     builder,
		Gateway:     gateway,
		Logger:      logg,
		Metrics:     paymentMetrics,
		RedirectURL: gateway.RedirectURL(),
		FrontendURL: cfg.App.FrontendURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	notifier, err := notifications.NewOutboxNotifier(dbClient, outbox.NewService(outbox.NewRepository(conn), logg))
	if err != nil {
		logg.Error(context.Background(), "failed to create order notifier", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Orders:    ordersRepo,
		Tx:        dbClient,
		Inventory: inventory.NewMutator(logg),
		Gateway:   gateway,
		Pricing:   builder,
		Notifier:  notifier,
		Logger:    logg,
		Metrics:   paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	statsService, err := stats.NewService(conn)
	if err != nil {
		logg.Error(context.Background(), "failed to create stats service", err)
		os.Exit(1)
	}

	addr := ":" + env.Lookup(cfg.App.Port, "PORT")
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Orders:   orderService,
			Payments: paymentService,
			Stats:    statsService,
			Metrics:  reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
