package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alxgalache/kuadrat-backend/internal/cron"
	"github.com/alxgalache/kuadrat-backend/internal/inventory"
	"github.com/alxgalache/kuadrat-backend/internal/notifications"
	"github.com/alxgalache/kuadrat-backend/internal/orders"
	"github.com/alxgalache/kuadrat-backend/internal/payments"
	"github.com/alxgalache/kuadrat-backend/internal/pricing"
	"github.com/alxgalache/kuadrat-backend/internal/shipping"
	"github.com/alxgalache/kuadrat-backend/pkg/config"
	"github.com/alxgalache/kuadrat-backend/pkg/db"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
	"github.com/alxgalache/kuadrat-backend/pkg/metrics"
	"github.com/alxgalache/kuadrat-backend/pkg/migrate"
	"github.com/alxgalache/kuadrat-backend/pkg/outbox"
	"github.com/alxgalache/kuadrat-backend/pkg/redis"
	"github.com/alxgalache/kuadrat-backend/pkg/revolut"
)

const lockName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	reg := metrics.NewRegistry()

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

	gateway, err := revolut.NewClient(context.Background(), cfg.Revolut, logg, metrics.NewGatewayMetrics(reg))
	if err != nil {
		logg.Error(context.Background(), "failed to create revolut client", err)
		os.Exit(1)
	}

	paymentService, err := newPaymentService(cfg, logg, dbClient, gateway, reg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewPaymentSweepJob(cron.PaymentSweepJobParams{
		Logger:   logg,
		Orders:   orders.NewRepository(dbClient.DB()),
		Payments: paymentService,
		MinAge:   cfg.Cron.SweepMinAge,
		MaxAge:   cfg.Cron.SweepMaxAge,
		Batch:    cfg.Cron.SweepBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment sweep job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		DB:        dbClient,
		Outbox:    outbox.NewRepository(dbClient.DB()),
		Retention: time.Duration(cfg.Outbox.RetentionDays) * 24 * time.Hour,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(sweepJob, retentionJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if addr := cfg.App.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, reg, logg); err != nil {
				logg.Error(ctx, "metrics listener failed", err)
			}
		}()
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// newPaymentService wires the same confirmation path the API uses, so swept
// orders notify buyers through the outbox as well.
func newPaymentService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gateway revolut.Gateway, reg prometheus.Registerer) (payments.Service, error) {
	conn := dbClient.DB()
	catalog, err := pricing.NewCatalog(conn)
	if err != nil {
		return nil, err
	}
	resolver, err := shipping.NewResolver(conn)
	if err != nil {
		return nil, err
	}
	builder, err := pricing.NewBuilder(catalog, resolver, pricing.Options{
		FrontendURL: cfg.App.FrontendURL,
		Currency:    enums.Currency(cfg.App.Currency),
	})
	if err != nil {
		return nil, err
	}
	notifier, err := notifications.NewOutboxNotifier(dbClient, outbox.NewService(outbox.NewRepository(conn), logg))
	if err != nil {
		return nil, err
	}
	return payments.NewService(payments.ServiceParams{
		Orders:    orders.NewRepository(conn),
		Tx:        dbClient,
		Inventory: inventory.NewMutator(logg),
		Gateway:   gateway,
		Pricing:   builder,
		Notifier:  notifier,
		Logger:    logg,
		Metrics:   metrics.NewPaymentMetrics(reg),
	})
}
