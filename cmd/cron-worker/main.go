// Command cron-worker runs the scheduled maintenance jobs: pruning old
// notifications, compacting the outbox table, and reconciling payments
// stuck in pending. A Redis lock keeps a single instance active per
// environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tmnhat/platterly-backend/internal/cron"
	"github.com/tmnhat/platterly-backend/internal/notifications"
	"github.com/tmnhat/platterly-backend/internal/payments"
	"github.com/tmnhat/platterly-backend/pkg/config"
	"github.com/tmnhat/platterly-backend/pkg/db"
	"github.com/tmnhat/platterly-backend/pkg/logger"
	"github.com/tmnhat/platterly-backend/pkg/metrics"
	"github.com/tmnhat/platterly-backend/pkg/migrate"
	"github.com/tmnhat/platterly-backend/pkg/outbox"
	"github.com/tmnhat/platterly-backend/pkg/outbox/idempotency"
	"github.com/tmnhat/platterly-backend/pkg/paygate"
	"github.com/tmnhat/platterly-backend/pkg/realtime"
	"github.com/tmnhat/platterly-backend/pkg/redis"
)

const lockKeyFormat = "platterly:cron-worker:lock:%s"

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

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	if err := registerJobs(registry, cfg, logg, dbClient, redisClient); err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func registerJobs(registry *cron.Registry, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) error {
	gormDB := dbClient.DB()

	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(gormDB),
	})
	if err != nil {
		return fmt.Errorf("notification cleanup job: %w", err)
	}
	registry.Register(notificationCleanup)

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(gormDB),
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}
	registry.Register(outboxRetention)

	paymentsSvc, paymentsRepo, err := buildPaymentsService(cfg, logg, dbClient, redisClient)
	if err != nil {
		return fmt.Errorf("payments service: %w", err)
	}
	paymentReconcile, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:     logg,
		Reader:     paymentsRepo,
		Reconciler: paymentsSvc,
	})
	if err != nil {
		return fmt.Errorf("payment reconcile job: %w", err)
	}
	registry.Register(paymentReconcile)

	return nil
}

func buildPaymentsService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (payments.Service, payments.Repository, error) {
	gormDB := dbClient.DB()

	paygateClient, err := paygate.NewClient(cfg.PayGate)
	if err != nil {
		return nil, nil, err
	}

	realtimePub, err := realtime.NewPublisher(redisClient, logg)
	if err != nil {
		return nil, nil, err
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	if err != nil {
		return nil, nil, err
	}

	notifRepo := notifications.NewRepository(gormDB)
	dispatcher, err := notifications.NewDispatcher(notifRepo, realtimePub)
	if err != nil {
		return nil, nil, err
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	paymentsRepo := payments.NewRepository(gormDB)
	paymentsSvc, err := payments.NewService(paymentsRepo, dbClient, paygateClient, guard, dispatcher, outboxSvc, nil)
	if err != nil {
		return nil, nil, err
	}
	return paymentsSvc, paymentsRepo, nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
