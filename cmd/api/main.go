package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tmnhat/platterly-backend/api/routes"
	"github.com/tmnhat/platterly-backend/internal/cart"
	"github.com/tmnhat/platterly-backend/internal/delivery"
	"github.com/tmnhat/platterly-backend/internal/geo"
	"github.com/tmnhat/platterly-backend/internal/notifications"
	"github.com/tmnhat/platterly-backend/internal/orders"
	"github.com/tmnhat/platterly-backend/internal/payments"
	"github.com/tmnhat/platterly-backend/internal/pricing"
	"github.com/tmnhat/platterly-backend/internal/tracking"
	"github.com/tmnhat/platterly-backend/internal/vouchers"
	"github.com/tmnhat/platterly-backend/pkg/config"
	"github.com/tmnhat/platterly-backend/pkg/db"
	"github.com/tmnhat/platterly-backend/pkg/logger"
	"github.com/tmnhat/platterly-backend/pkg/maps"
	"github.com/tmnhat/platterly-backend/pkg/metrics"
	"github.com/tmnhat/platterly-backend/pkg/migrate"
	"github.com/tmnhat/platterly-backend/pkg/outbox"
	"github.com/tmnhat/platterly-backend/pkg/outbox/idempotency"
	"github.com/tmnhat/platterly-backend/pkg/paygate"
	"github.com/tmnhat/platterly-backend/pkg/realtime"
	"github.com/tmnhat/platterly-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	fulfillmentMetrics := metrics.NewFulfillmentMetrics(registry)

	svcs, err := buildServices(cfg, logg, dbClient, redisClient, fulfillmentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, fulfillmentMetrics, svcs),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	m *metrics.FulfillmentMetrics,
) (routes.Services, error) {
	gormDB := dbClient.DB()

	mapsOpts := []maps.Option{maps.WithHTTPClient(&http.Client{Timeout: cfg.Maps.Timeout})}
	if cfg.Maps.BaseURL != "" {
		mapsOpts = append(mapsOpts,
			maps.WithGeocodeBaseURL(cfg.Maps.BaseURL),
			maps.WithRoutesBaseURL(cfg.Maps.BaseURL),
		)
	}
	mapsClient, err := maps.NewClient(cfg.Maps.APIKey, mapsOpts...)
	if err != nil {
		return routes.Services{}, err
	}
	geoSvc := geo.NewService(mapsClient)

	paygateClient, err := paygate.NewClient(cfg.PayGate)
	if err != nil {
		return routes.Services{}, err
	}

	calc, err := pricing.NewCalculator(cfg.Pricing)
	if err != nil {
		return routes.Services{}, err
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	realtimePub, err := realtime.NewPublisher(redisClient, logg)
	if err != nil {
		return routes.Services{}, err
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	if err != nil {
		return routes.Services{}, err
	}

	notifRepo := notifications.NewRepository(gormDB)
	dispatcher, err := notifications.NewDispatcher(notifRepo, realtimePub)
	if err != nil {
		return routes.Services{}, err
	}
	notificationsSvc, err := notifications.NewService(notifRepo)
	if err != nil {
		return routes.Services{}, err
	}

	cartSvc, err := cart.NewService(cart.NewRepository(gormDB))
	if err != nil {
		return routes.Services{}, err
	}

	voucherSvc, err := vouchers.NewService(vouchers.NewRepository(gormDB))
	if err != nil {
		return routes.Services{}, err
	}

	ordersRepo := orders.NewRepository(gormDB)
	ordersSvc, err := orders.NewService(ordersRepo, dbClient, cartSvc, geoSvc, calc, voucherSvc, dispatcher, outboxSvc, m)
	if err != nil {
		return routes.Services{}, err
	}

	deliverySvc, err := delivery.NewService(delivery.NewRepository(gormDB), dbClient, ordersRepo, dispatcher, outboxSvc, m)
	if err != nil {
		return routes.Services{}, err
	}

	trackingSvc, err := tracking.NewService(tracking.NewRepository(gormDB), dbClient, outboxSvc)
	if err != nil {
		return routes.Services{}, err
	}

	paymentsSvc, err := payments.NewService(payments.NewRepository(gormDB), dbClient, paygateClient, guard, dispatcher, outboxSvc, m)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Orders:        ordersSvc,
		Delivery:      deliverySvc,
		Tracking:      trackingSvc,
		Payments:      paymentsSvc,
		Notifications: notificationsSvc,
		Cart:          cartSvc,
		Vouchers:      voucherSvc,
	}, nil
}
