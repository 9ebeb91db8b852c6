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
	"go.uber.org/multierr"

	"github.com/angelmondragon/partsmarket-backend/internal/analytics/router"
	"github.com/angelmondragon/partsmarket-backend/internal/analytics/worker"
	"github.com/angelmondragon/partsmarket-backend/internal/analytics/writer"
	"github.com/angelmondragon/partsmarket-backend/pkg/bigquery"
	"github.com/angelmondragon/partsmarket-backend/pkg/config"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/metrics"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox/registry"
	"github.com/angelmondragon/partsmarket-backend/pkg/pubsub"
	"github.com/angelmondragon/partsmarket-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run owns every client so deferred closes execute before the process exits.
func run() (err error) {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return resourceFailed(ctx, logg, "config", err)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return resourceFailed(ctx, logg, "redis", err)
	}
	defer func() { err = multierr.Append(err, closeLogged(ctx, logg, "redis", redisClient.Close)) }()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, true, logg)
	if err != nil {
		return resourceFailed(ctx, logg, "pubsub", err)
	}
	defer func() { err = multierr.Append(err, closeLogged(ctx, logg, "pubsub", pubsubClient.Close)) }()

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return resourceFailed(ctx, logg, "bigquery client", err)
	}
	defer func() { err = multierr.Append(err, closeLogged(ctx, logg, "bigquery", bqClient.Close)) }()

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return resourceFailed(ctx, logg, "analytics subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Idempotency.ConsumerTTL)
	if err != nil {
		return resourceFailed(ctx, logg, "idempotency manager", err)
	}

	analyticsWriter, err := writer.New(bqClient, writer.Config{MarketplaceTable: bqClient.MarketplaceEventsTable()})
	if err != nil {
		return resourceFailed(ctx, logg, "analytics bigquery writer", err)
	}

	routingHandler, err := router.NewRouter(analyticsWriter, registry.NewMarketplaceDecoders(), logg, nil)
	if err != nil {
		return resourceFailed(ctx, logg, "analytics router", err)
	}

	promRegistry := prometheus.NewRegistry()
	service, err := worker.NewService(worker.ServiceParams{
		Subscription: subscription,
		Handler:      routingHandler,
		Idempotency:  manager,
		Metrics:      metrics.NewWorkerMetrics(promRegistry),
		Logger:       logg,
	})
	if err != nil {
		return resourceFailed(ctx, logg, "analytics worker service", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	go func() {
		if err := metrics.Serve(runCtx, cfg.App.MetricsPort, promRegistry, logg); err != nil {
			logg.Error(runCtx, "metrics listener failed", err)
		}
	}()

	logg.Info(runCtx, "analytics worker ready")
	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "analytics worker failed", err)
		return err
	}
	logg.Info(runCtx, "analytics worker stopped")
	return nil
}

func resourceFailed(ctx context.Context, logg *logger.Logger, resource string, err error) error {
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	return err
}

func closeLogged(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) error {
	if err := closeFn(); err != nil {
		logg.Error(ctx, fmt.Sprintf("failed to close %s client", name), err)
		return err
	}
	return nil
}
