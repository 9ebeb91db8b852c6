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

	"github.com/angelmondragon/partsmarket-backend/internal/cron"
	"github.com/angelmondragon/partsmarket-backend/internal/orders"
	"github.com/angelmondragon/partsmarket-backend/pkg/config"
	"github.com/angelmondragon/partsmarket-backend/pkg/db"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/metrics"
	"github.com/angelmondragon/partsmarket-backend/pkg/migrate"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox"
	"github.com/angelmondragon/partsmarket-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

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

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return resourceFailed(ctx, logg, "database", err)
	}
	defer func() { err = multierr.Append(err, closeLogged(ctx, logg, "database", dbClient.Close)) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return resourceFailed(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return resourceFailed(ctx, logg, "redis", err)
	}
	defer func() { err = multierr.Append(err, closeLogged(ctx, logg, "redis", redisClient.Close)) }()

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		return resourceFailed(ctx, logg, "cron jobs", err)
	}

	// The lock outlives a cycle so a slow sweep is never run twice.
	lock, err := cron.NewRedisLock(redisClient, redisClient.CronLockKey(cfg.App.Env), 2*cfg.Cron.Interval)
	if err != nil {
		return resourceFailed(ctx, logg, "cron lock", err)
	}

	promRegistry := prometheus.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewWorkerMetrics(promRegistry),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return resourceFailed(ctx, logg, "cron service", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})

	go func() {
		if err := metrics.Serve(runCtx, cfg.App.MetricsPort, promRegistry, logg); err != nil {
			logg.Error(runCtx, "metrics listener failed", err)
		}
	}()

	logg.Info(runCtx, "cron worker ready")
	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker failed", err)
		return err
	}
	logg.Info(runCtx, "cron worker stopped")
	return nil
}

// buildRegistry wires checkout expiry ahead of outbox retention.
func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(conn),
		TX:     dbClient,
		Outbox: outbox.NewService(outbox.NewRepository(conn), logg),
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewCheckoutExpiryJob(cron.CheckoutExpiryJobParams{
		Logger:    logg,
		Reader:    orders.NewPendingReader(conn),
		Orders:    ordersSvc,
		TTL:       cfg.Cron.CheckoutTTL,
		BatchSize: cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(conn),
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(expiry, retention), nil
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
