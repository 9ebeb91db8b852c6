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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/partsmarket-backend/api/controllers"
	"github.com/angelmondragon/partsmarket-backend/api/routes"
	"github.com/angelmondragon/partsmarket-backend/internal/auth"
	"github.com/angelmondragon/partsmarket-backend/internal/cart"
	"github.com/angelmondragon/partsmarket-backend/internal/checkout"
	"github.com/angelmondragon/partsmarket-backend/internal/fulfillment"
	"github.com/angelmondragon/partsmarket-backend/internal/memberships"
	"github.com/angelmondragon/partsmarket-backend/internal/orders"
	product "github.com/angelmondragon/partsmarket-backend/internal/products"
	"github.com/angelmondragon/partsmarket-backend/internal/rbac"
	"github.com/angelmondragon/partsmarket-backend/internal/users"
	stripewebhook "github.com/angelmondragon/partsmarket-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/partsmarket-backend/pkg/config"
	"github.com/angelmondragon/partsmarket-backend/pkg/db"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/metrics"
	"github.com/angelmondragon/partsmarket-backend/pkg/migrate"
	"github.com/angelmondragon/partsmarket-backend/pkg/outbox"
	"github.com/angelmondragon/partsmarket-backend/pkg/redis"
	"github.com/angelmondragon/partsmarket-backend/pkg/stripe"
)

const (
	serviceKind     = "api"
	shutdownTimeout = 15 * time.Second
	webhookScope    = "stripe-webhook"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() (err error) {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if loadErr := godotenv.Load(); loadErr != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

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

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return resourceFailed(ctx, logg, "stripe", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	marketplaceMetrics := metrics.NewMarketplaceMetrics(promRegistry)

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, stripeClient, marketplaceMetrics)
	if err != nil {
		return resourceFailed(ctx, logg, "services", err)
	}
	deps.Gatherer = promRegistry
	deps.HTTPMetrics = metrics.NewHTTPMetrics(promRegistry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
		"stripe_env":  stripeClient.Environment(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(runCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			return err
		}
		return nil
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(runCtx, "api server shutdown failed", err)
		return err
	}
	logg.Info(runCtx, "api server stopped")
	return nil
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	stripeClient *stripe.Client,
	marketplaceMetrics *metrics.MarketplaceMetrics,
) (routes.Dependencies, error) {
	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	membershipsRepo := memberships.NewRepository(conn)
	productsRepo := product.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	var errs error
	keep := func(err error) { errs = multierr.Append(errs, err) }

	usersSvc, err := users.NewService(users.ServiceParams{Repo: usersRepo, TX: dbClient, Logger: logg})
	keep(err)
	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:        usersRepo,
		MembershipsRepo: membershipsRepo,
		JWTConfig:       cfg.JWT,
		PasswordConfig:  cfg.Password,
		Logger:          logg,
	})
	keep(err)
	registerSvc, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TX:             dbClient,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	keep(err)
	engine, err := rbac.NewEngine(rbac.EngineParams{
		Memberships: membershipsRepo,
		Cache:       rbac.NewRedisRoleCache(redisClient),
		CacheTTL:    cfg.RBAC.RoleCacheTTL,
		Logger:      logg,
	})
	keep(err)
	productSvc, err := product.NewService(product.ServiceParams{
		Repo:         productsRepo,
		TX:           dbClient,
		Outbox:       emitter,
		CreateKeys:   redisClient,
		CreateKeyTTL: cfg.Idempotency.ProductCreateTTL,
		Logger:       logg,
	})
	keep(err)
	cartSvc, err := cart.NewService(cart.ServiceParams{
		Repo:        cart.NewRepository(conn),
		Products:    productsRepo,
		TX:          dbClient,
		MaxQuantity: cfg.Cart.MaxItemQuantity,
		Logger:      logg,
	})
	keep(err)
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   ordersRepo,
		TX:     dbClient,
		Outbox: emitter,
		Logger: logg,
	})
	keep(err)
	gateway, err := checkout.NewStripeGateway(stripeClient, cfg.Checkout)
	keep(err)
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Orders:   ordersSvc,
		Gateway:  gateway,
		Currency: cfg.Checkout.Currency,
		Metrics:  marketplaceMetrics,
		Logger:   logg,
	})
	keep(err)
	fulfillmentSvc, err := fulfillment.NewService(fulfillment.ServiceParams{
		Repo:        fulfillment.NewRepository(conn),
		Memberships: membershipsRepo,
		TX:          dbClient,
		Outbox:      emitter,
		Metrics:     marketplaceMetrics,
		Logger:      logg,
	})
	keep(err)
	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Carts:      cartSvc,
		Orders:     ordersSvc,
		OrdersRepo: ordersRepo,
		Stock:      productSvc,
		TX:         dbClient,
		Metrics:    marketplaceMetrics,
		Logger:     logg,
	})
	keep(err)
	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Idempotency.WebhookEventTTL, webhookScope)
	keep(err)

	if errs != nil {
		return routes.Dependencies{}, errs
	}
	return routes.Dependencies{
		Config: cfg,
		Logger: logg,
		Store:  redisClient,
		Ready: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
		},
		Authorizer:         engine,
		Users:              usersSvc,
		AuthService:        authSvc,
		RegisterService:    registerSvc,
		Products:           productSvc,
		Cart:               cartSvc,
		Orders:             ordersSvc,
		Checkout:           checkoutSvc,
		Fulfillment:        fulfillmentSvc,
		Stripe:             stripeClient,
		StripeWebhooks:     webhookSvc,
		StripeWebhookGuard: guard,
	}, nil
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
