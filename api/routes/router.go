package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/partsmarket-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/partsmarket-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/partsmarket-backend/api/controllers/webhooks"
	"github.com/angelmondragon/partsmarket-backend/api/middleware"
	"github.com/angelmondragon/partsmarket-backend/internal/auth"
	"github.com/angelmondragon/partsmarket-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/partsmarket-backend/internal/checkout"
	"github.com/angelmondragon/partsmarket-backend/internal/fulfillment"
	"github.com/angelmondragon/partsmarket-backend/internal/orders"
	product "github.com/angelmondragon/partsmarket-backend/internal/products"
	"github.com/angelmondragon/partsmarket-backend/internal/users"
	"github.com/angelmondragon/partsmarket-backend/pkg/config"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
	"github.com/angelmondragon/partsmarket-backend/pkg/metrics"
	"github.com/angelmondragon/partsmarket-backend/pkg/redis"
	"github.com/angelmondragon/partsmarket-backend/pkg/stripe"
)

const orgParam = "org_id"

// Store backs request idempotency and auth throttling.
type Store interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type signingSecrets interface {
	SigningSecret(endpoint stripe.Endpoint) string
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Dependencies carries everything the HTTP surface is built from.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	Store       Store
	Ready       map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Authorizer      middleware.Authorizer
	Users           users.Service
	AuthService     auth.Service
	RegisterService auth.RegisterService
	Products        product.Service
	Cart            cart.Service
	Orders          orders.Service
	Checkout        checkoutsvc.Service
	Fulfillment     fulfillment.Service

	Stripe             signingSecrets
	StripeWebhooks     webhookcontrollers.StripeWebhookService
	StripeWebhookGuard webhookGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
	)
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}
	r.Use(middleware.CORS(cfg.App.CORSOrigins))

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(deps.Ready, logg))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/v1/webhooks/stripe", func(r chi.Router) {
		r.Post("/", webhookcontrollers.StripeWebhook(stripe.EndpointMain, deps.StripeWebhooks, deps.Stripe, deps.StripeWebhookGuard, logg))
		r.Post("/connect", webhookcontrollers.StripeWebhook(stripe.EndpointConnect, deps.StripeWebhooks, deps.Stripe, deps.StripeWebhookGuard, logg))
		r.Post("/local", webhookcontrollers.StripeWebhook(stripe.EndpointLocal, deps.StripeWebhooks, deps.Stripe, deps.StripeWebhookGuard, logg))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Store, logg)).Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Store, logg)).Post("/register", controllers.AuthRegister(deps.RegisterService, deps.AuthService, logg))
	})

	r.Get("/v1/products", controllers.ProductCatalog(deps.Products, logg))
	r.Get("/v1/products/{product_id}", controllers.ProductGet(deps.Products, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Users, logg))
		r.Use(middleware.Idempotency(deps.Store, logg))

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{item_id}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{item_id}", controllers.CartRemoveItem(deps.Cart, logg))
		})

		r.Route("/v1/checkout", func(r chi.Router) {
			r.Post("/prepare", controllers.CheckoutPrepare(deps.Checkout, logg))
			r.Post("/prepare/stripe-hosted", controllers.CheckoutPrepareHosted(deps.Checkout, logg))
		})

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{order_id}", ordercontrollers.Detail(deps.Orders, logg))
			r.Post("/{order_id}/pay", controllers.OrderPay(deps.Checkout, logg))
			r.Post("/{order_id}/pay/stripe-hosted", controllers.OrderPayHosted(deps.Checkout, logg))
		})

		r.Route("/v1/seller/orders", func(r chi.Router) {
			r.Get("/", controllers.SellerOrdersList(deps.Fulfillment, logg))
			r.Get("/{order_item_id}", controllers.SellerOrderDetail(deps.Fulfillment, logg))
			r.Post("/{order_item_id}/accept", controllers.SellerOrderAccept(deps.Fulfillment, logg))
			r.Post("/{order_item_id}/reject", controllers.SellerOrderReject(deps.Fulfillment, logg))
			r.Post("/{order_item_id}/ship", controllers.SellerOrderShip(deps.Fulfillment, logg))
			r.Post("/{order_item_id}/deliver", controllers.SellerOrderDeliver(deps.Fulfillment, logg))
		})

		r.Route("/v1/organizations/{org_id}/products", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOrg(deps.Authorizer, orgParam, logg))
				r.Get("/", controllers.OrgListProducts(deps.Products, logg))
				r.Get("/{product_id}", controllers.OrgGetProduct(deps.Products, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOrg(deps.Authorizer, orgParam, logg, enums.OrgRoleStaff))
				r.Post("/", controllers.OrgCreateProduct(deps.Products, logg))
				r.Patch("/{product_id}", controllers.OrgPatchProduct(deps.Products, logg))
				r.Post("/{product_id}/stock", controllers.OrgAdjustStock(deps.Products, logg))
			})

			// Visibility changes reach buyers, so they stay with org admins.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOrg(deps.Authorizer, orgParam, logg, enums.OrgRoleAdmin))
				r.Post("/{product_id}/publish", controllers.OrgPublishProduct(deps.Products, logg))
				r.Post("/{product_id}/unpublish", controllers.OrgUnpublishProduct(deps.Products, logg))
			})
		})

		r.Route("/v1/admin/users", func(r chi.Router) {
			r.Use(middleware.RequireGlobal(deps.Authorizer, logg, enums.GlobalRoleAdmin))
			r.Get("/", controllers.AdminListUsers(deps.Users, logg))
			r.Route("/{user_id}", func(r chi.Router) {
				r.Post("/revoke-sessions", controllers.AdminRevokeSessions(deps.Users, logg))
				r.Put("/roles", controllers.AdminSetUserRoles(deps.Users, logg))
				r.Put("/ban", controllers.AdminSetUserBanned(deps.Users, logg))
			})
		})
	})

	return r
}
