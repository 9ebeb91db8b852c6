package config

const (
	EnvPrefix = "PARTSMARKET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv           = "PARTSMARKET_APP_ENV"
	EnvPort             = "PARTSMARKET_APP_PORT"
	EnvDBDSN            = "PARTSMARKET_DB_DSN"
	EnvDBHost           = "PARTSMARKET_DB_HOST"
	EnvDBUser           = "PARTSMARKET_DB_USER"
	EnvDBName           = "PARTSMARKET_DB_NAME"
	EnvRedisURL         = "PARTSMARKET_REDIS_URL"
	EnvJWTSecret        = "PARTSMARKET_JWT_SECRET"
	EnvJWTIssuer        = "PARTSMARKET_JWT_ISSUER"
	EnvJWTExpMins       = "PARTSMARKET_JWT_EXPIRATION_MINUTES"
	EnvRoleCacheTTL     = "PARTSMARKET_RBAC_ROLE_CACHE_TTL"
	EnvCheckoutCurrency = "PARTSMARKET_CHECKOUT_CURRENCY"
	EnvStripeEnv        = "PARTSMARKET_STRIPE_ENV"
	EnvStripeAPIKey     = "PARTSMARKET_STRIPE_API_KEY"
	EnvStripeWebhook    = "PARTSMARKET_STRIPE_WEBHOOK_SECRET"
	EnvAutoMigrate      = "PARTSMARKET_AUTO_MIGRATE"
	EnvCORSOrigins      = "PARTSMARKET_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
