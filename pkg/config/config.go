package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	RBAC          RBACConfig
	Cart          CartConfig
	Checkout      CheckoutConfig
	Idempotency   IdempotencyConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Stripe        StripeConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if cfg.App.IsProd() {
		if err := cfg.validateProd(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// validateProd rejects settings that are only safe on a workstation.
func (c *Config) validateProd() error {
	if c.FeatureFlags.AutoMigrate {
		return fmt.Errorf("%s must be off in production; run cmd/migrate instead", EnvAutoMigrate)
	}
	for _, origin := range c.App.CORSOrigins {
		if strings.TrimSpace(origin) == "*" {
			return fmt.Errorf("%s cannot allow every origin in production", EnvCORSOrigins)
		}
	}
	if c.Stripe.APIKey != "" && c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("%s is required when %s is set in production", EnvStripeWebhook, EnvStripeAPIKey)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"PARTSMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"PARTSMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PARTSMARKET_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PARTSMARKET_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PARTSMARKET_LOG_WARN_STACK" default:"false"`
	// MetricsPort serves /metrics for the background workers; the API exposes
	// it on its own router.
	MetricsPort string   `envconfig:"PARTSMARKET_METRICS_PORT" default:"9090"`
	CORSOrigins []string `envconfig:"PARTSMARKET_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"PARTSMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PARTSMARKET_DB_DSN"`
	Driver string `envconfig:"PARTSMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PARTSMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"PARTSMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PARTSMARKET_DB_USER"`
	LegacyPassword string `envconfig:"PARTSMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"PARTSMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"PARTSMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PARTSMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PARTSMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PARTSMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PARTSMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PARTSMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PARTSMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"PARTSMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"PARTSMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PARTSMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PARTSMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PARTSMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PARTSMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PARTSMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PARTSMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PARTSMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PARTSMARKET_JWT_EXPIRATION_MINUTES" required:"true"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PARTSMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PARTSMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PARTSMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PARTSMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PARTSMARKET_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"PARTSMARKET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"PARTSMARKET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"PARTSMARKET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`

	RegisterWindow     time.Duration `envconfig:"PARTSMARKET_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"10m"`
	RegisterEmailLimit int           `envconfig:"PARTSMARKET_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PARTSMARKET_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
}

// RBACConfig controls the global role cache.
type RBACConfig struct {
	RoleCacheTTL time.Duration `envconfig:"PARTSMARKET_RBAC_ROLE_CACHE_TTL" default:"15m"`
}

type CartConfig struct {
	MaxItemQuantity int `envconfig:"PARTSMARKET_CART_MAX_ITEM_QUANTITY" default:"99"`
}

// CheckoutConfig carries the payment session presentation settings.
type CheckoutConfig struct {
	Currency   string `envconfig:"PARTSMARKET_CHECKOUT_CURRENCY" default:"usd"`
	ReturnURL  string `envconfig:"PARTSMARKET_CHECKOUT_RETURN_URL" default:"http://localhost:5173/orders/return?session_id={CHECKOUT_SESSION_ID}"`
	SuccessURL string `envconfig:"PARTSMARKET_CHECKOUT_SUCCESS_URL" default:"http://localhost:5173/orders/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `envconfig:"PARTSMARKET_CHECKOUT_CANCEL_URL" default:"http://localhost:5173/cart"`
}

func (c CheckoutConfig) validate() error {
	if len(strings.TrimSpace(c.Currency)) != 3 {
		return fmt.Errorf("%s must be a 3 letter currency code", EnvCheckoutCurrency)
	}
	return nil
}

type IdempotencyConfig struct {
	ProductCreateTTL time.Duration `envconfig:"PARTSMARKET_IDEMPOTENCY_PRODUCT_CREATE_TTL" default:"60s"`
	WebhookEventTTL  time.Duration `envconfig:"PARTSMARKET_IDEMPOTENCY_WEBHOOK_EVENT_TTL" default:"720h"`
	ConsumerTTL      time.Duration `envconfig:"PARTSMARKET_IDEMPOTENCY_CONSUMER_TTL" default:"720h"`
}

// CronConfig drives the maintenance sweeps run by cmd/cron-worker.
type CronConfig struct {
	Interval        time.Duration `envconfig:"PARTSMARKET_CRON_INTERVAL" default:"15m"`
	CheckoutTTL     time.Duration `envconfig:"PARTSMARKET_CRON_CHECKOUT_TTL" default:"24h"`
	OutboxRetention time.Duration `envconfig:"PARTSMARKET_CRON_OUTBOX_RETENTION" default:"720h"`
	BatchSize       int           `envconfig:"PARTSMARKET_CRON_BATCH_SIZE" default:"200"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PARTSMARKET_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PARTSMARKET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PARTSMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PARTSMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"PARTSMARKET_PUBSUB_ORDERS_TOPIC" default:"pm-order-events"`
	AnalyticsSubscription string `envconfig:"PARTSMARKET_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"pm-order-events-analytics"`
}

type BigQueryConfig struct {
	Dataset                string `envconfig:"PARTSMARKET_BIGQUERY_DATASET" default:"partsmarket"`
	MarketplaceEventsTable string `envconfig:"PARTSMARKET_BIGQUERY_MARKETPLACE_TABLE" default:"marketplace_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PARTSMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PARTSMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PARTSMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// StripeConfig holds the API key plus one signing secret per webhook endpoint.
type StripeConfig struct {
	APIKey               string `envconfig:"PARTSMARKET_STRIPE_API_KEY"`
	Env                  string `envconfig:"PARTSMARKET_STRIPE_ENV" default:"test"`
	WebhookSecret        string `envconfig:"PARTSMARKET_STRIPE_WEBHOOK_SECRET"`
	ConnectWebhookSecret string `envconfig:"PARTSMARKET_STRIPE_CONNECT_WEBHOOK_SECRET"`
	LocalWebhookSecret   string `envconfig:"PARTSMARKET_STRIPE_LOCAL_WEBHOOK_SECRET"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
