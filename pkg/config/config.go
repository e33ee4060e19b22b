package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "PLATTERLY"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv   = "PLATTERLY_APP_ENV"
	EnvPort     = "PLATTERLY_APP_PORT"
	EnvDBDSN    = "PLATTERLY_DB_DSN"
	EnvDBHost   = "PLATTERLY_DB_HOST"
	EnvDBUser   = "PLATTERLY_DB_USER"
	EnvDBName   = "PLATTERLY_DB_NAME"
	EnvRedisURL = "PLATTERLY_REDIS_URL"

	EnvJWTSecret  = "PLATTERLY_JWT_SECRET"
	EnvJWTIssuer  = "PLATTERLY_JWT_ISSUER"
	EnvJWTExpMins = "PLATTERLY_JWT_EXPIRATION_MINUTES"

	EnvMapsBaseURL    = "PLATTERLY_MAPS_BASE_URL"
	EnvMapsAPIKey     = "PLATTERLY_MAPS_API_KEY"
	EnvPayGateBaseURL = "PLATTERLY_PAYGATE_BASE_URL"
	EnvPayGateSecret  = "PLATTERLY_PAYGATE_SECRET"

	EnvGCPProjectID       = "PLATTERLY_GCP_PROJECT_ID"
	EnvPubSubDomainTopic  = "PLATTERLY_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub    = "PLATTERLY_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvPubSubOrdersTopic  = "PLATTERLY_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub    = "PLATTERLY_PUBSUB_ORDERS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Maps     MapsConfig
	PayGate  PayGateConfig
	Pricing  PricingConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	Eventing EventingConfig
	Flags    FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PLATTERLY_APP_ENV" required:"true"`
	Port         string `envconfig:"PLATTERLY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PLATTERLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PLATTERLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PLATTERLY_DB_DSN"`
	Driver string `envconfig:"PLATTERLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PLATTERLY_DB_HOST"`
	LegacyPort     int    `envconfig:"PLATTERLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PLATTERLY_DB_USER"`
	LegacyPassword string `envconfig:"PLATTERLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"PLATTERLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"PLATTERLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PLATTERLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLATTERLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLATTERLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLATTERLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PLATTERLY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PLATTERLY_REDIS_ADDR"`
	Password     string        `envconfig:"PLATTERLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLATTERLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLATTERLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLATTERLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLATTERLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLATTERLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLATTERLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PLATTERLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PLATTERLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PLATTERLY_JWT_EXPIRATION_MINUTES" required:"true"`
}

type MapsConfig struct {
	BaseURL string        `envconfig:"PLATTERLY_MAPS_BASE_URL"`
	APIKey  string        `envconfig:"PLATTERLY_MAPS_API_KEY"`
	Timeout time.Duration `envconfig:"PLATTERLY_MAPS_TIMEOUT" default:"10s"`
}

type PayGateConfig struct {
	BaseURL    string        `envconfig:"PLATTERLY_PAYGATE_BASE_URL"`
	MerchantID string        `envconfig:"PLATTERLY_PAYGATE_MERCHANT_ID"`
	Secret     string        `envconfig:"PLATTERLY_PAYGATE_SECRET"`
	ReturnURL  string        `envconfig:"PLATTERLY_PAYGATE_RETURN_URL"`
	Timeout    time.Duration `envconfig:"PLATTERLY_PAYGATE_TIMEOUT" default:"10s"`
	CallbackTTL time.Duration `envconfig:"PLATTERLY_PAYGATE_CALLBACK_TTL" default:"720h"`
}

// PricingConfig carries the shipping fee schedule. Amounts are VND.
type PricingConfig struct {
	BaseShippingFee   int64   `envconfig:"PLATTERLY_PRICING_BASE_SHIPPING_FEE" default:"10000"`
	PerKmRate         int64   `envconfig:"PLATTERLY_PRICING_PER_KM_RATE" default:"3500"`
	BaseDistanceKm    float64 `envconfig:"PLATTERLY_PRICING_BASE_DISTANCE_KM" default:"2"`
	MaxLineQuantity   int     `envconfig:"PLATTERLY_PRICING_MAX_LINE_QUANTITY" default:"50"`
	MaxOrderQuantity  int     `envconfig:"PLATTERLY_PRICING_MAX_ORDER_QUANTITY" default:"50"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PLATTERLY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PLATTERLY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PLATTERLY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"PLATTERLY_PUBSUB_DOMAIN_TOPIC" default:"platterly-domain-events"`
	DomainSubscription string `envconfig:"PLATTERLY_PUBSUB_DOMAIN_SUBSCRIPTION"`
	OrdersTopic        string `envconfig:"PLATTERLY_PUBSUB_ORDERS_TOPIC" default:"platterly-order-events"`
	OrdersSubscription string `envconfig:"PLATTERLY_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PLATTERLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PLATTERLY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PLATTERLY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"PLATTERLY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PLATTERLY_AUTO_MIGRATE" default:"false"`
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
