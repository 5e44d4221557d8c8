package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "PROMPTFORGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PROMPTFORGE_DB_DSN"
	EnvDBHost = "PROMPTFORGE_DB_HOST"
	EnvDBUser = "PROMPTFORGE_DB_USER"
	EnvDBName = "PROMPTFORGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Gemini   GeminiConfig
	Catalog  CatalogConfig
	Checkout CheckoutConfig
	Ledger   LedgerConfig
	Webhook  WebhookConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Catalog.parseOfferings(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PROMPTFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"PROMPTFORGE_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"PROMPTFORGE_APP_BASE_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"PROMPTFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PROMPTFORGE_LOG_WARN_STACK" default:"false"`

	RequestTimeout time.Duration `envconfig:"PROMPTFORGE_REQUEST_TIMEOUT" default:"30s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PROMPTFORGE_DB_DSN"`
	Driver string `envconfig:"PROMPTFORGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PROMPTFORGE_DB_HOST"`
	LegacyPort     int    `envconfig:"PROMPTFORGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROMPTFORGE_DB_USER"`
	LegacyPassword string `envconfig:"PROMPTFORGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROMPTFORGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROMPTFORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PROMPTFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROMPTFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROMPTFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROMPTFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"PROMPTFORGE_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROMPTFORGE_REDIS_URL"`
	Address      string        `envconfig:"PROMPTFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"PROMPTFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROMPTFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROMPTFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROMPTFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROMPTFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROMPTFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROMPTFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"PROMPTFORGE_STRIPE_API_KEY"`
	Secret string `envconfig:"PROMPTFORGE_STRIPE_SECRET"`
	Env    string `envconfig:"PROMPTFORGE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GeminiConfig struct {
	APIKey       string        `envconfig:"PROMPTFORGE_GEMINI_API_KEY"`
	BaseURL      string        `envconfig:"PROMPTFORGE_GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	DefaultModel string        `envconfig:"PROMPTFORGE_GEMINI_DEFAULT_MODEL" default:"gemini-2.5-flash-lite"`
	Timeout      time.Duration `envconfig:"PROMPTFORGE_GEMINI_TIMEOUT" default:"60s"`
}

// CatalogConfig carries the purchasable offerings as a JSON document so the
// catalog stays deployment data rather than compiled-in constants.
type CatalogConfig struct {
	OfferingsJSON string `envconfig:"PROMPTFORGE_CATALOG_OFFERINGS" default:"[]"`

	Offerings []OfferingConfig `ignored:"true"`
}

// OfferingConfig is one purchasable unit as configured.
type OfferingConfig struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	CreditAmount int64  `json:"credit_amount,omitempty"`
	TestPriceRef string `json:"test_price_ref"`
	LivePriceRef string `json:"live_price_ref"`
}

func (c *CatalogConfig) parseOfferings() error {
	raw := strings.TrimSpace(c.OfferingsJSON)
	if raw == "" {
		raw = "[]"
	}
	if err := json.Unmarshal([]byte(raw), &c.Offerings); err != nil {
		return fmt.Errorf("parsing %s_CATALOG_OFFERINGS: %w", EnvPrefix, err)
	}
	return nil
}

type CheckoutConfig struct {
	// Subscription-kind offerings sell in subscription mode except the ids
	// listed here, which bill once (lifetime plans).
	LifetimeOfferingIDs []string `envconfig:"PROMPTFORGE_CHECKOUT_LIFETIME_OFFERING_IDS"`

	SuccessPath string `envconfig:"PROMPTFORGE_CHECKOUT_SUCCESS_PATH" default:"/account?checkout=success"`
	CancelPath  string `envconfig:"PROMPTFORGE_CHECKOUT_CANCEL_PATH" default:"/account?checkout=canceled"`
}

type LedgerConfig struct {
	RetryAttempts int           `envconfig:"PROMPTFORGE_LEDGER_RETRY_ATTEMPTS" default:"3"`
	RetryBackoff  time.Duration `envconfig:"PROMPTFORGE_LEDGER_RETRY_BACKOFF" default:"50ms"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PROMPTFORGE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
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
