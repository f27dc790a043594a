package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/alxgalache/kuadrat-backend/pkg/enums"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Revolut      RevolutConfig
	FeatureFlags FeatureFlagsConfig
	Idempotency  IdempotencyConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Revolut.validate(); err != nil {
		return nil, err
	}
	currency, err := enums.ParseCurrency(cfg.App.Currency)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.App.Currency = currency.String()
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KUADRAT_APP_ENV" required:"true"`
	Port         string `envconfig:"KUADRAT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KUADRAT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KUADRAT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"KUADRAT_LOG_FORMAT"`
	FrontendURL  string `envconfig:"KUADRAT_FRONTEND_URL" default:"http://localhost:3000"`
	Currency     string `envconfig:"KUADRAT_CURRENCY" default:"EUR"`
	CORSOrigins  string `envconfig:"KUADRAT_CORS_ORIGINS"`
	// MetricsAddr enables a /metrics listener on the workers, e.g. ":9090".
	MetricsAddr string `envconfig:"KUADRAT_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"KUADRAT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KUADRAT_DB_DSN"`
	Driver string `envconfig:"KUADRAT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KUADRAT_DB_HOST"`
	LegacyPort     int    `envconfig:"KUADRAT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KUADRAT_DB_USER"`
	LegacyPassword string `envconfig:"KUADRAT_DB_PASSWORD"`
	LegacyName     string `envconfig:"KUADRAT_DB_NAME"`
	LegacySSLMode  string `envconfig:"KUADRAT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KUADRAT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KUADRAT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KUADRAT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KUADRAT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KUADRAT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KUADRAT_REDIS_ADDR"`
	Password     string        `envconfig:"KUADRAT_REDIS_PASSWORD"`
	DB           int           `envconfig:"KUADRAT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KUADRAT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KUADRAT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KUADRAT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KUADRAT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KUADRAT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens minted by the auth service; this service never issues them.
type JWTConfig struct {
	Secret string `envconfig:"KUADRAT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"KUADRAT_JWT_ISSUER" required:"true"`
}

type RevolutConfig struct {
	Env        string        `envconfig:"KUADRAT_REVOLUT_ENV" default:"sandbox"`
	SecretKey  string        `envconfig:"KUADRAT_REVOLUT_SECRET_KEY" required:"true"`
	APIVersion string        `envconfig:"KUADRAT_REVOLUT_API_VERSION" default:"2024-09-01"`
	BaseURL    string        `envconfig:"KUADRAT_REVOLUT_BASE_URL"`
	Timeout    time.Duration `envconfig:"KUADRAT_REVOLUT_TIMEOUT" default:"15s"`
	// RedirectURL is where the hosted checkout sends the buyer after paying.
	RedirectURL string `envconfig:"KUADRAT_REVOLUT_REDIRECT_URL"`

	BreakerMaxFailures uint32        `envconfig:"KUADRAT_REVOLUT_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"KUADRAT_REVOLUT_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// Environment returns the normalized gateway environment (sandbox/production).
func (r RevolutConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(r.Env))
	if env == "" {
		return RevolutEnvSandbox
	}
	return env
}

func (r RevolutConfig) validate() error {
	switch r.Environment() {
	case RevolutEnvSandbox, RevolutEnvProduction:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvRevolutEnv, RevolutEnvSandbox, RevolutEnvProduction)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvRevolutTimeout)
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KUADRAT_AUTO_MIGRATE" default:"false"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"KUADRAT_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KUADRAT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KUADRAT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KUADRAT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"KUADRAT_PUBSUB_NOTIFICATION_TOPIC" default:"kuadrat-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KUADRAT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KUADRAT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KUADRAT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"KUADRAT_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"KUADRAT_CRON_INTERVAL" default:"5m"`
	LockTTL     time.Duration `envconfig:"KUADRAT_CRON_LOCK_TTL" default:"10m"`
	SweepMinAge time.Duration `envconfig:"KUADRAT_PAYMENT_SWEEP_MIN_AGE" default:"10m"`
	SweepMaxAge time.Duration `envconfig:"KUADRAT_PAYMENT_SWEEP_MAX_AGE" default:"72h"`
	SweepBatch  int           `envconfig:"KUADRAT_PAYMENT_SWEEP_BATCH" default:"100"`
}

// RateLimitConfig throttles order creation and public token lookups.
type RateLimitConfig struct {
	Window             time.Duration `envconfig:"KUADRAT_RATE_LIMIT_WINDOW" default:"1m"`
	OrdersIPLimit      int           `envconfig:"KUADRAT_RATE_LIMIT_ORDERS_IP" default:"20"`
	OrdersEmailLimit   int           `envconfig:"KUADRAT_RATE_LIMIT_ORDERS_EMAIL" default:"5"`
	TokenLookupIPLimit int           `envconfig:"KUADRAT_RATE_LIMIT_TOKEN_LOOKUP_IP" default:"60"`
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
