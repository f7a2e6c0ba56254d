package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Breaker      BreakerConfig
	Recovery     RecoveryConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"COMMERCE_APP_ENV" required:"true"`
	Port         string `envconfig:"COMMERCE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COMMERCE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COMMERCE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COMMERCE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COMMERCE_DB_DSN"`
	Driver string `envconfig:"COMMERCE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COMMERCE_DB_HOST"`
	LegacyPort     int    `envconfig:"COMMERCE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COMMERCE_DB_USER"`
	LegacyPassword string `envconfig:"COMMERCE_DB_PASSWORD"`
	LegacyName     string `envconfig:"COMMERCE_DB_NAME"`
	LegacySSLMode  string `envconfig:"COMMERCE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COMMERCE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COMMERCE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COMMERCE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COMMERCE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COMMERCE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COMMERCE_REDIS_ADDR"`
	Password     string        `envconfig:"COMMERCE_REDIS_PASSWORD"`
	DB           int           `envconfig:"COMMERCE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COMMERCE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COMMERCE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COMMERCE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COMMERCE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COMMERCE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig wires the external payment gateway simulator.
type GatewayConfig struct {
	BaseURL        string        `envconfig:"COMMERCE_PG_BASE_URL" required:"true"`
	MerchantID     string        `envconfig:"COMMERCE_PG_MERCHANT_ID" required:"true"`
	CallbackURL    string        `envconfig:"COMMERCE_PG_CALLBACK_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"COMMERCE_PG_REQUEST_TIMEOUT" default:"3s"`

	RetryAttempts    int           `envconfig:"COMMERCE_PG_RETRY_ATTEMPTS" default:"3"`
	RetryBaseBackoff time.Duration `envconfig:"COMMERCE_PG_RETRY_BASE_BACKOFF" default:"500ms"`
	RetryMaxBackoff  time.Duration `envconfig:"COMMERCE_PG_RETRY_MAX_BACKOFF" default:"5s"`
}

// BreakerConfig tunes the circuit breaker guarding payment gateway calls.
type BreakerConfig struct {
	WindowSize            int           `envconfig:"COMMERCE_BREAKER_WINDOW_SIZE" default:"20"`
	MinimumCalls          int           `envconfig:"COMMERCE_BREAKER_MINIMUM_CALLS" default:"5"`
	FailureRateThreshold  float64       `envconfig:"COMMERCE_BREAKER_FAILURE_RATE" default:"0.5"`
	SlowCallRateThreshold float64       `envconfig:"COMMERCE_BREAKER_SLOW_CALL_RATE" default:"0.5"`
	SlowCallDuration      time.Duration `envconfig:"COMMERCE_BREAKER_SLOW_CALL_DURATION" default:"2s"`
	OpenStateWait         time.Duration `envconfig:"COMMERCE_BREAKER_OPEN_STATE_WAIT" default:"10s"`
	HalfOpenMaxCalls      int           `envconfig:"COMMERCE_BREAKER_HALF_OPEN_MAX_CALLS" default:"3"`
}

// RecoveryConfig tunes the pending-payment recovery sweep.
type RecoveryConfig struct {
	SweepInterval  time.Duration `envconfig:"COMMERCE_RECOVERY_SWEEP_INTERVAL" default:"1m"`
	PendingMinAge  time.Duration `envconfig:"COMMERCE_RECOVERY_PENDING_MIN_AGE" default:"1m"`
	SweepBatchSize int           `envconfig:"COMMERCE_RECOVERY_SWEEP_BATCH_SIZE" default:"100"`
	FastPathDelay  time.Duration `envconfig:"COMMERCE_RECOVERY_FAST_PATH_DELAY" default:"3s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COMMERCE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COMMERCE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"COMMERCE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COMMERCE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"COMMERCE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COMMERCE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"COMMERCE_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"COMMERCE_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	PaymentsTopic      string `envconfig:"COMMERCE_PUBSUB_PAYMENTS_TOPIC" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COMMERCE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COMMERCE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COMMERCE_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
