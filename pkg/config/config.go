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
	Sync         SyncConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GATEWAYSYNC_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"GATEWAYSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GATEWAYSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GATEWAYSYNC_SERVICE_KIND" default:"engine"`
}

type DBConfig struct {
	DSN    string `envconfig:"GATEWAYSYNC_DB_DSN"`
	Driver string `envconfig:"GATEWAYSYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GATEWAYSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"GATEWAYSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GATEWAYSYNC_DB_USER"`
	LegacyPassword string `envconfig:"GATEWAYSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"GATEWAYSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"GATEWAYSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GATEWAYSYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GATEWAYSYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GATEWAYSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GATEWAYSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GATEWAYSYNC_REDIS_URL"`
	Address      string        `envconfig:"GATEWAYSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"GATEWAYSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"GATEWAYSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GATEWAYSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GATEWAYSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GATEWAYSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GATEWAYSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GATEWAYSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig configures the outbound client for the payment processor.
type GatewayConfig struct {
	BaseURL        string        `envconfig:"GATEWAYSYNC_GATEWAY_BASE_URL" default:"https://api.culqi.com/v2"`
	SecretKey      string        `envconfig:"GATEWAYSYNC_GATEWAY_SECRET_KEY" required:"true"`
	PublicKey      string        `envconfig:"GATEWAYSYNC_GATEWAY_PUBLIC_KEY" required:"true"`
	Timeout        time.Duration `envconfig:"GATEWAYSYNC_GATEWAY_TIMEOUT" default:"15s"`
	MaxRetries     uint64        `envconfig:"GATEWAYSYNC_GATEWAY_MAX_RETRIES" default:"1"`
	RetryBackoff   time.Duration `envconfig:"GATEWAYSYNC_GATEWAY_RETRY_BACKOFF" default:"500ms"`
	RequestsPerSec float64       `envconfig:"GATEWAYSYNC_GATEWAY_RPS" default:"20"`
	Burst          int           `envconfig:"GATEWAYSYNC_GATEWAY_BURST" default:"10"`
	TrackingHeader string        `envconfig:"GATEWAYSYNC_GATEWAY_TRACKING_HEADER" default:"X-Tracking-Id"`
}

func (g GatewayConfig) validate() error {
	if strings.TrimSpace(g.BaseURL) == "" {
		return fmt.Errorf("%s is required", EnvGatewayBaseURL)
	}
	if _, err := url.Parse(g.BaseURL); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvGatewayBaseURL, err)
	}
	return nil
}

// SyncConfig holds the synchronization knobs shared by the synchronizers.
type SyncConfig struct {
	ListReconcileLimit    int           `envconfig:"GATEWAYSYNC_SYNC_LIST_RECONCILE_LIMIT" default:"10"`
	MinChargeAmount       int64         `envconfig:"GATEWAYSYNC_SYNC_MIN_CHARGE_AMOUNT" default:"100"`
	DefaultCurrency       string        `envconfig:"GATEWAYSYNC_SYNC_DEFAULT_CURRENCY" default:"PEN"`
	UpcomingBillingWindow time.Duration `envconfig:"GATEWAYSYNC_SYNC_UPCOMING_BILLING_WINDOW" default:"168h"`
	SubscriptionLockTTL   time.Duration `envconfig:"GATEWAYSYNC_SUBSCRIPTION_LOCK_TTL" default:"30s"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"GATEWAYSYNC_CRON_INTERVAL" default:"1h"`
	ReconcileLimit int           `envconfig:"GATEWAYSYNC_CRON_RECONCILE_LIMIT" default:"250"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GATEWAYSYNC_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GATEWAYSYNC_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if sqlite {
		db.Driver = "sqlite"
	}
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:gatewaysync.db?cache=shared"
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
