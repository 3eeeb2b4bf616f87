package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "GRUBSQUAD_APP_ENV"
	EnvPort     = "GRUBSQUAD_APP_PORT"
	EnvDBDSN    = "GRUBSQUAD_DB_DSN"
	EnvDBHost   = "GRUBSQUAD_DB_HOST"
	EnvDBUser   = "GRUBSQUAD_DB_USER"
	EnvDBName   = "GRUBSQUAD_DB_NAME"
	EnvRedisURL = "GRUBSQUAD_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Provider     ProviderConfig
	Square       SquareConfig
	Directory    DirectoryConfig
	FeatureFlags FeatureFlagsConfig
	Cron         CronConfig
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
	Env          string `envconfig:"GRUBSQUAD_APP_ENV" required:"true"`
	Port         string `envconfig:"GRUBSQUAD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GRUBSQUAD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GRUBSQUAD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GRUBSQUAD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GRUBSQUAD_DB_DSN"`
	Driver string `envconfig:"GRUBSQUAD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GRUBSQUAD_DB_HOST"`
	LegacyPort     int    `envconfig:"GRUBSQUAD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GRUBSQUAD_DB_USER"`
	LegacyPassword string `envconfig:"GRUBSQUAD_DB_PASSWORD"`
	LegacyName     string `envconfig:"GRUBSQUAD_DB_NAME"`
	LegacySSLMode  string `envconfig:"GRUBSQUAD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GRUBSQUAD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GRUBSQUAD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GRUBSQUAD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GRUBSQUAD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GRUBSQUAD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GRUBSQUAD_REDIS_ADDR"`
	Password     string        `envconfig:"GRUBSQUAD_REDIS_PASSWORD"`
	DB           int           `envconfig:"GRUBSQUAD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GRUBSQUAD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GRUBSQUAD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GRUBSQUAD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GRUBSQUAD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GRUBSQUAD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ProviderConfig drives the generic commerce-provider proxy boundary.
type ProviderConfig struct {
	BaseURL         string        `envconfig:"GRUBSQUAD_PROVIDER_PROXY_URL"`
	APIKey          string        `envconfig:"GRUBSQUAD_PROVIDER_PROXY_API_KEY"`
	Timeout         time.Duration `envconfig:"GRUBSQUAD_PROVIDER_TIMEOUT" default:"8s"`
	PriceMultiplier string        `envconfig:"GRUBSQUAD_PROVIDER_PRICE_MULTIPLIER" default:"1.0"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"GRUBSQUAD_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"GRUBSQUAD_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"GRUBSQUAD_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// DirectoryConfig points at the team/restaurant directory service. The
// cart engine only reads from it; when unset, lookups fall back to static
// placeholders.
type DirectoryConfig struct {
	BaseURL string        `envconfig:"GRUBSQUAD_DIRECTORY_URL"`
	APIKey  string        `envconfig:"GRUBSQUAD_DIRECTORY_API_KEY"`
	Timeout time.Duration `envconfig:"GRUBSQUAD_DIRECTORY_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite       bool `envconfig:"GRUBSQUAD_USE_SQLITE" default:"false"`
	AutoMigrate     bool `envconfig:"GRUBSQUAD_AUTO_MIGRATE" default:"false"`
	ProviderMirror  bool `envconfig:"GRUBSQUAD_FEATURE_PROVIDER_MIRROR" default:"true"`
	RealtimeUpdates bool `envconfig:"GRUBSQUAD_FEATURE_REALTIME_UPDATES" default:"true"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"GRUBSQUAD_CRON_INTERVAL" default:"15m"`
	AbandonGraceHours int           `envconfig:"GRUBSQUAD_CRON_ABANDON_GRACE_HOURS" default:"0"`
	ReconcileAttempts int           `envconfig:"GRUBSQUAD_CRON_RECONCILE_ATTEMPTS" default:"3"`
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
		Path:   "/" + db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
