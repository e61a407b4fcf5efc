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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Portal       PortalConfig
	PassMap      PassMapConfig
	Passes       PassesConfig
	Admin         AdminConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"FESTPASS_APP_ENV" required:"true"`
	Port         string `envconfig:"FESTPASS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FESTPASS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FESTPASS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FESTPASS_DB_DSN"`
	Driver string `envconfig:"FESTPASS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FESTPASS_DB_HOST"`
	LegacyPort     int    `envconfig:"FESTPASS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FESTPASS_DB_USER"`
	LegacyPassword string `envconfig:"FESTPASS_DB_PASSWORD"`
	LegacyName     string `envconfig:"FESTPASS_DB_NAME"`
	LegacySSLMode  string `envconfig:"FESTPASS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FESTPASS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FESTPASS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FESTPASS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FESTPASS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FESTPASS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FESTPASS_REDIS_ADDR"`
	Password     string        `envconfig:"FESTPASS_REDIS_PASSWORD"`
	DB           int           `envconfig:"FESTPASS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FESTPASS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FESTPASS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FESTPASS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FESTPASS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FESTPASS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FESTPASS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FESTPASS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FESTPASS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"FESTPASS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FESTPASS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FESTPASS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FESTPASS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FESTPASS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FESTPASS_ARGON_KEY_LEN" default:"32"`
}

// PortalConfig describes the upstream payment portal the sync pipeline pulls from.
type PortalConfig struct {
	Endpoint       string        `envconfig:"FESTPASS_PORTAL_ENDPOINT" required:"true"`
	ClientKey      string        `envconfig:"FESTPASS_PORTAL_CLIENT_KEY" required:"true"`
	ClientSecret   string        `envconfig:"FESTPASS_PORTAL_CLIENT_SECRET" required:"true"`
	AttemptTimeout time.Duration `envconfig:"FESTPASS_PORTAL_ATTEMPT_TIMEOUT" default:"10s"`
	MaxAttempts    int           `envconfig:"FESTPASS_PORTAL_MAX_ATTEMPTS" default:"3"`
	BackoffStep    time.Duration `envconfig:"FESTPASS_PORTAL_BACKOFF_STEP" default:"1s"`
	CountryCode    string        `envconfig:"FESTPASS_PORTAL_COUNTRY_CODE" default:"91"`
	MaxDocsPerRun  int           `envconfig:"FESTPASS_PORTAL_MAX_DOCS_PER_RUN" default:"200"`
}

type PassMapConfig struct {
	CacheTTL time.Duration `envconfig:"FESTPASS_PASSMAP_CACHE_TTL" default:"30s"`
}

// PassesConfig carries optional overrides for the designated bundle passes.
// When unset, the bundle for a category is resolved by a storage lookup.
type PassesConfig struct {
	PrimaryBundleID   string `envconfig:"FESTPASS_PASSES_PRIMARY_BUNDLE_ID"`
	SecondaryBundleID string `envconfig:"FESTPASS_PASSES_SECONDARY_BUNDLE_ID"`
}

type AdminConfig struct {
	CacheBustSecret string `envconfig:"FESTPASS_ADMIN_CACHE_BUST_SECRET"`
}

// AuthRateLimitConfig throttles the credential endpoints. Zero windows or
// limits disable the corresponding counter.
type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FESTPASS_AUTH_RL_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"FESTPASS_AUTH_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"FESTPASS_AUTH_RL_LOGIN_EMAIL_LIMIT" default:"10"`
	RegisterWindow     time.Duration `envconfig:"FESTPASS_AUTH_RL_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"FESTPASS_AUTH_RL_REGISTER_IP_LIMIT" default:"30"`
	RegisterEmailLimit int           `envconfig:"FESTPASS_AUTH_RL_REGISTER_EMAIL_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FESTPASS_AUTO_MIGRATE" default:"false"`
	// PhoneLock turns on the per-phone advisory lock around ingestion runs.
	// The pipeline stays idempotent without it; the lock only narrows the
	// cross-account bundle race window.
	PhoneLock bool `envconfig:"FESTPASS_FEATURE_PHONE_LOCK" default:"false"`
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
