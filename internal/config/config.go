package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Authentication mode constants
const (
	AuthModeLocal   = "local"
	AuthModeHTTPAPI = "http_api"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// User cache backend constants
const (
	UserCacheTypeMemory     = "memory"
	UserCacheTypeRedis      = "redis"
	UserCacheTypeRedisAside = "redis-aside"
)

// Service key modes accepted from member clients (see httpclient.AuthConfig)
const (
	ServiceAuthNone   = "none"
	ServiceAuthSimple = "simple"
	ServiceAuthHMAC   = "hmac"
)

type Config struct {
	// Server settings
	ServerAddr  string
	BaseURL     string
	Environment string // "development" or "production"
	LogLevel    string

	// JWT session settings
	JWTSecret  string
	SessionTTL time.Duration

	// Database
	DatabaseDriver       string // "sqlite" or "postgres"
	DatabaseDSN          string // Database connection string (DSN or path)
	DefaultAdminPassword string // Seed admin password; random when empty

	// Device binding and pairing
	MaxDevicesPerUser     int
	PairingCodeExpiration time.Duration
	PairingSweepInterval  time.Duration

	// Authentication
	AuthMode string // "local" or "http_api"

	// HTTP API Authentication
	HTTPAPIURL                string
	HTTPAPITimeout            time.Duration
	HTTPAPIInsecureSkipVerify bool
	HTTPAPIAuthMode           string // Authentication mode: "none", "simple", or "hmac"
	HTTPAPIAuthSecret         string // Shared secret for authentication
	HTTPAPIAuthHeader         string // Custom header name for simple mode (default: "X-API-Secret")
	HTTPAPIMaxRetries         int    // Maximum retry attempts (default: 3)
	HTTPAPIRetryDelay         time.Duration
	HTTPAPIMaxRetryDelay      time.Duration

	// Service key every member client presents (the portal's public API key)
	ServiceAuthMode   string
	ServiceAuthSecret string
	ServiceAuthHeader string

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string // "memory" or "redis"
	LoginRateLimit           int    // requests per minute
	PairingRateLimit         int    // requests per minute
	ApproveRateLimit         int    // requests per minute
	RateLimitCleanupInterval time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Member profile cache
	UserCacheType        string // "memory", "redis", or "redis-aside"
	UserCacheTTL         time.Duration
	UserCacheClientTTL   time.Duration // client-side TTL for redis-aside
	UserCacheSizePerConn int           // client-side cache size per connection in MB

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration

	// Timeouts
	DBInitTimeout         time.Duration
	DBCloseTimeout        time.Duration
	RedisConnTimeout      time.Duration
	RedisCloseTimeout     time.Duration
	CacheInitTimeout      time.Duration
	CacheCloseTimeout     time.Duration
	ServerShutdownTimeout time.Duration
}

// IsProduction reports whether the server runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Determine database driver and DSN
	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "memberguard.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		JWTSecret:  getEnv("JWT_SECRET", "your-256-bit-secret-change-in-production"),
		SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),

		DatabaseDriver:       driver,
		DatabaseDSN:          dsn,
		DefaultAdminPassword: strings.TrimSpace(getEnv("DEFAULT_ADMIN_PASSWORD", "")),

		MaxDevicesPerUser:     getEnvInt("MAX_DEVICES_PER_USER", 1),
		PairingCodeExpiration: getEnvDuration("PAIRING_CODE_EXPIRATION", 10*time.Minute),
		PairingSweepInterval:  getEnvDuration("PAIRING_SWEEP_INTERVAL", time.Minute),

		// Authentication
		AuthMode: getEnv("AUTH_MODE", AuthModeLocal),

		// HTTP API Authentication
		HTTPAPIURL:                getEnv("HTTP_API_URL", ""),
		HTTPAPITimeout:            getEnvDuration("HTTP_API_TIMEOUT", 10*time.Second),
		HTTPAPIInsecureSkipVerify: getEnvBool("HTTP_API_INSECURE_SKIP_VERIFY", false),
		HTTPAPIAuthMode:           getEnv("HTTP_API_AUTH_MODE", "none"),
		HTTPAPIAuthSecret:         getEnv("HTTP_API_AUTH_SECRET", ""),
		HTTPAPIAuthHeader:         getEnv("HTTP_API_AUTH_HEADER", "X-API-Secret"),
		HTTPAPIMaxRetries:         getEnvInt("HTTP_API_MAX_RETRIES", 3),
		HTTPAPIRetryDelay:         getEnvDuration("HTTP_API_RETRY_DELAY", 1*time.Second),
		HTTPAPIMaxRetryDelay:      getEnvDuration("HTTP_API_MAX_RETRY_DELAY", 10*time.Second),

		ServiceAuthMode:   getEnv("SERVICE_AUTH_MODE", ServiceAuthNone),
		ServiceAuthSecret: getEnv("SERVICE_AUTH_SECRET", ""),
		ServiceAuthHeader: getEnv("SERVICE_AUTH_HEADER", "X-API-Secret"),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		LoginRateLimit:           getEnvInt("LOGIN_RATE_LIMIT", 5),
		PairingRateLimit:         getEnvInt("PAIRING_RATE_LIMIT", 30),
		ApproveRateLimit:         getEnvInt("APPROVE_RATE_LIMIT", 10),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		UserCacheType:        getEnv("USER_CACHE_TYPE", UserCacheTypeMemory),
		UserCacheTTL:         getEnvDuration("USER_CACHE_TTL", 5*time.Minute),
		UserCacheClientTTL:   getEnvDuration("USER_CACHE_CLIENT_TTL", 30*time.Second),
		UserCacheSizePerConn: getEnvInt("USER_CACHE_SIZE_PER_CONN", 32),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 5*time.Minute),

		DBInitTimeout:         getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),
		DBCloseTimeout:        getEnvDuration("DB_CLOSE_TIMEOUT", 5*time.Second),
		RedisConnTimeout:      getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),
		RedisCloseTimeout:     getEnvDuration("REDIS_CLOSE_TIMEOUT", 5*time.Second),
		CacheInitTimeout:      getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),
		CacheCloseTimeout:     getEnvDuration("CACHE_CLOSE_TIMEOUT", 5*time.Second),
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

// Validate checks option combinations Load cannot reject on its own.
func (c *Config) Validate() error {
	if c.RateLimitStore != RateLimitStoreMemory && c.RateLimitStore != RateLimitStoreRedis {
		return fmt.Errorf(
			"invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, RateLimitStoreMemory, RateLimitStoreRedis,
		)
	}

	switch c.UserCacheType {
	case UserCacheTypeMemory:
	case UserCacheTypeRedis, UserCacheTypeRedisAside:
		if c.RedisAddr == "" {
			return fmt.Errorf("USER_CACHE_TYPE=%q requires REDIS_ADDR", c.UserCacheType)
		}
		if c.UserCacheType == UserCacheTypeRedisAside && c.UserCacheClientTTL <= 0 {
			return errors.New("USER_CACHE_CLIENT_TTL must be a positive duration")
		}
	default:
		return fmt.Errorf("invalid USER_CACHE_TYPE value: %q", c.UserCacheType)
	}
	if c.UserCacheTTL <= 0 {
		return errors.New("USER_CACHE_TTL must be a positive duration")
	}

	if c.MaxDevicesPerUser < 1 {
		return errors.New("MAX_DEVICES_PER_USER must be at least 1")
	}
	if c.PairingCodeExpiration <= 0 {
		return errors.New("PAIRING_CODE_EXPIRATION must be a positive duration")
	}

	switch c.ServiceAuthMode {
	case ServiceAuthNone, "":
	case ServiceAuthSimple, ServiceAuthHMAC:
		if c.ServiceAuthSecret == "" {
			return fmt.Errorf("SERVICE_AUTH_MODE=%q requires SERVICE_AUTH_SECRET", c.ServiceAuthMode)
		}
	default:
		return fmt.Errorf("invalid SERVICE_AUTH_MODE value: %q", c.ServiceAuthMode)
	}

	if c.AuthMode == AuthModeHTTPAPI && c.HTTPAPIURL == "" {
		return errors.New("AUTH_MODE=http_api requires HTTP_API_URL")
	}

	if c.IsProduction() && c.JWTSecret == "your-256-bit-secret-change-in-production" {
		return errors.New("JWT_SECRET must be changed in production")
	}
	return nil
}

// ClientConfig drives the member-side session core.
type ClientConfig struct {
	ServerURL string
	StatePath string // SQLite file holding persisted client keys
	LogLevel  string

	// Service key presented on every request
	APIAuthMode   string
	APIAuthSecret string
	APIAuthHeader string

	HTTPTimeout        time.Duration
	InsecureSkipVerify bool
	MaxRetries         int
	RetryDelay         time.Duration
	MaxRetryDelay      time.Duration

	SessionFetchTimeout time.Duration
	ProfileFetchTimeout time.Duration
	ProfileCacheTTL     time.Duration
	IdleTimeout         time.Duration
	AbsoluteTimeout     time.Duration
	PairingPollInterval time.Duration
	VerifyInterval      time.Duration
}

// LoadClient reads member client settings.
func LoadClient() *ClientConfig {
	_ = godotenv.Load()

	return &ClientConfig{
		ServerURL: getEnv("MEMBER_SERVER_URL", "http://localhost:8080"),
		StatePath: getEnv("MEMBER_STATE_PATH", defaultStatePath()),
		LogLevel:  getEnv("MEMBER_LOG_LEVEL", "warn"),

		APIAuthMode:   getEnv("MEMBER_API_AUTH_MODE", ServiceAuthNone),
		APIAuthSecret: getEnv("MEMBER_API_AUTH_SECRET", ""),
		APIAuthHeader: getEnv("MEMBER_API_AUTH_HEADER", "X-API-Secret"),

		HTTPTimeout:        getEnvDuration("MEMBER_HTTP_TIMEOUT", 30*time.Second),
		InsecureSkipVerify: getEnvBool("MEMBER_INSECURE_SKIP_VERIFY", false),
		MaxRetries:         getEnvInt("MEMBER_MAX_RETRIES", 2),
		RetryDelay:         getEnvDuration("MEMBER_RETRY_DELAY", 500*time.Millisecond),
		MaxRetryDelay:      getEnvDuration("MEMBER_MAX_RETRY_DELAY", 5*time.Second),

		SessionFetchTimeout: getEnvDuration("MEMBER_SESSION_FETCH_TIMEOUT", 30*time.Second),
		ProfileFetchTimeout: getEnvDuration("MEMBER_PROFILE_FETCH_TIMEOUT", 30*time.Second),
		ProfileCacheTTL:     getEnvDuration("MEMBER_PROFILE_CACHE_TTL", 2*time.Minute),
		IdleTimeout:         getEnvDuration("MEMBER_IDLE_TIMEOUT", 15*time.Minute),
		AbsoluteTimeout:     getEnvDuration("MEMBER_ABSOLUTE_TIMEOUT", 24*time.Hour),
		PairingPollInterval: getEnvDuration("MEMBER_PAIRING_POLL_INTERVAL", 3*time.Second),
		VerifyInterval:      getEnvDuration("MEMBER_VERIFY_INTERVAL", time.Minute),
	}
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "memberguard-state.db"
	}
	return filepath.Join(dir, "memberguard", "state.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
