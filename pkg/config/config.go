package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/jitaccess/pkg/controlplane"
	"github.com/platinummonkey/jitaccess/pkg/middleware"
	"github.com/platinummonkey/jitaccess/pkg/observability"
	"github.com/platinummonkey/jitaccess/pkg/retry"
	"github.com/platinummonkey/jitaccess/pkg/storage"
)

// Control plane backends
const (
	ControlPlaneAWS    = "aws"
	ControlPlaneMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	ControlPlane  ControlPlaneConfig
	Retry         retry.Config
	Observability ObservabilityConfig
	Reconciler    ReconcilerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	RateLimit       middleware.RateLimitConfig

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// ControlPlaneConfig selects and configures the identity provider
type ControlPlaneConfig struct {
	Type   string // "aws" or "memory"
	Prefix string
	AWS    controlplane.AWSConfig
	// DevUsers seeds the memory control plane's identity store
	DevUsers []string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// ReconcilerConfig holds settings for the drift reconciler
type ReconcilerConfig struct {
	Schedule string // standard 5-field cron spec
	Workers  int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		ControlPlane:  loadControlPlaneConfig(),
		Retry:         loadRetryConfig(),
		Observability: loadObservabilityConfig(),
		Reconciler: ReconcilerConfig{
			Schedule: getEnv("JIT_RECONCILE_SCHEDULE", "*/15 * * * *"),
			Workers:  getEnvInt("JIT_RECONCILE_WORKERS", 4),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("JIT_HOST", "0.0.0.0"),
		Port:            getEnv("JIT_PORT", "8080"),
		ReadTimeout:     getEnvDuration("JIT_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("JIT_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("JIT_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("JIT_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("JIT_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("JIT_HEALTH_PORT", "9090"),
		RateLimit: middleware.RateLimitConfig{
			RequestsPerWindow: getEnvInt("JIT_RATE_LIMIT_REQUESTS", 0),
			WindowDuration:    getEnvDuration("JIT_RATE_LIMIT_WINDOW", time.Minute),
			BurstSize:         getEnvInt("JIT_RATE_LIMIT_BURST", 10),
		},
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if storageType := getEnv("JIT_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = storageType
	}

	// PostgreSQL config
	cfg.PostgresURL = getEnv("JIT_POSTGRES_URL", cfg.PostgresURL)
	if maxConns := getEnvInt("JIT_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("JIT_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("JIT_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// Redis config
	cfg.RedisURL = getEnv("JIT_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("JIT_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("JIT_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisPoolSize := getEnvInt("JIT_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	cfg.CacheEnabled = getEnvBool("JIT_CACHE_ENABLED", cfg.CacheEnabled)
	cfg.CacheTTL = getEnvDuration("JIT_CACHE_TTL", cfg.CacheTTL)
	if l1CacheSize := getEnvInt("JIT_L1_CACHE_SIZE", 0); l1CacheSize > 0 {
		cfg.L1CacheSize = l1CacheSize
	}

	return cfg
}

func loadControlPlaneConfig() ControlPlaneConfig {
	return ControlPlaneConfig{
		Type:   getEnv("JIT_CONTROL_PLANE", ControlPlaneMemory),
		Prefix: getEnv("JIT_PERMISSION_PREFIX", "jit"),
		AWS: controlplane.AWSConfig{
			Region:          getEnv("JIT_AWS_REGION", "us-east-1"),
			InstanceARN:     getEnv("JIT_SSO_INSTANCE_ARN", ""),
			IdentityStoreID: getEnv("JIT_IDENTITY_STORE_ID", ""),
			AccessKey:       getEnv("JIT_AWS_ACCESS_KEY", ""),
			SecretKey:       getEnv("JIT_AWS_SECRET_KEY", ""),
			Endpoint:        getEnv("JIT_AWS_ENDPOINT", ""),
		},
		DevUsers: getEnvList("JIT_DEV_USERS"),
	}
}

func loadRetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = getEnvInt("JIT_RETRY_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.BaseInterval = getEnvDuration("JIT_RETRY_BASE_INTERVAL", cfg.BaseInterval)
	return cfg
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("JIT_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("JIT_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("JIT_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("JIT_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("JIT_OTEL_SERVICE_NAME", "jitaccess"),
		OTelServiceVersion: getEnv("JIT_OTEL_SERVICE_VERSION", ""),
		OTelInsecure:       getEnvBool("JIT_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("JIT_OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.RateLimit.RequestsPerWindow < 0 || c.Server.RateLimit.BurstSize < 0 {
		return fmt.Errorf("rate limit requests and burst must not be negative")
	}
	if c.Server.RateLimit.RequestsPerWindow > 0 && c.Server.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("rate limit window must be positive when rate limiting is enabled")
	}

	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be postgres or memory)", c.Storage.Type)
	}
	if c.Storage.CacheEnabled && c.Storage.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive when the cache is enabled")
	}

	switch c.ControlPlane.Type {
	case ControlPlaneMemory:
	case ControlPlaneAWS:
		if c.ControlPlane.AWS.InstanceARN == "" || c.ControlPlane.AWS.IdentityStoreID == "" {
			return fmt.Errorf("SSO instance ARN and identity store ID are required for the aws control plane")
		}
	default:
		return fmt.Errorf("invalid control plane: %s (must be aws or memory)", c.ControlPlane.Type)
	}
	if c.ControlPlane.Prefix == "" || strings.Contains(c.ControlPlane.Prefix, "-") {
		return fmt.Errorf("permission prefix must be non-empty and contain no '-'")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.Retry.BaseInterval < 0 {
		return fmt.Errorf("retry base interval must not be negative")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	if c.Reconciler.Workers < 1 {
		return fmt.Errorf("reconciler workers must be at least 1")
	}
	if _, err := cron.ParseStandard(c.Reconciler.Schedule); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", c.Reconciler.Schedule, err)
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a list
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
