package storage

import "time"

const (
	// TypePostgres selects PostgreSQL through lib/pq
	TypePostgres = "postgres"
	// TypeMemory selects a process-local in-memory SQLite database
	TypeMemory = "memory"
)

// Config for the record store and cache
type Config struct {
	Type string // "postgres" or "memory"

	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration
	MaxLifetime      time.Duration
	MaxIdleTime      time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache config
	CacheEnabled bool
	CacheTTL     time.Duration
	L1CacheSize  int // entries
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypeMemory,
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		MaxLifetime:      30 * time.Minute,
		MaxIdleTime:      5 * time.Minute,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     false,
		CacheTTL:         5 * time.Minute,
		L1CacheSize:      1000,
	}
}
