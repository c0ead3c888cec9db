// Package config loads service configuration from JIT_* environment
// variables with defaults for every setting.
//
// Server settings:
//
//	JIT_HOST="0.0.0.0"
//	JIT_PORT="8080"
//	JIT_HEALTH_PORT="9090"
//
// Storage and cache:
//
//	JIT_STORAGE_TYPE="postgres"  # postgres or memory
//	JIT_POSTGRES_URL="postgres://localhost/jitaccess?sslmode=disable"
//	JIT_CACHE_ENABLED="true"
//	JIT_REDIS_URL="redis://localhost:6379"
//
// Control plane:
//
//	JIT_CONTROL_PLANE="aws"  # aws or memory
//	JIT_SSO_INSTANCE_ARN="arn:aws:sso:::instance/ssoins-..."
//	JIT_IDENTITY_STORE_ID="d-..."
//	JIT_PERMISSION_PREFIX="jit"
//
// Retries and reconciler:
//
//	JIT_RETRY_MAX_ATTEMPTS="5"
//	JIT_RETRY_BASE_INTERVAL="1s"
//	JIT_RECONCILE_SCHEDULE="*/15 * * * *"
//	JIT_RECONCILE_WORKERS="4"
//
// LoadConfig validates the result and fails fast on inconsistent settings.
package config
