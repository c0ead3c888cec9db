// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("permission_id", id).Info("Saga completed")
//
// Request-scoped loggers carry the request id and acting user:
//
//	observability.FromContext(ctx).Warn("Retrying control plane call")
//
// # Prometheus Metrics
//
// Metrics cover HTTP traffic, saga steps and runs, approval status
// transitions, retries, cache hits and reconcile runs. Every recording
// method is safe on a nil *Metrics.
//
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveSagaStep("grant_user", "membership", err, elapsed)
//
// # OpenTelemetry
//
// InitOTel installs OTLP gRPC trace and metric exporters. OTelMetrics
// records control plane call counts and latencies.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.AddProbe("controlplane", probe, false)
//	observability.RegisterHealthRoutes(mux, checker)
package observability
