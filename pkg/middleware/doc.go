// Package middleware throttles the API per client.
//
// RateLimiter keeps a token bucket per client in process memory.
// DistributedRateLimiter keeps a fixed-window counter per client in Redis so
// every replica shares the same budget. Both satisfy Limiter and plug into
// the router through RateLimit:
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "")
//	router.Use(middleware.RateLimit(limiter, logger))
//
// Throttled requests get 429 with code RATE_LIMITED and a Retry-After
// header. Limiter errors let the request through.
package middleware
