// Package contextkeys provides centralized context key definitions
//
// All context keys shared between packages are defined here so that the
// HTTP layer and the logging layer agree on them.
//
//	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, id)
//	id := contextkeys.GetRequestID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the request ID string
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, approval request audit fields
	RequestIDKey Key = "request_id"

	// ActorKey contains the id of the user acting on an approval request
	// Set by: api handlers for approve, reject, cancel and revoke
	// Used by: Logger
	ActorKey Key = "actor"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	LoggerKey Key = "logger"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithActor adds the acting user to the context
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetActor retrieves the acting user from context
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(ActorKey).(string); ok {
		return actor
	}
	return ""
}
