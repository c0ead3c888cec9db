// Package httputil provides the JSON request and response helpers shared by
// the HTTP handlers.
//
// Errors are written from their apperr code:
//
//	if err != nil {
//		httputil.WriteAppError(w, err) // 400, 404 or 500
//		return
//	}
//
// Request parsing:
//
//	var in permissions.CreateInput
//	if !httputil.ParseJSONOrError(w, r, &in) {
//		return // 400 already written
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//	limit, err := httputil.ParseQueryInt(r, "limit", 0)
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.ContentTypeMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
