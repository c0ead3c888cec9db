// Package api provides the HTTP REST API for just-in-time access.
//
// # Overview
//
// The API exposes two groups of routes on gorilla/mux. Permission routes
// drive the provisioning sagas:
//
//	POST   /permissions               create a permission
//	GET    /permissions               list by ?account=, ?prefix=, ?limit=, ?cursor=
//	GET    /permissions/{id}          fetch one permission
//	PUT    /permissions/{id}          update description, duration or policies
//	DELETE /permissions/{id}          delete a permission and its resources
//	GET    /permissions/{id}/members  list users holding the permission
//
// Request routes drive the approval flow:
//
//	POST /requests                submit
//	GET  /requests                list by ?status=, ?user=, ?limit=, ?cursor=
//	GET  /requests/{id}           fetch in its current status
//	POST /requests/{id}/validate
//	POST /requests/{id}/approve   {"by": "...", "comment": "..."}
//	POST /requests/{id}/reject
//	POST /requests/{id}/cancel
//	POST /requests/{id}/revoke
//
// Errors are written as {"code": ..., "error": ...} with the status from
// apperr.HTTPStatus. Approval actions always answer 200 with a
// {"success", "message", "status"} result. With Options.RateLimiter set,
// throttled clients get 429 RATE_LIMITED.
//
//	server := api.NewServer(provisioner, flow, api.Options{Logger: logger, Metrics: metrics})
//	http.ListenAndServe(":8080", server)
package api
