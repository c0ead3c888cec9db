package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jitaccess/pkg/approval"
	"github.com/platinummonkey/jitaccess/pkg/approvalflow"
	"github.com/platinummonkey/jitaccess/pkg/httputil"
	"github.com/platinummonkey/jitaccess/pkg/observability"
)

// RequestService is the approval flow behind the request routes
type RequestService interface {
	Get(ctx context.Context, requestID string) (approval.Request, error)
	List(ctx context.Context, filter approval.ListFilter) (approval.Page, error)
	Submit(ctx context.Context, sub approval.Submission) (*approval.Submitted, error)
	Validate(ctx context.Context, requestID string) approvalflow.Result
	Approved(ctx context.Context, requestID, approver, comment string) approvalflow.Result
	Rejected(ctx context.Context, requestID, approver, comment string) approvalflow.Result
	Canceled(ctx context.Context, requestID, by, comment string) approvalflow.Result
	Revoked(ctx context.Context, requestID, by, comment string) approvalflow.Result
}

// ActionRequest is the body of approve, reject, cancel and revoke calls
type ActionRequest struct {
	By      string `json:"by"`
	Comment string `json:"comment,omitempty"`
}

// RequestHandlers handles approval request HTTP requests
type RequestHandlers struct {
	service RequestService
}

// NewRequestHandlers creates a new RequestHandlers
func NewRequestHandlers(service RequestService) *RequestHandlers {
	return &RequestHandlers{service: service}
}

// RegisterRoutes registers approval request routes
func (h *RequestHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/requests", h.SubmitRequest).Methods("POST")
	router.HandleFunc("/requests", h.ListRequests).Methods("GET")
	router.HandleFunc("/requests/{id}", h.GetRequest).Methods("GET")
	router.HandleFunc("/requests/{id}/validate", h.ValidateRequest).Methods("POST")
	router.HandleFunc("/requests/{id}/approve", h.action(h.service.Approved)).Methods("POST")
	router.HandleFunc("/requests/{id}/reject", h.action(h.service.Rejected)).Methods("POST")
	router.HandleFunc("/requests/{id}/cancel", h.action(h.service.Canceled)).Methods("POST")
	router.HandleFunc("/requests/{id}/revoke", h.action(h.service.Revoked)).Methods("POST")
}

// SubmitRequest records a new request in the submitted status
func (h *RequestHandlers) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var sub approval.Submission
	if !httputil.ParseJSONOrError(w, r, &sub) {
		return
	}

	submitted, err := h.service.Submit(r.Context(), sub)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	_ = httputil.WriteCreated(w, approval.Envelope{Request: submitted})
}

// GetRequest returns a request in its current status
func (h *RequestHandlers) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, approval.Envelope{Request: req})
}

// ListRequests lists requests, optionally by status and requesting user
func (h *RequestHandlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	params, ok := httputil.ParsePageOrError(w, r)
	if !ok {
		return
	}
	status := approval.Status(httputil.ParseQueryString(r, "status", ""))
	if status != "" && !status.Valid() {
		httputil.WriteBadRequest(w, "unknown status "+string(status))
		return
	}

	page, err := h.service.List(r.Context(), approval.ListFilter{
		Status:        status,
		RequestUserID: httputil.ParseQueryString(r, "user", ""),
		Limit:         params.Limit,
		Cursor:        params.Cursor,
	})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, page)
}

// ValidateRequest checks a submitted request
func (h *RequestHandlers) ValidateRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	_ = httputil.WriteSuccess(w, h.service.Validate(r.Context(), id))
}

// action adapts an approval flow operation taking an actor and comment.
// Flow failures are reported in the result body, not the status code.
func (h *RequestHandlers) action(op func(ctx context.Context, requestID, by, comment string) approvalflow.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := httputil.ParsePathStringOrError(w, r, "id")
		if !ok {
			return
		}
		var body ActionRequest
		if !httputil.ParseJSONOrError(w, r, &body) {
			return
		}
		if strings.TrimSpace(body.By) == "" {
			httputil.WriteBadRequest(w, "by is required")
			return
		}

		ctx := observability.WithActor(r.Context(), body.By)
		result := op(ctx, id, body.By, body.Comment)
		if !result.Success {
			observability.FromContext(ctx).WithFields(map[string]interface{}{
				"approval_request_id": id,
				"status":              result.Status,
			}).Warn(result.Message)
		}
		_ = httputil.WriteSuccess(w, result)
	}
}
