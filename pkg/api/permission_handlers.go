package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jitaccess/pkg/httputil"
	"github.com/platinummonkey/jitaccess/pkg/pagination"
	"github.com/platinummonkey/jitaccess/pkg/permissions"
	"github.com/platinummonkey/jitaccess/pkg/provisioning"
)

// PermissionService is the resource lifecycle behind the permission routes
type PermissionService interface {
	CreatePermission(ctx context.Context, in permissions.CreateInput) (*permissions.PermissionInfo, error)
	GetPermission(ctx context.Context, permissionID string) (*permissions.PermissionInfo, error)
	UpdatePermission(ctx context.Context, permissionID string, in permissions.UpdateInput) (*permissions.PermissionInfo, error)
	DeletePermission(ctx context.Context, permissionID string) error
	ListPermissions(ctx context.Context, filter permissions.ListFilter) (pagination.Page[*permissions.PermissionInfo], error)
	ListMembers(ctx context.Context, permissionID, cursor string, limit int) (pagination.Page[provisioning.Member], error)
}

// PermissionHandlers handles permission lifecycle HTTP requests
type PermissionHandlers struct {
	service PermissionService
}

// NewPermissionHandlers creates a new PermissionHandlers
func NewPermissionHandlers(service PermissionService) *PermissionHandlers {
	return &PermissionHandlers{service: service}
}

// RegisterRoutes registers permission routes
func (h *PermissionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/permissions", h.CreatePermission).Methods("POST")
	router.HandleFunc("/permissions", h.ListPermissions).Methods("GET")
	router.HandleFunc("/permissions/{id}", h.GetPermission).Methods("GET")
	router.HandleFunc("/permissions/{id}", h.UpdatePermission).Methods("PUT")
	router.HandleFunc("/permissions/{id}", h.DeletePermission).Methods("DELETE")
	router.HandleFunc("/permissions/{id}/members", h.ListMembers).Methods("GET")
}

// CreatePermission runs the create saga
func (h *PermissionHandlers) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var in permissions.CreateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	info, err := h.service.CreatePermission(r.Context(), in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	_ = httputil.WriteCreated(w, info)
}

// GetPermission returns one permission record
func (h *PermissionHandlers) GetPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	info, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, info)
}

// UpdatePermission runs the update saga
func (h *PermissionHandlers) UpdatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var in permissions.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	info, err := h.service.UpdatePermission(r.Context(), id, in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, info)
}

// DeletePermission runs the delete saga. Deleting an unknown permission succeeds.
func (h *PermissionHandlers) DeletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListPermissions lists permissions by account and name prefix
func (h *PermissionHandlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	params, ok := httputil.ParsePageOrError(w, r)
	if !ok {
		return
	}

	page, err := h.service.ListPermissions(r.Context(), permissions.ListFilter{
		AWSAccountID: httputil.ParseQueryString(r, "account", ""),
		NamePrefix:   httputil.ParseQueryString(r, "prefix", ""),
		Limit:        params.Limit,
		Cursor:       params.Cursor,
	})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, page)
}

// ListMembers lists the users holding a permission
func (h *PermissionHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	params, ok := httputil.ParsePageOrError(w, r)
	if !ok {
		return
	}

	page, err := h.service.ListMembers(r.Context(), id, params.Cursor, params.Limit)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, page)
}
