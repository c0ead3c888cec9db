package approvalflow

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
	"github.com/platinummonkey/jitaccess/pkg/approval"
	"github.com/platinummonkey/jitaccess/pkg/observability"
	"github.com/platinummonkey/jitaccess/pkg/permissions"
)

// ResourceTypePermission marks the input resource naming the requested permission
const ResourceTypePermission = "permission"

// Result is what the approval flow reports back to its caller. Failures are
// reported here rather than as errors.
type Result struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Status  approval.Status `json:"status,omitempty"`
}

func succeeded(r approval.Request, message string) Result {
	return Result{Success: true, Message: message, Status: r.Status()}
}

func failed(err error) Result {
	return Result{Success: false, Message: err.Error()}
}

// Provisioner grants and revokes access for approved requests
type Provisioner interface {
	GetPermission(ctx context.Context, permissionID string) (*permissions.PermissionInfo, error)
	GrantUser(ctx context.Context, permissionID, userName string) error
	RevokeUser(ctx context.Context, permissionID, userName string) error
}

// Flow connects the approval state machine to provisioning. A request's
// requesting user id is the identity-store user name that receives access.
type Flow struct {
	machine     *approval.StateMachine
	provisioner Provisioner
	logger      *observability.Logger
}

// NewFlow creates a new approval flow
func NewFlow(machine *approval.StateMachine, provisioner Provisioner, logger *observability.Logger) *Flow {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &Flow{machine: machine, provisioner: provisioner, logger: logger}
}

// Machine returns the underlying state machine
func (f *Flow) Machine() *approval.StateMachine {
	return f.machine
}

// Get returns a request in its current status
func (f *Flow) Get(ctx context.Context, requestID string) (approval.Request, error) {
	return f.machine.Get(ctx, requestID)
}

// List returns a page of requests
func (f *Flow) List(ctx context.Context, filter approval.ListFilter) (approval.Page, error) {
	return f.machine.List(ctx, filter)
}

// Submit records a new request in the submitted status
func (f *Flow) Submit(ctx context.Context, sub approval.Submission) (*approval.Submitted, error) {
	if _, ok := sub.ResourceID(ResourceTypePermission); !ok {
		return nil, apperr.BadRequestf("request has no %s resource", ResourceTypePermission)
	}
	return f.machine.Submit(ctx, sub)
}

// Validate checks that the requested permission exists and moves the
// request to pending, or to validationFailed when it does not. Lookup
// failures leave the request submitted so validation can be retried.
func (f *Flow) Validate(ctx context.Context, requestID string) Result {
	r, err := f.machine.Get(ctx, requestID)
	if err != nil {
		return failed(err)
	}

	valid, message, err := f.validate(ctx, r.Base())
	if err != nil {
		f.logger.WithRequest(requestID).WithError(err).Error("Failed to validate request")
		return Result{Success: false, Message: err.Error(), Status: r.Status()}
	}
	next, err := f.machine.Validate(ctx, requestID, valid, message)
	if err != nil {
		return failed(err)
	}
	if !valid {
		return Result{Success: false, Message: message, Status: next.Status()}
	}
	return succeeded(next, message)
}

func (f *Flow) validate(ctx context.Context, sub approval.Submission) (bool, string, error) {
	permissionID, ok := sub.ResourceID(ResourceTypePermission)
	if !ok {
		return false, "request has no permission resource", nil
	}

	_, err := f.provisioner.GetPermission(ctx, permissionID)
	if errors.Is(err, permissions.ErrNotFound) {
		return false, fmt.Sprintf("permission %s does not exist", permissionID), nil
	}
	if err != nil {
		return false, "", err
	}
	return true, fmt.Sprintf("permission %s is available", permissionID), nil
}

// Approved approves a pending request, grants the access, and records how
// the grant went
func (f *Flow) Approved(ctx context.Context, requestID, approver, comment string) Result {
	approved, err := f.machine.Approve(ctx, requestID, approver, comment)
	if err != nil {
		return failed(err)
	}

	ctx = context.WithoutCancel(ctx)
	permissionID, _ := approved.ResourceID(ResourceTypePermission)
	logger := f.logger.WithGrant(requestID, permissionID, approved.RequestUserID)

	grantErr := f.provisioner.GrantUser(ctx, permissionID, approved.RequestUserID)
	message := fmt.Sprintf("granted %s to %s", permissionID, approved.RequestUserID)
	if grantErr != nil {
		logger.WithError(grantErr).Error("Failed to grant approved access")
		message = grantErr.Error()
	}

	next, err := f.machine.RecordApprovalOutcome(ctx, requestID, grantErr == nil, message)
	if err != nil {
		logger.WithError(err).Error("Failed to record grant outcome")
		return failed(err)
	}
	if grantErr != nil {
		return Result{Success: false, Message: message, Status: next.Status()}
	}
	return succeeded(next, message)
}

// Rejected rejects a pending request
func (f *Flow) Rejected(ctx context.Context, requestID, approver, comment string) Result {
	r, err := f.machine.Reject(ctx, requestID, approver, comment)
	if err != nil {
		return failed(err)
	}
	return succeeded(r, "request rejected")
}

// Canceled withdraws a pending request
func (f *Flow) Canceled(ctx context.Context, requestID, by, comment string) Result {
	r, err := f.machine.Cancel(ctx, requestID, by, comment)
	if err != nil {
		return failed(err)
	}
	return succeeded(r, "request canceled")
}

// Revoked revokes granted access and records how the revoke went
func (f *Flow) Revoked(ctx context.Context, requestID, by, comment string) Result {
	revoked, err := f.machine.Revoke(ctx, requestID, by, comment)
	if err != nil {
		return failed(err)
	}

	ctx = context.WithoutCancel(ctx)
	permissionID, _ := revoked.ResourceID(ResourceTypePermission)
	logger := f.logger.WithGrant(requestID, permissionID, revoked.RequestUserID)

	revokeErr := f.provisioner.RevokeUser(ctx, permissionID, revoked.RequestUserID)
	message := fmt.Sprintf("revoked %s from %s", permissionID, revoked.RequestUserID)
	if revokeErr != nil {
		logger.WithError(revokeErr).Error("Failed to revoke access")
		message = revokeErr.Error()
	}

	next, err := f.machine.RecordRevocationOutcome(ctx, requestID, revokeErr == nil, message)
	if err != nil {
		logger.WithError(err).Error("Failed to record revoke outcome")
		return failed(err)
	}
	if revokeErr != nil {
		return Result{Success: false, Message: message, Status: next.Status()}
	}
	return succeeded(next, message)
}
