package approval

import (
	"encoding/json"
	"fmt"
	"time"
)

// Request is one approval request. The concrete type is the request's status;
// each variant embeds its predecessor, so fields only ever accumulate.
// The set of variants is closed.
type Request interface {
	Status() Status
	// Base returns the fields fixed at submission
	Base() Submission
	sealed()
}

// Resource is a catalog resource attached to a request
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Submission holds the fields fixed when a request is submitted
type Submission struct {
	RequestID      string            `json:"request_id"`
	CatalogID      string            `json:"catalog_id"`
	ApprovalFlowID string            `json:"approval_flow_id"`
	RequestUserID  string            `json:"request_user_id"`
	ApproverID     string            `json:"approver_id"`
	InputParams    map[string]string `json:"input_params,omitempty"`
	InputResources []Resource        `json:"input_resources,omitempty"`
	RequestDate    time.Time         `json:"request_date"`
}

func (s Submission) Base() Submission { return s }
func (s Submission) sealed()          {}

// ResourceID returns the id of the first input resource of the given type
func (s Submission) ResourceID(resourceType string) (string, bool) {
	for _, r := range s.InputResources {
		if r.Type == resourceType {
			return r.ID, true
		}
	}
	return "", false
}

// Submitted is a request awaiting validation
type Submitted struct {
	Submission
}

// Validation is the outcome of validating a submitted request
type Validation struct {
	ValidatedDate     time.Time `json:"validated_date"`
	ValidationMessage string    `json:"validation_message,omitempty"`
}

// ValidationFailed is a request that failed validation. Terminal.
type ValidationFailed struct {
	Submission
	Validation
}

// Pending is a validated request awaiting a decision
type Pending struct {
	Submission
	Validation
}

// Approved has been approved; the grant has not finished yet
type Approved struct {
	Pending
	ApprovedDate    time.Time `json:"approved_date"`
	ApprovedBy      string    `json:"approved_by"`
	ApprovalComment string    `json:"approval_comment,omitempty"`
}

// Rejected was turned down by the approver. Terminal.
type Rejected struct {
	Pending
	RejectedDate     time.Time `json:"rejected_date"`
	RejectedBy       string    `json:"rejected_by"`
	RejectionComment string    `json:"rejection_comment,omitempty"`
}

// Canceled was withdrawn before a decision. Terminal.
type Canceled struct {
	Pending
	CanceledDate  time.Time `json:"canceled_date"`
	CanceledBy    string    `json:"canceled_by"`
	CancelComment string    `json:"cancel_comment,omitempty"`
}

// ActionOutcome records when a grant or revoke finished and what it reported
type ActionOutcome struct {
	Date    time.Time `json:"date"`
	Message string    `json:"message,omitempty"`
}

// ApprovedActionSucceeded has its access granted
type ApprovedActionSucceeded struct {
	Approved
	ApprovalAction ActionOutcome `json:"approval_action"`
}

// ApprovedActionFailed could not be granted. Terminal.
type ApprovedActionFailed struct {
	Approved
	ApprovalAction ActionOutcome `json:"approval_action"`
}

// Revoked has had its access withdrawn; the revoke has not finished yet.
// ApprovalAction is nil for requests revoked straight from Approved.
type Revoked struct {
	Approved
	ApprovalAction *ActionOutcome `json:"approval_action,omitempty"`
	RevokedDate    time.Time      `json:"revoked_date"`
	RevokedBy      string         `json:"revoked_by"`
	RevokeComment  string         `json:"revoke_comment,omitempty"`
}

// RevokedActionSucceeded has its access removed. Terminal.
type RevokedActionSucceeded struct {
	Revoked
	RevokeAction ActionOutcome `json:"revoke_action"`
}

// RevokedActionFailed could not have its access removed. Terminal.
type RevokedActionFailed struct {
	Revoked
	RevokeAction ActionOutcome `json:"revoke_action"`
}

func (Submitted) Status() Status               { return StatusSubmitted }
func (ValidationFailed) Status() Status        { return StatusValidationFailed }
func (Pending) Status() Status                 { return StatusPending }
func (Approved) Status() Status                { return StatusApproved }
func (Rejected) Status() Status                { return StatusRejected }
func (Canceled) Status() Status                { return StatusCanceled }
func (ApprovedActionSucceeded) Status() Status { return StatusApprovedActionSucceeded }
func (ApprovedActionFailed) Status() Status    { return StatusApprovedActionFailed }
func (Revoked) Status() Status                 { return StatusRevoked }
func (RevokedActionSucceeded) Status() Status  { return StatusRevokedActionSucceeded }
func (RevokedActionFailed) Status() Status     { return StatusRevokedActionFailed }

// newVariant returns an empty request of the variant named by status
func newVariant(status Status) (Request, error) {
	switch status {
	case StatusSubmitted:
		return &Submitted{}, nil
	case StatusValidationFailed:
		return &ValidationFailed{}, nil
	case StatusPending:
		return &Pending{}, nil
	case StatusApproved:
		return &Approved{}, nil
	case StatusRejected:
		return &Rejected{}, nil
	case StatusCanceled:
		return &Canceled{}, nil
	case StatusApprovedActionSucceeded:
		return &ApprovedActionSucceeded{}, nil
	case StatusApprovedActionFailed:
		return &ApprovedActionFailed{}, nil
	case StatusRevoked:
		return &Revoked{}, nil
	case StatusRevokedActionSucceeded:
		return &RevokedActionSucceeded{}, nil
	case StatusRevokedActionFailed:
		return &RevokedActionFailed{}, nil
	}
	return nil, fmt.Errorf("unknown request status %q", status)
}

// Marshal encodes a request as a flat JSON object with a status discriminator
func Marshal(r Request) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	status, err := json.Marshal(r.Status())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request status: %w", err)
	}
	fields["status"] = status

	return json.Marshal(fields)
}

// Unmarshal decodes a request produced by Marshal into its variant
func Unmarshal(data []byte) (Request, error) {
	var head struct {
		Status Status `json:"status"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}

	r, err := newVariant(head.Status)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s request: %w", head.Status, err)
	}
	return r, nil
}

// Envelope wraps a request for JSON responses
type Envelope struct {
	Request Request
}

// MarshalJSON implements json.Marshaler
func (e Envelope) MarshalJSON() ([]byte, error) {
	return Marshal(e.Request)
}
