package approval

// Status is the lifecycle position of an approval request
type Status string

const (
	StatusSubmitted               Status = "submitted"
	StatusValidationFailed        Status = "validationFailed"
	StatusPending                 Status = "pending"
	StatusApproved                Status = "approved"
	StatusApprovedActionSucceeded Status = "approvedActionSucceeded"
	StatusApprovedActionFailed    Status = "approvedActionFailed"
	StatusRejected                Status = "rejected"
	StatusCanceled                Status = "canceled"
	StatusRevoked                 Status = "revoked"
	StatusRevokedActionSucceeded  Status = "revokedActionSucceeded"
	StatusRevokedActionFailed     Status = "revokedActionFailed"
)

// transitions lists the legal successors of each status. Requests left in
// StatusApproved by older deployments may still be revoked directly.
var transitions = map[Status][]Status{
	StatusSubmitted:               {StatusValidationFailed, StatusPending},
	StatusPending:                 {StatusApproved, StatusRejected, StatusCanceled},
	StatusApproved:                {StatusApprovedActionSucceeded, StatusApprovedActionFailed, StatusRevoked},
	StatusApprovedActionSucceeded: {StatusRevoked},
	StatusRevoked:                 {StatusRevokedActionSucceeded, StatusRevokedActionFailed},
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusValidationFailed, StatusPending, StatusApproved,
		StatusApprovedActionSucceeded, StatusApprovedActionFailed, StatusRejected,
		StatusCanceled, StatusRevoked, StatusRevokedActionSucceeded, StatusRevokedActionFailed:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is a legal transition
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
