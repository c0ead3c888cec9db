package permissions

import (
	"regexp"
	"strings"
	"time"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
)

const (
	// MaxPolicies bounds managed plus customer-managed policies per permission
	MaxPolicies = 10
	// MaxIDLength is the control plane's permission set name limit
	MaxIDLength = 32
	// DefaultSessionDuration applies when a create request leaves it empty
	DefaultSessionDuration = "PT1H"

	managedPolicyARNPrefix = "arn:aws:iam::aws:policy/"
)

var (
	// ErrExists is returned by a conditional create when the id is taken
	ErrExists = apperr.New(apperr.CodeBadRequest, "permission already exists")
	// ErrNotFound is returned when no record exists for an id
	ErrNotFound = apperr.New(apperr.CodeNotFound, "permission not found")
)

var (
	accountIDPattern       = regexp.MustCompile(`^\d{12}$`)
	nameIDPattern          = regexp.MustCompile(`^[\w+=,.@-]+$`)
	sessionDurationPattern = regexp.MustCompile(`^PT(?:\d+H)?(?:\d+M)?$`)
	policyNamePattern      = regexp.MustCompile(`^[\w+=,.@/-]+$`)
)

// PermissionInfo is the durable grant template. The control-plane triple
// (PermissionSetARN, GroupID and the account assignment) is derived state.
type PermissionInfo struct {
	PermissionID        string    `json:"permission_id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	AWSAccountID        string    `json:"aws_account_id"`
	PermissionSetNameID string    `json:"permission_set_name_id"`
	ManagedPolicyNames  []string  `json:"managed_policy_names"`
	CustomPolicyNames   []string  `json:"custom_policy_names"`
	SessionDuration     string    `json:"session_duration"`
	GroupID             string    `json:"group_id"`
	PermissionSetARN    string    `json:"permission_set_arn"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ManagedPolicyARNs returns the ARNs of the attached provider-managed policies
func (p *PermissionInfo) ManagedPolicyARNs() []string {
	arns := make([]string, 0, len(p.ManagedPolicyNames))
	for _, name := range p.ManagedPolicyNames {
		arns = append(arns, ManagedPolicyARN(name))
	}
	return arns
}

// ManagedPolicyARN converts a managed policy name to its ARN.
// Names that are already ARNs are returned unchanged.
func ManagedPolicyARN(name string) string {
	if strings.HasPrefix(name, "arn:") {
		return name
	}
	return managedPolicyARNPrefix + name
}

// ID derives the permission id, which doubles as the permission set and
// group name on the control plane
func ID(prefix, nameID, accountID string) string {
	return prefix + "-" + nameID + "-" + accountID
}

// CreateInput is a request to create a permission
type CreateInput struct {
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	AWSAccountID        string   `json:"aws_account_id"`
	PermissionSetNameID string   `json:"permission_set_name_id,omitempty"`
	ManagedPolicyNames  []string `json:"managed_policy_names"`
	CustomPolicyNames   []string `json:"custom_policy_names"`
	SessionDuration     string   `json:"session_duration,omitempty"`
}

// NameID returns the explicit name id, or the name when none was given
func (in *CreateInput) NameID() string {
	if in.PermissionSetNameID != "" {
		return in.PermissionSetNameID
	}
	return in.Name
}

// Validate checks the input against the control plane's constraints
func (in *CreateInput) Validate(prefix string) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.BadRequestf("name is required")
	}
	if !accountIDPattern.MatchString(in.AWSAccountID) {
		return apperr.BadRequestf("aws_account_id must be 12 digits: %q", in.AWSAccountID)
	}
	if !nameIDPattern.MatchString(in.NameID()) {
		return apperr.BadRequestf("permission set name may only contain letters, digits and +=,.@_-: %q", in.NameID())
	}
	if id := ID(prefix, in.NameID(), in.AWSAccountID); len(id) > MaxIDLength {
		return apperr.BadRequestf("permission id %q exceeds %d characters", id, MaxIDLength)
	}
	if in.SessionDuration != "" && !sessionDurationPattern.MatchString(in.SessionDuration) {
		return apperr.BadRequestf("session_duration must be an ISO-8601 duration such as PT1H: %q", in.SessionDuration)
	}
	return validatePolicies(in.ManagedPolicyNames, in.CustomPolicyNames)
}

// UpdateInput changes the mutable fields of a permission. Nil fields are left alone.
type UpdateInput struct {
	Description        *string  `json:"description,omitempty"`
	SessionDuration    *string  `json:"session_duration,omitempty"`
	ManagedPolicyNames []string `json:"managed_policy_names,omitempty"`
	CustomPolicyNames  []string `json:"custom_policy_names,omitempty"`
}

// Apply returns a copy of info with the update applied
func (in *UpdateInput) Apply(info *PermissionInfo) (*PermissionInfo, error) {
	next := *info
	if in.Description != nil {
		next.Description = *in.Description
	}
	if in.SessionDuration != nil {
		if !sessionDurationPattern.MatchString(*in.SessionDuration) {
			return nil, apperr.BadRequestf("session_duration must be an ISO-8601 duration such as PT1H: %q", *in.SessionDuration)
		}
		next.SessionDuration = *in.SessionDuration
	}
	if in.ManagedPolicyNames != nil {
		next.ManagedPolicyNames = DedupeManagedPolicies(in.ManagedPolicyNames)
	}
	if in.CustomPolicyNames != nil {
		next.CustomPolicyNames = dedupe(in.CustomPolicyNames)
	}
	if err := validatePolicies(next.ManagedPolicyNames, next.CustomPolicyNames); err != nil {
		return nil, err
	}
	return &next, nil
}

func validatePolicies(managed, custom []string) error {
	if n := len(DedupeManagedPolicies(managed)) + len(dedupe(custom)); n > MaxPolicies {
		return apperr.BadRequestf("at most %d policies may be attached, got %d", MaxPolicies, n)
	}
	for _, name := range append(append([]string{}, managed...), custom...) {
		if !policyNamePattern.MatchString(strings.TrimPrefix(name, managedPolicyARNPrefix)) {
			return apperr.BadRequestf("invalid policy name %q", name)
		}
	}
	return nil
}

// DedupeManagedPolicies drops managed policies that resolve to an ARN
// already listed. The first spelling of each policy is kept.
func DedupeManagedPolicies(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		arn := ManagedPolicyARN(name)
		if seen[arn] {
			continue
		}
		seen[arn] = true
		out = append(out, name)
	}
	return out
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Diff returns the entries of want missing from have, and of have missing from want
func Diff(have, want []string) (added, removed []string) {
	haveSet := make(map[string]bool, len(have))
	for _, h := range have {
		haveSet[h] = true
	}
	wantSet := make(map[string]bool, len(want))
	for _, w := range want {
		wantSet[w] = true
		if !haveSet[w] {
			added = append(added, w)
		}
	}
	for _, h := range have {
		if !wantSet[h] {
			removed = append(removed, h)
		}
	}
	return added, removed
}

// ListFilter selects permissions for List
type ListFilter struct {
	AWSAccountID string
	NamePrefix   string
	Limit        int
	Cursor       string
}
