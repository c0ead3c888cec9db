package controlplane

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyExists is returned when a named resource, attachment,
	// assignment, or membership already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrOperationInProgress is returned when the provider is still applying
	// an earlier asynchronous operation on the same resource
	ErrOperationInProgress = errors.New("conflicting operation in progress")

	// ErrNotFound is returned when a resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrNameTaken is returned when a create conflicts on a name but no
	// resource with exactly that name can be adopted
	ErrNameTaken = errors.New("name is held by a resource that cannot be adopted")
)

// IsAlreadyExists reports whether err is a duplicate conflict
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsOperationInProgress reports whether err is the transient async conflict
func IsOperationInProgress(err error) bool { return errors.Is(err, ErrOperationInProgress) }

// IsNotFound reports whether err means the resource is absent
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// PermissionSetInput describes a permission set to create or update
type PermissionSetInput struct {
	Name            string
	Description     string
	SessionDuration string // ISO-8601, e.g. PT1H
}

// PermissionSet is the control plane's policy container
type PermissionSet struct {
	ARN             string
	Name            string
	Description     string
	SessionDuration string
}

// Group is an identity-store group
type Group struct {
	ID          string
	DisplayName string
	Description string
	// ExternalIDs is non-empty for groups synchronized from an external
	// identity provider. Such groups are never adopted.
	ExternalIDs []string
}

// User is an identity-store user
type User struct {
	ID       string
	UserName string
}

// Membership binds a user to a group
type Membership struct {
	MembershipID string
	GroupID      string
	UserID       string
}

// AccountAssignment binds a group and a permission set to an account
type AccountAssignment struct {
	PermissionSetARN string
	GroupID          string
	AccountID        string
}

// PermissionSetAPI covers the policy side of the control plane
type PermissionSetAPI interface {
	CreatePermissionSet(ctx context.Context, in PermissionSetInput) (arn string, err error)
	DescribePermissionSet(ctx context.Context, arn string) (*PermissionSet, error)
	// ListPermissionSets returns ARNs only; names require a describe call
	ListPermissionSets(ctx context.Context, token string, limit int) (arns []string, next string, err error)
	UpdatePermissionSet(ctx context.Context, arn string, in PermissionSetInput) error
	DeletePermissionSet(ctx context.Context, arn string) error

	AttachManagedPolicy(ctx context.Context, arn, policyARN string) error
	DetachManagedPolicy(ctx context.Context, arn, policyARN string) error
	AttachCustomerManagedPolicy(ctx context.Context, arn, policyName string) error
	DetachCustomerManagedPolicy(ctx context.Context, arn, policyName string) error

	ProvisionPermissionSet(ctx context.Context, arn, accountID string) error
	CreateAccountAssignment(ctx context.Context, a AccountAssignment) error
	DeleteAccountAssignment(ctx context.Context, a AccountAssignment) error
}

// IdentityStoreAPI covers groups, users, and memberships
type IdentityStoreAPI interface {
	CreateGroup(ctx context.Context, name, description string) (groupID string, err error)
	ListGroups(ctx context.Context, token string, limit int) (groups []Group, next string, err error)
	DeleteGroup(ctx context.Context, groupID string) error

	// ListUsers lists users whose name matches userName. Matching follows
	// the provider and may ignore case; an empty userName lists everyone.
	ListUsers(ctx context.Context, userName, token string, limit int) (users []User, next string, err error)
	DescribeUser(ctx context.Context, userID string) (*User, error)

	CreateGroupMembership(ctx context.Context, groupID, userID string) (membershipID string, err error)
	GetGroupMembershipID(ctx context.Context, groupID, userID string) (string, error)
	DeleteGroupMembership(ctx context.Context, membershipID string) error
	ListGroupMemberships(ctx context.Context, groupID, token string, limit int) (memberships []Membership, next string, err error)
}

// Client is the full control plane consumed by the provisioning sagas
type Client interface {
	PermissionSetAPI
	IdentityStoreAPI
}
