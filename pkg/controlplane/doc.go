// Package controlplane talks to the cloud identity control plane: permission
// sets and their policies, identity-store groups, users and memberships, and
// account assignments.
//
// Two implementations of Client are provided. AWSClient wraps the IAM Identity
// Center ssoadmin and identitystore APIs and maps their conflict responses to
// ErrAlreadyExists, ErrOperationInProgress and ErrNotFound. MemoryClient keeps
// everything in process and is used for local development and tests.
//
// Creation is made idempotent by CreateOrFind and the Upserter:
//
//	upserter := controlplane.NewUpserter(client, controlplane.NewListingResolver(client, 0))
//	arn, created, err := upserter.EnsurePermissionSet(ctx, controlplane.PermissionSetInput{Name: name})
package controlplane

var (
	_ Client = (*AWSClient)(nil)
	_ Client = (*MemoryClient)(nil)
)
