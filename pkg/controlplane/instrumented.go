package controlplane

import (
	"context"

	"github.com/platinummonkey/jitaccess/pkg/observability"
)

// Instrumented decorates a Client with per-call OpenTelemetry metrics
type Instrumented struct {
	next    Client
	metrics *observability.OTelMetrics
}

// Instrument wraps next; a nil metrics value returns next unchanged
func Instrument(next Client, metrics *observability.OTelMetrics) Client {
	if metrics == nil {
		return next
	}
	return &Instrumented{next: next, metrics: metrics}
}

func (c *Instrumented) CreatePermissionSet(ctx context.Context, in PermissionSetInput) (arn string, err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "CreatePermissionSet")
	defer func() { done(err) }()
	return c.next.CreatePermissionSet(ctx, in)
}

func (c *Instrumented) DescribePermissionSet(ctx context.Context, arn string) (ps *PermissionSet, err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "DescribePermissionSet")
	defer func() { done(err) }()
	return c.next.DescribePermissionSet(ctx, arn)
}

func (c *Instrumented) ListPermissionSets(ctx context.Context, token string, limit int) (arns []string, next string, err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "ListPermissionSets")
	defer func() { done(err) }()
	return c.next.ListPermissionSets(ctx, token, limit)
}

func (c *Instrumented) UpdatePermissionSet(ctx context.Context, arn string, in PermissionSetInput) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "UpdatePermissionSet")
	defer func() { done(err) }()
	return c.next.UpdatePermissionSet(ctx, arn, in)
}

func (c *Instrumented) DeletePermissionSet(ctx context.Context, arn string) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "DeletePermissionSet")
	defer func() { done(err) }()
	return c.next.DeletePermissionSet(ctx, arn)
}

func (c *Instrumented) AttachManagedPolicy(ctx context.Context, arn, policyARN string) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "AttachManagedPolicy")
	defer func() { done(err) }()
	return c.next.AttachManagedPolicy(ctx, arn, policyARN)
}

func (c *Instrumented) DetachManagedPolicy(ctx context.Context, arn, policyARN string) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "DetachManagedPolicy")
	defer func() { done(err) }()
	return c.next.DetachManagedPolicy(ctx, arn, policyARN)
}

func (c *Instrumented) AttachCustomerManagedPolicy(ctx context.Context, arn, policyName string) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "AttachCustomerManagedPolicy")
	defer func() { done(err) }()
	return c.next.AttachCustomerManagedPolicy(ctx, arn, policyName)
}

func (c *Instrumented) DetachCustomerManagedPolicy(ctx context.Context, arn, policyName string) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "DetachCustomerManagedPolicy")
	defer func() { done(err) }()
	return c.next.DetachCustomerManagedPolicy(ctx, arn, policyName)
}

func (c *Instrumented) ProvisionPermissionSet(ctx context.Context, arn, accountID string) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "ProvisionPermissionSet")
	defer func() { done(err) }()
	return c.next.ProvisionPermissionSet(ctx, arn, accountID)
}

func (c *Instrumented) CreateAccountAssignment(ctx context.Context, a AccountAssignment) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "CreateAccountAssignment")
	defer func() { done(err) }()
	return c.next.CreateAccountAssignment(ctx, a)
}

func (c *Instrumented) DeleteAccountAssignment(ctx context.Context, a AccountAssignment) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "DeleteAccountAssignment")
	defer func() { done(err) }()
	return c.next.DeleteAccountAssignment(ctx, a)
}

func (c *Instrumented) CreateGroup(ctx context.Context, name, description string) (groupID string, err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "CreateGroup")
	defer func() { done(err) }()
	return c.next.CreateGroup(ctx, name, description)
}

func (c *Instrumented) ListGroups(ctx context.Context, token string, limit int) (groups []Group, next string, err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "ListGroups")
	defer func() { done(err) }()
	return c.next.ListGroups(ctx, token, limit)
}

func (c *Instrumented) DeleteGroup(ctx context.Context, groupID string) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "DeleteGroup")
	defer func() { done(err) }()
	return c.next.DeleteGroup(ctx, groupID)
}

func (c *Instrumented) ListUsers(ctx context.Context, userName, token string, limit int) (users []User, next string, err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "ListUsers")
	defer func() { done(err) }()
	return c.next.ListUsers(ctx, userName, token, limit)
}

func (c *Instrumented) DescribeUser(ctx context.Context, userID string) (u *User, err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "DescribeUser")
	defer func() { done(err) }()
	return c.next.DescribeUser(ctx, userID)
}

func (c *Instrumented) CreateGroupMembership(ctx context.Context, groupID, userID string) (membershipID string, err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "CreateGroupMembership")
	defer func() { done(err) }()
	return c.next.CreateGroupMembership(ctx, groupID, userID)
}

func (c *Instrumented) GetGroupMembershipID(ctx context.Context, groupID, userID string) (id string, err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "GetGroupMembershipID")
	defer func() { done(err) }()
	return c.next.GetGroupMembershipID(ctx, groupID, userID)
}

func (c *Instrumented) DeleteGroupMembership(ctx context.Context, membershipID string) (err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "DeleteGroupMembership")
	defer func() { done(err) }()
	return c.next.DeleteGroupMembership(ctx, membershipID)
}

func (c *Instrumented) ListGroupMemberships(ctx context.Context, groupID, token string, limit int) (memberships []Membership, next string, err error) {
	done := c.metrics.StartControlPlaneCall(ctx, "ListGroupMemberships")
	defer func() { done(err) }()
	return c.next.ListGroupMemberships(ctx, groupID, token, limit)
}
