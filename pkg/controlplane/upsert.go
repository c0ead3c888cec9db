package controlplane

import (
	"context"
	"fmt"
)

// CreateOrFind attempts create and, when the provider reports a duplicate,
// falls back to find. Concurrent callers for the same logical resource
// converge on one identifier: the loser of a create race takes the find path.
func CreateOrFind(
	ctx context.Context,
	create func(context.Context) (string, error),
	find func(context.Context) (string, bool, error),
) (id string, created bool, err error) {
	id, err = create(ctx)
	if err == nil {
		return id, true, nil
	}
	if !IsAlreadyExists(err) {
		return "", false, err
	}

	id, ok, findErr := find(ctx)
	if findErr != nil {
		return "", false, findErr
	}
	if !ok {
		return "", false, fmt.Errorf("%w: %v", ErrNameTaken, err)
	}
	return id, false, nil
}

// Upserter creates control-plane resources idempotently
type Upserter struct {
	client   Client
	resolver Resolver
}

// NewUpserter creates a new upserter
func NewUpserter(client Client, resolver Resolver) *Upserter {
	return &Upserter{client: client, resolver: resolver}
}

// EnsurePermissionSet creates the permission set or adopts the one that
// already carries exactly this name
func (u *Upserter) EnsurePermissionSet(ctx context.Context, in PermissionSetInput) (string, bool, error) {
	return CreateOrFind(ctx,
		func(ctx context.Context) (string, error) {
			return u.client.CreatePermissionSet(ctx, in)
		},
		func(ctx context.Context) (string, bool, error) {
			ps, ok, err := u.resolver.PermissionSetByName(ctx, in.Name)
			if err != nil || !ok {
				return "", ok, err
			}
			return ps.ARN, true, nil
		},
	)
}

// EnsureGroup creates the group or adopts an existing one with exactly this
// name. Groups synchronized from an external identity source are never adopted.
func (u *Upserter) EnsureGroup(ctx context.Context, name, description string) (string, bool, error) {
	return CreateOrFind(ctx,
		func(ctx context.Context) (string, error) {
			return u.client.CreateGroup(ctx, name, description)
		},
		func(ctx context.Context) (string, bool, error) {
			group, ok, err := u.resolver.GroupByName(ctx, name)
			if err != nil || !ok {
				return "", ok, err
			}
			if len(group.ExternalIDs) > 0 {
				return "", false, fmt.Errorf("%w: group %q is managed by an external identity source", ErrNameTaken, name)
			}
			return group.ID, true, nil
		},
	)
}

// EnsureMembership adds the user to the group; an existing membership is success
func (u *Upserter) EnsureMembership(ctx context.Context, groupID, userID string) (string, bool, error) {
	return CreateOrFind(ctx,
		func(ctx context.Context) (string, error) {
			return u.client.CreateGroupMembership(ctx, groupID, userID)
		},
		func(ctx context.Context) (string, bool, error) {
			id, err := u.client.GetGroupMembershipID(ctx, groupID, userID)
			if IsNotFound(err) {
				return "", false, nil
			}
			if err != nil {
				return "", false, err
			}
			return id, true, nil
		},
	)
}
