package controlplane

import (
	"context"
	"fmt"

	"github.com/platinummonkey/jitaccess/pkg/pagination"
)

// Resolver finds control-plane resources by exact name. The provider has no
// get-by-name call for these resources, so implementations page through
// listings; a direct lookup can replace one without touching the sagas.
type Resolver interface {
	PermissionSetByName(ctx context.Context, name string) (*PermissionSet, bool, error)
	GroupByName(ctx context.Context, name string) (*Group, bool, error)
	UserByName(ctx context.Context, userName string) (*User, bool, error)
}

// ListingResolver implements Resolver with paginated list calls
type ListingResolver struct {
	client   Client
	pageSize int
}

// NewListingResolver creates a resolver backed by list calls
func NewListingResolver(client Client, pageSize int) *ListingResolver {
	if pageSize <= 0 {
		pageSize = pagination.MaxLimit
	}
	return &ListingResolver{client: client, pageSize: pageSize}
}

// PermissionSetByName lists permission set ARNs and describes each one
// until a name matches exactly
func (r *ListingResolver) PermissionSetByName(ctx context.Context, name string) (*PermissionSet, bool, error) {
	fetch := func(ctx context.Context, token string, limit int) ([]*PermissionSet, string, error) {
		arns, next, err := r.client.ListPermissionSets(ctx, token, limit)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list permission sets: %w", err)
		}

		described := make([]*PermissionSet, 0, len(arns))
		for _, arn := range arns {
			ps, err := r.client.DescribePermissionSet(ctx, arn)
			if IsNotFound(err) {
				// deleted between list and describe
				continue
			}
			if err != nil {
				return nil, "", fmt.Errorf("failed to describe permission set %s: %w", arn, err)
			}
			described = append(described, ps)
		}
		return described, next, nil
	}

	return pagination.Find[*PermissionSet](ctx, fetch, r.pageSize, func(ps *PermissionSet) bool {
		return ps.Name == name
	})
}

// GroupByName pages through groups looking for an exact display name
func (r *ListingResolver) GroupByName(ctx context.Context, name string) (*Group, bool, error) {
	fetch := func(ctx context.Context, token string, limit int) ([]Group, string, error) {
		groups, next, err := r.client.ListGroups(ctx, token, limit)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list groups: %w", err)
		}
		return groups, next, nil
	}

	group, ok, err := pagination.Find[Group](ctx, fetch, r.pageSize, func(g Group) bool {
		return g.DisplayName == name
	})
	if err != nil || !ok {
		return nil, ok, err
	}
	return &group, true, nil
}

// UserByName resolves a user by exact, case-sensitive user name
func (r *ListingResolver) UserByName(ctx context.Context, userName string) (*User, bool, error) {
	fetch := func(ctx context.Context, token string, limit int) ([]User, string, error) {
		users, next, err := r.client.ListUsers(ctx, userName, token, limit)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list users: %w", err)
		}
		return users, next, nil
	}

	user, ok, err := pagination.Find[User](ctx, fetch, r.pageSize, func(u User) bool {
		return u.UserName == userName
	})
	if err != nil || !ok {
		return nil, ok, err
	}
	return &user, true, nil
}
