package provisioning

import (
	"context"
	"fmt"

	"github.com/platinummonkey/jitaccess/pkg/controlplane"
	"github.com/platinummonkey/jitaccess/pkg/pagination"
)

// Member is one user currently holding a permission
type Member struct {
	MembershipID string `json:"membership_id"`
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name,omitempty"`
}

// ListMembers pages through the users in a permission's group. The cursor
// wraps the control plane's own continuation token, and a page may be empty
// while more remain.
func (p *Provisioner) ListMembers(ctx context.Context, permissionID, cursor string, limit int) (pagination.Page[Member], error) {
	info, err := p.store.Get(ctx, permissionID)
	if err != nil {
		return pagination.Page[Member]{}, err
	}

	fetch := func(ctx context.Context, token string, limit int) ([]Member, string, error) {
		memberships, next, err := p.client.ListGroupMemberships(ctx, info.GroupID, token, limit)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list group memberships: %w", err)
		}

		members := make([]Member, 0, len(memberships))
		for _, ms := range memberships {
			member := Member{MembershipID: ms.MembershipID, UserID: ms.UserID}
			user, err := p.client.DescribeUser(ctx, ms.UserID)
			switch {
			case err == nil:
				member.UserName = user.UserName
			case controlplane.IsNotFound(err):
				// user deleted since the listing; keep the bare id
			default:
				return nil, "", fmt.Errorf("failed to describe user %s: %w", ms.UserID, err)
			}
			members = append(members, member)
		}
		return members, next, nil
	}

	return pagination.FetchPage[Member](ctx, fetch, cursor, limit)
}
