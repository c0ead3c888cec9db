package provisioning

import (
	"context"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
	"github.com/platinummonkey/jitaccess/pkg/controlplane"
	"github.com/platinummonkey/jitaccess/pkg/permissions"
)

// GrantUser adds the user to the permission's group. Granting a user who is
// already a member succeeds.
func (p *Provisioner) GrantUser(ctx context.Context, permissionID, userName string) error {
	return p.run(ctx, SagaGrant, permissionID, func(ctx context.Context, s *saga) error {
		var (
			info *permissions.PermissionInfo
			user *controlplane.User
		)

		if err := s.step(ctx, "load_permission", func(ctx context.Context) error {
			var err error
			info, err = p.store.Get(ctx, permissionID)
			return err
		}); err != nil {
			return err
		}

		if err := s.step(ctx, "resolve_user", func(ctx context.Context) error {
			found, ok, err := p.resolver.UserByName(ctx, userName)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.BadRequestf("user %q not found", userName)
			}
			user = found
			return nil
		}); err != nil {
			return err
		}

		return s.step(ctx, "membership", func(ctx context.Context) error {
			_, created, err := p.upserter.EnsureMembership(ctx, info.GroupID, user.ID)
			if err == nil && !created {
				s.logger.WithField("user", userName).Info("User already a member")
			}
			return err
		})
	})
}

// RevokeUser removes the user from the permission's group. A membership that
// is already gone, or a user who no longer exists, counts as revoked.
func (p *Provisioner) RevokeUser(ctx context.Context, permissionID, userName string) error {
	return p.run(ctx, SagaRevoke, permissionID, func(ctx context.Context, s *saga) error {
		var (
			info         *permissions.PermissionInfo
			userID       string
			membershipID string
		)

		if err := s.step(ctx, "load_permission", func(ctx context.Context) error {
			var err error
			info, err = p.store.Get(ctx, permissionID)
			return err
		}); err != nil {
			return err
		}

		if err := s.step(ctx, "resolve_user", func(ctx context.Context) error {
			user, ok, err := p.resolver.UserByName(ctx, userName)
			if err != nil {
				return err
			}
			if ok {
				userID = user.ID
			}
			return nil
		}); err != nil {
			return err
		}
		if userID == "" {
			s.logger.WithField("user", userName).Info("User not found, nothing to revoke")
			return nil
		}

		if err := s.step(ctx, "find_membership", func(ctx context.Context) error {
			id, err := p.client.GetGroupMembershipID(ctx, info.GroupID, userID)
			if err != nil {
				return ignore(err, controlplane.IsNotFound)
			}
			membershipID = id
			return nil
		}); err != nil {
			return err
		}
		if membershipID == "" {
			s.logger.WithField("user", userName).Info("Membership already removed")
			return nil
		}

		return s.step(ctx, "delete_membership", func(ctx context.Context) error {
			return ignore(p.client.DeleteGroupMembership(ctx, membershipID), controlplane.IsNotFound)
		})
	})
}
