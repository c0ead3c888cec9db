package provisioning

import (
	"context"
	"errors"

	"github.com/platinummonkey/jitaccess/pkg/controlplane"
	"github.com/platinummonkey/jitaccess/pkg/permissions"
)

// DeletePermission tears down the account assignment, permission set and
// group, then deletes the record. Resources that are already gone are
// skipped, so a repeated delete succeeds.
func (p *Provisioner) DeletePermission(ctx context.Context, permissionID string) error {
	return p.run(ctx, SagaDelete, permissionID, func(ctx context.Context, s *saga) error {
		var info *permissions.PermissionInfo

		if err := s.step(ctx, "load_permission", func(ctx context.Context) error {
			var err error
			info, err = p.store.Get(ctx, permissionID)
			if errors.Is(err, permissions.ErrNotFound) {
				return nil
			}
			return err
		}); err != nil {
			return err
		}
		if info == nil {
			s.logger.Info("Permission already deleted")
			return nil
		}

		// The assignment has to go before the permission set; the provider
		// refuses to delete a set that is still provisioned to an account.
		if err := s.step(ctx, "delete_assignment", func(ctx context.Context) error {
			err := p.retryInProgress(ctx, "DeleteAccountAssignment", func(ctx context.Context) error {
				return p.client.DeleteAccountAssignment(ctx, assignmentOf(info))
			})
			return ignore(err, controlplane.IsNotFound)
		}); err != nil {
			return err
		}

		if err := s.step(ctx, "delete_permission_set", func(ctx context.Context) error {
			err := p.retryInProgress(ctx, "DeletePermissionSet", func(ctx context.Context) error {
				return p.client.DeletePermissionSet(ctx, info.PermissionSetARN)
			})
			return ignore(err, controlplane.IsNotFound)
		}); err != nil {
			return err
		}

		if err := s.step(ctx, "delete_group", func(ctx context.Context) error {
			return ignore(p.client.DeleteGroup(ctx, info.GroupID), controlplane.IsNotFound)
		}); err != nil {
			return err
		}

		return s.step(ctx, "delete_record", func(ctx context.Context) error {
			return p.store.Delete(ctx, permissionID)
		})
	})
}
