package provisioning

import (
	"context"

	"github.com/platinummonkey/jitaccess/pkg/controlplane"
	"github.com/platinummonkey/jitaccess/pkg/pagination"
	"github.com/platinummonkey/jitaccess/pkg/permissions"
)

// UpdatePermission applies in to an existing permission: newly listed
// policies are attached, dropped ones detached, the permission set is
// updated and re-provisioned, and finally the record is replaced.
func (p *Provisioner) UpdatePermission(ctx context.Context, permissionID string, in permissions.UpdateInput) (*permissions.PermissionInfo, error) {
	current, err := p.store.Get(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	next, err := in.Apply(current)
	if err != nil {
		return nil, err
	}

	// managed policies are compared by ARN so a name and its ARN are the same policy
	addedManaged, removedManaged := permissions.Diff(current.ManagedPolicyARNs(), next.ManagedPolicyARNs())
	addedCustom, removedCustom := permissions.Diff(current.CustomPolicyNames, next.CustomPolicyNames)

	err = p.run(ctx, SagaUpdate, permissionID, func(ctx context.Context, s *saga) error {
		if err := s.step(ctx, "attach_policies", func(ctx context.Context) error {
			return p.attachPolicies(ctx, next.PermissionSetARN, addedManaged, addedCustom)
		}); err != nil {
			return err
		}

		if err := s.step(ctx, "detach_policies", func(ctx context.Context) error {
			return p.detachPolicies(ctx, next.PermissionSetARN, removedManaged, removedCustom)
		}); err != nil {
			return err
		}

		if next.Description != current.Description || next.SessionDuration != current.SessionDuration {
			if err := s.step(ctx, "update_permission_set", func(ctx context.Context) error {
				return p.client.UpdatePermissionSet(ctx, next.PermissionSetARN, controlplane.PermissionSetInput{
					Name:            next.PermissionID,
					Description:     next.Description,
					SessionDuration: next.SessionDuration,
				})
			}); err != nil {
				return err
			}
		}

		if err := s.step(ctx, "provision", func(ctx context.Context) error {
			return p.provision(ctx, next)
		}); err != nil {
			return err
		}

		return s.step(ctx, "record", func(ctx context.Context) error {
			return p.store.Update(ctx, next)
		})
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// GetPermission returns the record for permissionID
func (p *Provisioner) GetPermission(ctx context.Context, permissionID string) (*permissions.PermissionInfo, error) {
	return p.store.Get(ctx, permissionID)
}

// ListPermissions pages through permission records
func (p *Provisioner) ListPermissions(ctx context.Context, filter permissions.ListFilter) (pagination.Page[*permissions.PermissionInfo], error) {
	return p.store.List(ctx, filter)
}
