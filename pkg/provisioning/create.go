package provisioning

import (
	"context"
	"errors"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
	"github.com/platinummonkey/jitaccess/pkg/controlplane"
	"github.com/platinummonkey/jitaccess/pkg/permissions"
)

// CreatePermission provisions the permission set, group and account
// assignment for a new permission, then records it. Every step is safe to
// repeat: a rerun after a partial failure adopts what the earlier run created.
func (p *Provisioner) CreatePermission(ctx context.Context, in permissions.CreateInput) (*permissions.PermissionInfo, error) {
	if err := in.Validate(p.prefix); err != nil {
		return nil, err
	}

	info := &permissions.PermissionInfo{
		PermissionID:        permissions.ID(p.prefix, in.NameID(), in.AWSAccountID),
		Name:                in.Name,
		Description:         in.Description,
		AWSAccountID:        in.AWSAccountID,
		PermissionSetNameID: in.NameID(),
		ManagedPolicyNames:  permissions.DedupeManagedPolicies(in.ManagedPolicyNames),
		CustomPolicyNames:   nonNil(in.CustomPolicyNames),
		SessionDuration:     in.SessionDuration,
	}
	if info.SessionDuration == "" {
		info.SessionDuration = permissions.DefaultSessionDuration
	}
	id := info.PermissionID

	err := p.run(ctx, SagaCreate, id, func(ctx context.Context, s *saga) error {
		if err := s.step(ctx, "check_existing", func(ctx context.Context) error {
			existing, err := p.store.GetFold(ctx, id)
			if errors.Is(err, permissions.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return apperr.Wrap(apperr.CodeBadRequest, permissions.ErrExists,
				"permission "+id+" conflicts with existing permission "+existing.PermissionID)
		}); err != nil {
			return err
		}

		if err := s.step(ctx, "permission_set", func(ctx context.Context) error {
			arn, _, err := p.upserter.EnsurePermissionSet(ctx, controlplane.PermissionSetInput{
				Name:            id,
				Description:     info.Description,
				SessionDuration: info.SessionDuration,
			})
			if err != nil {
				return nameTaken(err, "permission set", id)
			}
			info.PermissionSetARN = arn
			return nil
		}); err != nil {
			return err
		}

		if err := s.step(ctx, "attach_policies", func(ctx context.Context) error {
			return p.attachPolicies(ctx, info.PermissionSetARN, info.ManagedPolicyNames, info.CustomPolicyNames)
		}); err != nil {
			return err
		}

		if err := s.step(ctx, "group", func(ctx context.Context) error {
			groupID, _, err := p.upserter.EnsureGroup(ctx, id, info.Description)
			if err != nil {
				return nameTaken(err, "group", id)
			}
			info.GroupID = groupID
			return nil
		}); err != nil {
			return err
		}

		if err := s.step(ctx, "provision", func(ctx context.Context) error {
			return p.provision(ctx, info)
		}); err != nil {
			return err
		}

		if err := s.step(ctx, "account_assignment", func(ctx context.Context) error {
			err := p.retryInProgress(ctx, "CreateAccountAssignment", func(ctx context.Context) error {
				return p.client.CreateAccountAssignment(ctx, assignmentOf(info))
			})
			return ignore(err, controlplane.IsAlreadyExists)
		}); err != nil {
			return err
		}

		return s.step(ctx, "record", func(ctx context.Context) error {
			return p.store.Create(ctx, info)
		})
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (p *Provisioner) attachPolicies(ctx context.Context, arn string, managed, custom []string) error {
	for _, name := range managed {
		err := p.client.AttachManagedPolicy(ctx, arn, permissions.ManagedPolicyARN(name))
		if err := ignore(err, controlplane.IsAlreadyExists); err != nil {
			return err
		}
	}
	for _, name := range custom {
		err := p.client.AttachCustomerManagedPolicy(ctx, arn, name)
		if err := ignore(err, controlplane.IsAlreadyExists); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) detachPolicies(ctx context.Context, arn string, managed, custom []string) error {
	for _, name := range managed {
		err := p.client.DetachManagedPolicy(ctx, arn, permissions.ManagedPolicyARN(name))
		if err := ignore(err, controlplane.IsNotFound); err != nil {
			return err
		}
	}
	for _, name := range custom {
		err := p.client.DetachCustomerManagedPolicy(ctx, arn, name)
		if err := ignore(err, controlplane.IsNotFound); err != nil {
			return err
		}
	}
	return nil
}

// provision pushes the permission set to the account. A provisioning run
// already in flight for the same set will apply the current definition.
func (p *Provisioner) provision(ctx context.Context, info *permissions.PermissionInfo) error {
	err := p.client.ProvisionPermissionSet(ctx, info.PermissionSetARN, info.AWSAccountID)
	return ignore(err, controlplane.IsOperationInProgress)
}

func assignmentOf(info *permissions.PermissionInfo) controlplane.AccountAssignment {
	return controlplane.AccountAssignment{
		PermissionSetARN: info.PermissionSetARN,
		GroupID:          info.GroupID,
		AccountID:        info.AWSAccountID,
	}
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
