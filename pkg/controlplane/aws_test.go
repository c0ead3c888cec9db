package controlplane

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	idstypes "github.com/aws/aws-sdk-go-v2/service/identitystore/types"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	ssotypes "github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testInstanceARN = "arn:aws:sso:::instance/ssoins-test"
	testStoreID     = "d-1234567890"
)

// fakeSSOAdmin implements only the calls exercised here; anything else
// panics through the nil embedded interface
type fakeSSOAdmin struct {
	SSOAdminSDK

	createInput *ssoadmin.CreatePermissionSetInput
	createErr   error

	provisionInput *ssoadmin.ProvisionPermissionSetInput

	assignInput  *ssoadmin.CreateAccountAssignmentInput
	assignStatus ssotypes.StatusValues

	customerInput *ssoadmin.AttachCustomerManagedPolicyReferenceToPermissionSetInput

	updateInput *ssoadmin.UpdatePermissionSetInput

	listPages map[string]*ssoadmin.ListPermissionSetsOutput
}

func (f *fakeSSOAdmin) CreatePermissionSet(_ context.Context, in *ssoadmin.CreatePermissionSetInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.CreatePermissionSetOutput, error) {
	f.createInput = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &ssoadmin.CreatePermissionSetOutput{
		PermissionSet: &ssotypes.PermissionSet{
			PermissionSetArn: aws.String("arn:aws:sso:::permissionSet/ssoins-test/ps-1"),
			Name:             in.Name,
		},
	}, nil
}

func (f *fakeSSOAdmin) ListPermissionSets(_ context.Context, in *ssoadmin.ListPermissionSetsInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.ListPermissionSetsOutput, error) {
	return f.listPages[aws.ToString(in.NextToken)], nil
}

func (f *fakeSSOAdmin) ProvisionPermissionSet(_ context.Context, in *ssoadmin.ProvisionPermissionSetInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.ProvisionPermissionSetOutput, error) {
	f.provisionInput = in
	return &ssoadmin.ProvisionPermissionSetOutput{
		PermissionSetProvisioningStatus: &ssotypes.PermissionSetProvisioningStatus{Status: ssotypes.StatusValuesInProgress},
	}, nil
}

func (f *fakeSSOAdmin) CreateAccountAssignment(_ context.Context, in *ssoadmin.CreateAccountAssignmentInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.CreateAccountAssignmentOutput, error) {
	f.assignInput = in
	return &ssoadmin.CreateAccountAssignmentOutput{
		AccountAssignmentCreationStatus: &ssotypes.AccountAssignmentOperationStatus{
			Status:        f.assignStatus,
			FailureReason: aws.String("principal not found"),
		},
	}, nil
}

func (f *fakeSSOAdmin) AttachCustomerManagedPolicyReferenceToPermissionSet(_ context.Context, in *ssoadmin.AttachCustomerManagedPolicyReferenceToPermissionSetInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.AttachCustomerManagedPolicyReferenceToPermissionSetOutput, error) {
	f.customerInput = in
	return &ssoadmin.AttachCustomerManagedPolicyReferenceToPermissionSetOutput{}, nil
}

func (f *fakeSSOAdmin) UpdatePermissionSet(_ context.Context, in *ssoadmin.UpdatePermissionSetInput, _ ...func(*ssoadmin.Options)) (*ssoadmin.UpdatePermissionSetOutput, error) {
	f.updateInput = in
	return &ssoadmin.UpdatePermissionSetOutput{}, nil
}

type fakeIdentityStore struct {
	IdentityStoreSDK

	listUsersInput *identitystore.ListUsersInput
	users          []idstypes.User

	membershipInput *identitystore.CreateGroupMembershipInput
	membershipErr   error

	groupMemberships []idstypes.GroupMembership
}

func (f *fakeIdentityStore) ListUsers(_ context.Context, in *identitystore.ListUsersInput, _ ...func(*identitystore.Options)) (*identitystore.ListUsersOutput, error) {
	f.listUsersInput = in
	return &identitystore.ListUsersOutput{Users: f.users}, nil
}

func (f *fakeIdentityStore) CreateGroupMembership(_ context.Context, in *identitystore.CreateGroupMembershipInput, _ ...func(*identitystore.Options)) (*identitystore.CreateGroupMembershipOutput, error) {
	f.membershipInput = in
	if f.membershipErr != nil {
		return nil, f.membershipErr
	}
	return &identitystore.CreateGroupMembershipOutput{MembershipId: aws.String("m-1")}, nil
}

func (f *fakeIdentityStore) ListGroupMemberships(_ context.Context, _ *identitystore.ListGroupMembershipsInput, _ ...func(*identitystore.Options)) (*identitystore.ListGroupMembershipsOutput, error) {
	return &identitystore.ListGroupMembershipsOutput{GroupMemberships: f.groupMemberships}, nil
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "duplicate conflict",
			err:  &smithy.GenericAPIError{Code: "ConflictException", Message: "PermissionSet with name jit-Admin already exists."},
			want: ErrAlreadyExists,
		},
		{
			name: "concurrent modification",
			err:  &smithy.GenericAPIError{Code: "ConflictException", Message: "There is a conflicting operation in process."},
			want: ErrOperationInProgress,
		},
		{
			name: "missing resource",
			err:  &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "not found"},
			want: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapError(tt.err)
			assert.ErrorIs(t, mapped, tt.want)

			var apiErr smithy.APIError
			assert.True(t, errors.As(mapped, &apiErr), "original error stays in the chain")
		})
	}

	plain := errors.New("network down")
	assert.Same(t, plain, mapError(plain))

	throttled := &smithy.GenericAPIError{Code: "ThrottlingException"}
	assert.False(t, IsOperationInProgress(mapError(throttled)))
}

func TestAWSClient_CreatePermissionSet(t *testing.T) {
	sso := &fakeSSOAdmin{}
	client := NewAWSClientFromSDK(sso, &fakeIdentityStore{}, testInstanceARN, testStoreID)

	arn, err := client.CreatePermissionSet(context.Background(), PermissionSetInput{
		Name:            "jit-Admin-123456789012",
		SessionDuration: "PT1H",
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:sso:::permissionSet/ssoins-test/ps-1", arn)
	assert.Equal(t, testInstanceARN, aws.ToString(sso.createInput.InstanceArn))
	assert.Equal(t, "PT1H", aws.ToString(sso.createInput.SessionDuration))
	assert.Nil(t, sso.createInput.Description)
}

func TestAWSClient_CreatePermissionSetConflict(t *testing.T) {
	sso := &fakeSSOAdmin{createErr: &smithy.GenericAPIError{
		Code:    "ConflictException",
		Message: "PermissionSet already exists",
	}}
	client := NewAWSClientFromSDK(sso, &fakeIdentityStore{}, testInstanceARN, testStoreID)

	_, err := client.CreatePermissionSet(context.Background(), PermissionSetInput{Name: "jit-x"})
	assert.True(t, IsAlreadyExists(err))
}

func TestAWSClient_ListPermissionSetsTokens(t *testing.T) {
	sso := &fakeSSOAdmin{listPages: map[string]*ssoadmin.ListPermissionSetsOutput{
		"":   {PermissionSets: []string{}, NextToken: aws.String("t1")},
		"t1": {PermissionSets: []string{"arn-1"}},
	}}
	client := NewAWSClientFromSDK(sso, &fakeIdentityStore{}, testInstanceARN, testStoreID)

	arns, next, err := client.ListPermissionSets(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, arns)
	assert.Equal(t, "t1", next)

	arns, next, err = client.ListPermissionSets(context.Background(), next, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"arn-1"}, arns)
	assert.Equal(t, "", next)
}

func TestAWSClient_ProvisionTargetsAccount(t *testing.T) {
	sso := &fakeSSOAdmin{}
	client := NewAWSClientFromSDK(sso, &fakeIdentityStore{}, testInstanceARN, testStoreID)

	require.NoError(t, client.ProvisionPermissionSet(context.Background(), "arn-1", "123456789012"))
	assert.Equal(t, ssotypes.ProvisionTargetTypeAwsAccount, sso.provisionInput.TargetType)
	assert.Equal(t, "123456789012", aws.ToString(sso.provisionInput.TargetId))
}

func TestAWSClient_AccountAssignment(t *testing.T) {
	sso := &fakeSSOAdmin{assignStatus: ssotypes.StatusValuesInProgress}
	client := NewAWSClientFromSDK(sso, &fakeIdentityStore{}, testInstanceARN, testStoreID)

	a := AccountAssignment{PermissionSetARN: "arn-1", GroupID: "g-1", AccountID: "123456789012"}
	require.NoError(t, client.CreateAccountAssignment(context.Background(), a))
	assert.Equal(t, ssotypes.PrincipalTypeGroup, sso.assignInput.PrincipalType)
	assert.Equal(t, ssotypes.TargetTypeAwsAccount, sso.assignInput.TargetType)
	assert.Equal(t, "g-1", aws.ToString(sso.assignInput.PrincipalId))

	sso.assignStatus = ssotypes.StatusValuesFailed
	err := client.CreateAccountAssignment(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "principal not found")
}

func TestAWSClient_CustomerPolicyPath(t *testing.T) {
	sso := &fakeSSOAdmin{}
	client := NewAWSClientFromSDK(sso, &fakeIdentityStore{}, testInstanceARN, testStoreID)

	require.NoError(t, client.AttachCustomerManagedPolicy(context.Background(), "arn-1", "ReadOnlyBilling"))
	assert.Equal(t, "/", aws.ToString(sso.customerInput.CustomerManagedPolicyReference.Path))
	assert.Equal(t, "ReadOnlyBilling", aws.ToString(sso.customerInput.CustomerManagedPolicyReference.Name))

	require.NoError(t, client.AttachCustomerManagedPolicy(context.Background(), "arn-1", "team/data/Reader"))
	assert.Equal(t, "/team/data/", aws.ToString(sso.customerInput.CustomerManagedPolicyReference.Path))
	assert.Equal(t, "Reader", aws.ToString(sso.customerInput.CustomerManagedPolicyReference.Name))
}

func TestAWSClient_ListUsersFilter(t *testing.T) {
	ids := &fakeIdentityStore{users: []idstypes.User{
		{UserId: aws.String("u-1"), UserName: aws.String("Alice")},
	}}
	client := NewAWSClientFromSDK(&fakeSSOAdmin{}, ids, testInstanceARN, testStoreID)

	users, _, err := client.ListUsers(context.Background(), "alice", "", 0)
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: "u-1", UserName: "Alice"}}, users)
	require.Len(t, ids.listUsersInput.Filters, 1)
	assert.Equal(t, "UserName", aws.ToString(ids.listUsersInput.Filters[0].AttributePath))
	assert.Nil(t, ids.listUsersInput.MaxResults)
}

func TestAWSClient_GroupMembership(t *testing.T) {
	ids := &fakeIdentityStore{}
	client := NewAWSClientFromSDK(&fakeSSOAdmin{}, ids, testInstanceARN, testStoreID)

	id, err := client.CreateGroupMembership(context.Background(), "g-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	member, ok := ids.membershipInput.MemberId.(*idstypes.MemberIdMemberUserId)
	require.True(t, ok)
	assert.Equal(t, "u-1", member.Value)

	ids.membershipErr = &smithy.GenericAPIError{Code: "ConflictException", Message: "Member already exists in group"}
	_, err = client.CreateGroupMembership(context.Background(), "g-1", "u-1")
	assert.True(t, IsAlreadyExists(err))
}

func TestAWSClient_ListGroupMembershipsSkipsNonUsers(t *testing.T) {
	ids := &fakeIdentityStore{groupMemberships: []idstypes.GroupMembership{
		{MembershipId: aws.String("m-1"), GroupId: aws.String("g-1"), MemberId: &idstypes.MemberIdMemberUserId{Value: "u-1"}},
		{MembershipId: aws.String("m-2"), GroupId: aws.String("g-1")},
	}}
	client := NewAWSClientFromSDK(&fakeSSOAdmin{}, ids, testInstanceARN, testStoreID)

	members, next, err := client.ListGroupMemberships(context.Background(), "g-1", "", 10)
	require.NoError(t, err)
	assert.Equal(t, "", next)
	assert.Equal(t, []Membership{{MembershipID: "m-1", GroupID: "g-1", UserID: "u-1"}}, members)
}

func TestAWSClient_UpdatePermissionSetClearsDescription(t *testing.T) {
	sso := &fakeSSOAdmin{}
	client := NewAWSClientFromSDK(sso, &fakeIdentityStore{}, testInstanceARN, testStoreID)

	err := client.UpdatePermissionSet(context.Background(), "arn:aws:sso:::permissionSet/ssoins-test/ps-1", PermissionSetInput{
		Name:            "jit-Admin-123456789012",
		SessionDuration: "PT2H",
	})
	require.NoError(t, err)
	require.NotNil(t, sso.updateInput.Description)
	assert.Equal(t, "", *sso.updateInput.Description)
	assert.Equal(t, "PT2H", aws.ToString(sso.updateInput.SessionDuration))
}
