package controlplane

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	idstypes "github.com/aws/aws-sdk-go-v2/service/identitystore/types"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	ssotypes "github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("jitaccess/controlplane")

// SSOAdminSDK is the subset of the ssoadmin client used by AWSClient
type SSOAdminSDK interface {
	CreatePermissionSet(ctx context.Context, in *ssoadmin.CreatePermissionSetInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.CreatePermissionSetOutput, error)
	DescribePermissionSet(ctx context.Context, in *ssoadmin.DescribePermissionSetInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.DescribePermissionSetOutput, error)
	ListPermissionSets(ctx context.Context, in *ssoadmin.ListPermissionSetsInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.ListPermissionSetsOutput, error)
	UpdatePermissionSet(ctx context.Context, in *ssoadmin.UpdatePermissionSetInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.UpdatePermissionSetOutput, error)
	DeletePermissionSet(ctx context.Context, in *ssoadmin.DeletePermissionSetInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.DeletePermissionSetOutput, error)
	AttachManagedPolicyToPermissionSet(ctx context.Context, in *ssoadmin.AttachManagedPolicyToPermissionSetInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.AttachManagedPolicyToPermissionSetOutput, error)
	DetachManagedPolicyFromPermissionSet(ctx context.Context, in *ssoadmin.DetachManagedPolicyFromPermissionSetInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.DetachManagedPolicyFromPermissionSetOutput, error)
	AttachCustomerManagedPolicyReferenceToPermissionSet(ctx context.Context, in *ssoadmin.AttachCustomerManagedPolicyReferenceToPermissionSetInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.AttachCustomerManagedPolicyReferenceToPermissionSetOutput, error)
	DetachCustomerManagedPolicyReferenceFromPermissionSet(ctx context.Context, in *ssoadmin.DetachCustomerManagedPolicyReferenceFromPermissionSetInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.DetachCustomerManagedPolicyReferenceFromPermissionSetOutput, error)
	ProvisionPermissionSet(ctx context.Context, in *ssoadmin.ProvisionPermissionSetInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.ProvisionPermissionSetOutput, error)
	CreateAccountAssignment(ctx context.Context, in *ssoadmin.CreateAccountAssignmentInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.CreateAccountAssignmentOutput, error)
	DeleteAccountAssignment(ctx context.Context, in *ssoadmin.DeleteAccountAssignmentInput, opts ...func(*ssoadmin.Options)) (*ssoadmin.DeleteAccountAssignmentOutput, error)
}

// IdentityStoreSDK is the subset of the identitystore client used by AWSClient
type IdentityStoreSDK interface {
	CreateGroup(ctx context.Context, in *identitystore.CreateGroupInput, opts ...func(*identitystore.Options)) (*identitystore.CreateGroupOutput, error)
	ListGroups(ctx context.Context, in *identitystore.ListGroupsInput, opts ...func(*identitystore.Options)) (*identitystore.ListGroupsOutput, error)
	DeleteGroup(ctx context.Context, in *identitystore.DeleteGroupInput, opts ...func(*identitystore.Options)) (*identitystore.DeleteGroupOutput, error)
	ListUsers(ctx context.Context, in *identitystore.ListUsersInput, opts ...func(*identitystore.Options)) (*identitystore.ListUsersOutput, error)
	DescribeUser(ctx context.Context, in *identitystore.DescribeUserInput, opts ...func(*identitystore.Options)) (*identitystore.DescribeUserOutput, error)
	CreateGroupMembership(ctx context.Context, in *identitystore.CreateGroupMembershipInput, opts ...func(*identitystore.Options)) (*identitystore.CreateGroupMembershipOutput, error)
	GetGroupMembershipId(ctx context.Context, in *identitystore.GetGroupMembershipIdInput, opts ...func(*identitystore.Options)) (*identitystore.GetGroupMembershipIdOutput, error)
	DeleteGroupMembership(ctx context.Context, in *identitystore.DeleteGroupMembershipInput, opts ...func(*identitystore.Options)) (*identitystore.DeleteGroupMembershipOutput, error)
	ListGroupMemberships(ctx context.Context, in *identitystore.ListGroupMembershipsInput, opts ...func(*identitystore.Options)) (*identitystore.ListGroupMembershipsOutput, error)
}

// AWSConfig holds settings for the IAM Identity Center adapter
type AWSConfig struct {
	Region          string
	InstanceARN     string
	IdentityStoreID string
	AccessKey       string
	SecretKey       string
	Endpoint        string
}

// AWSClient implements Client against IAM Identity Center
type AWSClient struct {
	sso             SSOAdminSDK
	ids             IdentityStoreSDK
	instanceARN     string
	identityStoreID string
}

// NewAWSClient loads AWS credentials and builds both service clients
func NewAWSClient(ctx context.Context, cfg AWSConfig) (*AWSClient, error) {
	if cfg.InstanceARN == "" || cfg.IdentityStoreID == "" {
		return nil, fmt.Errorf("instance ARN and identity store ID are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	sso := ssoadmin.NewFromConfig(awsCfg, func(o *ssoadmin.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	ids := identitystore.NewFromConfig(awsCfg, func(o *identitystore.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewAWSClientFromSDK(sso, ids, cfg.InstanceARN, cfg.IdentityStoreID), nil
}

// NewAWSClientFromSDK wraps already constructed service clients
func NewAWSClientFromSDK(sso SSOAdminSDK, ids IdentityStoreSDK, instanceARN, identityStoreID string) *AWSClient {
	return &AWSClient{
		sso:             sso,
		ids:             ids,
		instanceARN:     instanceARN,
		identityStoreID: identityStoreID,
	}
}

// mapError translates provider errors into the package sentinels while
// keeping the original error in the chain
func mapError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "ConflictException":
		if isDuplicateMessage(apiErr.ErrorMessage()) {
			return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
		}
		return fmt.Errorf("%w: %w", ErrOperationInProgress, err)
	case "ResourceNotFoundException":
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// ConflictException covers both duplicates and concurrent modification;
// only the message tells them apart
func isDuplicateMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{"already exist", "already attached", "already assigned", "duplicate", "is not unique"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("controlplane.operation", op))
	return tracer.Start(ctx, "ControlPlane."+op, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return fmt.Errorf("%s: %w", msg, mapError(err))
}

func int32Limit(limit int) *int32 {
	if limit <= 0 {
		return nil
	}
	return aws.Int32(int32(limit))
}

func optionalToken(token string) *string {
	if token == "" {
		return nil
	}
	return aws.String(token)
}

func toPermissionSet(ps *ssotypes.PermissionSet) *PermissionSet {
	if ps == nil {
		return nil
	}
	return &PermissionSet{
		ARN:             aws.ToString(ps.PermissionSetArn),
		Name:            aws.ToString(ps.Name),
		Description:     aws.ToString(ps.Description),
		SessionDuration: aws.ToString(ps.SessionDuration),
	}
}

// CreatePermissionSet creates a permission set
func (c *AWSClient) CreatePermissionSet(ctx context.Context, in PermissionSetInput) (string, error) {
	ctx, span := startSpan(ctx, "CreatePermissionSet", attribute.String("permission_set.name", in.Name))
	defer span.End()

	input := &ssoadmin.CreatePermissionSetInput{
		InstanceArn: aws.String(c.instanceARN),
		Name:        aws.String(in.Name),
	}
	if in.Description != "" {
		input.Description = aws.String(in.Description)
	}
	if in.SessionDuration != "" {
		input.SessionDuration = aws.String(in.SessionDuration)
	}

	out, err := c.sso.CreatePermissionSet(ctx, input)
	if err != nil {
		return "", fail(span, "failed to create permission set", err)
	}
	if out.PermissionSet == nil {
		return "", fail(span, "failed to create permission set", errors.New("empty response"))
	}

	span.SetStatus(codes.Ok, "permission set created")
	return aws.ToString(out.PermissionSet.PermissionSetArn), nil
}

// DescribePermissionSet fetches a permission set by ARN
func (c *AWSClient) DescribePermissionSet(ctx context.Context, arn string) (*PermissionSet, error) {
	ctx, span := startSpan(ctx, "DescribePermissionSet", attribute.String("permission_set.arn", arn))
	defer span.End()

	out, err := c.sso.DescribePermissionSet(ctx, &ssoadmin.DescribePermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(arn),
	})
	if err != nil {
		return nil, fail(span, "failed to describe permission set", err)
	}
	if out.PermissionSet == nil {
		return nil, fail(span, "failed to describe permission set", ErrNotFound)
	}

	span.SetStatus(codes.Ok, "")
	return toPermissionSet(out.PermissionSet), nil
}

// ListPermissionSets lists permission set ARNs
func (c *AWSClient) ListPermissionSets(ctx context.Context, token string, limit int) ([]string, string, error) {
	ctx, span := startSpan(ctx, "ListPermissionSets")
	defer span.End()

	out, err := c.sso.ListPermissionSets(ctx, &ssoadmin.ListPermissionSetsInput{
		InstanceArn: aws.String(c.instanceARN),
		NextToken:   optionalToken(token),
		MaxResults:  int32Limit(limit),
	})
	if err != nil {
		return nil, "", fail(span, "failed to list permission sets", err)
	}

	span.SetAttributes(attribute.Int("result.count", len(out.PermissionSets)))
	span.SetStatus(codes.Ok, "")
	return out.PermissionSets, aws.ToString(out.NextToken), nil
}

// UpdatePermissionSet sets the description, which may be empty to clear it,
// and the session duration when given
func (c *AWSClient) UpdatePermissionSet(ctx context.Context, arn string, in PermissionSetInput) error {
	ctx, span := startSpan(ctx, "UpdatePermissionSet", attribute.String("permission_set.arn", arn))
	defer span.End()

	input := &ssoadmin.UpdatePermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(arn),
		Description:      aws.String(in.Description),
	}
	if in.SessionDuration != "" {
		input.SessionDuration = aws.String(in.SessionDuration)
	}

	if _, err := c.sso.UpdatePermissionSet(ctx, input); err != nil {
		return fail(span, "failed to update permission set", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// DeletePermissionSet deletes a permission set
func (c *AWSClient) DeletePermissionSet(ctx context.Context, arn string) error {
	ctx, span := startSpan(ctx, "DeletePermissionSet", attribute.String("permission_set.arn", arn))
	defer span.End()

	_, err := c.sso.DeletePermissionSet(ctx, &ssoadmin.DeletePermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(arn),
	})
	if err != nil {
		return fail(span, "failed to delete permission set", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// AttachManagedPolicy attaches a provider-managed policy
func (c *AWSClient) AttachManagedPolicy(ctx context.Context, arn, policyARN string) error {
	ctx, span := startSpan(ctx, "AttachManagedPolicy",
		attribute.String("permission_set.arn", arn),
		attribute.String("policy.arn", policyARN),
	)
	defer span.End()

	_, err := c.sso.AttachManagedPolicyToPermissionSet(ctx, &ssoadmin.AttachManagedPolicyToPermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(arn),
		ManagedPolicyArn: aws.String(policyARN),
	})
	if err != nil {
		return fail(span, "failed to attach managed policy", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// DetachManagedPolicy detaches a provider-managed policy
func (c *AWSClient) DetachManagedPolicy(ctx context.Context, arn, policyARN string) error {
	ctx, span := startSpan(ctx, "DetachManagedPolicy",
		attribute.String("permission_set.arn", arn),
		attribute.String("policy.arn", policyARN),
	)
	defer span.End()

	_, err := c.sso.DetachManagedPolicyFromPermissionSet(ctx, &ssoadmin.DetachManagedPolicyFromPermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(arn),
		ManagedPolicyArn: aws.String(policyARN),
	})
	if err != nil {
		return fail(span, "failed to detach managed policy", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func customerPolicyReference(policyName string) *ssotypes.CustomerManagedPolicyReference {
	path := "/"
	name := policyName
	if i := strings.LastIndex(policyName, "/"); i >= 0 {
		path, name = policyName[:i+1], policyName[i+1:]
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}
	return &ssotypes.CustomerManagedPolicyReference{
		Name: aws.String(name),
		Path: aws.String(path),
	}
}

// AttachCustomerManagedPolicy attaches a policy by name from the target
// account. A name of the form "path/name" sets the policy path.
func (c *AWSClient) AttachCustomerManagedPolicy(ctx context.Context, arn, policyName string) error {
	ctx, span := startSpan(ctx, "AttachCustomerManagedPolicy",
		attribute.String("permission_set.arn", arn),
		attribute.String("policy.name", policyName),
	)
	defer span.End()

	_, err := c.sso.AttachCustomerManagedPolicyReferenceToPermissionSet(ctx, &ssoadmin.AttachCustomerManagedPolicyReferenceToPermissionSetInput{
		InstanceArn:                    aws.String(c.instanceARN),
		PermissionSetArn:               aws.String(arn),
		CustomerManagedPolicyReference: customerPolicyReference(policyName),
	})
	if err != nil {
		return fail(span, "failed to attach customer managed policy", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// DetachCustomerManagedPolicy detaches a customer-managed policy reference
func (c *AWSClient) DetachCustomerManagedPolicy(ctx context.Context, arn, policyName string) error {
	ctx, span := startSpan(ctx, "DetachCustomerManagedPolicy",
		attribute.String("permission_set.arn", arn),
		attribute.String("policy.name", policyName),
	)
	defer span.End()

	_, err := c.sso.DetachCustomerManagedPolicyReferenceFromPermissionSet(ctx, &ssoadmin.DetachCustomerManagedPolicyReferenceFromPermissionSetInput{
		InstanceArn:                    aws.String(c.instanceARN),
		PermissionSetArn:               aws.String(arn),
		CustomerManagedPolicyReference: customerPolicyReference(policyName),
	})
	if err != nil {
		return fail(span, "failed to detach customer managed policy", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ProvisionPermissionSet pushes the permission set into the account.
// Completion is asynchronous; later calls on the same permission set may
// fail with ErrOperationInProgress until it settles.
func (c *AWSClient) ProvisionPermissionSet(ctx context.Context, arn, accountID string) error {
	ctx, span := startSpan(ctx, "ProvisionPermissionSet",
		attribute.String("permission_set.arn", arn),
		attribute.String("account.id", accountID),
	)
	defer span.End()

	out, err := c.sso.ProvisionPermissionSet(ctx, &ssoadmin.ProvisionPermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(arn),
		TargetType:       ssotypes.ProvisionTargetTypeAwsAccount,
		TargetId:         aws.String(accountID),
	})
	if err != nil {
		return fail(span, "failed to provision permission set", err)
	}
	if st := out.PermissionSetProvisioningStatus; st != nil && st.Status == ssotypes.StatusValuesFailed {
		return fail(span, "failed to provision permission set", errors.New(aws.ToString(st.FailureReason)))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *AWSClient) assignmentSpan(ctx context.Context, op string, a AccountAssignment) (context.Context, trace.Span) {
	return startSpan(ctx, op,
		attribute.String("permission_set.arn", a.PermissionSetARN),
		attribute.String("group.id", a.GroupID),
		attribute.String("account.id", a.AccountID),
	)
}

// CreateAccountAssignment assigns the group and permission set to the account
func (c *AWSClient) CreateAccountAssignment(ctx context.Context, a AccountAssignment) error {
	ctx, span := c.assignmentSpan(ctx, "CreateAccountAssignment", a)
	defer span.End()

	out, err := c.sso.CreateAccountAssignment(ctx, &ssoadmin.CreateAccountAssignmentInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(a.PermissionSetARN),
		PrincipalId:      aws.String(a.GroupID),
		PrincipalType:    ssotypes.PrincipalTypeGroup,
		TargetId:         aws.String(a.AccountID),
		TargetType:       ssotypes.TargetTypeAwsAccount,
	})
	if err != nil {
		return fail(span, "failed to create account assignment", err)
	}
	if st := out.AccountAssignmentCreationStatus; st != nil && st.Status == ssotypes.StatusValuesFailed {
		return fail(span, "failed to create account assignment", errors.New(aws.ToString(st.FailureReason)))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// DeleteAccountAssignment removes the assignment
func (c *AWSClient) DeleteAccountAssignment(ctx context.Context, a AccountAssignment) error {
	ctx, span := c.assignmentSpan(ctx, "DeleteAccountAssignment", a)
	defer span.End()

	out, err := c.sso.DeleteAccountAssignment(ctx, &ssoadmin.DeleteAccountAssignmentInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(a.PermissionSetARN),
		PrincipalId:      aws.String(a.GroupID),
		PrincipalType:    ssotypes.PrincipalTypeGroup,
		TargetId:         aws.String(a.AccountID),
		TargetType:       ssotypes.TargetTypeAwsAccount,
	})
	if err != nil {
		return fail(span, "failed to delete account assignment", err)
	}
	if st := out.AccountAssignmentDeletionStatus; st != nil && st.Status == ssotypes.StatusValuesFailed {
		return fail(span, "failed to delete account assignment", errors.New(aws.ToString(st.FailureReason)))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// CreateGroup creates an identity-store group
func (c *AWSClient) CreateGroup(ctx context.Context, name, description string) (string, error) {
	ctx, span := startSpan(ctx, "CreateGroup", attribute.String("group.name", name))
	defer span.End()

	input := &identitystore.CreateGroupInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		DisplayName:     aws.String(name),
	}
	if description != "" {
		input.Description = aws.String(description)
	}

	out, err := c.ids.CreateGroup(ctx, input)
	if err != nil {
		return "", fail(span, "failed to create group", err)
	}

	span.SetStatus(codes.Ok, "group created")
	return aws.ToString(out.GroupId), nil
}

// ListGroups lists identity-store groups
func (c *AWSClient) ListGroups(ctx context.Context, token string, limit int) ([]Group, string, error) {
	ctx, span := startSpan(ctx, "ListGroups")
	defer span.End()

	out, err := c.ids.ListGroups(ctx, &identitystore.ListGroupsInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		NextToken:       optionalToken(token),
		MaxResults:      int32Limit(limit),
	})
	if err != nil {
		return nil, "", fail(span, "failed to list groups", err)
	}

	groups := make([]Group, 0, len(out.Groups))
	for _, g := range out.Groups {
		group := Group{
			ID:          aws.ToString(g.GroupId),
			DisplayName: aws.ToString(g.DisplayName),
			Description: aws.ToString(g.Description),
		}
		for _, ext := range g.ExternalIds {
			group.ExternalIDs = append(group.ExternalIDs, aws.ToString(ext.Issuer)+":"+aws.ToString(ext.Id))
		}
		groups = append(groups, group)
	}

	span.SetAttributes(attribute.Int("result.count", len(groups)))
	span.SetStatus(codes.Ok, "")
	return groups, aws.ToString(out.NextToken), nil
}

// DeleteGroup deletes a group
func (c *AWSClient) DeleteGroup(ctx context.Context, groupID string) error {
	ctx, span := startSpan(ctx, "DeleteGroup", attribute.String("group.id", groupID))
	defer span.End()

	_, err := c.ids.DeleteGroup(ctx, &identitystore.DeleteGroupInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		GroupId:         aws.String(groupID),
	})
	if err != nil {
		return fail(span, "failed to delete group", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ListUsers lists users filtered by user name. The provider compares
// user names without regard to case.
func (c *AWSClient) ListUsers(ctx context.Context, userName, token string, limit int) ([]User, string, error) {
	ctx, span := startSpan(ctx, "ListUsers", attribute.String("user.name", userName))
	defer span.End()

	input := &identitystore.ListUsersInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		NextToken:       optionalToken(token),
		MaxResults:      int32Limit(limit),
	}
	if userName != "" {
		input.Filters = []idstypes.Filter{{
			AttributePath:  aws.String("UserName"),
			AttributeValue: aws.String(userName),
		}}
	}

	out, err := c.ids.ListUsers(ctx, input)
	if err != nil {
		return nil, "", fail(span, "failed to list users", err)
	}

	users := make([]User, 0, len(out.Users))
	for _, u := range out.Users {
		users = append(users, User{ID: aws.ToString(u.UserId), UserName: aws.ToString(u.UserName)})
	}

	span.SetStatus(codes.Ok, "")
	return users, aws.ToString(out.NextToken), nil
}

// DescribeUser fetches a user by id
func (c *AWSClient) DescribeUser(ctx context.Context, userID string) (*User, error) {
	ctx, span := startSpan(ctx, "DescribeUser", attribute.String("user.id", userID))
	defer span.End()

	out, err := c.ids.DescribeUser(ctx, &identitystore.DescribeUserInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		UserId:          aws.String(userID),
	})
	if err != nil {
		return nil, fail(span, "failed to describe user", err)
	}

	span.SetStatus(codes.Ok, "")
	return &User{ID: aws.ToString(out.UserId), UserName: aws.ToString(out.UserName)}, nil
}

// CreateGroupMembership adds a user to a group
func (c *AWSClient) CreateGroupMembership(ctx context.Context, groupID, userID string) (string, error) {
	ctx, span := startSpan(ctx, "CreateGroupMembership",
		attribute.String("group.id", groupID),
		attribute.String("user.id", userID),
	)
	defer span.End()

	out, err := c.ids.CreateGroupMembership(ctx, &identitystore.CreateGroupMembershipInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		GroupId:         aws.String(groupID),
		MemberId:        &idstypes.MemberIdMemberUserId{Value: userID},
	})
	if err != nil {
		return "", fail(span, "failed to create group membership", err)
	}

	span.SetStatus(codes.Ok, "")
	return aws.ToString(out.MembershipId), nil
}

// GetGroupMembershipID looks up the membership binding a user to a group
func (c *AWSClient) GetGroupMembershipID(ctx context.Context, groupID, userID string) (string, error) {
	ctx, span := startSpan(ctx, "GetGroupMembershipId",
		attribute.String("group.id", groupID),
		attribute.String("user.id", userID),
	)
	defer span.End()

	out, err := c.ids.GetGroupMembershipId(ctx, &identitystore.GetGroupMembershipIdInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		GroupId:         aws.String(groupID),
		MemberId:        &idstypes.MemberIdMemberUserId{Value: userID},
	})
	if err != nil {
		return "", fail(span, "failed to get group membership", err)
	}

	span.SetStatus(codes.Ok, "")
	return aws.ToString(out.MembershipId), nil
}

// DeleteGroupMembership removes a membership
func (c *AWSClient) DeleteGroupMembership(ctx context.Context, membershipID string) error {
	ctx, span := startSpan(ctx, "DeleteGroupMembership", attribute.String("membership.id", membershipID))
	defer span.End()

	_, err := c.ids.DeleteGroupMembership(ctx, &identitystore.DeleteGroupMembershipInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		MembershipId:    aws.String(membershipID),
	})
	if err != nil {
		return fail(span, "failed to delete group membership", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ListGroupMemberships lists the members of a group. Non-user members are skipped.
func (c *AWSClient) ListGroupMemberships(ctx context.Context, groupID, token string, limit int) ([]Membership, string, error) {
	ctx, span := startSpan(ctx, "ListGroupMemberships", attribute.String("group.id", groupID))
	defer span.End()

	out, err := c.ids.ListGroupMemberships(ctx, &identitystore.ListGroupMembershipsInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		GroupId:         aws.String(groupID),
		NextToken:       optionalToken(token),
		MaxResults:      int32Limit(limit),
	})
	if err != nil {
		return nil, "", fail(span, "failed to list group memberships", err)
	}

	memberships := make([]Membership, 0, len(out.GroupMemberships))
	for _, m := range out.GroupMemberships {
		member, ok := m.MemberId.(*idstypes.MemberIdMemberUserId)
		if !ok {
			continue
		}
		memberships = append(memberships, Membership{
			MembershipID: aws.ToString(m.MembershipId),
			GroupID:      aws.ToString(m.GroupId),
			UserID:       member.Value,
		})
	}

	span.SetStatus(codes.Ok, "")
	return memberships, aws.ToString(out.NextToken), nil
}
