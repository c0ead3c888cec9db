package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
)

func TestCreateInput_Validate(t *testing.T) {
	valid := CreateInput{
		Name:               "Unit-test",
		AWSAccountID:       "123456789012",
		ManagedPolicyNames: []string{"ReadOnlyAccess"},
	}
	require.NoError(t, valid.Validate("jit"))

	tests := []struct {
		name   string
		mutate func(in *CreateInput)
	}{
		{"missing name", func(in *CreateInput) { in.Name = " " }},
		{"short account", func(in *CreateInput) { in.AWSAccountID = "12345" }},
		{"bad characters", func(in *CreateInput) { in.Name = "has space" }},
		{"id too long", func(in *CreateInput) { in.Name = "a-very-long-permission-name" }},
		{"bad duration", func(in *CreateInput) { in.SessionDuration = "1h" }},
		{"too many policies", func(in *CreateInput) {
			in.ManagedPolicyNames = []string{"a", "b", "c", "d", "e", "f"}
			in.CustomPolicyNames = []string{"g", "h", "i", "j", "k"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate("jit")
			require.Error(t, err)
			assert.Equal(t, apperr.CodeBadRequest, apperr.CodeOf(err))
		})
	}
}

func TestCreateInput_NameID(t *testing.T) {
	in := CreateInput{Name: "Admin"}
	assert.Equal(t, "Admin", in.NameID())

	in.PermissionSetNameID = "AdminRO"
	assert.Equal(t, "AdminRO", in.NameID())
	assert.Equal(t, "jit-AdminRO-123456789012", ID("jit", in.NameID(), "123456789012"))
}

func TestManagedPolicyARN(t *testing.T) {
	assert.Equal(t, "arn:aws:iam::aws:policy/ReadOnlyAccess", ManagedPolicyARN("ReadOnlyAccess"))
	assert.Equal(t, "arn:aws:iam::aws:policy/job-function/ViewOnlyAccess", ManagedPolicyARN("job-function/ViewOnlyAccess"))
	assert.Equal(t, "arn:aws:iam::aws:policy/AdministratorAccess", ManagedPolicyARN("arn:aws:iam::aws:policy/AdministratorAccess"))
}

func TestUpdateInput_Apply(t *testing.T) {
	info := samplePermission("Admin", "123456789012")
	desc := "new description"

	next, err := (&UpdateInput{
		Description:        &desc,
		ManagedPolicyNames: []string{"ReadOnlyAccess", "ReadOnlyAccess", "ViewOnlyAccess"},
	}).Apply(info)
	require.NoError(t, err)
	assert.Equal(t, desc, next.Description)
	assert.Equal(t, []string{"ReadOnlyAccess", "ViewOnlyAccess"}, next.ManagedPolicyNames)
	assert.Equal(t, "test permission", info.Description, "input record is not modified")

	bad := "forever"
	_, err = (&UpdateInput{SessionDuration: &bad}).Apply(info)
	assert.Equal(t, apperr.CodeBadRequest, apperr.CodeOf(err))
}

func TestDedupeManagedPolicies(t *testing.T) {
	assert.Equal(t, []string{"ReadOnlyAccess", "ViewOnlyAccess"},
		DedupeManagedPolicies([]string{"ReadOnlyAccess", "arn:aws:iam::aws:policy/ReadOnlyAccess", "ViewOnlyAccess"}))
	assert.Empty(t, DedupeManagedPolicies(nil))

	in := CreateInput{
		Name:               "Unit-test",
		AWSAccountID:       "123456789012",
		ManagedPolicyNames: []string{"a", "b", "c", "d", "e", "arn:aws:iam::aws:policy/a"},
		CustomPolicyNames:  []string{"f", "g", "h", "i", "j"},
	}
	assert.NoError(t, in.Validate("jit"), "a name and its ARN count once")
}

func TestDiff(t *testing.T) {
	added, removed := Diff([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"c"}, added)
	assert.Equal(t, []string{"a"}, removed)

	added, removed = Diff(nil, nil)
	assert.Empty(t, added)
	assert.Empty(t, removed)
}
