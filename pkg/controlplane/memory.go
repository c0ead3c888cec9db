package controlplane

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MemoryClient is an in-process control plane for local development and
// tests. It mirrors the provider behaviors the sagas depend on: group names
// are unique without regard to case, listings are paginated, and duplicate
// creates fail with ErrAlreadyExists.
type MemoryClient struct {
	mu sync.Mutex

	seq            int
	permissionSets map[string]*memoryPermissionSet // by ARN
	groups         map[string]*Group               // by ID
	users          map[string]*User                // by ID
	memberships    map[string]*Membership          // by membership ID
	assignments    map[AccountAssignment]bool

	pageSize int
	injected map[string][]error
	calls    map[string]int
}

type memoryPermissionSet struct {
	PermissionSet
	managed     map[string]bool
	customer    map[string]bool
	provisioned map[string]bool
}

// NewMemoryClient creates an empty in-memory control plane
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		permissionSets: make(map[string]*memoryPermissionSet),
		groups:         make(map[string]*Group),
		users:          make(map[string]*User),
		memberships:    make(map[string]*Membership),
		assignments:    make(map[AccountAssignment]bool),
		injected:       make(map[string][]error),
		calls:          make(map[string]int),
	}
}

// SetPageSize caps every listing at n items regardless of the requested limit
func (m *MemoryClient) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// InjectErrors queues errors returned by the next calls to op, one per call
func (m *MemoryClient) InjectErrors(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injected[op] = append(m.injected[op], errs...)
}

// Calls returns how many times op has been invoked
func (m *MemoryClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// AddUser registers a user and returns its id
func (m *MemoryClient) AddUser(userName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("user")
	m.users[id] = &User{ID: id, UserName: userName}
	return id
}

// AddExternalGroup registers a group synchronized from an external source
func (m *MemoryClient) AddExternalGroup(name, externalID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("group")
	m.groups[id] = &Group{ID: id, DisplayName: name, ExternalIDs: []string{externalID}}
	return id
}

// Snapshot counts live resources
type Snapshot struct {
	PermissionSets int
	Groups         int
	Memberships    int
	Assignments    int
}

// Snapshot returns the current resource counts
func (m *MemoryClient) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		PermissionSets: len(m.permissionSets),
		Groups:         len(m.groups),
		Memberships:    len(m.memberships),
		Assignments:    len(m.assignments),
	}
}

// ManagedPolicies returns the managed policy ARNs attached to a permission set
func (m *MemoryClient) ManagedPolicies(arn string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.permissionSets[arn]
	if !ok {
		return nil
	}
	return sortedKeys(ps.managed)
}

// CustomerPolicies returns the customer-managed policy names attached to a permission set
func (m *MemoryClient) CustomerPolicies(arn string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.permissionSets[arn]
	if !ok {
		return nil
	}
	return sortedKeys(ps.customer)
}

// HasAssignment reports whether the assignment exists
func (m *MemoryClient) HasAssignment(a AccountAssignment) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignments[a]
}

// enter records the call and pops an injected error; callers hold m.mu
func (m *MemoryClient) enter(op string) error {
	m.calls[op]++
	queue := m.injected[op]
	if len(queue) == 0 {
		return nil
	}
	m.injected[op] = queue[1:]
	return queue[0]
}

func (m *MemoryClient) nextID(kind string) string {
	m.seq++
	return fmt.Sprintf("%s-%06d", kind, m.seq)
}

func (m *MemoryClient) limit(requested int) int {
	if m.pageSize > 0 && (requested <= 0 || requested > m.pageSize) {
		return m.pageSize
	}
	if requested <= 0 {
		return 100
	}
	return requested
}

// page slices sorted items using the decimal offset as the native token
func page[T any](items []T, token string, limit int) ([]T, string, error) {
	offset := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("invalid next token %q", token)
		}
		offset = n
	}
	if offset >= len(items) {
		return []T{}, "", nil
	}
	end := offset + limit
	if end >= len(items) {
		return items[offset:], "", nil
	}
	return items[offset:end], strconv.Itoa(end), nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryClient) permissionSet(arn string) (*memoryPermissionSet, error) {
	ps, ok := m.permissionSets[arn]
	if !ok {
		return nil, fmt.Errorf("%w: permission set %s", ErrNotFound, arn)
	}
	return ps, nil
}

func (m *MemoryClient) CreatePermissionSet(_ context.Context, in PermissionSetInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreatePermissionSet"); err != nil {
		return "", err
	}

	for _, ps := range m.permissionSets {
		if ps.Name == in.Name {
			return "", fmt.Errorf("%w: permission set %q", ErrAlreadyExists, in.Name)
		}
	}

	arn := "arn:aws:sso:::permissionSet/ssoins-memory/" + m.nextID("ps")
	m.permissionSets[arn] = &memoryPermissionSet{
		PermissionSet: PermissionSet{
			ARN:             arn,
			Name:            in.Name,
			Description:     in.Description,
			SessionDuration: in.SessionDuration,
		},
		managed:     make(map[string]bool),
		customer:    make(map[string]bool),
		provisioned: make(map[string]bool),
	}
	return arn, nil
}

func (m *MemoryClient) DescribePermissionSet(_ context.Context, arn string) (*PermissionSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DescribePermissionSet"); err != nil {
		return nil, err
	}
	ps, err := m.permissionSet(arn)
	if err != nil {
		return nil, err
	}
	out := ps.PermissionSet
	return &out, nil
}

func (m *MemoryClient) ListPermissionSets(_ context.Context, token string, limit int) ([]string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListPermissionSets"); err != nil {
		return nil, "", err
	}
	arns := make([]string, 0, len(m.permissionSets))
	for arn := range m.permissionSets {
		arns = append(arns, arn)
	}
	sort.Strings(arns)
	return page(arns, token, m.limit(limit))
}

func (m *MemoryClient) UpdatePermissionSet(_ context.Context, arn string, in PermissionSetInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdatePermissionSet"); err != nil {
		return err
	}
	ps, err := m.permissionSet(arn)
	if err != nil {
		return err
	}
	ps.Description = in.Description
	if in.SessionDuration != "" {
		ps.SessionDuration = in.SessionDuration
	}
	return nil
}

func (m *MemoryClient) DeletePermissionSet(_ context.Context, arn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeletePermissionSet"); err != nil {
		return err
	}
	if _, err := m.permissionSet(arn); err != nil {
		return err
	}
	for a := range m.assignments {
		if a.PermissionSetARN == arn {
			return fmt.Errorf("%w: permission set %s is still assigned", ErrOperationInProgress, arn)
		}
	}
	delete(m.permissionSets, arn)
	return nil
}

func (m *MemoryClient) AttachManagedPolicy(_ context.Context, arn, policyARN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AttachManagedPolicy"); err != nil {
		return err
	}
	ps, err := m.permissionSet(arn)
	if err != nil {
		return err
	}
	if ps.managed[policyARN] {
		return fmt.Errorf("%w: policy %s already attached", ErrAlreadyExists, policyARN)
	}
	ps.managed[policyARN] = true
	return nil
}

func (m *MemoryClient) DetachManagedPolicy(_ context.Context, arn, policyARN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DetachManagedPolicy"); err != nil {
		return err
	}
	ps, err := m.permissionSet(arn)
	if err != nil {
		return err
	}
	if !ps.managed[policyARN] {
		return fmt.Errorf("%w: policy %s not attached", ErrNotFound, policyARN)
	}
	delete(ps.managed, policyARN)
	return nil
}

func (m *MemoryClient) AttachCustomerManagedPolicy(_ context.Context, arn, policyName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AttachCustomerManagedPolicy"); err != nil {
		return err
	}
	ps, err := m.permissionSet(arn)
	if err != nil {
		return err
	}
	if ps.customer[policyName] {
		return fmt.Errorf("%w: policy %s already attached", ErrAlreadyExists, policyName)
	}
	ps.customer[policyName] = true
	return nil
}

func (m *MemoryClient) DetachCustomerManagedPolicy(_ context.Context, arn, policyName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DetachCustomerManagedPolicy"); err != nil {
		return err
	}
	ps, err := m.permissionSet(arn)
	if err != nil {
		return err
	}
	if !ps.customer[policyName] {
		return fmt.Errorf("%w: policy %s not attached", ErrNotFound, policyName)
	}
	delete(ps.customer, policyName)
	return nil
}

func (m *MemoryClient) ProvisionPermissionSet(_ context.Context, arn, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ProvisionPermissionSet"); err != nil {
		return err
	}
	ps, err := m.permissionSet(arn)
	if err != nil {
		return err
	}
	ps.provisioned[accountID] = true
	return nil
}

func (m *MemoryClient) CreateAccountAssignment(_ context.Context, a AccountAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateAccountAssignment"); err != nil {
		return err
	}
	if _, err := m.permissionSet(a.PermissionSetARN); err != nil {
		return err
	}
	if _, ok := m.groups[a.GroupID]; !ok {
		return fmt.Errorf("%w: group %s", ErrNotFound, a.GroupID)
	}
	if m.assignments[a] {
		return fmt.Errorf("%w: assignment already exists", ErrAlreadyExists)
	}
	m.assignments[a] = true
	return nil
}

func (m *MemoryClient) DeleteAccountAssignment(_ context.Context, a AccountAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteAccountAssignment"); err != nil {
		return err
	}
	if !m.assignments[a] {
		return fmt.Errorf("%w: assignment", ErrNotFound)
	}
	delete(m.assignments, a)
	return nil
}

func (m *MemoryClient) CreateGroup(_ context.Context, name, description string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateGroup"); err != nil {
		return "", err
	}
	for _, g := range m.groups {
		if strings.EqualFold(g.DisplayName, name) {
			return "", fmt.Errorf("%w: group %q", ErrAlreadyExists, name)
		}
	}
	id := m.nextID("group")
	m.groups[id] = &Group{ID: id, DisplayName: name, Description: description}
	return id, nil
}

func (m *MemoryClient) ListGroups(_ context.Context, token string, limit int) ([]Group, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListGroups"); err != nil {
		return nil, "", err
	}
	groups := make([]Group, 0, len(m.groups))
	for _, g := range m.groups {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return page(groups, token, m.limit(limit))
}

func (m *MemoryClient) DeleteGroup(_ context.Context, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteGroup"); err != nil {
		return err
	}
	if _, ok := m.groups[groupID]; !ok {
		return fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}
	for id, ms := range m.memberships {
		if ms.GroupID == groupID {
			delete(m.memberships, id)
		}
	}
	delete(m.groups, groupID)
	return nil
}

func (m *MemoryClient) ListUsers(_ context.Context, userName, token string, limit int) ([]User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListUsers"); err != nil {
		return nil, "", err
	}
	users := make([]User, 0)
	for _, u := range m.users {
		if userName == "" || strings.EqualFold(u.UserName, userName) {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return page(users, token, m.limit(limit))
}

func (m *MemoryClient) DescribeUser(_ context.Context, userID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DescribeUser"); err != nil {
		return nil, err
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	out := *u
	return &out, nil
}

func (m *MemoryClient) CreateGroupMembership(_ context.Context, groupID, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateGroupMembership"); err != nil {
		return "", err
	}
	if _, ok := m.groups[groupID]; !ok {
		return "", fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}
	if _, ok := m.users[userID]; !ok {
		return "", fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	for _, ms := range m.memberships {
		if ms.GroupID == groupID && ms.UserID == userID {
			return "", fmt.Errorf("%w: membership", ErrAlreadyExists)
		}
	}
	id := m.nextID("membership")
	m.memberships[id] = &Membership{MembershipID: id, GroupID: groupID, UserID: userID}
	return id, nil
}

func (m *MemoryClient) GetGroupMembershipID(_ context.Context, groupID, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetGroupMembershipID"); err != nil {
		return "", err
	}
	for id, ms := range m.memberships {
		if ms.GroupID == groupID && ms.UserID == userID {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: membership of %s in %s", ErrNotFound, userID, groupID)
}

func (m *MemoryClient) DeleteGroupMembership(_ context.Context, membershipID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteGroupMembership"); err != nil {
		return err
	}
	if _, ok := m.memberships[membershipID]; !ok {
		return fmt.Errorf("%w: membership %s", ErrNotFound, membershipID)
	}
	delete(m.memberships, membershipID)
	return nil
}

func (m *MemoryClient) ListGroupMemberships(_ context.Context, groupID, token string, limit int) ([]Membership, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListGroupMemberships"); err != nil {
		return nil, "", err
	}
	if _, ok := m.groups[groupID]; !ok {
		return nil, "", fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}
	memberships := make([]Membership, 0)
	for _, ms := range m.memberships {
		if ms.GroupID == groupID {
			memberships = append(memberships, *ms)
		}
	}
	sort.Slice(memberships, func(i, j int) bool { return memberships[i].MembershipID < memberships[j].MembershipID })
	return page(memberships, token, m.limit(limit))
}
