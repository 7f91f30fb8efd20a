package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/rbac/rbactest"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/users"
)

type stubRepo struct {
	users     map[int64]users.User
	nextID    int64
	lastScope rbac.Scope
	lastHash  string
}

func newStubRepo(seed ...users.User) *stubRepo {
	s := &stubRepo{users: map[int64]users.User{}, nextID: 100}
	for _, u := range seed {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubRepo) List(ctx context.Context, filter users.ListFilter, scope rbac.Scope) ([]users.User, error) {
	s.lastScope = scope
	var out []users.User
	for _, u := range s.users {
		if scope.AllowsDepartment(u.DepartmentID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubRepo) Get(ctx context.Context, id int64) (users.User, error) {
	u, ok := s.users[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (s *stubRepo) Create(ctx context.Context, in users.CreateInput, hash string) (users.User, error) {
	s.lastHash = hash
	u := users.User{ID: s.nextID, Email: in.Email, Name: in.Name, Role: in.Role, Power: in.Power, DepartmentID: in.DepartmentID, IsActive: true}
	s.users[u.ID] = u
	s.nextID++
	return u, nil
}

func (s *stubRepo) Update(ctx context.Context, id int64, in users.UpdateInput) (users.User, error) {
	u := s.users[id]
	u.Email, u.Name, u.DepartmentID = in.Email, in.Name, in.DepartmentID
	s.users[id] = u
	return u, nil
}

func (s *stubRepo) SetAccess(ctx context.Context, id int64, in users.AccessInput) error {
	u := s.users[id]
	u.Role, u.Power = in.Role, in.Power
	s.users[id] = u
	return nil
}

func (s *stubRepo) Deactivate(ctx context.Context, id int64) error {
	u := s.users[id]
	u.IsActive = false
	s.users[id] = u
	return nil
}

func (s *stubRepo) Departments(ctx context.Context, scope rbac.Scope) ([]users.DepartmentOption, error) {
	s.lastScope = scope
	return []users.DepartmentOption{{ID: 1, Name: "Engineering"}}, nil
}

const (
	admin      = 1
	headOne    = 2
	leaderOne  = 3
	memberOne  = 4
	memberTwo  = 5
	headTwo    = 6
	headNoDept = 7
)

func fixture() (*users.Service, *stubRepo) {
	identities := userIdentities()
	var seed []users.User
	for _, id := range identities {
		seed = append(seed, users.User{ID: id.UserID, Name: "user", Email: "u@example.com", Role: id.Role, Power: id.Power, DepartmentID: id.DepartmentID, IsActive: true})
	}
	repo := newStubRepo(seed...)
	svc := users.NewService(repo, rbactest.Guard(identities...), shared.NopAudit{}, nil).WithHashCost(bcrypt.MinCost)
	return svc, repo
}

func userIdentities() []rbac.Identity {
	return []rbac.Identity{
		{UserID: admin, Role: rbac.RoleAdmin, Power: rbac.PowerFull},
		{UserID: headOne, Role: rbac.RoleDepartmentHead, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)},
		{UserID: leaderOne, Role: rbac.RoleGroupLeader, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)},
		{UserID: memberOne, Role: rbac.RoleMember, Power: rbac.PowerMonitoring, DepartmentID: rbactest.Dept(1)},
		{UserID: memberTwo, Role: rbac.RoleMember, Power: rbac.PowerMonitoring, DepartmentID: rbactest.Dept(2)},
		{UserID: headTwo, Role: rbac.RoleDepartmentHead, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(2)},
		{UserID: headNoDept, Role: rbac.RoleDepartmentHead, Power: rbac.PowerFull},
	}
}

func TestListScopesDepartmentHead(t *testing.T) {
	svc, repo := fixture()
	ctx := context.Background()

	list, err := svc.List(ctx, headOne, users.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, rbac.ScopeDepartment, repo.lastScope.Kind)
	assert.Equal(t, int64(1), repo.lastScope.DepartmentID)
	for _, u := range list {
		require.NotNil(t, u.DepartmentID)
		assert.Equal(t, int64(1), *u.DepartmentID)
	}

	_, err = svc.List(ctx, admin, users.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, rbac.ScopeAll, repo.lastScope.Kind)

	_, err = svc.List(ctx, leaderOne, users.ListFilter{})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	list, err = svc.List(ctx, headNoDept, users.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, rbac.ScopeNone, repo.lastScope.Kind)
	assert.Empty(t, list)
}

func TestGetOutsideDepartmentIsForbidden(t *testing.T) {
	svc, _ := fixture()
	ctx := context.Background()

	_, err := svc.Get(ctx, headOne, memberTwo)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	// missing rows look the same as foreign rows to a scoped caller
	_, err = svc.Get(ctx, headOne, 999)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = svc.Get(ctx, admin, 999)
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	u, err := svc.Get(ctx, headOne, memberOne)
	require.NoError(t, err)
	assert.Equal(t, int64(memberOne), u.ID)
}

func TestCreateAppliesDefaultsAndScope(t *testing.T) {
	svc, repo := fixture()
	ctx := context.Background()

	u, err := svc.Create(ctx, headOne, users.CreateInput{Email: "new@example.com", Name: "New", Password: "s3cretpass", Role: rbac.RoleMember})
	require.NoError(t, err)
	assert.Equal(t, rbac.PowerMonitoring, u.Power)
	require.NotNil(t, u.DepartmentID)
	assert.Equal(t, int64(1), *u.DepartmentID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.lastHash), []byte("s3cretpass")))

	_, err = svc.Create(ctx, headOne, users.CreateInput{Email: "x@example.com", Name: "X", Password: "s3cretpass", Role: rbac.RoleMember, DepartmentID: rbactest.Dept(2)})
	assert.ErrorIs(t, err, rbac.ErrForbidden, "foreign department")

	_, err = svc.Create(ctx, headOne, users.CreateInput{Email: "y@example.com", Name: "Y", Password: "s3cretpass", Role: rbac.RoleDepartmentHead})
	assert.ErrorIs(t, err, rbac.ErrForbidden, "cannot grant department_head")

	u, err = svc.Create(ctx, admin, users.CreateInput{Email: "z@example.com", Name: "Z", Password: "s3cretpass", Role: rbac.RoleGroupLeader})
	require.NoError(t, err)
	assert.Equal(t, rbac.PowerFull, u.Power)

	_, err = svc.Create(ctx, admin, users.CreateInput{Email: "bad", Name: "Z", Password: "short", Role: "owner"})
	require.ErrorIs(t, err, httpx.ErrValidation)
	fields := shared.FieldErrors(err)
	assert.Contains(t, fields, "Email")
	assert.Contains(t, fields, "Password")
	assert.Contains(t, fields, "Role")
}

func TestChangeAccessRules(t *testing.T) {
	svc, repo := fixture()
	ctx := context.Background()

	_, err := svc.ChangeAccess(ctx, admin, admin, users.AccessInput{Role: rbac.RoleMember, Power: rbac.PowerFull})
	assert.ErrorIs(t, err, rbac.ErrForbidden, "own access")

	_, err = svc.ChangeAccess(ctx, headOne, memberTwo, users.AccessInput{Role: rbac.RoleGroupLeader, Power: rbac.PowerFull})
	assert.ErrorIs(t, err, rbac.ErrForbidden, "foreign department")

	_, err = svc.ChangeAccess(ctx, headOne, memberOne, users.AccessInput{Role: rbac.RoleAdmin, Power: rbac.PowerFull})
	assert.ErrorIs(t, err, rbac.ErrForbidden, "escalation")
	assert.Equal(t, rbac.RoleMember, repo.users[memberOne].Role)

	u, err := svc.ChangeAccess(ctx, headOne, memberOne, users.AccessInput{Role: rbac.RoleGroupLeader, Power: rbac.PowerFull})
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleGroupLeader, u.Role)
	assert.Equal(t, rbac.RoleGroupLeader, repo.users[memberOne].Role)

	_, err = svc.ChangeAccess(ctx, memberOne, memberTwo, users.AccessInput{Role: rbac.RoleMember, Power: rbac.PowerFull})
	assert.ErrorIs(t, err, rbac.ErrForbidden)
}

func TestDeactivateRules(t *testing.T) {
	svc, repo := fixture()
	ctx := context.Background()

	assert.ErrorIs(t, svc.Deactivate(ctx, headOne, headOne), rbac.ErrForbidden)
	assert.ErrorIs(t, svc.Deactivate(ctx, headOne, memberTwo), rbac.ErrForbidden)
	assert.ErrorIs(t, svc.Deactivate(ctx, headOne, headTwo), rbac.ErrForbidden)
	assert.True(t, repo.users[memberTwo].IsActive)

	require.NoError(t, svc.Deactivate(ctx, headOne, memberOne))
	assert.False(t, repo.users[memberOne].IsActive)

	require.NoError(t, svc.Deactivate(ctx, admin, headTwo))
}

func TestUpdateCannotMoveUserOutOfScope(t *testing.T) {
	svc, _ := fixture()
	ctx := context.Background()

	_, err := svc.Update(ctx, headOne, memberOne, users.UpdateInput{Email: "m@example.com", Name: "M", DepartmentID: rbactest.Dept(2)})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	u, err := svc.Update(ctx, headOne, memberOne, users.UpdateInput{Email: "m@example.com", Name: "Moved", DepartmentID: rbactest.Dept(1)})
	require.NoError(t, err)
	assert.Equal(t, "Moved", u.Name)
}

func TestGrantableRoles(t *testing.T) {
	svc, _ := fixture()
	ctx := context.Background()

	roles, err := svc.GrantableRoles(ctx, headOne)
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.RoleGroupLeader, rbac.RoleMember}, roles)

	roles, err = svc.GrantableRoles(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, rbac.Roles(), roles)
}
