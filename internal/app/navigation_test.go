package app

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/rbac/rbactest"
)

func labels(t *testing.T, nav *rbac.Navigator, id rbac.Identity) []string {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(rbac.ContextWithIdentity(req.Context(), &id))
	chrome := NewChrome(nav)(req)
	require.True(t, chrome.SignedIn)
	var out []string
	for _, l := range chrome.Nav {
		out = append(out, l.Label)
	}
	return out
}

func TestChromeFiltersMenuByRole(t *testing.T) {
	nav := rbac.NewNavigator(rbac.NewResolver(rbactest.NewStore()), nil)

	member := rbac.Identity{UserID: 3, Role: rbac.RoleMember, Power: rbac.PowerMonitoring, DepartmentID: rbactest.Dept(1)}
	assert.Equal(t, []string{"Home", "Tasks", "Assistant"}, labels(t, nav, member))

	head := rbac.Identity{UserID: 2, Role: rbac.RoleDepartmentHead, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)}
	assert.Equal(t, []string{"Home", "Projects", "Tasks", "Assistant", "Users", "Settings"}, labels(t, nav, head))

	admin := rbac.Identity{UserID: 1, Role: rbac.RoleAdmin, Power: rbac.PowerFull}
	assert.Len(t, labels(t, nav, admin), len(Menu()))
}

func TestChromeAnonymous(t *testing.T) {
	nav := rbac.NewNavigator(rbac.NewResolver(rbactest.NewStore()), nil)
	chrome := NewChrome(nav)(httptest.NewRequest("GET", "/auth/login", nil))
	assert.False(t, chrome.SignedIn)
	assert.Empty(t, chrome.Nav)
}
