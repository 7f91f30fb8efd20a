package rbac_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
)

type recordingObserver struct {
	mu        sync.Mutex
	decisions []string
}

func (o *recordingObserver) ObserveDecision(resource, operation string, allowed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := "deny"
	if allowed {
		result = "allow"
	}
	o.decisions = append(o.decisions, resource+":"+operation+":"+result)
}

func TestGuardAuthorize(t *testing.T) {
	t.Parallel()

	store := newStore(
		rbac.Identity{UserID: 1, Role: rbac.RoleAdmin, Power: rbac.PowerMonitoring},
		rbac.Identity{UserID: 2, Role: rbac.RoleMember, Power: rbac.PowerMonitoring},
	)
	observer := &recordingObserver{}
	guard := rbac.NewGuard(rbac.NewResolver(store), observer)
	ctx := context.Background()

	id, err := guard.Authorize(ctx, 1, rbac.ResourceTasks, rbac.OpCreate)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.UserID)

	_, err = guard.Authorize(ctx, 1, rbac.ResourceDepartments, rbac.OpCreate)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = guard.Authorize(ctx, 2, rbac.ResourceProjects, rbac.OpRead)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = guard.Authorize(ctx, 99, rbac.ResourceTasks, rbac.OpRead)
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)
	assert.True(t, rbac.IsDenied(err))

	assert.Equal(t, []string{
		"tasks:create:allow",
		"departments:create:deny",
		"projects:read:deny",
	}, observer.decisions)
}

func TestGuardStoreFailureIsNotADenial(t *testing.T) {
	t.Parallel()

	guard := rbac.NewGuard(rbac.NewResolver(&stubStore{err: errors.New("timeout")}), nil)
	_, err := guard.Authorize(context.Background(), 1, rbac.ResourceTasks, rbac.OpRead)
	require.Error(t, err)
	assert.False(t, rbac.IsDenied(err))
}

func TestGuardWithoutResolver(t *testing.T) {
	t.Parallel()

	var guard *rbac.Guard
	_, err := guard.Authorize(context.Background(), 1, rbac.ResourceTasks, rbac.OpRead)
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)
}
