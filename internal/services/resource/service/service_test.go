package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transconnect-go/internal/domain/auth"
	"github.com/transconnect-go/internal/domain/resource"
	"github.com/transconnect-go/internal/domain/user"
	"github.com/transconnect-go/internal/services/auth/rbac"
	"github.com/transconnect-go/internal/services/resource/repository"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/database"
	"github.com/transconnect-go/pkg/events"
	"github.com/transconnect-go/pkg/logger"
	"gorm.io/driver/sqlite"
)

var (
	admin  = &auth.Principal{Username: "root", Role: auth.RoleAdmin, UserID: 1}
	member = &auth.Principal{Username: "sam", Role: auth.RoleUser, UserID: 2}
)

func setupTestService(t *testing.T) *ResourceService {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"), database.Config{MaxOpenConns: 1}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(&user.User{}, &resource.Resource{}, &resource.Type{}))
	t.Cleanup(func() { _ = db.Close() })

	enforcer, err := rbac.NewEnforcer(nil, logger.NewNop())
	require.NoError(t, err)

	svc := NewResourceService(repository.NewResourceRepository(db), enforcer, events.NewNopBus(), logger.NewNop())
	for _, name := range []string{"health", "housing"} {
		_, err := svc.CreateType(context.Background(), TypeRequest{Name: name})
		require.NoError(t, err)
	}
	return svc
}

func TestSubmitResource(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	res, err := svc.SubmitResource(ctx, member, ResourceRequest{Name: "Clinic", Types: []string{"health"}})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	require.NotNil(t, res.UserID)
	assert.Equal(t, uint(2), *res.UserID)
	require.Len(t, res.Types, 1)

	anonymous, err := svc.SubmitResource(ctx, nil, ResourceRequest{Name: "Shelter", Types: []string{"housing"}})
	require.NoError(t, err)
	assert.Nil(t, anonymous.UserID)
}

func TestSubmitApprovedNeedsCapability(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	req := ResourceRequest{Name: "Clinic", Types: []string{"health"}, Approved: true}

	_, err := svc.SubmitResource(ctx, member, req)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.SubmitResource(ctx, nil, req)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	res, err := svc.SubmitResource(ctx, admin, req)
	require.NoError(t, err)
	assert.True(t, res.Approved)
}

func TestSubmitUnknownType(t *testing.T) {
	svc := setupTestService(t)

	_, err := svc.SubmitResource(context.Background(), member, ResourceRequest{Name: "Clinic", Types: []string{"astrology"}})
	require.Error(t, err)
	assert.Equal(t, []string{"Unknown resource type: astrology"}, apperr.From(err).Violations)
}

func TestUpdateResource(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	res, err := svc.SubmitResource(ctx, member, ResourceRequest{Name: "Clinic", Types: []string{"health"}})
	require.NoError(t, err)

	approved := true
	updated, err := svc.UpdateResource(ctx, admin, res.ID, UpdateResourceRequest{Approved: &approved, Types: []string{"housing", "health"}})
	require.NoError(t, err)
	assert.True(t, updated.Approved)
	assert.Equal(t, "Clinic", updated.Name)
	assert.Len(t, updated.Types, 2)

	_, err = svc.UpdateResource(ctx, admin, res.ID, UpdateResourceRequest{Types: []string{}})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = svc.UpdateResource(ctx, admin, 999, UpdateResourceRequest{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "Resource not found", apperr.From(err).Message)
}

func TestRevokedApproveCapability(t *testing.T) {
	db, err := database.Open(sqlite.Open(":memory:"), database.Config{MaxOpenConns: 1}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(&user.User{}, &resource.Resource{}, &resource.Type{}))
	t.Cleanup(func() { _ = db.Close() })

	enforcer, err := rbac.NewEnforcer(nil, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, enforcer.Revoke("ADMIN", rbac.ObjectResources, rbac.ActionApprove))

	svc := NewResourceService(repository.NewResourceRepository(db), enforcer, events.NewNopBus(), logger.NewNop())
	_, err = svc.CreateType(context.Background(), TypeRequest{Name: "health"})
	require.NoError(t, err)

	_, err = svc.SubmitResource(context.Background(), admin, ResourceRequest{Name: "Clinic", Types: []string{"health"}, Approved: true})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestListDeleteAndTypes(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	for _, name := range []string{"Zine Library", "Clinic"} {
		_, err := svc.SubmitResource(ctx, member, ResourceRequest{Name: name, Types: []string{"health"}})
		require.NoError(t, err)
	}

	resources, err := svc.ListResources(ctx, "  clin ", "")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "Clinic", resources[0].Name)

	resources, err = svc.ListResources(ctx, "", "health")
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "Clinic", resources[0].Name)

	require.NoError(t, svc.DeleteResource(ctx, resources[0].ID))
	err = svc.DeleteResource(ctx, resources[0].ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.CreateType(ctx, TypeRequest{Name: "health"})
	assert.Equal(t, []string{"Type already exists"}, apperr.From(err).Violations)

	types, err := svc.ListTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 2)
}
