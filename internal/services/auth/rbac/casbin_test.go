package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transconnect-go/pkg/database"
	"github.com/transconnect-go/pkg/logger"
	"gorm.io/driver/sqlite"
)

func TestDefaultPolicy(t *testing.T) {
	e, err := NewEnforcer(nil, logger.NewNop())
	require.NoError(t, err)

	for _, p := range DefaultPolicies {
		allowed, err := e.Can("ADMIN", p[1], p[2])
		require.NoError(t, err)
		assert.True(t, allowed, p)

		allowed, err = e.Can("USER", p[1], p[2])
		require.NoError(t, err)
		assert.False(t, allowed, p)
	}
}

func TestGrantAndRevoke(t *testing.T) {
	e, err := NewEnforcer(nil, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, e.Grant("USER", ObjectTypes, ActionCreate))
	allowed, err := e.Can("USER", ObjectTypes, ActionCreate)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, e.Revoke("USER", ObjectTypes, ActionCreate))
	allowed, err = e.Can("USER", ObjectTypes, ActionCreate)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestPersistentPolicySeededOnce(t *testing.T) {
	db, err := database.Open(sqlite.Open(":memory:"), database.Config{MaxOpenConns: 1}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	first, err := NewEnforcer(db, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Revoke("ADMIN", ObjectTypes, ActionCreate))

	// A second enforcer loads the stored policy instead of reseeding it
	second, err := NewEnforcer(db, logger.NewNop())
	require.NoError(t, err)

	allowed, err := second.Can("ADMIN", ObjectTypes, ActionCreate)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = second.Can("ADMIN", ObjectUsers, ActionAssignRole)
	require.NoError(t, err)
	assert.True(t, allowed)
}
