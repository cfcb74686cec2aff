package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transconnect-go/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type widget struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(sqlite.Open(":memory:"), Config{MaxOpenConns: 1}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(&widget{}))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenAndPing(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestErrorClassification(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.WithContext(ctx).Create(&widget{Name: "a"}).Error)

	err := db.WithContext(ctx).Create(&widget{Name: "a"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
	assert.False(t, IsNotFound(err))

	var w widget
	err = db.WithContext(ctx).Where("name = ?", "missing").First(&w).Error
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsDuplicate(err))
}

func TestTransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Name: "b"}).Error; err != nil {
			return err
		}
		return tx.Create(&widget{Name: "b"}).Error
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.WithContext(ctx).Model(&widget{}).Count(&count).Error)
	assert.Zero(t, count)
}
