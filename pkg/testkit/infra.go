package testkit

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/foodie/pkg/cache"
	"github.com/shashiranjanraj/foodie/pkg/database"
)

// DB opens a private in-memory sqlite database with the given models
// migrated. It is closed when the test ends.
func DB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()

	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...))
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Redis starts a miniredis server and installs a client for it as the
// cache connection. The previous connection is restored afterwards.
func Redis(t testing.TB) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	prev := cache.RDB
	cache.Use(client)
	t.Cleanup(func() {
		cache.Use(prev)
		_ = client.Close()
	})
	return mr
}
