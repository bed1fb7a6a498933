package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/foodie/pkg/migration"
	"github.com/shashiranjanraj/foodie/pkg/testkit"
)

func TestInitialSchemaUpAndDown(t *testing.T) {
	db := testkit.DB(t)
	runner := migration.New(db)

	n, err := runner.Run()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	for _, table := range []string{"users", "items", "cart_entries", "orders", "order_lines", "foodie_failed_jobs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	n, err = runner.Run()
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = runner.Rollback()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.False(t, db.Migrator().HasTable("orders"))
	assert.False(t, db.Migrator().HasTable("users"))

	status, err := runner.Status()
	require.NoError(t, err)
	for _, s := range status {
		assert.False(t, s.Ran, s.Name)
	}
}
