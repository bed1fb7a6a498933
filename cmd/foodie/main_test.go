package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"serve", "route:list", "migrate", "migrate:rollback", "migrate:status",
		"seed", "queue:work", "queue:failed", "queue:retry", "schedule:run", "user:create-admin"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
		assert.NotEmpty(t, c.GroupID, name)
		assert.True(t, root.ContainsGroup(c.GroupID), name)
	}

	c, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "serve", c.Name())
}
