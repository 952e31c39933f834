package inspiration_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theepangnani/emai-dev-03-sub000/core/inspiration"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	"github.com/theepangnani/emai-dev-03-sub000/tests"
)

func TestService(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, env.Users, "Admin", "admin@test.cd", "", []user.Role{user.RoleAdmin}, true)
	parent := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)
	student := testutil.CreateUser(t, env.Users, "Kid", "kid@test.cd", "", []user.Role{user.RoleStudent}, true)

	_, err := env.Inspirations.Create(ctx, parent, inspiration.NewMessage{Role: user.RoleParent, Text: "Be patient"})
	assert.Equal(t, inspiration.ErrNotAdmin, err)

	msg, err := env.Inspirations.Create(ctx, admin, inspiration.NewMessage{Role: user.RoleParent, Text: "Be patient"})
	require.NoError(t, err)
	assert.True(t, msg.IsActive)

	got, err := env.Inspirations.Random(ctx, parent)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)

	_, err = env.Inspirations.Random(ctx, student)
	assert.Equal(t, inspiration.ErrNotFound, err)

	t.Run("inactive messages are not served", func(t *testing.T) {
		inactive := false
		text := "  Breathe  "
		upd, err := env.Inspirations.Update(ctx, admin, msg.ID, inspiration.UpdateMessage{Text: &text, IsActive: &inactive})
		require.NoError(t, err)
		assert.Equal(t, "Breathe", upd.Text)

		_, err = env.Inspirations.Random(ctx, parent)
		assert.Equal(t, inspiration.ErrNotFound, err)

		all, err := env.Inspirations.Query(ctx, admin, inspiration.QueryFilter{Role: user.RoleParent})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, inspiration.ErrNotAdmin, env.Inspirations.Delete(ctx, parent, msg.ID))
		require.NoError(t, env.Inspirations.Delete(ctx, admin, msg.ID))
		assert.Equal(t, inspiration.ErrNotFound, env.Inspirations.Delete(ctx, admin, msg.ID))
	})
}
