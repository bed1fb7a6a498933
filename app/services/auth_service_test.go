package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/config"
	"github.com/shashiranjanraj/foodie/pkg/auth"
	"github.com/shashiranjanraj/foodie/pkg/session"
	"github.com/shashiranjanraj/foodie/pkg/testkit"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tok, err := e.Auth.Register(ctx, RegisterInput{Username: " Meera ", Email: "Meera@Example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "meera@example.com", tok.User.Email)
	assert.Equal(t, models.RoleClient, tok.User.Role)
	assert.NotEqual(t, "s3cret-pass", tok.User.Password)

	claims, err := auth.ParseToken(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, tok.User.ID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expires, time.Minute)

	_, err = e.Auth.Register(ctx, RegisterInput{Username: "Meera", Email: "meera@example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = e.Auth.Login(ctx, LoginInput{Email: "MEERA@example.com", Password: "s3cret-pass"})
	assert.NoError(t, err)

	_, err = e.Auth.Login(ctx, LoginInput{Email: "meera@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = e.Auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)

	_, err := e.Auth.Register(context.Background(), RegisterInput{Username: "x", Email: "not-an-email", Password: "short"})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Fields, "email")
	assert.Contains(t, vErr.Fields, "password")
}

func TestCreateAdmin(t *testing.T) {
	e := newEnv(t)

	user, err := e.Auth.CreateAdmin(context.Background(), RegisterInput{Username: "root", Email: "root@example.com", Password: "admin-pass-1"})
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())
}

func TestLogoutRevokesToken(t *testing.T) {
	mr := testkit.Redis(t)
	e := newEnv(t)
	ctx := context.Background()

	tok, err := e.Auth.Register(ctx, RegisterInput{Username: "Ravi", Email: "ravi@example.com", Password: "password-1"})
	require.NoError(t, err)
	claims, err := auth.ParseToken(tok.Value)
	require.NoError(t, err)

	id := session.Identity{UserID: claims.UserID, TokenID: claims.ID, Expires: claims.ExpiresAt.Time}
	assert.False(t, session.IsRevoked(ctx, id.TokenID))

	require.NoError(t, e.Auth.Logout(ctx, id))
	assert.True(t, session.IsRevoked(ctx, id.TokenID))
	assert.True(t, mr.Exists("foodie:revoked:"+id.TokenID))

	mr.FastForward(2 * time.Hour)
	assert.False(t, session.IsRevoked(ctx, id.TokenID), "revocation ends when the token would have expired")
}

func TestLoginUpgradesHashCost(t *testing.T) {
	config.Set("BCRYPT_COST", "4")
	t.Cleanup(func() { config.Set("BCRYPT_COST", "10") })
	e := newEnv(t)
	ctx := context.Background()

	tok, err := e.Auth.Register(ctx, RegisterInput{Username: "Kiran", Email: "kiran@example.com", Password: "biryani-99"})
	require.NoError(t, err)

	config.Set("BCRYPT_COST", "5")
	_, err = e.Auth.Login(ctx, LoginInput{Email: "kiran@example.com", Password: "biryani-99"})
	require.NoError(t, err)

	user, err := e.users.FindByID(ctx, tok.User.ID)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(user.Password))
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
	assert.True(t, auth.CheckPassword(user.Password, "biryani-99"))
}
