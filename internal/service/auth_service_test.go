package service

import (
	"context"
	"testing"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_LoginRefreshLogout(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, h.db)

	_, err := h.auth.Login(ctx, u.Username, "wrong")
	assert.EqualError(t, err, MsgInvalidCredentials)
	_, err = h.auth.Login(ctx, "nobody", "wrong")
	assert.EqualError(t, err, MsgInvalidCredentials)

	res, err := h.auth.Login(ctx, u.Username, testutil.DefaultPassword)
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.NotEmpty(t, res.Access)
	assert.NotEmpty(t, res.Refresh)

	_, err = h.auth.Refresh(ctx, res.Access)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err), "access tokens cannot refresh")

	access, err := h.auth.Refresh(ctx, res.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	tokens := middleware.NewTokens(middleware.JWTConfig{
		Secret:   "test-secret-test-secret-test-secret",
		Issuer:   "agora-api",
		Audience: "agora-client",
	}, h.rdb)
	claims, err := tokens.Parse(ctx, res.Access, middleware.AccessToken)
	require.NoError(t, err)

	require.NoError(t, h.auth.Logout(ctx, claims, res.Refresh))

	_, err = tokens.Parse(ctx, res.Access, middleware.AccessToken)
	assert.ErrorIs(t, err, middleware.ErrRevokedToken)
	_, err = h.auth.Refresh(ctx, res.Refresh)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))
}
