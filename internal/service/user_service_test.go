package service

import (
	"context"
	"testing"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Register(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	user, err := h.users.Register(ctx, RegisterInput{
		Username: "ada",
		Email:    "Ada@Example.com",
		Password: "secret1",
		Image:    pngUpload(t, "me.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "user/"+itoa(user.ID)+"/me.png", user.Image)
	assert.NotEqual(t, "secret1", user.Password)
	assert.False(t, user.IsStaff)

	_, err = h.users.Register(ctx, RegisterInput{Username: "ada", Email: "other@example.com", Password: "secret1"})
	assert.EqualError(t, err, MsgUsernameTaken)

	_, err = h.users.Register(ctx, RegisterInput{Username: "ada2", Email: "ADA@example.com", Password: "secret1"})
	assert.EqualError(t, err, MsgEmailTaken)

	_, err = h.users.Register(ctx, RegisterInput{Username: "bad name", Email: "x@example.com", Password: "secret1"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = h.users.Register(ctx, RegisterInput{Username: "shorty", Email: "s@example.com", Password: "123"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestUserService_DeactivateIsStaffOnly(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	target := testutil.CreateUser(t, h.db)
	peer := testutil.CreateUser(t, h.db)
	staff := testutil.CreateUser(t, h.db, testutil.Staff())

	err := h.users.DeactivateUser(ctx, peer.ID, target.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))
	assert.EqualError(t, err, "Unauthorized")

	_, err = h.users.GetUser(ctx, target.ID)
	require.NoError(t, err, "rejected deactivation must not change the account")
	assert.True(t, h.mr.Exists(cache.UserKey(target.ID)))

	require.NoError(t, h.users.DeactivateUser(ctx, staff.ID, target.ID))
	assert.False(t, h.mr.Exists(cache.UserKey(target.ID)))

	_, err = h.users.GetUser(ctx, target.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	err = h.users.DeactivateUser(ctx, staff.ID, target.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	_, err = h.users.Authenticate(ctx, target.Username, testutil.DefaultPassword)
	assert.EqualError(t, err, MsgInvalidCredentials)
}

func TestUserService_UpdateUser(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	owner := testutil.CreateUser(t, h.db)
	other := testutil.CreateUser(t, h.db)
	post := testutil.CreatePost(t, h.db, owner)

	_, err := h.posts.GetPost(ctx, post.ID)
	require.NoError(t, err)

	bio := "hello"
	_, err = h.users.UpdateUser(ctx, UpdateUserInput{ActorID: other.ID, UserID: owner.ID, Bio: &bio})
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))

	name := "renamed"
	detail, err := h.users.UpdateUser(ctx, UpdateUserInput{ActorID: owner.ID, UserID: owner.ID, Bio: &bio, Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "hello", detail.User.Bio)
	assert.Equal(t, "renamed", detail.User.Username)
	require.Len(t, detail.Posts, 1)
	assert.False(t, h.mr.Exists(cache.PostKey(post.ID)), "posts showing the old username are evicted")

	taken := other.Username
	_, err = h.users.UpdateUser(ctx, UpdateUserInput{ActorID: owner.ID, UserID: owner.ID, Username: &taken})
	assert.EqualError(t, err, MsgUsernameTaken)
}

func TestUserService_ChangePassword(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	u := testutil.CreateUser(t, h.db)
	other := testutil.CreateUser(t, h.db)

	err := h.users.ChangePassword(ctx, ChangePasswordInput{ActorID: u.ID, UserID: u.ID, Password1: "newpass", Password2: "newpasz"})
	assert.EqualError(t, err, MsgPasswordMismatch)

	err = h.users.ChangePassword(ctx, ChangePasswordInput{ActorID: u.ID, UserID: u.ID, Password1: "abc", Password2: "abc"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	err = h.users.ChangePassword(ctx, ChangePasswordInput{ActorID: other.ID, UserID: u.ID, Password1: "newpass", Password2: "newpass"})
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))

	require.NoError(t, h.users.ChangePassword(ctx, ChangePasswordInput{ActorID: u.ID, UserID: u.ID, Password1: "newpass", Password2: "newpass"}))
	_, err = h.users.Authenticate(ctx, u.Username, "newpass")
	assert.NoError(t, err)
}

func TestUserService_Search(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	writer := testutil.CreateUser(t, h.db, func(u *models.User) {
		u.Username = "zed_writer"
		u.FirstName = "Zed"
		u.LastName = "Writer"
	})
	testutil.CreatePost(t, h.db, writer)
	testutil.CreatePost(t, h.db, writer)

	results, total, err := h.users.SearchUsers(ctx, "ZED_", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, results, 1)
	assert.EqualValues(t, 2, results[0].PostsCount)
}

func TestUserService_EnsureStaff(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	u, err := h.users.EnsureStaff(ctx, "admin", "adminpass")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)

	again, err := h.users.EnsureStaff(ctx, "admin", "adminpass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestUserService_FailedWriteRemovesUpload(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	existing := testutil.CreateUser(t, h.db)

	failUpdates(t, h.db, "users")

	_, err := h.users.Register(ctx, RegisterInput{
		Username: "grace",
		Email:    "grace@example.com",
		Password: "secret1",
		Image:    pngUpload(t, "me.png"),
	})
	require.Error(t, err)
	assert.Empty(t, storedFiles(t, h.mediaDir))

	var count int64
	require.NoError(t, h.db.Model(&models.User{}).Where("username = ?", "grace").Count(&count).Error)
	assert.Zero(t, count, "registration rolled back")

	_, err = h.users.UpdateUser(ctx, UpdateUserInput{ActorID: existing.ID, UserID: existing.ID, Image: pngUpload(t, "new.png")})
	require.Error(t, err)
	assert.Empty(t, storedFiles(t, h.mediaDir))
}
