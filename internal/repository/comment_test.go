package repository

import (
	"context"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db)
	post := testutil.CreatePost(t, db, author)
	first := testutil.CreateComment(t, db, post, author)
	second := testutil.CreateComment(t, db, post, author)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, post.Description, got.Post.Description)
	assert.Equal(t, author.Username, got.Author.Username)

	page, total, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, second.ID, page[0].ID)

	byPost, err := repo.ListByPosts(ctx, []uint{post.ID})
	require.NoError(t, err)
	require.Len(t, byPost, 2)
	assert.Equal(t, first.ID, byPost[0].ID)

	first.Text = "changed"
	first.PostID = 999
	require.NoError(t, repo.UpdateText(ctx, first))
	got, err = repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Text)
	assert.Equal(t, post.ID, got.PostID)

	testutil.React(t, db, models.TargetComment, first.ID, author, models.ReactionLike)
	require.NoError(t, repo.Delete(ctx, first.ID))

	var reactions int64
	require.NoError(t, db.Model(&models.Reaction{}).Count(&reactions).Error)
	assert.Zero(t, reactions)

	_, err = repo.GetByID(ctx, first.ID)
	assert.EqualError(t, err, MsgCommentNotFound)
}
