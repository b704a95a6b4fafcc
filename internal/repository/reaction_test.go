package repository

import (
	"context"
	"regexp"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestReactionRepository_SetIsSingleUpsert(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "reactions" ("target_type","target_id","user_id","kind","created_at","updated_at") VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT ("target_type","target_id","user_id") DO UPDATE SET "kind"="excluded"."kind","updated_at"="excluded"."updated_at"`)).
		WithArgs(models.TargetPost, 7, 3, models.ReactionLike, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Set(context.Background(), models.TargetPost, 7, 3, models.ReactionLike))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReactionRepository_ClearIsConditionalDelete(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReactionRepository(db)

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "Removed", affected: 1, want: true},
		{name: "Nothing to remove", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "reactions" WHERE target_type = $1 AND target_id = $2 AND user_id = $3 AND kind = $4`)).
				WithArgs(models.TargetComment, 4, 9, models.ReactionDislike).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectCommit()

			removed, err := repo.Clear(context.Background(), models.TargetComment, 4, 9, models.ReactionDislike)
			require.NoError(t, err)
			assert.Equal(t, tt.want, removed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReactionRepository_MutualExclusion(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db)
	reader := testutil.CreateUser(t, db)
	post := testutil.CreatePost(t, db, author)

	state, err := repo.State(ctx, models.TargetPost, post.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionNone, state)

	require.NoError(t, repo.Set(ctx, models.TargetPost, post.ID, reader.ID, models.ReactionLike))
	require.NoError(t, repo.Set(ctx, models.TargetPost, post.ID, reader.ID, models.ReactionLike))
	require.NoError(t, repo.Set(ctx, models.TargetPost, post.ID, reader.ID, models.ReactionDislike))

	var rows int64
	require.NoError(t, db.Model(&models.Reaction{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	state, err = repo.State(ctx, models.TargetPost, post.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionDislike, state)

	removed, err := repo.Clear(ctx, models.TargetPost, post.ID, reader.ID, models.ReactionLike)
	require.NoError(t, err)
	assert.False(t, removed, "clearing a like must not touch a dislike")

	removed, err = repo.Clear(ctx, models.TargetPost, post.ID, reader.ID, models.ReactionDislike)
	require.NoError(t, err)
	assert.True(t, removed)

	state, err = repo.State(ctx, models.TargetPost, post.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionNone, state)
}

func TestReactionRepository_Sets(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db, testutil.WithUsername("alice"))
	b := testutil.CreateUser(t, db, testutil.WithUsername("bob"))
	post := testutil.CreatePost(t, db, a)
	other := testutil.CreatePost(t, db, a)
	comment := testutil.CreateComment(t, db, post, b)

	testutil.React(t, db, models.TargetPost, post.ID, a, models.ReactionLike)
	testutil.React(t, db, models.TargetPost, post.ID, b, models.ReactionDislike)
	// Same id on a different target type must not leak in.
	testutil.React(t, db, models.TargetComment, post.ID, b, models.ReactionLike)
	testutil.React(t, db, models.TargetComment, comment.ID, a, models.ReactionLike)

	sets, err := repo.Sets(ctx, models.TargetPost, []uint{post.ID, other.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, sets[post.ID].Likes)
	assert.Equal(t, []string{"bob"}, sets[post.ID].Dislikes)
	assert.Empty(t, sets[other.ID].Likes)
	assert.NotNil(t, sets[other.ID].Dislikes)

	empty, err := repo.Sets(ctx, models.TargetPost, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
