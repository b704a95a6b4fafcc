package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/observability"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func reactionSet(t *testing.T, h *harness, target models.TargetType, id uint) *models.ReactionSet {
	t.Helper()
	sets, err := h.reactions.Reactions(context.Background(), target, []uint{id})
	require.NoError(t, err)
	return sets[id]
}

func TestReactionService_LikeAndDislikeAreExclusive(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	author := testutil.CreateUser(t, h.db)
	reader := testutil.CreateUser(t, h.db)
	post := testutil.CreatePost(t, h.db, author)

	require.NoError(t, h.reactions.Like(ctx, models.TargetPost, post.ID, reader.ID))
	set := reactionSet(t, h, models.TargetPost, post.ID)
	assert.Equal(t, []string{reader.Username}, set.Likes)
	assert.Empty(t, set.Dislikes)

	require.NoError(t, h.reactions.Like(ctx, models.TargetPost, post.ID, reader.ID), "liking twice is a no-op")
	assert.Len(t, reactionSet(t, h, models.TargetPost, post.ID).Likes, 1)

	require.NoError(t, h.reactions.Dislike(ctx, models.TargetPost, post.ID, reader.ID))
	set = reactionSet(t, h, models.TargetPost, post.ID)
	assert.Empty(t, set.Likes)
	assert.Equal(t, []string{reader.Username}, set.Dislikes)

	require.NoError(t, h.reactions.Like(ctx, models.TargetPost, post.ID, reader.ID))
	set = reactionSet(t, h, models.TargetPost, post.ID)
	assert.Equal(t, []string{reader.Username}, set.Likes)
	assert.Empty(t, set.Dislikes)

	state, err := h.reactions.State(ctx, models.TargetPost, post.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionLike, state)
}

func TestReactionService_RedundantRemoval(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	author := testutil.CreateUser(t, h.db)
	reader := testutil.CreateUser(t, h.db)
	post := testutil.CreatePost(t, h.db, author)
	comment := testutil.CreateComment(t, h.db, post, author)

	err := h.reactions.Unlike(ctx, models.TargetPost, post.ID, reader.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeRedundantStateChange, models.ErrorCode(err))
	assert.EqualError(t, err, "You have not liked this post")

	require.NoError(t, h.reactions.Dislike(ctx, models.TargetComment, comment.ID, reader.ID))
	err = h.reactions.Unlike(ctx, models.TargetComment, comment.ID, reader.ID)
	assert.EqualError(t, err, "You have not liked this comment")
	set := reactionSet(t, h, models.TargetComment, comment.ID)
	assert.Equal(t, []string{reader.Username}, set.Dislikes, "failed removal leaves state unchanged")

	require.NoError(t, h.reactions.Undislike(ctx, models.TargetComment, comment.ID, reader.ID))
	err = h.reactions.Undislike(ctx, models.TargetComment, comment.ID, reader.ID)
	assert.EqualError(t, err, "You have not disliked this comment")
}

func TestReactionService_TwoUsers(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	a := testutil.CreateUser(t, h.db)
	b := testutil.CreateUser(t, h.db)
	post := testutil.CreatePost(t, h.db, a)

	require.NoError(t, h.reactions.Like(ctx, models.TargetPost, post.ID, b.ID))
	require.NoError(t, h.reactions.Dislike(ctx, models.TargetPost, post.ID, b.ID))

	set := reactionSet(t, h, models.TargetPost, post.ID)
	assert.Len(t, set.Likes, 0)
	assert.Len(t, set.Dislikes, 1)
}

func TestReactionService_Errors(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	author := testutil.CreateUser(t, h.db)
	gone := testutil.CreateUser(t, h.db, testutil.Deactivated())
	post := testutil.CreatePost(t, h.db, author)

	err := h.reactions.Like(ctx, models.TargetPost, 999, author.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	assert.EqualError(t, err, "Post does not exist")

	err = h.reactions.Dislike(ctx, models.TargetComment, 999, author.ID)
	assert.EqualError(t, err, "Comment does not exist")

	err = h.reactions.Like(ctx, models.TargetPost, post.ID, gone.ID)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))

	err = h.reactions.Apply(ctx, models.TargetPost, post.ID, author.ID, Action("love"))
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestReactionService_InvalidatesAndPublishes(t *testing.T) {
	h := newHarness(t, "reaction_events=on")
	ctx := context.Background()

	author := testutil.CreateUser(t, h.db)
	reader := testutil.CreateUser(t, h.db)
	post := testutil.CreatePost(t, h.db, author)
	comment := testutil.CreateComment(t, h.db, post, author)

	broadcast := h.rdb.Subscribe(ctx, notifications.BroadcastChannel, notifications.UserChannel(author.ID))
	defer broadcast.Close()
	_, err := broadcast.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, h.mr.Set(cache.PostKey(post.ID), "stale"))
	require.NoError(t, h.reactions.Like(ctx, models.TargetComment, comment.ID, reader.ID))
	assert.False(t, h.mr.Exists(cache.PostKey(post.ID)), "comment reactions invalidate the parent post")

	seen := map[string]notifications.Event{}
	for range 2 {
		msgCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		msg, err := broadcast.ReceiveMessage(msgCtx)
		cancel()
		require.NoError(t, err)
		var ev notifications.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		seen[msg.Channel] = ev
	}
	assert.Equal(t, notifications.EventCommentReactionUpdated, seen[notifications.BroadcastChannel].Type)
	assert.Equal(t, comment.ID, seen[notifications.UserChannel(author.ID)].EntityID)
	assert.Equal(t, reader.ID, seen[notifications.BroadcastChannel].ActorID)
}

func TestSuccessMessage(t *testing.T) {
	assert.Equal(t, "Post liked successfully", SuccessMessage(models.TargetPost, ActionLike))
	assert.Equal(t, "Comment undisliked successfully", SuccessMessage(models.TargetComment, ActionUndislike))
	assert.Equal(t, "Post unliked successfully", SuccessMessage(models.TargetPost, ActionUnlike))
}

func TestReactionService_SpanCarriesPost(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() { observability.Tracer = prev })

	h := newHarness(t, "")
	ctx := context.Background()
	author := testutil.CreateUser(t, h.db)
	post := testutil.CreatePost(t, h.db, author)
	comment := testutil.CreateComment(t, h.db, post, author)

	require.NoError(t, h.reactions.Like(ctx, models.TargetComment, comment.ID, author.ID))

	var found bool
	for _, s := range rec.Ended() {
		if s.Name() != "reaction.like" {
			continue
		}
		found = true
		assert.Contains(t, s.Attributes(), attribute.Int64("reaction.post_id", int64(post.ID)))
		assert.Contains(t, s.Attributes(), attribute.String("reaction.target", string(models.TargetComment)))
	}
	assert.True(t, found)
}
