package server

import (
	"net/http"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) postView(id uint) PostView {
	e.t.Helper()
	resp := e.do(http.MethodGet, idPath("/api/posts", id, ""), nil, 0)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	return decode[PostView](e.t, resp)
}

func (e *testEnv) commentView(id uint) CommentView {
	e.t.Helper()
	resp := e.do(http.MethodGet, idPath("/api/comments", id, ""), nil, 0)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	return decode[CommentView](e.t, resp)
}

func TestPostReactions(t *testing.T) {
	e := newTestEnv(t, "")
	author := testutil.CreateUser(t, e.db)
	reader := testutil.CreateUser(t, e.db)
	post := testutil.CreatePost(t, e.db, author)

	tests := []struct {
		name            string
		method          string
		suffix          string
		expectedStatus  int
		expectedMessage string
		likes           []string
		dislikes        []string
	}{
		{"Like", http.MethodPost, "/like", http.StatusOK, "Post liked successfully", []string{reader.Username}, []string{}},
		{"Like again", http.MethodPost, "/like", http.StatusOK, "Post liked successfully", []string{reader.Username}, []string{}},
		{"Dislike replaces like", http.MethodPost, "/dislike", http.StatusOK, "Post disliked successfully", []string{}, []string{reader.Username}},
		{"Unlike without like", http.MethodDelete, "/remove-like", http.StatusBadRequest, "You have not liked this post", []string{}, []string{reader.Username}},
		{"Undislike", http.MethodDelete, "/remove-dislike", http.StatusOK, "Post undisliked successfully", []string{}, []string{}},
		{"Undislike again", http.MethodDelete, "/dislike", http.StatusBadRequest, "You have not disliked this post", []string{}, []string{}},
		{"Like through alias", http.MethodPost, "/like", http.StatusOK, "Post liked successfully", []string{reader.Username}, []string{}},
		{"Unlike", http.MethodDelete, "/like", http.StatusOK, "Post unliked successfully", []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(tt.method, idPath("/api/posts", post.ID, tt.suffix), nil, reader.ID)
			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedMessage, decode[MessageResponse](t, resp).Message)
			} else {
				body := decode[errorBody](t, resp)
				assert.Equal(t, tt.expectedMessage, body.Error)
				assert.Equal(t, models.CodeRedundantStateChange, body.Code)
			}

			view := e.postView(post.ID)
			assert.ElementsMatch(t, tt.likes, view.Likes)
			assert.ElementsMatch(t, tt.dislikes, view.Dislikes)
		})
	}
}

func TestPostReactions_TwoUsers(t *testing.T) {
	e := newTestEnv(t, "")
	author := testutil.CreateUser(t, e.db)
	a := testutil.CreateUser(t, e.db)
	b := testutil.CreateUser(t, e.db)
	post := testutil.CreatePost(t, e.db, author)

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, idPath("/api/posts", post.ID, "/like"), nil, a.ID).StatusCode)
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, idPath("/api/posts", post.ID, "/dislike"), nil, b.ID).StatusCode)

	view := e.postView(post.ID)
	assert.Equal(t, []string{a.Username}, view.Likes)
	assert.Equal(t, []string{b.Username}, view.Dislikes)

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, idPath("/api/posts", post.ID, "/like"), nil, b.ID).StatusCode)

	view = e.postView(post.ID)
	assert.ElementsMatch(t, []string{a.Username, b.Username}, view.Likes)
	assert.Empty(t, view.Dislikes)
}

func TestPostReactions_MissingTarget(t *testing.T) {
	e := newTestEnv(t, "")
	reader := testutil.CreateUser(t, e.db)

	resp := e.do(http.MethodPost, "/api/posts/4242/like", nil, reader.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Post does not exist", decode[errorBody](t, resp).Error)

	resp = e.do(http.MethodPost, "/api/comments/4242/dislike", nil, reader.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Comment does not exist", decode[errorBody](t, resp).Error)
}

func TestCommentReactions(t *testing.T) {
	e := newTestEnv(t, "")
	author := testutil.CreateUser(t, e.db)
	reader := testutil.CreateUser(t, e.db)
	post := testutil.CreatePost(t, e.db, author)
	comment := testutil.CreateComment(t, e.db, post, author)

	resp := e.do(http.MethodPost, idPath("/api/comments", comment.ID, "/dislike"), nil, reader.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Comment disliked successfully", decode[MessageResponse](t, resp).Message)

	view := e.commentView(comment.ID)
	assert.Empty(t, view.CommentLikes)
	assert.Equal(t, []string{reader.Username}, view.CommentDislikes)

	resp = e.do(http.MethodDelete, idPath("/api/comments", comment.ID, "/remove-like"), nil, reader.ID)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "You have not liked this comment", decode[errorBody](t, resp).Error)

	resp = e.do(http.MethodPost, idPath("/api/comments", comment.ID, "/like"), nil, reader.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(http.MethodDelete, idPath("/api/comments", comment.ID, "/like"), nil, reader.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Comment unliked successfully", decode[MessageResponse](t, resp).Message)

	view = e.commentView(comment.ID)
	assert.Empty(t, view.CommentLikes)
	assert.Empty(t, view.CommentDislikes)

	postView := e.postView(post.ID)
	require.Len(t, postView.Comments, 1)
	assert.Empty(t, postView.Comments[0].CommentLikes)
}

func TestReactions_DeactivatedActor(t *testing.T) {
	e := newTestEnv(t, "")
	author := testutil.CreateUser(t, e.db)
	gone := testutil.CreateUser(t, e.db, testutil.Deactivated())
	post := testutil.CreatePost(t, e.db, author)

	resp := e.do(http.MethodPost, idPath("/api/posts", post.ID, "/like"), nil, gone.ID)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, e.postView(post.ID).Likes)
}
