package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withToken sends a JSON request carrying a raw bearer token.
func (e *testEnv) withToken(method, path string, body any, token string) *http.Response {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(req)
}

func (e *testEnv) login(username, password string) LoginResponse {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, 0)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	return decode[LoginResponse](e.t, resp)
}

func TestRegister(t *testing.T) {
	e := newTestEnv(t, "")

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Success",
			body:           map[string]string{"username": "ada", "email": "Ada@Example.com", "password": "secret1", "first_name": "Ada"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Duplicate username",
			body:           map[string]string{"username": "ada", "email": "other@example.com", "password": "secret1"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "A user with that username already exists.",
		},
		{
			name:           "Short password",
			body:           map[string]string{"username": "bob", "email": "bob@example.com", "password": "abc"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Bad email",
			body:           map[string]string{"username": "cy", "email": "not-an-email", "password": "secret1"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(http.MethodPost, "/api/users", tt.body, 0)
			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decode[errorBody](t, resp).Error)
			}
		})
	}

	var stored models.User
	require.NoError(t, e.db.Where("username = ?", "ada").First(&stored).Error)
	assert.Equal(t, "ada@example.com", stored.Email)
	assert.NotEqual(t, "secret1", stored.Password)
}

func TestRegister_ResponseOmitsPassword(t *testing.T) {
	e := newTestEnv(t, "")

	resp := e.do(http.MethodPost, "/api/auth/register",
		map[string]string{"username": "grace", "email": "grace@example.com", "password": "secret1"}, 0)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "grace", body["username"])
	assert.Equal(t, true, body["is_active"])
	assert.Equal(t, false, body["is_staff"])
	assert.NotContains(t, body, "password")
}

func TestRegister_WithImage(t *testing.T) {
	e := newTestEnv(t, "")

	req := multipartRequest(t, http.MethodPost, "/api/users",
		map[string]string{"username": "pic", "email": "pic@example.com", "password": "secret1"}, "me.png", pngBytes(t))
	resp := e.send(req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decode[AccountView](t, resp)
	assert.Equal(t, idPath("/media/user", view.ID, "/me.png"), view.Image)
}

func TestLoginRefreshLogout(t *testing.T) {
	e := newTestEnv(t, "")
	user := testutil.CreateUser(t, e.db)

	resp := e.do(http.MethodPost, "/api/auth/login", map[string]string{"username": user.Username, "password": "wrong"}, 0)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid username or password", decode[errorBody](t, resp).Error)

	tokens := e.login(user.Username, testutil.DefaultPassword)
	assert.Equal(t, "Login successful", tokens.Message)
	assert.Equal(t, user.ID, tokens.User.ID)
	require.NotEmpty(t, tokens.Access)
	require.NotEmpty(t, tokens.Refresh)

	resp = e.withToken(http.MethodGet, "/api/user-logged", nil, tokens.Access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, user.Username, decode[AccountView](t, resp).Username)

	resp = e.do(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh": tokens.Refresh}, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[RefreshResponse](t, resp).Access)

	resp = e.do(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh": tokens.Access}, 0)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.withToken(http.MethodPost, "/api/auth/logout", map[string]string{"refresh": tokens.Refresh}, tokens.Access)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out successfully", decode[MessageResponse](t, resp).Message)

	resp = e.withToken(http.MethodGet, "/api/user-logged", nil, tokens.Access)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token has been revoked", decode[errorBody](t, resp).Error)

	resp = e.do(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh": tokens.Refresh}, 0)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_DeactivatedUser(t *testing.T) {
	e := newTestEnv(t, "")
	gone := testutil.CreateUser(t, e.db, testutil.Deactivated())

	resp := e.do(http.MethodPost, "/api/auth/login", map[string]string{"username": gone.Username, "password": testutil.DefaultPassword}, 0)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(http.MethodGet, "/api/user-logged", nil, gone.ID)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetUsers(t *testing.T) {
	e := newTestEnv(t, "")
	viewer := testutil.CreateUser(t, e.db)
	author := testutil.CreateUser(t, e.db)
	testutil.CreateUser(t, e.db, testutil.Deactivated())
	post := testutil.CreatePost(t, e.db, author)

	resp := e.do(http.MethodGet, "/api/users", nil, viewer.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[Page[UserView]](t, resp)
	assert.EqualValues(t, 2, page.Count)
	require.Len(t, page.Results, 2)

	var found *UserView
	for i := range page.Results {
		if page.Results[i].ID == author.ID {
			found = &page.Results[i]
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Posts, 1)
	assert.Equal(t, post.ID, found.Posts[0].ID)

	raw := e.do(http.MethodGet, "/api/users", nil, viewer.ID)
	assert.NotContains(t, decode[map[string]any](t, raw)["results"].([]any)[0], "password")
}

func TestGetUser(t *testing.T) {
	e := newTestEnv(t, "")
	viewer := testutil.CreateUser(t, e.db)
	target := testutil.CreateUser(t, e.db)
	gone := testutil.CreateUser(t, e.db, testutil.Deactivated())

	resp := e.do(http.MethodGet, idPath("/api/users", target.ID, ""), nil, viewer.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[UserView](t, resp)
	assert.Equal(t, target.Username, view.Username)
	assert.NotNil(t, view.Posts)

	for _, id := range []uint{gone.ID, 9999} {
		resp = e.do(http.MethodGet, idPath("/api/users", id, ""), nil, viewer.ID)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestUpdateUser(t *testing.T) {
	e := newTestEnv(t, "")
	owner := testutil.CreateUser(t, e.db)
	stranger := testutil.CreateUser(t, e.db)
	staff := testutil.CreateUser(t, e.db, testutil.Staff())
	path := idPath("/api/users", owner.ID, "")

	resp := e.do(http.MethodPut, path, map[string]string{"bio": "hacked"}, stranger.ID)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(http.MethodPut, path, map[string]string{"bio": "new bio", "first_name": "New"}, owner.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[DataResponse[UserView]](t, resp)
	assert.Equal(t, "User updated successfully", body.Message)
	assert.Equal(t, "new bio", body.Data.Bio)
	assert.Equal(t, "New", body.Data.FirstName)
	assert.Equal(t, owner.LastName, body.Data.LastName)

	resp = e.do(http.MethodPut, path, map[string]string{"username": stranger.Username}, owner.ID)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(http.MethodPut, path, map[string]string{"bio": "staff edit"}, staff.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.User
	require.NoError(t, e.db.First(&stored, owner.ID).Error)
	assert.Equal(t, "staff edit", stored.Bio)
	assert.False(t, stored.IsStaff)
}

func TestDeactivateUser(t *testing.T) {
	e := newTestEnv(t, "")
	target := testutil.CreateUser(t, e.db)
	other := testutil.CreateUser(t, e.db)
	staff := testutil.CreateUser(t, e.db, testutil.Staff())
	post := testutil.CreatePost(t, e.db, target)
	path := idPath("/api/users", target.ID, "")

	resp := e.do(http.MethodDelete, path, nil, target.ID)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "owners cannot deactivate themselves")
	resp = e.do(http.MethodDelete, path, nil, other.ID)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(http.MethodDelete, path, nil, staff.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "User deleted successfully", decode[MessageResponse](t, resp).Message)

	var stored models.User
	require.NoError(t, e.db.First(&stored, target.ID).Error)
	assert.False(t, stored.IsActive())

	resp = e.do(http.MethodGet, path, nil, other.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = e.do(http.MethodDelete, path, nil, staff.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, target.Username, e.postView(post.ID).Author)
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv(t, "")
	user := testutil.CreateUser(t, e.db)
	stranger := testutil.CreateUser(t, e.db)
	path := idPath("/api/users", user.ID, "/change_password")

	resp := e.do(http.MethodPost, path, map[string]string{"password1": "newpass1", "password2": "newpass2"}, user.ID)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Passwords don't match", decode[errorBody](t, resp).Error)

	resp = e.do(http.MethodPost, path, map[string]string{"password1": "newpass1", "password2": "newpass1"}, stranger.ID)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(http.MethodPost, path, map[string]string{"password1": "newpass1", "password2": "newpass1"}, user.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Password changed successfully", decode[MessageResponse](t, resp).Message)

	resp = e.do(http.MethodPost, "/api/auth/login", map[string]string{"username": user.Username, "password": testutil.DefaultPassword}, 0)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e.login(user.Username, "newpass1")
}

func TestSearchUsers(t *testing.T) {
	e := newTestEnv(t, "")
	plainName := func(u *models.User) { u.FirstName, u.LastName = "Pat", "Jones" }
	alice := testutil.CreateUser(t, e.db, testutil.WithUsername("alice_w"), plainName)
	testutil.CreateUser(t, e.db, testutil.WithUsername("bob_smith"), func(u *models.User) { u.LastName = "Alison" })
	testutil.CreateUser(t, e.db, testutil.WithUsername("carol"), plainName)
	testutil.CreateUser(t, e.db, testutil.WithUsername("ali_gone"), plainName, testutil.Deactivated())
	testutil.CreatePost(t, e.db, alice)
	testutil.CreatePost(t, e.db, alice)

	resp := e.do(http.MethodGet, "/api/users-search?search=ALI", nil, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[Page[SearchUserView]](t, resp)

	counts := make(map[string]int64)
	for _, hit := range page.Results {
		counts[hit.Username] = hit.PostsCount
	}
	assert.Equal(t, int64(2), counts["alice_w"])
	assert.Contains(t, counts, "bob_smith")
	assert.NotContains(t, counts, "carol")
	assert.NotContains(t, counts, "ali_gone")
}
