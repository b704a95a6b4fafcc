package server

import (
	"time"

	"agora/internal/models"
	"agora/internal/service"
)

// CommentView is the JSON shape of a comment.
type CommentView struct {
	ID              uint      `json:"id"`
	Text            string    `json:"text"`
	Author          string    `json:"author"`
	AuthorID        uint      `json:"author_id"`
	AuthorImage     string    `json:"author_image"`
	Post            string    `json:"post"`
	PostID          uint      `json:"post_id"`
	CommentLikes    []string  `json:"comment_likes"`
	CommentDislikes []string  `json:"comment_dislikes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PostView is the JSON shape of a post with its comments.
type PostView struct {
	ID          uint          `json:"id"`
	Description string        `json:"description"`
	Image       string        `json:"image"`
	Author      string        `json:"author"`
	AuthorID    uint          `json:"author_id"`
	AuthorImage string        `json:"author_image"`
	Likes       []string      `json:"likes"`
	Dislikes    []string      `json:"dislikes"`
	Comments    []CommentView `json:"comments"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// AccountView is a user without the credential hash.
type AccountView struct {
	ID         uint      `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Bio        string    `json:"bio"`
	Image      string    `json:"image"`
	IsStaff    bool      `json:"is_staff"`
	IsActive   bool      `json:"is_active"`
	DateJoined time.Time `json:"date_joined"`
}

// UserView is an account with its posts.
type UserView struct {
	AccountView
	Posts []PostView `json:"posts"`
}

// SearchUserView is a user search hit.
type SearchUserView struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Bio        string `json:"bio"`
	Image      string `json:"image"`
	PostsCount int64  `json:"posts_count"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	User    AccountView `json:"user"`
	Message string      `json:"message"`
}

// RefreshResponse carries a new access token.
type RefreshResponse struct {
	Access string `json:"access"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) commentView(d service.CommentDetail) CommentView {
	return CommentView{
		ID:              d.Comment.ID,
		Text:            d.Comment.Text,
		Author:          d.Author.Username,
		AuthorID:        d.Author.ID,
		AuthorImage:     s.media.URL(d.Author.Image),
		Post:            d.PostDescription,
		PostID:          d.Comment.PostID,
		CommentLikes:    nonNil(d.Reactions.Likes),
		CommentDislikes: nonNil(d.Reactions.Dislikes),
		CreatedAt:       d.Comment.CreatedAt,
		UpdatedAt:       d.Comment.UpdatedAt,
	}
}

func (s *Server) commentViews(ds []service.CommentDetail) []CommentView {
	out := make([]CommentView, 0, len(ds))
	for _, d := range ds {
		out = append(out, s.commentView(d))
	}
	return out
}

func (s *Server) postView(d service.PostDetail) PostView {
	return PostView{
		ID:          d.Post.ID,
		Description: d.Post.Description,
		Image:       s.media.URL(d.Post.Image),
		Author:      d.Author.Username,
		AuthorID:    d.Author.ID,
		AuthorImage: s.media.URL(d.Author.Image),
		Likes:       nonNil(d.Reactions.Likes),
		Dislikes:    nonNil(d.Reactions.Dislikes),
		Comments:    s.commentViews(d.Comments),
		CreatedAt:   d.Post.CreatedAt,
		UpdatedAt:   d.Post.UpdatedAt,
	}
}

func (s *Server) postViews(ds []service.PostDetail) []PostView {
	out := make([]PostView, 0, len(ds))
	for _, d := range ds {
		out = append(out, s.postView(d))
	}
	return out
}

func (s *Server) accountView(u *models.User) AccountView {
	return AccountView{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Bio:        u.Bio,
		Image:      s.media.URL(u.Image),
		IsStaff:    u.IsStaff,
		IsActive:   u.IsActive(),
		DateJoined: u.DateJoined,
	}
}

func (s *Server) userView(d service.UserDetail) UserView {
	return UserView{AccountView: s.accountView(&d.User), Posts: s.postViews(d.Posts)}
}

func (s *Server) searchUserView(r service.SearchResult) SearchUserView {
	return SearchUserView{
		ID:         r.User.ID,
		Username:   r.User.Username,
		Email:      r.User.Email,
		FirstName:  r.User.FirstName,
		LastName:   r.User.LastName,
		Bio:        r.User.Bio,
		Image:      s.media.URL(r.User.Image),
		PostsCount: r.PostsCount,
	}
}
