// Package service holds the business logic between handlers and repositories.
package service

import (
	"context"

	"agora/internal/models"
	"agora/internal/repository"
)

// AuthorRef is the attribution shown next to content.
type AuthorRef struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Image    string `json:"image"`
}

func authorRef(u *models.User) AuthorRef {
	return AuthorRef{ID: u.ID, Username: u.Username, Image: u.Image}
}

// CommentDetail is a comment with its attribution and reactions.
type CommentDetail struct {
	Comment         models.Comment     `json:"comment"`
	Author          AuthorRef          `json:"author"`
	PostDescription string             `json:"post_description"`
	Reactions       models.ReactionSet `json:"reactions"`
}

// PostDetail is a post with its attribution, reactions and comments.
type PostDetail struct {
	Post      models.Post        `json:"post"`
	Author    AuthorRef          `json:"author"`
	Reactions models.ReactionSet `json:"reactions"`
	Comments  []CommentDetail    `json:"comments"`
}

// UserDetail is a profile with the user's posts.
type UserDetail struct {
	User  models.User  `json:"user"`
	Posts []PostDetail `json:"posts"`
}

// SearchResult is a user search hit.
type SearchResult struct {
	User       models.User
	PostsCount int64
}

func describeComments(ctx context.Context, store *repository.Store, comments []*models.Comment) ([]CommentDetail, error) {
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	sets, err := store.Reactions.Sets(ctx, models.TargetComment, ids)
	if err != nil {
		return nil, err
	}

	out := make([]CommentDetail, 0, len(comments))
	for _, c := range comments {
		d := CommentDetail{
			Comment:         *c,
			Author:          authorRef(&c.Author),
			PostDescription: c.Post.Description,
			Reactions:       *sets[c.ID],
		}
		d.Comment.Author = models.User{}
		d.Comment.Post = models.Post{}
		out = append(out, d)
	}
	return out, nil
}

func describePosts(ctx context.Context, store *repository.Store, posts []*models.Post) ([]PostDetail, error) {
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	sets, err := store.Reactions.Sets(ctx, models.TargetPost, ids)
	if err != nil {
		return nil, err
	}
	comments, err := store.Comments.ListByPosts(ctx, ids)
	if err != nil {
		return nil, err
	}
	commentDetails, err := describeComments(ctx, store, comments)
	if err != nil {
		return nil, err
	}
	byPost := make(map[uint][]CommentDetail, len(posts))
	for _, d := range commentDetails {
		byPost[d.Comment.PostID] = append(byPost[d.Comment.PostID], d)
	}

	out := make([]PostDetail, 0, len(posts))
	for _, p := range posts {
		d := PostDetail{
			Post:      *p,
			Author:    authorRef(&p.Author),
			Reactions: *sets[p.ID],
			Comments:  byPost[p.ID],
		}
		if d.Comments == nil {
			d.Comments = []CommentDetail{}
		}
		d.Post.Author = models.User{}
		out = append(out, d)
	}
	return out, nil
}

func describeUsers(ctx context.Context, store *repository.Store, users []*models.User) ([]UserDetail, error) {
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	posts, err := store.Posts.ListByAuthors(ctx, ids)
	if err != nil {
		return nil, err
	}
	postDetails, err := describePosts(ctx, store, posts)
	if err != nil {
		return nil, err
	}
	byAuthor := make(map[uint][]PostDetail, len(users))
	for _, d := range postDetails {
		byAuthor[d.Post.AuthorID] = append(byAuthor[d.Post.AuthorID], d)
	}

	out := make([]UserDetail, 0, len(users))
	for _, u := range users {
		d := UserDetail{User: *u, Posts: byAuthor[u.ID]}
		if d.Posts == nil {
			d.Posts = []PostDetail{}
		}
		out = append(out, d)
	}
	return out, nil
}
