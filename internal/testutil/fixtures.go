package testutil

import (
	"testing"

	"agora/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the plain-text password of every fixture user.
const DefaultPassword = "password123"

// UserOption adjusts a fixture user before it is saved.
type UserOption func(*models.User)

func Staff() UserOption {
	return func(u *models.User) { u.IsStaff = true }
}

func Deactivated() UserOption {
	return func(u *models.User) { u.Status = models.UserDeactivated }
}

func WithUsername(name string) UserOption {
	return func(u *models.User) { u.Username = name }
}

// CreateUser inserts a user with fake profile data.
func CreateUser(t *testing.T, db *gorm.DB, opts ...UserOption) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{
		Username:  gofakeit.Username() + gofakeit.DigitN(6),
		Email:     gofakeit.DigitN(6) + gofakeit.Email(),
		Password:  string(hash),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Bio:       gofakeit.Sentence(8),
		Status:    models.UserActive,
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a post by author.
func CreatePost(t *testing.T, db *gorm.DB, author *models.User) *models.Post {
	t.Helper()
	p := &models.Post{Description: gofakeit.Sentence(10), AuthorID: author.ID}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreateComment inserts a comment by author on post.
func CreateComment(t *testing.T, db *gorm.DB, post *models.Post, author *models.User) *models.Comment {
	t.Helper()
	c := &models.Comment{PostID: post.ID, AuthorID: author.ID, Text: gofakeit.Sentence(6)}
	require.NoError(t, db.Create(c).Error)
	return c
}

// React stores a reaction row directly.
func React(t *testing.T, db *gorm.DB, target models.TargetType, targetID uint, user *models.User, kind models.ReactionKind) {
	t.Helper()
	require.NoError(t, db.Create(&models.Reaction{
		TargetType: target, TargetID: targetID, UserID: user.ID, Kind: kind,
	}).Error)
}
