// Package repository provides the GORM data access layer.
package repository

import (
	"context"
	"errors"
	"strings"

	"agora/internal/models"

	"gorm.io/gorm"
)

// Messages for missing rows.
const (
	MsgUserNotFound    = "User not found"
	MsgPostNotFound    = "Post does not exist"
	MsgCommentNotFound = "Comment does not exist"
)

// Store groups the repositories that share one database handle.
type Store struct {
	db        *gorm.DB
	Users     UserRepository
	Posts     PostRepository
	Comments  CommentRepository
	Reactions ReactionRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Users:     NewUserRepository(db),
		Posts:     NewPostRepository(db),
		Comments:  NewCommentRepository(db),
		Reactions: NewReactionRepository(db),
	}
}

// DB returns the handle the repositories run on.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// InTx runs fn against repositories bound to a single transaction. The
// transaction commits when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// translate turns driver errors into AppErrors.
func translate(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if models.ErrorCode(err) != "" {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(notFound)
	}
	return models.NewInternalError(err)
}

// containsPattern builds a LIKE pattern for a case-insensitive substring match.
func containsPattern(q string) string {
	q = strings.ToLower(q)
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}
