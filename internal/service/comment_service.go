package service

import (
	"context"
	"strings"

	"agora/internal/cache"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/policy"
	"agora/internal/repository"
)

type CommentService struct {
	store    *repository.Store
	gate     *policy.Gate
	cache    *cache.Cache
	notifier *notifications.Notifier
}

type CreateCommentInput struct {
	UserID uint
	PostID uint
	Text   string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Text      string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	store *repository.Store,
	gate *policy.Gate,
	c *cache.Cache,
	notifier *notifications.Notifier,
) *CommentService {
	return &CommentService{store: store, gate: gate, cache: c, notifier: notifier}
}

const maxCommentLen = 10000

func checkCommentText(text string) error {
	if strings.TrimSpace(text) == "" {
		return models.NewValidationError("Text is required")
	}
	if len(text) > maxCommentLen {
		return models.NewValidationError("Comment too long (max 10000 characters)")
	}
	return nil
}

func (s *CommentService) ListComments(ctx context.Context, limit, offset int) ([]CommentDetail, int64, error) {
	comments, total, err := s.store.Comments.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	details, err := describeComments(ctx, s.store, comments)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

func (s *CommentService) GetComment(ctx context.Context, id uint) (*CommentDetail, error) {
	comment, err := s.store.Comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := describeComments(ctx, s.store, []*models.Comment{comment})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*CommentDetail, error) {
	if err := checkCommentText(in.Text); err != nil {
		return nil, err
	}
	if _, err := s.gate.Actor(ctx, in.UserID); err != nil {
		return nil, err
	}

	comment := &models.Comment{PostID: in.PostID, AuthorID: in.UserID, Text: in.Text}
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := tx.Posts.Lock(ctx, in.PostID); err != nil {
			return err
		}
		return tx.Comments.Create(ctx, comment)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePosts(ctx, in.PostID)
	ev := notifications.Event{
		Type:     notifications.EventCommentCreated,
		ActorID:  in.UserID,
		EntityID: comment.ID,
		Payload:  map[string]any{"post_id": in.PostID},
	}
	if err := s.notifier.PublishBroadcast(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish comment event", "error", err)
	}
	return s.GetComment(ctx, comment.ID)
}

// UpdateComment changes the text. Post and author stay as created.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*CommentDetail, error) {
	comment, err := s.store.Comments.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.AuthorizeOwner(ctx, in.UserID, comment.AuthorID); err != nil {
		return nil, err
	}
	if err := checkCommentText(in.Text); err != nil {
		return nil, err
	}

	comment.Text = in.Text
	if err := s.store.Comments.UpdateText(ctx, comment); err != nil {
		return nil, err
	}
	s.cache.InvalidatePosts(ctx, comment.PostID)
	return s.GetComment(ctx, comment.ID)
}

func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.store.Comments.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}
	if _, err := s.gate.AuthorizeOwner(ctx, in.UserID, comment.AuthorID); err != nil {
		return err
	}
	if err := s.store.Comments.Delete(ctx, comment.ID); err != nil {
		return err
	}
	s.cache.InvalidatePosts(ctx, comment.PostID)
	return nil
}
