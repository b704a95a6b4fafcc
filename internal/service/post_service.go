package service

import (
	"context"
	"strings"

	"agora/internal/cache"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/observability"
	"agora/internal/policy"
	"agora/internal/repository"
	"agora/internal/storage"
)

type PostService struct {
	store    *repository.Store
	gate     *policy.Gate
	media    *Media
	cache    *cache.Cache
	notifier *notifications.Notifier
}

type CreatePostInput struct {
	UserID      uint
	Description string
	Image       *Upload
}

// UpdatePostInput leaves fields that are nil unchanged.
type UpdatePostInput struct {
	UserID      uint
	PostID      uint
	Description *string
	Image       *Upload
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(
	store *repository.Store,
	gate *policy.Gate,
	media *Media,
	c *cache.Cache,
	notifier *notifications.Notifier,
) *PostService {
	return &PostService{store: store, gate: gate, media: media, cache: c, notifier: notifier}
}

// ListPosts returns a page of posts, newest first.
func (s *PostService) ListPosts(ctx context.Context, limit, offset int) ([]PostDetail, int64, error) {
	defer observability.Track("post", "list")()

	posts, total, err := s.store.Posts.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	details, err := describePosts(ctx, s.store, posts)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*PostDetail, error) {
	defer observability.Track("post", "get")()

	var detail PostDetail
	err := s.cache.Aside(ctx, cache.PostKey(id), &detail, cache.PostTTL, func() error {
		post, err := s.store.Posts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		details, err := describePosts(ctx, s.store, []*models.Post{post})
		if err != nil {
			return err
		}
		detail = details[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*PostDetail, error) {
	defer observability.Track("post", "create")()

	if strings.TrimSpace(in.Description) == "" {
		return nil, models.NewValidationError("Description is required")
	}
	if _, err := s.gate.Actor(ctx, in.UserID); err != nil {
		return nil, err
	}
	if in.Image != nil {
		if _, err := s.media.Check(in.Image); err != nil {
			return nil, err
		}
	}

	post := &models.Post{Description: in.Description, AuthorID: in.UserID}
	var saved string
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := tx.Posts.Create(ctx, post); err != nil {
			return err
		}
		if in.Image == nil {
			return nil
		}
		key := storage.PostImageKey(post.ID, in.Image.Filename)
		if err := s.media.Save(ctx, "post", key, in.Image); err != nil {
			return err
		}
		saved = key
		post.Image = key
		return tx.Posts.SetImage(ctx, post.ID, key)
	})
	if err != nil {
		s.media.Discard(ctx, saved)
		return nil, err
	}

	s.publish(ctx, notifications.EventPostCreated, in.UserID, post.ID)
	return s.GetPost(ctx, post.ID)
}

// UpdatePost edits description and image. Without a new image the current one is kept.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*PostDetail, error) {
	defer observability.Track("post", "update")()

	post, err := s.store.Posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.AuthorizeOwner(ctx, in.UserID, post.AuthorID); err != nil {
		return nil, err
	}

	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return nil, models.NewValidationError("Description is required")
		}
		post.Description = *in.Description
	}
	var saved string
	if in.Image != nil {
		key := storage.PostImageKey(post.ID, in.Image.Filename)
		if err := s.media.Save(ctx, "post", key, in.Image); err != nil {
			return nil, err
		}
		// same key overwrote the current file, which the row still references
		if key != post.Image {
			saved = key
		}
		post.Image = key
	}

	if err := s.store.Posts.Update(ctx, post); err != nil {
		s.media.Discard(ctx, saved)
		return nil, err
	}
	s.cache.InvalidatePosts(ctx, post.ID)
	s.publish(ctx, notifications.EventPostUpdated, in.UserID, post.ID)
	return s.GetPost(ctx, post.ID)
}

// DeletePost removes the post with its comments and reactions.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	defer observability.Track("post", "delete")()

	post, err := s.store.Posts.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}
	if _, err := s.gate.AuthorizeOwner(ctx, in.UserID, post.AuthorID); err != nil {
		return err
	}
	if err := s.store.Posts.Delete(ctx, post.ID); err != nil {
		return err
	}
	s.cache.InvalidatePosts(ctx, post.ID)
	s.publish(ctx, notifications.EventPostDeleted, in.UserID, post.ID)
	return nil
}

func (s *PostService) publish(ctx context.Context, eventType string, actorID, postID uint) {
	ev := notifications.Event{Type: eventType, ActorID: actorID, EntityID: postID}
	if err := s.notifier.PublishBroadcast(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish post event", "type", eventType, "error", err)
	}
}
