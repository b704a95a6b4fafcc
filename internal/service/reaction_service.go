package service

import (
	"context"
	"fmt"
	"strings"

	"agora/internal/cache"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/observability"
	"agora/internal/policy"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Action is a reaction state change requested by a user.
type Action string

const (
	ActionLike      Action = "like"
	ActionUnlike    Action = "unlike"
	ActionDislike   Action = "dislike"
	ActionUndislike Action = "undislike"
)

// Past is the participle used in success messages, e.g. "unliked".
func (a Action) Past() string {
	return string(a) + "d"
}

// SuccessMessage is the confirmation returned for a change to target.
func SuccessMessage(target models.TargetType, a Action) string {
	return fmt.Sprintf("%s %s successfully", target.Label(), a.Past())
}

// ReactionService applies like and dislike changes to posts and comments.
// A user holds at most one reaction per target.
type ReactionService struct {
	store    *repository.Store
	gate     *policy.Gate
	cache    *cache.Cache
	notifier *notifications.Notifier
	flags    *featureflags.Manager
}

func NewReactionService(
	store *repository.Store,
	gate *policy.Gate,
	c *cache.Cache,
	notifier *notifications.Notifier,
	flags *featureflags.Manager,
) *ReactionService {
	return &ReactionService{store: store, gate: gate, cache: c, notifier: notifier, flags: flags}
}

func (s *ReactionService) Like(ctx context.Context, target models.TargetType, id, userID uint) error {
	return s.apply(ctx, target, id, userID, ActionLike)
}

func (s *ReactionService) Unlike(ctx context.Context, target models.TargetType, id, userID uint) error {
	return s.apply(ctx, target, id, userID, ActionUnlike)
}

func (s *ReactionService) Dislike(ctx context.Context, target models.TargetType, id, userID uint) error {
	return s.apply(ctx, target, id, userID, ActionDislike)
}

func (s *ReactionService) Undislike(ctx context.Context, target models.TargetType, id, userID uint) error {
	return s.apply(ctx, target, id, userID, ActionUndislike)
}

// Apply dispatches a by name.
func (s *ReactionService) Apply(ctx context.Context, target models.TargetType, id, userID uint, a Action) error {
	switch a {
	case ActionLike, ActionUnlike, ActionDislike, ActionUndislike:
		return s.apply(ctx, target, id, userID, a)
	}
	return models.NewValidationError("Unknown reaction " + string(a))
}

// State returns userID's current reaction to the target.
func (s *ReactionService) State(ctx context.Context, target models.TargetType, id, userID uint) (models.ReactionKind, error) {
	if _, err := s.lock(ctx, s.store, target, id); err != nil {
		return models.ReactionNone, err
	}
	return s.store.Reactions.State(ctx, target, id, userID)
}

// Reactions returns the liker and disliker usernames of each target.
func (s *ReactionService) Reactions(ctx context.Context, target models.TargetType, ids []uint) (map[uint]*models.ReactionSet, error) {
	return s.store.Reactions.Sets(ctx, target, ids)
}

func (s *ReactionService) apply(ctx context.Context, target models.TargetType, id, userID uint, a Action) error {
	defer observability.Track("reaction", string(a))()
	span, ctx := observability.NewSpan(ctx, "reaction."+string(a),
		attribute.String("reaction.target", string(target)),
		attribute.Int64("reaction.target_id", int64(id)),
		attribute.Int64("reaction.user_id", int64(userID)),
	)
	defer span.End()

	if _, err := s.gate.Actor(ctx, userID); err != nil {
		span.SetError(err)
		return err
	}

	var postID uint
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		if postID, err = s.lock(ctx, tx, target, id); err != nil {
			return err
		}
		switch a {
		case ActionLike:
			return tx.Reactions.Set(ctx, target, id, userID, models.ReactionLike)
		case ActionDislike:
			return tx.Reactions.Set(ctx, target, id, userID, models.ReactionDislike)
		case ActionUnlike:
			return clearReaction(ctx, tx, target, id, userID, models.ReactionLike)
		default:
			return clearReaction(ctx, tx, target, id, userID, models.ReactionDislike)
		}
	})
	if err != nil {
		if models.ErrorCode(err) == models.CodeRedundantStateChange {
			observability.ReactionRejections.WithLabelValues(string(target), string(a)).Inc()
		}
		span.SetError(err)
		return err
	}

	span.AddAttributes(attribute.Int64("reaction.post_id", int64(postID)))
	observability.ReactionsTotal.WithLabelValues(string(target), string(a)).Inc()
	s.cache.InvalidatePosts(ctx, postID)
	s.publish(ctx, target, id, postID, userID, a)
	return nil
}

// lock checks the target exists and returns the post it belongs to.
func (s *ReactionService) lock(ctx context.Context, store *repository.Store, target models.TargetType, id uint) (uint, error) {
	switch target {
	case models.TargetPost:
		return id, store.Posts.Lock(ctx, id)
	case models.TargetComment:
		return store.Comments.Lock(ctx, id)
	}
	return 0, models.NewValidationError("Unknown reaction target " + string(target))
}

func clearReaction(ctx context.Context, tx *repository.Store, target models.TargetType, id, userID uint, kind models.ReactionKind) error {
	removed, err := tx.Reactions.Clear(ctx, target, id, userID, kind)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewRedundantStateChangeError(
			fmt.Sprintf("You have not %sd this %s", kind, strings.ToLower(target.Label())))
	}
	return nil
}

func (s *ReactionService) publish(ctx context.Context, target models.TargetType, id, postID, userID uint, a Action) {
	eventType := notifications.EventPostReactionUpdated
	if target == models.TargetComment {
		eventType = notifications.EventCommentReactionUpdated
	}
	ev := notifications.Event{
		Type:     eventType,
		ActorID:  userID,
		EntityID: id,
		Payload:  map[string]any{"action": string(a), "post_id": postID},
	}
	if err := s.notifier.PublishBroadcast(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish reaction event", "error", err)
	}

	if !s.flags.Enabled(featureflags.ReactionEvents, userID) {
		return
	}
	ownerID, err := s.owner(ctx, target, id)
	if err != nil || ownerID == userID {
		return
	}
	if err := s.notifier.PublishUser(ctx, ownerID, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to notify owner", "owner_id", ownerID, "error", err)
	}
}

func (s *ReactionService) owner(ctx context.Context, target models.TargetType, id uint) (uint, error) {
	if target == models.TargetComment {
		c, err := s.store.Comments.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		return c.AuthorID, nil
	}
	p, err := s.store.Posts.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.AuthorID, nil
}
