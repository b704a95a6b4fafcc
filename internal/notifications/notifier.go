// Package notifications publishes domain events to Redis pub/sub for any
// downstream consumer. Delivery to browsers is out of scope.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	EventPostCreated            = "post_created"
	EventPostUpdated            = "post_updated"
	EventPostDeleted            = "post_deleted"
	EventCommentCreated         = "comment_created"
	EventPostReactionUpdated    = "post_reaction_updated"
	EventCommentReactionUpdated = "comment_reaction_updated"
	EventUserDeactivated        = "user_deactivated"
)

// BroadcastChannel receives every event.
const BroadcastChannel = "agora:events"

// Event is the JSON payload published for each change.
type Event struct {
	Type      string         `json:"type"`
	ActorID   uint           `json:"actor_id,omitempty"`
	EntityID  uint           `json:"entity_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier publishes events. A nil Redis client makes every call a no-op.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UserChannel is the per-user channel for events about a user's own content.
func UserChannel(userID uint) string {
	return fmt.Sprintf("agora:user:%d", userID)
}

// PublishBroadcast sends ev to BroadcastChannel.
func (n *Notifier) PublishBroadcast(ctx context.Context, ev Event) error {
	return n.publish(ctx, BroadcastChannel, ev)
}

// PublishUser sends ev to userID's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, ev Event) error {
	return n.publish(ctx, UserChannel(userID), ev)
}

func (n *Notifier) publish(ctx context.Context, channel string, ev Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, channel, raw).Err()
}
