package models

import "time"

// TargetType names the kind of entity a reaction points at.
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
)

// Label is the capitalized display name used in API messages.
func (t TargetType) Label() string {
	switch t {
	case TargetPost:
		return "Post"
	case TargetComment:
		return "Comment"
	}
	return string(t)
}

// ReactionKind is the stored half of the tri-state reaction. The third state,
// none, is the absence of a row.
type ReactionKind string

const (
	ReactionNone    ReactionKind = ""
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// Reaction is one user's opinion of one post or comment. The primary key makes
// liking and disliking the same target at once unrepresentable.
type Reaction struct {
	TargetType TargetType   `gorm:"primaryKey;size:16" json:"target_type"`
	TargetID   uint         `gorm:"primaryKey;autoIncrement:false" json:"target_id"`
	UserID     uint         `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	User       User         `gorm:"foreignKey:UserID" json:"-"`
	Kind       ReactionKind `gorm:"size:16;not null" json:"kind"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// ReactionSet holds the usernames on each side of an entity's reactions.
type ReactionSet struct {
	Likes    []string `json:"likes"`
	Dislikes []string `json:"dislikes"`
}
