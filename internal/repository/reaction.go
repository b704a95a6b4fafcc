package repository

import (
	"context"
	"errors"
	"time"

	"agora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionRepository stores one reaction per (target, user).
type ReactionRepository interface {
	// Set makes kind the user's reaction to the target in a single upsert.
	Set(ctx context.Context, target models.TargetType, targetID, userID uint, kind models.ReactionKind) error
	// Clear removes the user's reaction only if it is kind. It reports whether a row was removed.
	Clear(ctx context.Context, target models.TargetType, targetID, userID uint, kind models.ReactionKind) (bool, error)
	State(ctx context.Context, target models.TargetType, targetID, userID uint) (models.ReactionKind, error)
	// Sets returns liker and disliker usernames for each target id.
	Sets(ctx context.Context, target models.TargetType, targetIDs []uint) (map[uint]*models.ReactionSet, error)
}

type reactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) Set(ctx context.Context, target models.TargetType, targetID, userID uint, kind models.ReactionKind) error {
	now := time.Now().UTC()
	row := models.Reaction{
		TargetType: target,
		TargetID:   targetID,
		UserID:     userID,
		Kind:       kind,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := r.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "updated_at"}),
	}).Create(&row).Error
	return translate(err, target.Label()+" does not exist")
}

func (r *reactionRepository) Clear(ctx context.Context, target models.TargetType, targetID, userID uint, kind models.ReactionKind) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ? AND kind = ?", target, targetID, userID, kind).
		Delete(&models.Reaction{})
	if res.Error != nil {
		return false, translate(res.Error, target.Label()+" does not exist")
	}
	return res.RowsAffected > 0, nil
}

func (r *reactionRepository) State(ctx context.Context, target models.TargetType, targetID, userID uint) (models.ReactionKind, error) {
	var row models.Reaction
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ?", target, targetID, userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ReactionNone, nil
	}
	if err != nil {
		return models.ReactionNone, translate(err, "")
	}
	return row.Kind, nil
}

func (r *reactionRepository) Sets(ctx context.Context, target models.TargetType, targetIDs []uint) (map[uint]*models.ReactionSet, error) {
	sets := make(map[uint]*models.ReactionSet, len(targetIDs))
	for _, id := range targetIDs {
		sets[id] = &models.ReactionSet{Likes: []string{}, Dislikes: []string{}}
	}
	if len(targetIDs) == 0 {
		return sets, nil
	}

	var rows []struct {
		TargetID uint
		Kind     models.ReactionKind
		Username string
	}
	err := r.db.WithContext(ctx).Model(&models.Reaction{}).
		Select("reactions.target_id, reactions.kind, users.username").
		Joins("JOIN users ON users.id = reactions.user_id").
		Where("reactions.target_type = ? AND reactions.target_id IN ?", target, targetIDs).
		Order("reactions.created_at ASC, users.username ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "")
	}

	for _, row := range rows {
		set, ok := sets[row.TargetID]
		if !ok {
			continue
		}
		switch row.Kind {
		case models.ReactionLike:
			set.Likes = append(set.Likes, row.Username)
		case models.ReactionDislike:
			set.Dislikes = append(set.Dislikes, row.Username)
		}
	}
	return sets, nil
}
