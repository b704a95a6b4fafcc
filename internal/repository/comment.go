package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	// Lock share-locks an existing comment and returns its post id.
	Lock(ctx context.Context, id uint) (uint, error)
	List(ctx context.Context, limit, offset int) ([]*models.Comment, int64, error)
	// ListByPosts returns the comments of postIDs oldest first.
	ListByPosts(ctx context.Context, postIDs []uint) ([]*models.Comment, error)
	UpdateText(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return translate(r.db.WithContext(ctx).Create(comment).Error, MsgCommentNotFound)
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Post").
		First(&comment, id).Error
	if err != nil {
		return nil, translate(err, MsgCommentNotFound)
	}
	return &comment, nil
}

func (r *commentRepository) Lock(ctx context.Context, id uint) (uint, error) {
	var postID uint
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
		Select("post_id").Where("id = ?", id).Take(&postID).Error
	if err != nil {
		return 0, translate(err, MsgCommentNotFound)
	}
	return postID, nil
}

func (r *commentRepository) List(ctx context.Context, limit, offset int) ([]*models.Comment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, MsgCommentNotFound)
	}
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Post").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, 0, translate(err, MsgCommentNotFound)
	}
	return comments, total, nil
}

func (r *commentRepository) ListByPosts(ctx context.Context, postIDs []uint) ([]*models.Comment, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Post").
		Where("post_id IN ?", postIDs).
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, translate(err, MsgCommentNotFound)
	}
	return comments, nil
}

// UpdateText changes only the text. Post and author are fixed at creation.
func (r *commentRepository) UpdateText(ctx context.Context, comment *models.Comment) error {
	res := r.db.WithContext(ctx).Model(comment).
		Select("text", "updated_at").
		Updates(comment)
	if res.Error == nil && res.RowsAffected == 0 {
		return models.NewNotFoundError(MsgCommentNotFound)
	}
	return translate(res.Error, MsgCommentNotFound)
}

// Delete removes the comment and its reactions.
func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetComment, id).
			Delete(&models.Reaction{}).Error; err != nil {
			return translate(err, MsgCommentNotFound)
		}
		res := tx.Delete(&models.Comment{}, id)
		if res.Error != nil {
			return translate(res.Error, MsgCommentNotFound)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError(MsgCommentNotFound)
		}
		return nil
	})
}
