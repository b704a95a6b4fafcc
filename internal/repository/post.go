package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// Lock fails with NOT_FOUND unless the post exists, and holds a share
	// lock on it until the surrounding transaction ends.
	Lock(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]*models.Post, int64, error)
	ListByAuthors(ctx context.Context, authorIDs []uint) ([]*models.Post, error)
	CountByAuthors(ctx context.Context, authorIDs []uint) (map[uint]int64, error)
	// IDsTouchedBy returns posts the user wrote, commented on or reacted to.
	IDsTouchedBy(ctx context.Context, userID uint) ([]uint, error)
	Update(ctx context.Context, post *models.Post) error
	SetImage(ctx context.Context, id uint, image string) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return translate(r.db.WithContext(ctx).Create(post).Error, MsgPostNotFound)
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		return nil, translate(err, MsgPostNotFound)
	}
	return &post, nil
}

func (r *postRepository) Lock(ctx context.Context, id uint) error {
	var found uint
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
		Select("id").Where("id = ?", id).Take(&found).Error
	return translate(err, MsgPostNotFound)
}

// List returns posts newest first.
func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, MsgPostNotFound)
	}
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, translate(err, MsgPostNotFound)
	}
	return posts, total, nil
}

func (r *postRepository) ListByAuthors(ctx context.Context, authorIDs []uint) ([]*models.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("author_id IN ?", authorIDs).
		Order("id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, MsgPostNotFound)
	}
	return posts, nil
}

func (r *postRepository) CountByAuthors(ctx context.Context, authorIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(authorIDs))
	if len(authorIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		AuthorID uint
		Total    int64
	}
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", authorIDs).
		Group("author_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, MsgPostNotFound)
	}
	for _, row := range rows {
		counts[row.AuthorID] = row.Total
	}
	return counts, nil
}

func (r *postRepository) IDsTouchedBy(ctx context.Context, userID uint) ([]uint, error) {
	db := r.db.WithContext(ctx)
	var authored, commented, reacted, viaComments []uint

	if err := db.Model(&models.Post{}).Where("author_id = ?", userID).Pluck("id", &authored).Error; err != nil {
		return nil, translate(err, MsgPostNotFound)
	}
	if err := db.Model(&models.Comment{}).Where("author_id = ?", userID).Distinct().Pluck("post_id", &commented).Error; err != nil {
		return nil, translate(err, MsgPostNotFound)
	}
	if err := db.Model(&models.Reaction{}).
		Where("user_id = ? AND target_type = ?", userID, models.TargetPost).
		Pluck("target_id", &reacted).Error; err != nil {
		return nil, translate(err, MsgPostNotFound)
	}
	commentIDs := db.Model(&models.Reaction{}).
		Select("target_id").
		Where("user_id = ? AND target_type = ?", userID, models.TargetComment)
	if err := db.Model(&models.Comment{}).Where("id IN (?)", commentIDs).Distinct().Pluck("post_id", &viaComments).Error; err != nil {
		return nil, translate(err, MsgPostNotFound)
	}

	seen := make(map[uint]struct{})
	var ids []uint
	for _, group := range [][]uint{authored, commented, reacted, viaComments} {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Update writes description and image. Author and timestamps of creation never change.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	res := r.db.WithContext(ctx).Model(post).
		Select("description", "image", "updated_at").
		Updates(post)
	if res.Error == nil && res.RowsAffected == 0 {
		return models.NewNotFoundError(MsgPostNotFound)
	}
	return translate(res.Error, MsgPostNotFound)
}

func (r *postRepository) SetImage(ctx context.Context, id uint, image string) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Update("image", image)
	if res.Error == nil && res.RowsAffected == 0 {
		return models.NewNotFoundError(MsgPostNotFound)
	}
	return translate(res.Error, MsgPostNotFound)
}

// Delete removes the post, its comments and every reaction on either.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("target_type = ? AND target_id IN (?)", models.TargetComment, commentIDs).
			Delete(&models.Reaction{}).Error; err != nil {
			return translate(err, MsgPostNotFound)
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetPost, id).
			Delete(&models.Reaction{}).Error; err != nil {
			return translate(err, MsgPostNotFound)
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return translate(err, MsgPostNotFound)
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return translate(res.Error, MsgPostNotFound)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError(MsgPostNotFound)
		}
		return nil
	})
}
