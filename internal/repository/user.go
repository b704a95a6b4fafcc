package repository

import (
	"context"
	"strings"

	"agora/internal/database"
	"agora/internal/models"

	"gorm.io/gorm"
)

// MsgUserExists is returned when a username or email is already registered.
const MsgUserExists = "A user with that username or email already exists."

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	// GetByID loads a user in any lifecycle state.
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// GetActiveByID loads a user and reports deactivated accounts as missing.
	GetActiveByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ListActive(ctx context.Context, limit, offset int) ([]*models.User, int64, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*models.User, int64, error)
	UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error)
	EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	SetPassword(ctx context.Context, id uint, hash string) error
	SetStatus(ctx context.Context, id uint, status models.UserStatus) error
	SetStaff(ctx context.Context, id uint, staff bool) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.Status == "" {
		user.Status = models.UserActive
	}
	err := r.db.WithContext(ctx).Create(user).Error
	if database.IsUniqueViolation(err) {
		return models.NewValidationError(MsgUserExists)
	}
	return translate(err, MsgUserNotFound)
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, MsgUserNotFound)
	}
	return &user, nil
}

func (r *userRepository) GetActiveByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("status = ?", models.UserActive).
		First(&user, id).Error
	if err != nil {
		return nil, translate(err, MsgUserNotFound)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err, MsgUserNotFound)
	}
	return &user, nil
}

func (r *userRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.User{}).Where("status = ?", models.UserActive)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, translate(err, MsgUserNotFound)
	}
	var users []*models.User
	if err := base.Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, translate(err, MsgUserNotFound)
	}
	return users, total, nil
}

// Search matches query against username, first and last name, ignoring case.
func (r *userRepository) Search(ctx context.Context, query string, limit, offset int) ([]*models.User, int64, error) {
	like := containsPattern(query)
	base := r.db.WithContext(ctx).Model(&models.User{}).
		Where("status = ?", models.UserActive).
		Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\')`,
			like, like, like)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, translate(err, MsgUserNotFound)
	}
	var users []*models.User
	if err := base.Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, translate(err, MsgUserNotFound)
	}
	return users, total, nil
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error) {
	return r.taken(ctx, "username", username, excludeID)
}

func (r *userRepository) EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	return r.taken(ctx, "LOWER(email)", strings.ToLower(email), excludeID)
}

func (r *userRepository) taken(ctx context.Context, column, value string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.User{}).Where(column+" = ?", value)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, translate(err, MsgUserNotFound)
	}
	return count > 0, nil
}

// UpdateProfile writes the editable profile columns of user.
func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Model(user).
		Select("username", "email", "first_name", "last_name", "bio", "image", "updated_at").
		Updates(user)
	if database.IsUniqueViolation(res.Error) {
		return models.NewValidationError(MsgUserExists)
	}
	if res.Error == nil && res.RowsAffected == 0 {
		return models.NewNotFoundError(MsgUserNotFound)
	}
	return translate(res.Error, MsgUserNotFound)
}

func (r *userRepository) SetPassword(ctx context.Context, id uint, hash string) error {
	return r.updateColumn(ctx, id, "password", hash)
}

func (r *userRepository) SetStatus(ctx context.Context, id uint, status models.UserStatus) error {
	return r.updateColumn(ctx, id, "status", status)
}

func (r *userRepository) SetStaff(ctx context.Context, id uint, staff bool) error {
	return r.updateColumn(ctx, id, "is_staff", staff)
}

func (r *userRepository) updateColumn(ctx context.Context, id uint, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return translate(res.Error, MsgUserNotFound)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(MsgUserNotFound)
	}
	return nil
}
