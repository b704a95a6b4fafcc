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
	"agora/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// Account messages.
const (
	MsgInvalidCredentials = "Invalid username or password"
	MsgPasswordMismatch   = "Passwords don't match"
	MsgUsernameTaken      = "A user with that username already exists."
	MsgEmailTaken         = "user with this email already exists."
)

type UserService struct {
	store    *repository.Store
	gate     *policy.Gate
	media    *Media
	cache    *cache.Cache
	notifier *notifications.Notifier
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Bio       string
	Image     *Upload
}

// UpdateUserInput leaves nil fields unchanged.
type UpdateUserInput struct {
	ActorID   uint
	UserID    uint
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Bio       *string
	Image     *Upload
}

type ChangePasswordInput struct {
	ActorID   uint
	UserID    uint
	Password1 string
	Password2 string
}

func NewUserService(
	store *repository.Store,
	gate *policy.Gate,
	media *Media,
	c *cache.Cache,
	notifier *notifications.Notifier,
) *UserService {
	return &UserService{store: store, gate: gate, media: media, cache: c, notifier: notifier}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) checkUnique(ctx context.Context, username, email string, excludeID uint) error {
	if username != "" {
		taken, err := s.store.Users.UsernameTaken(ctx, username, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return models.NewValidationError(MsgUsernameTaken)
		}
	}
	if email != "" {
		taken, err := s.store.Users.EmailTaken(ctx, email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return models.NewValidationError(MsgEmailTaken)
		}
	}
	return nil
}

// Register creates an active, non-staff account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	defer observability.Track("user", "register")()

	in.Email = normalizeEmail(in.Email)
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Image != nil {
		if _, err := s.media.Check(in.Image); err != nil {
			return nil, err
		}
	}
	if err := s.checkUnique(ctx, in.Username, in.Email, 0); err != nil {
		return nil, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Bio:       in.Bio,
		Status:    models.UserActive,
	}
	var saved string
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := tx.Users.Create(ctx, user); err != nil {
			return err
		}
		if in.Image == nil {
			return nil
		}
		key := storage.UserImageKey(user.ID, in.Image.Filename)
		if err := s.media.Save(ctx, "user", key, in.Image); err != nil {
			return err
		}
		saved = key
		user.Image = key
		return tx.Users.UpdateProfile(ctx, user)
	})
	if err != nil {
		s.media.Discard(ctx, saved)
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// ListUsers pages through active users with their posts.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]UserDetail, int64, error) {
	users, total, err := s.store.Users.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	details, err := describeUsers(ctx, s.store, users)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

// Profile returns an active user. Deactivated users are reported as missing.
func (s *UserService) Profile(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		u, err := s.store.Users.GetActiveByID(ctx, id)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser returns an active user with their posts.
func (s *UserService) GetUser(ctx context.Context, id uint) (*UserDetail, error) {
	user, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := describeUsers(ctx, s.store, []*models.User{user})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (s *UserService) UpdateUser(ctx context.Context, in UpdateUserInput) (*UserDetail, error) {
	defer observability.Track("user", "update")()

	user, err := s.store.Users.GetActiveByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.AuthorizeOwner(ctx, in.ActorID, user.ID); err != nil {
		return nil, err
	}

	var newUsername, newEmail string
	if in.Username != nil && *in.Username != user.Username {
		if err := validation.ValidateUsername(*in.Username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		newUsername = *in.Username
	}
	if in.Email != nil && normalizeEmail(*in.Email) != user.Email {
		email := normalizeEmail(*in.Email)
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		newEmail = email
	}
	if err := s.checkUnique(ctx, newUsername, newEmail, user.ID); err != nil {
		return nil, err
	}

	if newUsername != "" {
		user.Username = newUsername
	}
	if newEmail != "" {
		user.Email = newEmail
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Bio != nil {
		user.Bio = *in.Bio
	}
	var saved string
	if in.Image != nil {
		key := storage.UserImageKey(user.ID, in.Image.Filename)
		if err := s.media.Save(ctx, "user", key, in.Image); err != nil {
			return nil, err
		}
		if key != user.Image {
			saved = key
		}
		user.Image = key
	}

	if err := s.store.Users.UpdateProfile(ctx, user); err != nil {
		s.media.Discard(ctx, saved)
		return nil, err
	}
	s.invalidateUser(ctx, user.ID)
	return s.GetUser(ctx, user.ID)
}

// DeactivateUser soft-deletes an account. Only staff may do this.
func (s *UserService) DeactivateUser(ctx context.Context, actorID, userID uint) error {
	defer observability.Track("user", "deactivate")()

	if _, err := s.gate.AuthorizeStaff(ctx, actorID); err != nil {
		return err
	}
	user, err := s.store.Users.GetActiveByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.Users.SetStatus(ctx, user.ID, models.UserDeactivated); err != nil {
		return err
	}
	s.cache.InvalidateUser(ctx, user.ID)

	ev := notifications.Event{Type: notifications.EventUserDeactivated, ActorID: actorID, EntityID: user.ID}
	if err := s.notifier.PublishBroadcast(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish user event", "error", err)
	}
	middleware.Logger.InfoContext(ctx, "user deactivated", "target_user_id", user.ID, "actor_id", actorID)
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	user, err := s.store.Users.GetActiveByID(ctx, in.UserID)
	if err != nil {
		return err
	}
	if _, err := s.gate.AuthorizeOwner(ctx, in.ActorID, user.ID); err != nil {
		return err
	}
	if err := validation.ValidatePassword(in.Password1); err != nil {
		return models.NewValidationError(err.Error())
	}
	if in.Password1 != in.Password2 {
		return models.NewValidationError(MsgPasswordMismatch)
	}

	hash, err := hashPassword(in.Password1)
	if err != nil {
		return err
	}
	return s.store.Users.SetPassword(ctx, user.ID, hash)
}

// SearchUsers matches active users by username, first or last name.
func (s *UserService) SearchUsers(ctx context.Context, query string, limit, offset int) ([]SearchResult, int64, error) {
	users, total, err := s.store.Users.Search(ctx, strings.TrimSpace(query), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	counts, err := s.store.Posts.CountByAuthors(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	out := make([]SearchResult, 0, len(users))
	for _, u := range users {
		out = append(out, SearchResult{User: *u, PostsCount: counts[u.ID]})
	}
	return out, total, nil
}

// Authenticate checks a username and password pair. Deactivated accounts cannot sign in.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.Users.GetByUsername(ctx, username)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil, models.NewValidationError(MsgInvalidCredentials)
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil || !user.IsActive() {
		return nil, models.NewValidationError(MsgInvalidCredentials)
	}
	return user, nil
}

// EnsureStaff creates or promotes a staff account for local development.
func (s *UserService) EnsureStaff(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.Users.GetByUsername(ctx, username)
	if err != nil && models.ErrorCode(err) != models.CodeNotFound {
		return nil, err
	}
	if user == nil {
		user, err = s.Register(ctx, RegisterInput{
			Username: username,
			Email:    username + "@agora.local",
			Password: password,
		})
		if err != nil {
			return nil, err
		}
	}
	if !user.IsStaff {
		if err := s.store.Users.SetStaff(ctx, user.ID, true); err != nil {
			return nil, err
		}
		user.IsStaff = true
		s.cache.InvalidateUser(ctx, user.ID)
	}
	return user, nil
}

// invalidateUser drops the cached profile and every cached post that shows it.
func (s *UserService) invalidateUser(ctx context.Context, userID uint) {
	s.cache.InvalidateUser(ctx, userID)
	ids, err := s.store.Posts.IDsTouchedBy(ctx, userID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to collect posts for invalidation", "user_id", userID, "error", err)
		return
	}
	s.cache.InvalidatePosts(ctx, ids...)
}
