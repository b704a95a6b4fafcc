package service

import (
	"context"

	"agora/internal/middleware"
	"agora/internal/models"
)

// LoginResult is a token pair plus the signed-in user.
type LoginResult struct {
	Access  string
	Refresh string
	User    *models.User
}

type AuthService struct {
	users  *UserService
	tokens *middleware.Tokens
}

func NewAuthService(users *UserService, tokens *middleware.Tokens) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	access, err := s.tokens.Issue(user.ID, middleware.AccessToken)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, err := s.tokens.Issue(user.ID, middleware.RefreshToken)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	middleware.Logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{Access: access, Refresh: refresh, User: user}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := s.tokens.Parse(ctx, refresh, middleware.RefreshToken)
	if err != nil {
		return "", models.NewUnauthorizedError("Token is invalid or expired")
	}
	if _, err := s.users.Profile(ctx, claims.UserID); err != nil {
		return "", models.NewUnauthorizedError("Token is invalid or expired")
	}
	access, err := s.tokens.Issue(claims.UserID, middleware.AccessToken)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return access, nil
}

// Logout revokes the access token and, when given, the refresh token.
func (s *AuthService) Logout(ctx context.Context, access *middleware.Claims, refresh string) error {
	if err := s.tokens.Revoke(ctx, access); err != nil {
		return models.NewInternalError(err)
	}
	if refresh == "" {
		return nil
	}
	claims, err := s.tokens.Parse(ctx, refresh, middleware.RefreshToken)
	if err != nil || claims.UserID != access.UserID {
		return nil
	}
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
