// Package policy decides who may change or remove users, posts and comments.
package policy

import (
	"context"
	"errors"

	"agora/internal/models"
)

// Messages returned to clients when a check fails.
const (
	MsgNotAuthorized = "You are not authorized to perform this action"
	MsgStaffOnly     = "Unauthorized"
)

// Actor is the identity a check runs against.
type Actor struct {
	ID      uint
	IsStaff bool
}

// CanMutate reports whether actor may update or delete something owned by ownerID.
func CanMutate(actor Actor, ownerID uint) bool {
	return actor.IsStaff || (actor.ID != 0 && actor.ID == ownerID)
}

// IsStaff reports whether actor may run staff-only operations.
func IsStaff(actor Actor) bool {
	return actor.IsStaff
}

// Resolver loads the user behind an authenticated id.
type Resolver interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// Gate turns the predicates into UNAUTHORIZED errors for services.
type Gate struct {
	users Resolver
}

func NewGate(users Resolver) *Gate {
	return &Gate{users: users}
}

// Actor resolves userID. Unknown and deactivated accounts are unauthorized.
func (g *Gate) Actor(ctx context.Context, userID uint) (Actor, error) {
	if userID == 0 {
		return Actor{}, models.NewUnauthorizedError(MsgNotAuthorized)
	}
	u, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return Actor{}, models.NewUnauthorizedError(MsgNotAuthorized)
		}
		return Actor{}, err
	}
	if !u.IsActive() {
		return Actor{}, models.NewUnauthorizedError(MsgNotAuthorized)
	}
	return Actor{ID: u.ID, IsStaff: u.IsStaff}, nil
}

// AuthorizeOwner fails unless userID owns ownerID's resource or is staff.
func (g *Gate) AuthorizeOwner(ctx context.Context, userID, ownerID uint) (Actor, error) {
	actor, err := g.Actor(ctx, userID)
	if err != nil {
		return Actor{}, err
	}
	if !CanMutate(actor, ownerID) {
		return actor, models.NewUnauthorizedError(MsgNotAuthorized)
	}
	return actor, nil
}

// AuthorizeStaff fails unless userID is an active staff account.
func (g *Gate) AuthorizeStaff(ctx context.Context, userID uint) (Actor, error) {
	actor, err := g.Actor(ctx, userID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeUnauthorized {
			return Actor{}, models.NewUnauthorizedError(MsgStaffOnly)
		}
		return Actor{}, err
	}
	if !IsStaff(actor) {
		return actor, models.NewUnauthorizedError(MsgStaffOnly)
	}
	return actor, nil
}
