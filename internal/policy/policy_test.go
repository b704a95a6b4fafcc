package policy

import (
	"context"
	"errors"
	"testing"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver map[uint]*models.User

func (s stubResolver) GetByID(_ context.Context, id uint) (*models.User, error) {
	if id == 99 {
		return nil, errors.New("db down")
	}
	u, ok := s[id]
	if !ok {
		return nil, models.NewNotFoundError("User not found")
	}
	return u, nil
}

func users() stubResolver {
	return stubResolver{
		1: {ID: 1, Username: "alice", Status: models.UserActive},
		2: {ID: 2, Username: "bob", Status: models.UserActive},
		3: {ID: 3, Username: "root", IsStaff: true, Status: models.UserActive},
		4: {ID: 4, Username: "gone", Status: models.UserDeactivated},
	}
}

func TestCanMutate(t *testing.T) {
	tests := []struct {
		name    string
		actor   Actor
		ownerID uint
		want    bool
	}{
		{"owner", Actor{ID: 1}, 1, true},
		{"other user", Actor{ID: 2}, 1, false},
		{"staff non-owner", Actor{ID: 3, IsStaff: true}, 1, true},
		{"anonymous against orphan", Actor{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanMutate(tt.actor, tt.ownerID))
		})
	}
}

func TestGate_AuthorizeOwner(t *testing.T) {
	g := NewGate(users())
	ctx := context.Background()

	actor, err := g.AuthorizeOwner(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), actor.ID)

	_, err = g.AuthorizeOwner(ctx, 2, 1)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))

	_, err = g.AuthorizeOwner(ctx, 3, 1)
	assert.NoError(t, err)

	_, err = g.AuthorizeOwner(ctx, 4, 4)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err), "deactivated owners lose access")

	_, err = g.AuthorizeOwner(ctx, 42, 1)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))

	_, err = g.AuthorizeOwner(ctx, 99, 1)
	require.Error(t, err)
	assert.Empty(t, models.ErrorCode(err))
}

func TestGate_AuthorizeStaff(t *testing.T) {
	g := NewGate(users())
	ctx := context.Background()

	_, err := g.AuthorizeStaff(ctx, 3)
	assert.NoError(t, err)

	_, err = g.AuthorizeStaff(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, MsgStaffOnly, err.Error())

	_, err = g.AuthorizeStaff(ctx, 0)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))
}
