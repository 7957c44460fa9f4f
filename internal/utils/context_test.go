package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserContextRoundTrip(t *testing.T) {
	ctx := SetUserContext(context.Background(), "user-1", "user-1@example.com", RoleClient)

	id, ok := GetUserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)
	assert.Equal(t, "user-1@example.com", GetUserEmailFromContext(ctx))
	assert.Equal(t, RoleClient, GetUserRoleFromContext(ctx))
}

func TestGetUserIDFromContext_Empty(t *testing.T) {
	_, ok := GetUserIDFromContext(context.Background())
	assert.False(t, ok)

	// An empty id counts as unauthenticated.
	ctx := SetUserContext(context.Background(), "", "", RoleClient)
	_, ok = GetUserIDFromContext(ctx)
	assert.False(t, ok)
}

func TestIsStaff(t *testing.T) {
	assert.True(t, IsStaff(SetUserContext(context.Background(), "a", "", RoleAdmin)))
	assert.True(t, IsStaff(SetUserContext(context.Background(), "m", "", RoleManagement)))
	assert.False(t, IsStaff(SetUserContext(context.Background(), "c", "", RoleClient)))
	assert.False(t, IsStaff(context.Background()))
}
