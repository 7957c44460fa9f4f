package utils

import "context"

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "email"
	UserRoleKey  contextKey = "role"
)

const (
	RoleClient     = "CLIENT"
	RoleAdmin      = "ADMIN"
	RoleManagement = "MANAGEMENT"
)

// SetUserContext sets user info into context (called by middleware)
func SetUserContext(ctx context.Context, id, email, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id)
	ctx = context.WithValue(ctx, UserEmailKey, email)
	ctx = context.WithValue(ctx, UserRoleKey, role)
	return ctx
}

// GetUserIDFromContext retrieves userID safely
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func GetUserEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

func GetUserRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// IsStaff reports whether the context user can act on any order.
func IsStaff(ctx context.Context) bool {
	role := GetUserRoleFromContext(ctx)
	return role == RoleAdmin || role == RoleManagement
}
