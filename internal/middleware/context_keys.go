package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey = contextKey("userID")
	rolesKey  = contextKey("roles")
)

// WithUser returns a copy of ctx carrying the authenticated user and roles.
func WithUser(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, rolesKey, roles)
}

// GetUserIDFromContext retrieves the authenticated user ID from the request context.
// It returns the user ID and a boolean indicating if it was found.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, ok := c.Request.Context().Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

// GetRolesFromContext retrieves the roles granted by the token.
func GetRolesFromContext(c *gin.Context) []string {
	roles, _ := c.Request.Context().Value(rolesKey).([]string)
	return roles
}
