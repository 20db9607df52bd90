// Package ctxkeys defines typed context keys shared between middleware and handlers.
// Both middleware and handlers import this package, but neither imports the other.
package ctxkeys

import "context"

// Key is a typed string used as context key to prevent collisions.
type Key string

const (
	UserID   Key = "userID"
	UserRole Key = "userRole"
)

// Roles known to the dashboard.
const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

// RoleLevel maps role names to permission levels.
var RoleLevel = map[string]int{
	RoleViewer: 1,
	RoleAdmin:  2,
}

// GetUserID returns the authenticated user id, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserID).(string)
	return id
}
