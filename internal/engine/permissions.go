package engine

import (
	"fmt"

	"library-backend/internal/metadata"
)

// Actions, named after the permission suffix they require. Reads only need
// a permission on entities with GuardReads.
const (
	ActionIndex   = "index"
	ActionShow    = "show"
	ActionStore   = "store"
	ActionUpdate  = "update"
	ActionDestroy = "destroy"
)

// PermissionName returns the permission guarding action on entity, e.g. "author.store".
func PermissionName(entity *metadata.Entity, action string) string {
	return entity.Singular + "." + action
}

// CheckPermission verifies that the user may perform action on entity.
// Returns nil if allowed, UNAUTHORIZED without a user, FORBIDDEN otherwise.
func CheckPermission(user *metadata.UserContext, entity *metadata.Entity, action string) error {
	if user == nil {
		return UnauthorizedError("Authentication required")
	}

	// Admin bypasses all permission checks
	if user.IsAdmin() {
		return nil
	}

	perm := PermissionName(entity, action)
	if !user.Can(perm) {
		return ForbiddenError(fmt.Sprintf("Permission denied: %s", perm))
	}
	return nil
}
