package authkit

import "context"

// Checker provides permission checking capabilities for a specific user.
// It is typically created by the Service after token verification and stored
// in context for use in handlers. Every check resolves through the
// nearest-ancestor-wins walk, so results always reflect the current
// assignment data.
type Checker struct {
	userID  string
	service *Service
}

// NewChecker creates a new Checker for a user.
func NewChecker(userID string, service *Service) *Checker {
	return &Checker{
		userID:  userID,
		service: service,
	}
}

// UserID returns the user ID this checker is for.
func (c *Checker) UserID() string {
	return c.userID
}

// HasPermission checks if the user's effective permission set at a namespace
// contains the named permission.
//
// Example:
//
//	if checker.HasPermission(ctx, team.ID, "user_manage") {
//	    // User can manage users in this team
//	}
func (c *Checker) HasPermission(ctx context.Context, namespaceID, permissionName string) bool {
	ok, err := c.service.HasPermission(ctx, c.userID, namespaceID, permissionName)
	if err != nil {
		return false
	}
	return ok
}

// HasAnyPermission checks if the user holds at least one of the named
// permissions at a namespace.
func (c *Checker) HasAnyPermission(ctx context.Context, namespaceID string, permissionNames []string) bool {
	perms, err := c.service.EffectivePermissions(ctx, c.userID, namespaceID)
	if err != nil {
		return false
	}
	held := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		held[p.Name] = struct{}{}
	}
	for _, name := range permissionNames {
		if _, ok := held[name]; ok {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if the user holds every named permission at a
// namespace.
func (c *Checker) HasAllPermissions(ctx context.Context, namespaceID string, permissionNames []string) bool {
	perms, err := c.service.EffectivePermissions(ctx, c.userID, namespaceID)
	if err != nil {
		return false
	}
	held := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		held[p.Name] = struct{}{}
	}
	for _, name := range permissionNames {
		if _, ok := held[name]; !ok {
			return false
		}
	}
	return true
}

// EffectivePermissions returns the user's effective permission set at a
// namespace. Empty when the user has no governing role there.
func (c *Checker) EffectivePermissions(ctx context.Context, namespaceID string) []Permission {
	perms, err := c.service.EffectivePermissions(ctx, c.userID, namespaceID)
	if err != nil {
		return nil
	}
	return perms
}

// GoverningRole returns the role governing the user at a namespace, or nil
// when none applies.
func (c *Checker) GoverningRole(ctx context.Context, namespaceID string) *Role {
	role, _, err := c.service.GoverningRole(ctx, c.userID, namespaceID)
	if err != nil {
		return nil
	}
	return role
}

// CanAssignRole checks if the user may assign the target role at a
// namespace.
//
// Example:
//
//	if checker.CanAssignRole(ctx, team.ID, managerRole.ID) {
//	    // User outranks the manager role here
//	}
func (c *Checker) CanAssignRole(ctx context.Context, namespaceID, targetRoleID string) bool {
	ok, err := c.service.CanAssignRoleAt(ctx, c.userID, namespaceID, targetRoleID)
	if err != nil {
		return false
	}
	return ok
}

// CanManageUser checks if the user may manage another user at a namespace.
func (c *Checker) CanManageUser(ctx context.Context, namespaceID, targetUserID string) bool {
	ok, err := c.service.CanManageUser(ctx, c.userID, targetUserID, namespaceID)
	if err != nil {
		return false
	}
	return ok
}

// AssignableRoles returns the roles of a namespace the user may assign,
// given their governing role at that namespace.
func (c *Checker) AssignableRoles(ctx context.Context, namespaceID string) []Role {
	role, _, err := c.service.GoverningRole(ctx, c.userID, namespaceID)
	if err != nil || role == nil {
		return nil
	}
	assignable, err := c.service.AssignableRoles(ctx, role.Name, namespaceID)
	if err != nil {
		return nil
	}
	return assignable
}
