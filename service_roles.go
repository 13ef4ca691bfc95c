package authkit

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// ROLE CATALOG
// ============================================================================

// DefineRole creates a role owned by a namespace. Role names are unique
// within their origin namespace; a duplicate is rejected with ErrConflict and
// a missing namespace with ErrNotFound. Use the root namespace as origin for
// globally defined roles.
//
// Example:
//
//	role, err := service.DefineRole(ctx, "manager", root.ID, authkit.RoleSpec{
//	    DisplayName: "Team manager",
//	    IsSystem:    true,
//	})
func (s *Service) DefineRole(ctx context.Context, name, originNamespaceID string, spec RoleSpec) (*Role, error) {
	if name == "" {
		return nil, NewError(ErrConflict, "role name cannot be empty")
	}
	if _, err := s.GetNamespace(ctx, originNamespaceID); err != nil {
		return nil, err
	}

	role := &Role{
		Name:              name,
		DisplayName:       spec.DisplayName,
		Description:       spec.Description,
		IsSystem:          spec.IsSystem,
		OriginNamespaceID: originNamespaceID,
	}

	result, err := s.db.NewInsert().Model(role).Exec(ctx)
	err = dbkit.WithErr(result, err, "DefineRole").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrConflict, "role already defined in this namespace").
				WithNamespace(originNamespaceID)
		}
		return nil, err
	}
	return role, nil
}

// RoleSpec carries the optional attributes of a role definition.
type RoleSpec struct {
	DisplayName string
	Description string
	IsSystem    bool
}

// GetRole loads a role by ID. Returns ErrNotFound if absent.
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	var role Role
	err := dbkit.WithErr1(s.db.NewSelect().Model(&role).Where("r.id = ?", roleID).Limit(1).Scan(ctx), "GetRole").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "role does not exist").WithRole(roleID)
		}
		return nil, err
	}
	return &role, nil
}

// GetRoleByName loads a role by (name, origin namespace).
func (s *Service) GetRoleByName(ctx context.Context, name, originNamespaceID string) (*Role, error) {
	var role Role
	err := dbkit.WithErr1(s.db.NewSelect().Model(&role).Where("name = ? AND origin_namespace_id = ?", name, originNamespaceID).Limit(1).Scan(ctx), "GetRoleByName").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "role does not exist").WithNamespace(originNamespaceID)
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles returns all roles owned by a namespace.
func (s *Service) ListRoles(ctx context.Context, originNamespaceID string) ([]Role, error) {
	var roles []Role
	err := dbkit.WithErr1(s.db.NewSelect().Model(&roles).Where("origin_namespace_id = ?", originNamespaceID).Order("name ASC").Scan(ctx), "ListRoles").Err()
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// RenameRole updates a role's name. System roles cannot be renamed.
func (s *Service) RenameRole(ctx context.Context, roleID, newName string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return NewError(ErrSystemRole, "system roles cannot be renamed").WithRole(roleID)
	}
	if newName == "" {
		return NewError(ErrConflict, "role name cannot be empty")
	}

	result, err := s.db.NewUpdate().Table("roles").
		Set("name = ?", newName).
		Set("updated_at = current_timestamp").
		Where("id = ?", roleID).Exec(ctx)
	err = dbkit.WithErr(result, err, "RenameRole").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return NewError(ErrConflict, "role already defined in this namespace").
				WithNamespace(role.OriginNamespaceID)
		}
		return err
	}
	s.invalidateRolePermissions(roleID)
	return nil
}

// DeleteRole removes a role definition. System roles are protected; a role
// still referenced by assignments is rejected with ErrConflict (RESTRICT).
// Permission grants cascade with the role.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return NewError(ErrSystemRole, "system roles cannot be deleted").WithRole(roleID)
	}

	assigned, err := dbkit.Exists[UserNamespaceRole](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("role_id = ?", roleID)
	})
	if err != nil {
		return dbkit.WithErr1(err, "DeleteRole").Err()
	}
	if assigned {
		return NewError(ErrConflict, "role is still assigned to users").WithRole(roleID)
	}

	return s.transaction(ctx, func(db dbkit.IDB) error {
		result, err := db.NewDelete().Table("role_permissions").Where("role_id = ?", roleID).Exec(ctx)
		if err = dbkit.WithErr(result, err, "DeleteRole").Err(); err != nil {
			return err
		}
		result, err = db.NewDelete().Table("roles").Where("id = ?", roleID).Exec(ctx)
		if err = dbkit.WithErr(result, err, "DeleteRole").Err(); err != nil {
			return err
		}
		s.invalidateRolePermissions(roleID)
		return nil
	})
}

// ============================================================================
// PERMISSIONS
// ============================================================================

// CreatePermission registers a globally unique permission identifier.
func (s *Service) CreatePermission(ctx context.Context, name string, spec PermissionSpec) (*Permission, error) {
	if name == "" {
		return nil, NewError(ErrConflict, "permission name cannot be empty")
	}

	perm := &Permission{
		Name:        name,
		DisplayName: spec.DisplayName,
		Description: spec.Description,
		Category:    spec.Category,
		IsSystem:    spec.IsSystem,
	}

	result, err := s.db.NewInsert().Model(perm).Exec(ctx)
	err = dbkit.WithErr(result, err, "CreatePermission").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrConflict, "permission name already exists")
		}
		return nil, err
	}
	return perm, nil
}

// PermissionSpec carries the optional attributes of a permission.
type PermissionSpec struct {
	DisplayName string
	Description string
	Category    string
	IsSystem    bool
}

// GetPermissionByName loads a permission by its stable identifier.
func (s *Service) GetPermissionByName(ctx context.Context, name string) (*Permission, error) {
	var perm Permission
	err := dbkit.WithErr1(s.db.NewSelect().Model(&perm).Where("name = ?", name).Limit(1).Scan(ctx), "GetPermissionByName").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "permission does not exist")
		}
		return nil, err
	}
	return &perm, nil
}

// GrantPermission adds a permission to a role. Granting an already-granted
// permission is a no-op, not an error. A missing role or permission is
// rejected with ErrNotFound.
func (s *Service) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return err
	}
	exists, err := dbkit.Exists[Permission](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", permissionID)
	})
	if err != nil {
		return dbkit.WithErr1(err, "GrantPermission").Err()
	}
	if !exists {
		return NewError(ErrNotFound, "permission does not exist").WithRole(roleID)
	}

	grant := &RolePermission{RoleID: roleID, PermissionID: permissionID}
	result, err := s.db.NewInsert().Model(grant).Exec(ctx)
	err = dbkit.WithErr(result, err, "GrantPermission").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil // idempotent
		}
		return err
	}
	s.invalidateRolePermissions(roleID)
	return nil
}

// RevokePermission removes a permission from a role. Revoking a permission
// that was never granted is a no-op.
func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	result, err := s.db.NewDelete().Table("role_permissions").
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).Exec(ctx)
	if err = dbkit.WithErr(result, err, "RevokePermission").Err(); err != nil {
		return err
	}
	s.invalidateRolePermissions(roleID)
	return nil
}

// PermissionsOf returns the permission set granted by a role. Results are
// held in the short-lived resolver cache keyed by role ID.
func (s *Service) PermissionsOf(ctx context.Context, roleID string) ([]Permission, error) {
	if s.permCache != nil {
		if perms, ok := s.permCache.Get(roleID); ok {
			return perms, nil
		}
	}

	var perms []Permission
	err := dbkit.WithErr1(s.db.NewSelect().Model(&perms).
		Join("JOIN role_permissions AS rp ON rp.permission_id = p.id").
		Where("rp.role_id = ?", roleID).
		Order("p.name ASC").
		Scan(ctx), "PermissionsOf").Err()
	if err != nil {
		return nil, err
	}

	if s.permCache != nil {
		s.permCache.Add(roleID, perms)
	}
	return perms, nil
}

// invalidateRolePermissions drops the cached permission set after a grant
// change so subsequent resolutions see the new state immediately.
func (s *Service) invalidateRolePermissions(roleID string) {
	if s.permCache != nil {
		s.permCache.Remove(roleID)
	}
}

// ============================================================================
// LEVEL-BASED AUTHORITY
// ============================================================================

// CanAssign reports whether an actor holding actorRole may assign targetRole.
// Delegates to the level registry: strictly lower level wins.
func (s *Service) CanAssign(actorRole, targetRole string) bool {
	return s.levels.CanAssign(actorRole, targetRole)
}

// CanManage reports whether an actor holding actorRole may manage a user
// holding targetRole.
func (s *Service) CanManage(actorRole, targetRole string) bool {
	return s.levels.CanManage(actorRole, targetRole)
}

// AssignableRoles returns the roles of a namespace that the given actor role
// may assign.
func (s *Service) AssignableRoles(ctx context.Context, actorRole, originNamespaceID string) ([]Role, error) {
	roles, err := s.ListRoles(ctx, originNamespaceID)
	if err != nil {
		return nil, err
	}
	return s.levels.AssignableRoles(actorRole, roles), nil
}
