package authkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoleCatalogIntegration exercises role definitions, permission grants
// and the protection rules against a real database
func TestRoleCatalogIntegration(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}
	service, root, ctx := setupTree(t)

	ns, err := service.CreateNamespace(ctx, uniqueName("catalog"), root.ID, "")
	require.NoError(t, err)

	roleName := uniqueName("auditor")
	role, err := service.DefineRole(ctx, roleName, ns.ID, RoleSpec{
		DisplayName: "Auditor",
		Description: "Read-only compliance access",
	})
	require.NoError(t, err)
	assert.Equal(t, ns.ID, role.OriginNamespaceID)
	assert.False(t, role.IsSystem)

	t.Run("DuplicateInSameNamespaceRejected", func(t *testing.T) {
		_, err := service.DefineRole(ctx, roleName, ns.ID, RoleSpec{})
		assert.True(t, IsConflict(err))
	})

	t.Run("SameNameInOtherNamespaceAllowed", func(t *testing.T) {
		other, err := service.CreateNamespace(ctx, uniqueName("catalog2"), root.ID, "")
		require.NoError(t, err)
		_, err = service.DefineRole(ctx, roleName, other.ID, RoleSpec{})
		assert.NoError(t, err)
	})

	t.Run("MissingOriginRejected", func(t *testing.T) {
		_, err := service.DefineRole(ctx, uniqueName("r"), "00000000-0000-0000-0000-000000000000", RoleSpec{})
		assert.True(t, IsNotFound(err))
	})

	t.Run("GetByName", func(t *testing.T) {
		got, err := service.GetRoleByName(ctx, roleName, ns.ID)
		require.NoError(t, err)
		assert.Equal(t, role.ID, got.ID)
	})

	t.Run("ListRoles", func(t *testing.T) {
		roles, err := service.ListRoles(ctx, ns.ID)
		require.NoError(t, err)
		assert.Len(t, roles, 1)
	})

	permName := uniqueName("report_view")
	perm, err := service.CreatePermission(ctx, permName, PermissionSpec{
		DisplayName: "View reports",
		Category:    "reporting",
	})
	require.NoError(t, err)

	t.Run("DuplicatePermissionRejected", func(t *testing.T) {
		_, err := service.CreatePermission(ctx, permName, PermissionSpec{})
		assert.True(t, IsConflict(err))
	})

	t.Run("GrantIsIdempotent", func(t *testing.T) {
		require.NoError(t, service.GrantPermission(ctx, role.ID, perm.ID))
		require.NoError(t, service.GrantPermission(ctx, role.ID, perm.ID))

		perms, err := service.PermissionsOf(ctx, role.ID)
		require.NoError(t, err)
		require.Len(t, perms, 1)
		assert.Equal(t, permName, perms[0].Name)
	})

	t.Run("GrantToMissingRoleRejected", func(t *testing.T) {
		err := service.GrantPermission(ctx, "00000000-0000-0000-0000-000000000000", perm.ID)
		assert.True(t, IsNotFound(err))
		err = service.GrantPermission(ctx, role.ID, "00000000-0000-0000-0000-000000000000")
		assert.True(t, IsNotFound(err))
	})

	t.Run("RevokeIsIdempotent", func(t *testing.T) {
		require.NoError(t, service.RevokePermission(ctx, role.ID, perm.ID))
		require.NoError(t, service.RevokePermission(ctx, role.ID, perm.ID))

		perms, err := service.PermissionsOf(ctx, role.ID)
		require.NoError(t, err)
		assert.Empty(t, perms)
	})

	t.Run("RenameRole", func(t *testing.T) {
		newName := uniqueName("auditor-renamed")
		require.NoError(t, service.RenameRole(ctx, role.ID, newName))
		got, err := service.GetRole(ctx, role.ID)
		require.NoError(t, err)
		assert.Equal(t, newName, got.Name)
	})

	t.Run("SystemRoleProtected", func(t *testing.T) {
		adminRole, err := service.GetRoleByName(ctx, "admin", root.ID)
		require.NoError(t, err)

		assert.ErrorIs(t, service.RenameRole(ctx, adminRole.ID, "superuser"), ErrSystemRole)
		assert.ErrorIs(t, service.DeleteRole(ctx, adminRole.ID), ErrSystemRole)
	})

	t.Run("AssignedRoleUndeletable", func(t *testing.T) {
		user := createTestUser(t, service, ctx)
		require.NoError(t, service.AssignDirect(ctx, user.ID, ns.ID, role.ID))

		err := service.DeleteRole(ctx, role.ID)
		assert.True(t, IsConflict(err))

		admin := createAdminActor(t, service, ctx, root)
		require.NoError(t, service.Unassign(WithActorID(ctx, admin.ID), user.ID, ns.ID))
	})

	t.Run("DeleteRoleCascadesGrants", func(t *testing.T) {
		require.NoError(t, service.GrantPermission(ctx, role.ID, perm.ID))
		require.NoError(t, service.DeleteRole(ctx, role.ID))

		_, err := service.GetRole(ctx, role.ID)
		assert.True(t, IsNotFound(err))
	})

	t.Run("AssignableRolesFilter", func(t *testing.T) {
		roles, err := service.AssignableRoles(ctx, "manager", root.ID)
		require.NoError(t, err)
		for _, r := range roles {
			assert.True(t, service.CanAssign("manager", r.Name))
		}
		names := roleNames(roles)
		assert.Contains(t, names, "customer")
		assert.Contains(t, names, "user")
		assert.NotContains(t, names, "admin")
		assert.NotContains(t, names, "manager")
	})
}
