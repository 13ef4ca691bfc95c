package authkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAssignmentIntegration exercises assignment upsert, authority checks,
// unassignment and the audit trail against a real database
func TestAssignmentIntegration(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}
	service, root, ctx := setupTree(t)

	ns, err := service.CreateNamespace(ctx, uniqueName("asg"), root.ID, "")
	require.NoError(t, err)

	adminRole, err := service.GetRoleByName(ctx, "admin", root.ID)
	require.NoError(t, err)
	managerRole, err := service.GetRoleByName(ctx, "manager", root.ID)
	require.NoError(t, err)
	userRole, err := service.GetRoleByName(ctx, "user", root.ID)
	require.NoError(t, err)

	admin := createAdminActor(t, service, ctx, root)
	target := createTestUser(t, service, ctx)

	adminCtx := WithActorID(ctx, admin.ID)

	t.Run("ActorRequired", func(t *testing.T) {
		err := service.Assign(ctx, target.ID, ns.ID, userRole.ID)
		assert.ErrorIs(t, err, ErrNoActorID)
	})

	t.Run("AssignWithAuthority", func(t *testing.T) {
		require.NoError(t, service.Assign(adminCtx, target.ID, ns.ID, userRole.ID))

		role, err := service.RoleOf(ctx, target.ID, ns.ID)
		require.NoError(t, err)
		require.NotNil(t, role)
		assert.Equal(t, userRole.ID, role.ID)
	})

	t.Run("ReassignReplacesNotAccumulates", func(t *testing.T) {
		require.NoError(t, service.Assign(adminCtx, target.ID, ns.ID, managerRole.ID))

		role, err := service.RoleOf(ctx, target.ID, ns.ID)
		require.NoError(t, err)
		assert.Equal(t, managerRole.ID, role.ID)

		members, err := service.NamespaceMembers(ctx, ns.ID)
		require.NoError(t, err)
		count := 0
		for _, m := range members {
			if m.UserID == target.ID {
				count++
			}
		}
		assert.Equal(t, 1, count, "one role per user per namespace")
	})

	t.Run("AuthorityIsStrict", func(t *testing.T) {
		// The target now holds manager; a manager cannot hand out manager or
		// admin.
		targetCtx := WithActorID(ctx, target.ID)
		other := createTestUser(t, service, ctx)

		err := service.Assign(targetCtx, other.ID, ns.ID, managerRole.ID)
		assert.True(t, IsCannotAssign(err))
		err = service.Assign(targetCtx, other.ID, ns.ID, adminRole.ID)
		assert.True(t, IsCannotAssign(err))

		// But strictly below their level is fine.
		require.NoError(t, service.Assign(targetCtx, other.ID, ns.ID, userRole.ID))
	})

	t.Run("ReplaceRequiresAuthorityOverDisplacedRole", func(t *testing.T) {
		// An assignment replacement demotes whoever held the old role, so the
		// actor must outrank the displaced role too, not just the new one.
		arena, err := service.CreateNamespace(ctx, uniqueName("asg-replace"), root.ID, "")
		require.NoError(t, err)

		customerRole, err := service.GetRoleByName(ctx, "customer", root.ID)
		require.NoError(t, err)

		actor := createTestUser(t, service, ctx)
		victim := createTestUser(t, service, ctx)
		require.NoError(t, service.AssignDirect(ctx, actor.ID, arena.ID, managerRole.ID))
		require.NoError(t, service.AssignDirect(ctx, victim.ID, arena.ID, managerRole.ID))

		// Customer is below manager, so the new role alone would pass; the
		// displaced manager role must block it.
		actorCtx := WithActorID(ctx, actor.ID)
		err = service.Assign(actorCtx, victim.ID, arena.ID, customerRole.ID)
		assert.True(t, IsCannotAssign(err))

		role, err := service.RoleOf(ctx, victim.ID, arena.ID)
		require.NoError(t, err)
		require.NotNil(t, role)
		assert.Equal(t, managerRole.ID, role.ID, "assignment must be untouched")

		// An admin outranks both sides of the replacement.
		require.NoError(t, service.Assign(adminCtx, victim.ID, arena.ID, customerRole.ID))
	})

	t.Run("MissingReferencesRejected", func(t *testing.T) {
		missing := "00000000-0000-0000-0000-000000000000"
		assert.True(t, IsNotFound(service.AssignDirect(ctx, missing, ns.ID, userRole.ID)))
		assert.True(t, IsNotFound(service.AssignDirect(ctx, target.ID, missing, userRole.ID)))
		assert.True(t, IsNotFound(service.AssignDirect(ctx, target.ID, ns.ID, missing)))
	})

	t.Run("AssignmentsOf", func(t *testing.T) {
		assignments, err := service.AssignmentsOf(ctx, target.ID)
		require.NoError(t, err)
		require.Len(t, assignments, 1)
		assert.Equal(t, ns.ID, assignments[0].Namespace.ID)
		assert.Equal(t, managerRole.ID, assignments[0].Role.ID)
	})

	t.Run("UnassignRequiresExistingAssignment", func(t *testing.T) {
		stranger := createTestUser(t, service, ctx)
		err := service.Unassign(adminCtx, stranger.ID, ns.ID)
		assert.True(t, IsNotFound(err))
	})

	t.Run("Unassign", func(t *testing.T) {
		require.NoError(t, service.Unassign(adminCtx, target.ID, ns.ID))

		role, err := service.RoleOf(ctx, target.ID, ns.ID)
		require.NoError(t, err)
		assert.Nil(t, role)
	})

	t.Run("AuditTrail", func(t *testing.T) {
		since := time.Now().Add(-time.Hour)
		entries, err := service.GetAuditLog(ctx, NewAuditLogFilter().
			WithActor(admin.ID).
			WithTargetUser(target.ID).
			WithNamespace(ns.ID).
			WithTimeRange(since, time.Now().Add(time.Hour)))
		require.NoError(t, err)
		require.NotEmpty(t, entries)

		// Newest first: the unassignment, then the reassignment, then the
		// original assignment.
		assert.Equal(t, string(AuditActionUnassigned), entries[0].Action)
		assert.Equal(t, "manager", entries[0].PreviousRole)

		last := entries[len(entries)-1]
		assert.Equal(t, string(AuditActionAssigned), last.Action)
		assert.Equal(t, "user", last.NewRole)
		assert.Empty(t, last.PreviousRole)
	})

	t.Run("AuditFilterByAction", func(t *testing.T) {
		entries, err := service.GetAuditLog(ctx, NewAuditLogFilter().
			WithTargetUser(target.ID).
			WithAction(AuditActionUnassigned))
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		for _, e := range entries {
			assert.Equal(t, string(AuditActionUnassigned), e.Action)
		}
	})

	t.Run("AuditCapturesRequestMetadata", func(t *testing.T) {
		rich := WithAuditContext(ctx, AuditContext{
			ActorID:   admin.ID,
			IPAddress: "192.0.2.1",
			UserAgent: "authkit-test",
			RequestID: uniqueName("req"),
		})
		someone := createTestUser(t, service, ctx)
		require.NoError(t, service.Assign(rich, someone.ID, ns.ID, userRole.ID))

		entries, err := service.GetAuditLog(ctx, NewAuditLogFilter().
			WithTargetUser(someone.ID))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "192.0.2.1", entries[0].IPAddress)
		assert.Equal(t, "authkit-test", entries[0].UserAgent)
		assert.NotEmpty(t, entries[0].RequestID)
	})
}
