package authkit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Shared helpers for the database-gated integration tests. Identifiers are
// uniqued per invocation so runs against a persistent test database never
// collide.

func createTestUser(t *testing.T, service *Service, ctx context.Context) *User {
	t.Helper()

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	user, err := service.CreateUser(ctx,
		"Test User "+suffix,
		"user-"+suffix,
		"user-"+suffix+"@example.com",
		"s3cret-"+suffix)
	require.NoError(t, err)
	return user
}

// createAdminActor creates a user and gives them the system admin role at the
// given namespace, bypassing the authority check.
func createAdminActor(t *testing.T, service *Service, ctx context.Context, ns *Namespace) *User {
	t.Helper()

	admin := createTestUser(t, service, ctx)

	root, err := service.GetNamespaceByPath(ctx, "root")
	require.NoError(t, err)
	role, err := service.GetRoleByName(ctx, "admin", root.ID)
	require.NoError(t, err)

	require.NoError(t, service.AssignDirect(ctx, admin.ID, ns.ID, role.ID))
	return admin
}
