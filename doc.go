// Package authkit provides a multi-tenant authorization core: a namespace
// tree, a role catalog with numeric privilege levels, per-namespace role
// assignments, inherited permission resolution and token lifecycle.
//
// # Core Concepts
//
// Namespace: A node in a single organizational tree, addressed by a
// materialized path like "acme/sales/emea". Role assignments attach to
// namespaces and flow down to descendants.
//
// Role: A named bundle of permissions owned by an origin namespace. Privilege
// comes from an in-memory level registry, not from the role row: lower level
// means more powerful, and an actor can only assign or manage strictly below
// its own level.
//
// Permission: A globally unique stable identifier like "user_manage".
// Permissions attach to roles, never to users directly.
//
// Governing role: The role from the assignment nearest to the target
// namespace along its ancestor chain. A closer assignment fully replaces a
// farther one; permission sets are never merged across ancestors.
//
// # Key Features
//
//   - Single tree with materialized paths: ancestors and descendants resolve
//     with one indexed query, no recursive walk
//   - Nearest-ancestor-wins resolution: an override below always beats an
//     assignment above, even when it grants less
//   - Strict privilege levels: unknown roles rank below every known one, so
//     resolution fails closed
//   - Session and API tokens, plus optional signed JWTs revocable through a
//     server-side jwt_id cross-check
//   - Detailed audit logging: who, what, when, previous role, new role
//   - DBKit integration: uses your existing database connection
//
// # Basic Usage
//
//	// 1. Define your privilege levels (at application startup)
//	levels := authkit.NewLevelRegistry().
//	    Define("admin", 1).
//	    Define("manager", 2).
//	    Define("customer", 3).
//	    Define("user", 4)
//
//	// 2. Create the service
//	service := authkit.NewService(levels, db)
//
//	// 3. Run migrations and seed the root
//	authkit.NewMigrationService(service).RunMigrations(ctx)
//	root, _ := service.Bootstrap(ctx, "acme", "acme.example")
//
//	// 4. Build the tree and assign roles
//	sales, _ := service.CreateNamespace(ctx, "sales", root.ID, "")
//	admin, _ := service.GetRoleByName(ctx, "admin", root.ID)
//	service.AssignDirect(ctx, founder.ID, root.ID, admin.ID)
//
//	// 5. Check permissions
//	ok, _ := service.HasPermission(ctx, founder.ID, sales.ID, "user_manage")
//
// # Middleware Usage
//
//	mw := authkit.NewMiddleware(service)
//
//	router.Handle("POST /namespaces/{namespaceID}/users",
//	    mw.Authenticate(mw.RequirePermission("user_manage",
//	        authkit.NamespaceFromParam("namespaceID"))(createUserHandler)))
//
// # Tokens
//
// Session tokens are opaque random credentials stored as a SHA-256 hash; the
// plaintext exists only in the issue response. API tokens are stored raw so
// integrations can re-display them. With a secret configured through
// WithJWTSecret, signed HS256 tokens carry a jwt_id that is cross-checked
// against a live row on every verification, so revocation works before the
// natural expiry.
//
// # Audit Log
//
// All assignment changes are automatically logged with:
//   - Actor (who made the change)
//   - Target user, namespace and role
//   - Previous and new role names
//   - Timestamp
//   - Request metadata (IP, user agent, request ID)
package authkit
