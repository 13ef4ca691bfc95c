package authkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// MigrationService provides migration management functionality as an extension to Service
type MigrationService struct {
	*Service
}

// NewMigrationService creates a new migration service extension
func NewMigrationService(service *Service) *MigrationService {
	return &MigrationService{Service: service}
}

// MigrationStatus summarizes a migration run.
type MigrationStatus struct {
	Total   int      `json:"total"`
	Applied []string `json:"applied"`
}

// Migrations returns all database migrations required for AuthKit.
// Use NewMigrationService(service).RunMigrations(ctx) to apply them, or pass
// the list to dbkit directly.
func (s *Service) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "authkit-001",
			Description: "Create namespaces table",
			SQL: `
                CREATE TABLE IF NOT EXISTS namespaces (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    name TEXT NOT NULL,
                    parent_id UUID REFERENCES namespaces(id),
                    full_path TEXT NOT NULL UNIQUE,
                    depth INT NOT NULL,
                    domain TEXT,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (parent_id, name)
                )`,
		},
		{
			ID:          "authkit-002",
			Description: "Create roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS roles (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    name TEXT NOT NULL,
                    display_name TEXT,
                    description TEXT,
                    is_system BOOLEAN NOT NULL DEFAULT false,
                    origin_namespace_id UUID NOT NULL REFERENCES namespaces(id),
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (name, origin_namespace_id)
                )`,
		},
		{
			ID:          "authkit-003",
			Description: "Create permissions table",
			SQL: `
                CREATE TABLE IF NOT EXISTS permissions (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    name TEXT NOT NULL UNIQUE,
                    display_name TEXT,
                    description TEXT,
                    category TEXT,
                    is_system BOOLEAN NOT NULL DEFAULT false,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "authkit-004",
			Description: "Create role_permissions table",
			SQL: `
                CREATE TABLE IF NOT EXISTS role_permissions (
                    role_id UUID NOT NULL REFERENCES roles(id),
                    permission_id UUID NOT NULL REFERENCES permissions(id),
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    PRIMARY KEY (role_id, permission_id)
                )`,
		},
		{
			ID:          "authkit-005",
			Description: "Create users table",
			SQL: `
                CREATE TABLE IF NOT EXISTS users (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    name TEXT,
                    username TEXT NOT NULL UNIQUE,
                    email TEXT NOT NULL UNIQUE,
                    password_hash TEXT NOT NULL,
                    status TEXT NOT NULL DEFAULT 'active',
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "authkit-006",
			Description: "Create user_namespace_roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS user_namespace_roles (
                    user_id UUID NOT NULL REFERENCES users(id),
                    namespace_id UUID NOT NULL REFERENCES namespaces(id),
                    role_id UUID NOT NULL REFERENCES roles(id),
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    PRIMARY KEY (user_id, namespace_id)
                )`,
		},
		{
			ID:          "authkit-007",
			Description: "Create tokens table",
			SQL: `
                CREATE TABLE IF NOT EXISTS tokens (
                    id UUID PRIMARY KEY,
                    user_id UUID NOT NULL REFERENCES users(id),
                    token_hash TEXT,
                    token TEXT,
                    jwt_id TEXT,
                    type TEXT NOT NULL,
                    expires_at TIMESTAMPTZ NOT NULL,
                    last_used_at TIMESTAMPTZ,
                    ip_address TEXT,
                    user_agent TEXT,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "authkit-008",
			Description: "Create assignment_audit table",
			SQL: `
                CREATE TABLE IF NOT EXISTS assignment_audit (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    actor_id TEXT NOT NULL,
                    action TEXT NOT NULL,
                    target_user_id TEXT NOT NULL,
                    namespace_id TEXT NOT NULL,
                    role_id TEXT,
                    previous_role TEXT,
                    new_role TEXT,
                    ip_address TEXT,
                    user_agent TEXT,
                    request_id TEXT
                )`,
		},
		{
			ID:          "authkit-009",
			Description: "Create lookup indexes",
			SQL: `
                CREATE INDEX IF NOT EXISTS idx_namespaces_parent ON namespaces(parent_id);
                CREATE INDEX IF NOT EXISTS idx_namespaces_full_path ON namespaces(full_path text_pattern_ops);
                CREATE INDEX IF NOT EXISTS idx_roles_origin ON roles(origin_namespace_id);
                CREATE INDEX IF NOT EXISTS idx_unr_namespace ON user_namespace_roles(namespace_id);
                CREATE INDEX IF NOT EXISTS idx_tokens_user ON tokens(user_id);
                CREATE INDEX IF NOT EXISTS idx_tokens_hash ON tokens(token_hash);
                CREATE INDEX IF NOT EXISTS idx_tokens_jwt_id ON tokens(jwt_id);
                CREATE INDEX IF NOT EXISTS idx_tokens_expires ON tokens(expires_at);
                CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON assignment_audit(timestamp);
                CREATE INDEX IF NOT EXISTS idx_audit_target ON assignment_audit(target_user_id)`,
		},
		{
			ID:          "authkit-010",
			Description: "Seed builtin permissions",
			SQL: `
                INSERT INTO permissions (name, display_name, category, is_system) VALUES
                    ('namespace_manage', 'Manage namespaces', 'administration', true),
                    ('role_manage', 'Manage roles', 'administration', true),
                    ('user_manage', 'Manage users', 'administration', true),
                    ('assignment_manage', 'Manage role assignments', 'administration', true),
                    ('audit_view', 'View the audit log', 'administration', true)
                ON CONFLICT (name) DO NOTHING`,
		},
	}
}

// RunMigrations applies all pending migrations and returns a summary of the
// run.
func (ms *MigrationService) RunMigrations(ctx context.Context) (*MigrationStatus, error) {
	migrations := ms.Migrations()

	db, ok := ms.db.(*dbkit.DBKit)
	if !ok {
		return nil, NewError(ErrDatabaseError, "migrations require a dbkit.DBKit instance")
	}

	result, err := db.Migrate(ctx, migrations)
	if err != nil {
		return nil, dbkit.WithErr1(err, "RunMigrations").Err()
	}

	status := &MigrationStatus{Total: len(migrations)}
	for _, m := range result.Applied {
		status.Applied = append(status.Applied, m.ID)
	}
	return status, nil
}
