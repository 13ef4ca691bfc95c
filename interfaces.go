package authkit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
)

// Database defines the database operations interface for dependency injection
type Database interface {
	dbkit.IDB
}

// TransactionManager defines the transaction management interface
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error
	ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MigrationManager defines the migration management interface
type MigrationManager interface {
	Migrations() []dbkit.Migration
	RunMigrations(ctx context.Context) (*MigrationStatus, error)
}

// HealthMonitor defines the health monitoring interface
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) error
	GetPoolStats() dbkit.PoolStats
}

// PoolManager defines the connection pool management interface
type PoolManager interface {
	ConfigureConnectionPool(config PoolConfig) error
	GetConnectionPoolConfig() (*PoolConfig, error)
	OptimizeConnectionPool() error
	ResetConnectionPool() error
}

// TreeManager defines the namespace tree interface
type TreeManager interface {
	CreateNamespace(ctx context.Context, name, parentID, domain string) (*Namespace, error)
	GetNamespace(ctx context.Context, id string) (*Namespace, error)
	GetNamespaceByPath(ctx context.Context, fullPath string) (*Namespace, error)
	Ancestors(ctx context.Context, id string) ([]Namespace, error)
	Descendants(ctx context.Context, id string) ([]Namespace, error)
	MoveNamespace(ctx context.Context, id, newParentID string) error
	RenameNamespace(ctx context.Context, id, newName string) error
	DeleteNamespace(ctx context.Context, id string) error
}

// PermissionResolver defines the effective permission resolution interface
type PermissionResolver interface {
	GoverningRole(ctx context.Context, userID, namespaceID string) (*Role, *Namespace, error)
	EffectivePermissions(ctx context.Context, userID, namespaceID string) ([]Permission, error)
	HasPermission(ctx context.Context, userID, namespaceID, permissionName string) (bool, error)
	CanAssignRoleAt(ctx context.Context, actorID, namespaceID, targetRoleID string) (bool, error)
	CanManageUser(ctx context.Context, actorID, targetUserID, namespaceID string) (bool, error)
}

// TokenIssuer defines the token lifecycle interface
type TokenIssuer interface {
	IssueToken(ctx context.Context, userID, tokenType string, ttl time.Duration) (*IssuedToken, error)
	IssueSignedToken(ctx context.Context, userID string, ttl time.Duration) (*IssuedToken, error)
	VerifyToken(ctx context.Context, presented string) (*Token, error)
	RevokeToken(ctx context.Context, tokenID string) error
	RevokeAllTokens(ctx context.Context, userID string) error
	DeleteExpiredTokens(ctx context.Context) (int64, error)
}

// AuditLogger defines the audit logging interface
type AuditLogger interface {
	GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]AssignmentAudit, error)
}

// TransactionMonitor defines the transaction monitoring interface
type TransactionMonitor interface {
	GetTransactionMetrics() TransactionMetrics
	ResetTransactionMetrics()
	IsTransactionHealthy() bool
}
