package authkit

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// PathSeparator joins namespace names into a materialized full path.
const PathSeparator = "/"

// Namespace is a node in the organizational scope tree. Role assignments and
// the permissions they grant are scoped to a namespace and inherited by its
// descendants unless overridden closer to the target.
type Namespace struct {
	bun.BaseModel `bun:"table:namespaces,alias:ns"`

	ID       string `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name     string `bun:"name,notnull"`
	ParentID string `bun:"parent_id,type:uuid,nullzero"` // empty only for the root
	FullPath string `bun:"full_path,notnull,unique"`
	Depth    int    `bun:"depth,notnull"` // root = 0
	Domain   string `bun:"domain"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// IsRoot reports whether this namespace is the tree root.
func (n *Namespace) IsRoot() bool {
	return n.ParentID == ""
}

// ChildPath computes the full path a child with the given name would have.
func (n *Namespace) ChildPath(name string) string {
	return n.FullPath + PathSeparator + name
}

// IsAncestorOf reports whether other lives strictly below this namespace.
// Decided purely on materialized paths, no tree walk needed.
func (n *Namespace) IsAncestorOf(other *Namespace) bool {
	return strings.HasPrefix(other.FullPath, n.FullPath+PathSeparator)
}

// Role names a bundle of permissions owned by a namespace. System roles are
// protected from deletion and renaming.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID                string `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name              string `bun:"name,notnull"`
	DisplayName       string `bun:"display_name"`
	Description       string `bun:"description"`
	IsSystem          bool   `bun:"is_system,notnull,default:false"`
	OriginNamespaceID string `bun:"origin_namespace_id,notnull,type:uuid"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Permission is a globally unique, stable capability identifier such as
// "user_manage". Permissions are granted to roles, never to users directly.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`

	ID          string `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name        string `bun:"name,notnull,unique"`
	DisplayName string `bun:"display_name"`
	Description string `bun:"description"`
	Category    string `bun:"category"`
	IsSystem    bool   `bun:"is_system,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// RolePermission joins roles to the permissions they grant.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	RoleID       string    `bun:"role_id,pk,type:uuid"`
	PermissionID string    `bun:"permission_id,pk,type:uuid"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// UserNamespaceRole is the assignment of a role to a user at a namespace.
// The (user_id, namespace_id) primary key enforces at most one role per user
// per namespace; assigning again replaces the previous role.
type UserNamespaceRole struct {
	bun.BaseModel `bun:"table:user_namespace_roles,alias:unr"`

	UserID      string    `bun:"user_id,pk,type:uuid"`
	NamespaceID string    `bun:"namespace_id,pk,type:uuid"`
	RoleID      string    `bun:"role_id,notnull,type:uuid"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// User statuses. Tokens of a non-active user fail verification regardless of
// their expiry.
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
	UserStatusBlocked  = "blocked"
)

// User is an authenticatable identity.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name         string `bun:"name"`
	Username     string `bun:"username,notnull,unique"`
	Email        string `bun:"email,notnull,unique"`
	PasswordHash string `bun:"password_hash,notnull"`
	Status       string `bun:"status,notnull,default:'active'"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// IsActive reports whether the user may authenticate and hold valid tokens.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Token types.
const (
	TokenTypeSession = "session"
	TokenTypeAPI     = "api"
)

// Token is the server-side record of an issued credential. Session tokens
// store only a one-way hash of the opaque credential; API tokens store the
// credential itself so it can be re-displayed (a deliberate, narrower
// exposure tradeoff). JWTID correlates a signed token to this row so it can
// be revoked before its natural expiry.
type Token struct {
	bun.BaseModel `bun:"table:tokens,alias:t"`

	ID         string    `bun:"id,pk,type:uuid"`
	UserID     string    `bun:"user_id,notnull,type:uuid"`
	TokenHash  string    `bun:"token_hash"`
	Token      string    `bun:"token"`
	JWTID      string    `bun:"jwt_id"`
	Type       string    `bun:"type,notnull"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	LastUsedAt time.Time `bun:"last_used_at,nullzero"`
	IPAddress  string    `bun:"ip_address"`
	UserAgent  string    `bun:"user_agent"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// AssignmentAudit records all role assignment changes for compliance and
// debugging.
type AssignmentAudit struct {
	bun.BaseModel `bun:"table:assignment_audit,alias:aa"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`

	// Who performed the action
	ActorID string `bun:"actor_id,notnull"`

	// What action was performed
	Action string `bun:"action,notnull"` // "assigned", "unassigned"

	// Target of the action
	TargetUserID string `bun:"target_user_id,notnull"`
	NamespaceID  string `bun:"namespace_id,notnull"`
	RoleID       string `bun:"role_id"`

	// Role names before and after the change
	PreviousRole string `bun:"previous_role"`
	NewRole      string `bun:"new_role"`

	// Request metadata for forensics
	IPAddress string `bun:"ip_address"`
	UserAgent string `bun:"user_agent"`
	RequestID string `bun:"request_id"`
}

// AuditAction represents the type of action in the audit log.
type AuditAction string

const (
	AuditActionAssigned   AuditAction = "assigned"
	AuditActionUnassigned AuditAction = "unassigned"
)

// AuditEntry is used to create new audit log entries.
type AuditEntry struct {
	ActorID      string
	Action       AuditAction
	TargetUserID string
	NamespaceID  string
	RoleID       string
	PreviousRole string
	NewRole      string
	IPAddress    string
	UserAgent    string
	RequestID    string
}

// ToModel converts an AuditEntry to an AssignmentAudit model.
func (e *AuditEntry) ToModel() *AssignmentAudit {
	return &AssignmentAudit{
		ActorID:      e.ActorID,
		Action:       string(e.Action),
		TargetUserID: e.TargetUserID,
		NamespaceID:  e.NamespaceID,
		RoleID:       e.RoleID,
		PreviousRole: e.PreviousRole,
		NewRole:      e.NewRole,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		RequestID:    e.RequestID,
		Timestamp:    time.Now(),
	}
}

// Assignment pairs a namespace with the role a user holds there. Returned by
// AssignmentsOf when listing a user's direct assignments.
type Assignment struct {
	Namespace Namespace
	Role      Role
}
