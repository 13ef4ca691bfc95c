package authkit

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditLogFilter narrows audit log queries. The zero value matches every
// entry; filters are value types, so chained With* calls never mutate a
// shared builder.
type AuditLogFilter struct {
	ActorID      string
	TargetUserID string
	NamespaceID  string

	// "assigned" or "unassigned"
	Action string

	Since time.Time
	Until time.Time

	Limit  int
	Offset int
}

// NewAuditLogFilter creates a filter with the default page size.
func NewAuditLogFilter() AuditLogFilter {
	return AuditLogFilter{
		Limit: 100,
	}
}

// WithActor filters by the user who performed the action.
func (f AuditLogFilter) WithActor(actorID string) AuditLogFilter {
	f.ActorID = actorID
	return f
}

// WithTargetUser filters by the user the action was applied to.
func (f AuditLogFilter) WithTargetUser(userID string) AuditLogFilter {
	f.TargetUserID = userID
	return f
}

// WithNamespace filters by namespace.
func (f AuditLogFilter) WithNamespace(namespaceID string) AuditLogFilter {
	f.NamespaceID = namespaceID
	return f
}

// WithAction filters by action type.
func (f AuditLogFilter) WithAction(action AuditAction) AuditLogFilter {
	f.Action = string(action)
	return f
}

// WithTimeRange filters by timestamp, both bounds inclusive.
func (f AuditLogFilter) WithTimeRange(since, until time.Time) AuditLogFilter {
	f.Since = since
	f.Until = until
	return f
}

// WithPagination sets limit and offset.
func (f AuditLogFilter) WithPagination(limit, offset int) AuditLogFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}

// apply adds the filter's conditions, ordering and pagination to a select
// query. Results come back newest first.
func (f AuditLogFilter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.TargetUserID != "" {
		q = q.Where("target_user_id = ?", f.TargetUserID)
	}
	if f.NamespaceID != "" {
		q = q.Where("namespace_id = ?", f.NamespaceID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if !f.Since.IsZero() {
		q = q.Where("timestamp >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("timestamp <= ?", f.Until)
	}

	limit := f.Limit
	if limit == 0 {
		limit = 100
	}
	q = q.Limit(limit)
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	return q.Order("timestamp DESC")
}
