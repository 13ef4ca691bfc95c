package authkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNewAuditLogFilter tests default values
func TestNewAuditLogFilter(t *testing.T) {
	f := NewAuditLogFilter()
	assert.Equal(t, 100, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Empty(t, f.ActorID)
	assert.True(t, f.Since.IsZero())
}

// TestAuditLogFilterFluentChain tests the fluent builder
func TestAuditLogFilterFluentChain(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)

	f := NewAuditLogFilter().
		WithActor("actor-1").
		WithTargetUser("user-1").
		WithNamespace("ns-1").
		WithAction(AuditActionAssigned).
		WithTimeRange(since, until).
		WithPagination(25, 50)

	assert.Equal(t, "actor-1", f.ActorID)
	assert.Equal(t, "user-1", f.TargetUserID)
	assert.Equal(t, "ns-1", f.NamespaceID)
	assert.Equal(t, "assigned", f.Action)
	assert.Equal(t, since, f.Since)
	assert.Equal(t, until, f.Until)
	assert.Equal(t, 25, f.Limit)
	assert.Equal(t, 50, f.Offset)
}

// TestAuditLogFilterValueSemantics verifies the builder copies instead of
// mutating shared state
func TestAuditLogFilterValueSemantics(t *testing.T) {
	base := NewAuditLogFilter()
	derived := base.WithActor("actor-1")

	assert.Empty(t, base.ActorID)
	assert.Equal(t, "actor-1", derived.ActorID)
}
