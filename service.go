package authkit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultPermCacheSize = 1024
	defaultPermCacheTTL  = 5 * time.Second
)

// Service provides namespace tree maintenance, role management, permission
// resolution and token lifecycle over a shared database. It is stateless
// between calls except for a short-lived role-permission cache; concurrent
// resolutions for different users and namespaces run fully in parallel.
//
// Error Handling:
// All database operations use dbkit's chainable error wrapping to provide
// detailed context about failed operations. Constraint violations surfaced by
// the storage layer are mapped onto the AuthKit taxonomy (ErrConflict,
// ErrNotFound); integrity violations discovered on read surface as
// ErrInconsistent and should be treated as fatal by operators.
//
// Example error handling:
//
//	_, err := service.CreateNamespace(ctx, "billing", parentID, "")
//	if err != nil {
//	    if authkit.IsConflict(err) {
//	        // Sibling with the same name or path already exists
//	    }
//	    if authkit.IsNotFound(err) {
//	        // Parent namespace does not exist
//	    }
//	}
type Service struct {
	db        dbkit.IDB
	levels    *LevelRegistry
	txMonitor *transactionMonitor
	hasher    PasswordHasher
	now       func() time.Time
	jwtSecret []byte
	permCache *expirable.LRU[string, []Permission]
}

// ServiceOption configures optional Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source. Useful for tests and for callers that
// need a request-scoped clock instead of the process clock.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithPasswordHasher overrides the password hasher used for user credentials.
func WithPasswordHasher(h PasswordHasher) ServiceOption {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithJWTSecret enables issuing and verifying signed session tokens (HS256).
// Without a secret, session tokens are opaque random credentials only.
func WithJWTSecret(secret []byte) ServiceOption {
	return func(s *Service) {
		if len(secret) > 0 {
			s.jwtSecret = secret
		}
	}
}

// WithPermissionCacheTTL reconfigures the short-lived role-permission cache
// used during resolution. A zero TTL disables caching.
func WithPermissionCacheTTL(size int, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl <= 0 {
			s.permCache = nil
			return
		}
		if size <= 0 {
			size = defaultPermCacheSize
		}
		s.permCache = expirable.NewLRU[string, []Permission](size, nil, ttl)
	}
}

// NewService creates a new AuthKit service.
//
// Example:
//
//	levels := authkit.DefaultLevels()
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := authkit.NewService(levels, db)
func NewService(levels *LevelRegistry, db dbkit.IDB, opts ...ServiceOption) *Service {
	s := &Service{
		db:        db,
		levels:    levels,
		txMonitor: newTransactionMonitor(),
		hasher:    DefaultPasswordHasher(),
		now:       time.Now,
		permCache: expirable.NewLRU[string, []Permission](defaultPermCacheSize, nil, defaultPermCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Levels returns the privilege level registry.
func (s *Service) Levels() *LevelRegistry {
	return s.levels
}

// ============================================================================
// AUDIT LOG
// ============================================================================

// GetAuditLog retrieves assignment audit entries with optional filters.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]AssignmentAudit, error) {
	var logs []AssignmentAudit
	q := filter.apply(s.db.NewSelect().Model(&logs))
	if err := dbkit.WithErr1(q.Scan(ctx), "GetAuditLog").Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
