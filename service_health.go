package authkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// HealthService exposes database health and pool monitoring as an extension
// to Service. Operators wire its methods into readiness and liveness probes.
type HealthService struct {
	*Service
}

// NewHealthService creates a health service extension.
func NewHealthService(service *Service) *HealthService {
	return &HealthService{Service: service}
}

// Health performs a full health check of the database connection, including
// latency and connection pool statistics.
func (hs *HealthService) Health(ctx context.Context) dbkit.HealthStatus {
	db, ok := hs.db.(*dbkit.DBKit)
	if !ok {
		// Inside a transaction, or a different IDB, only a basic ping is
		// possible.
		return dbkit.HealthStatus{
			Healthy: hs.IsHealthy(ctx),
			Error:   "Limited health check - not a DBKit instance",
		}
	}
	return db.Health(ctx)
}

// IsHealthy reports whether the database is reachable.
func (hs *HealthService) IsHealthy(ctx context.Context) bool {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.IsHealthy(ctx)
	}
	return hs.Ping(ctx) == nil
}

// GetPoolStats returns connection pool statistics. A non-DBKit instance has
// no pool, so zero values come back.
func (hs *HealthService) GetPoolStats() dbkit.PoolStats {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return dbkit.PoolStatsFromSQL(db.Stats())
	}
	return dbkit.PoolStats{}
}

// Ping runs a minimal query against the connection and returns the error, if
// any.
func (hs *HealthService) Ping(ctx context.Context) error {
	var result int
	return hs.db.NewSelect().Model((*struct{})(nil)).ColumnExpr("1").Limit(1).Scan(ctx, &result)
}
