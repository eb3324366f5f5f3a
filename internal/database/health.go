package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthChecker reports Postgres connectivity for the readiness probe. It
// implements observability.Checker on top of the shared connection pool.
type HealthChecker struct {
	pool *pgxpool.Pool
}

// NewHealthChecker wraps the given connection pool.
func NewHealthChecker(pool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{pool: pool}
}

// Name identifies the component in the readiness payload.
func (h *HealthChecker) Name() string {
	return "postgres"
}

// Check pings the database through the pool.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.pool == nil {
		return errors.New("database pool is not configured")
	}
	return h.pool.Ping(ctx)
}
