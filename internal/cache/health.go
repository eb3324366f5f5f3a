package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// HealthChecker reports Redis connectivity for the readiness probe. It
// implements observability.Checker and typically shares the client with the
// Redis result cache.
type HealthChecker struct {
	client *redis.Client
}

// NewHealthChecker wraps the given Redis client.
func NewHealthChecker(client *redis.Client) *HealthChecker {
	return &HealthChecker{client: client}
}

// Name identifies the component in the readiness payload.
func (h *HealthChecker) Name() string {
	return "redis"
}

// Check pings the server.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.client == nil {
		return errors.New("redis client is not configured")
	}
	return h.client.Ping(ctx).Err()
}
