package observability

import "context"

// Checker is one dependency verified by the readiness probe. Implementations
// must be safe for concurrent use and must honor the context deadline: the
// probe runs every checker in parallel under one timeout.
type Checker interface {
	// Name identifies the component in the readiness payload
	// (e.g. "postgres", "redis").
	Name() string

	// Check reports nil when the dependency is reachable.
	Check(ctx context.Context) error
}
