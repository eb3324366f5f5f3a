package association

import (
	"context"
	"errors"
)

// ErrStoreUnavailable wraps every backing-store failure surfaced to callers.
// The engine performs no retries itself; retry policy belongs to the store's
// own contract, so callers match on this sentinel to decide.
var ErrStoreUnavailable = errors.New("association store unavailable")

// Store is the persistence contract the engine and lifecycle service consume.
// Implementations live outside the core (the pgx-backed one is in
// internal/store); tests use in-memory fakes.
type Store interface {
	// ListCandidates returns the enabled records for a store, optionally
	// narrowed to one group (exact match; empty means all groups). Date-window
	// activeness is evaluated by the caller against its own evaluation time.
	ListCandidates(ctx context.Context, storeID, group string) ([]*Association, error)

	// GetByIDs returns the records with the given ids. Missing ids are
	// silently skipped.
	GetByIDs(ctx context.Context, ids []string) ([]*Association, error)

	// List returns a page of records for a store (all groups when group is
	// empty, enabled or not) plus the total count. It serves the authoring
	// surface, not the evaluation path.
	List(ctx context.Context, storeID, group string, limit, offset int) ([]*Association, int64, error)

	// Save upserts the given records, assigning ids to new ones, and returns
	// them with identifiers and timestamps populated.
	Save(ctx context.Context, records []*Association) ([]*Association, error)

	// Delete removes the records with the given ids from future candidate
	// sets.
	Delete(ctx context.Context, ids []string) error
}
