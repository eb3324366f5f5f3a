// Package search implements the time-windowed active-rule search: given the
// products a shopper is looking at, it decides which association rules
// currently hold and returns their target products ranked and paginated.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidQuery marks queries that are rejected before touching the store:
// no anchor products, a negative skip, or a negative take. Callers should not
// retry these.
var ErrInvalidQuery = errors.New("invalid search query")

// Query describes one association search.
type Query struct {
	// StoreID scopes the search to one store's rules.
	StoreID string

	// ProductIDs are the anchor products being viewed or purchased.
	// Must be non-empty.
	ProductIDs []string

	// Group optionally narrows the search to one rule group (exact match).
	Group string

	// Skip and Take page the matched associations. Take of zero yields an
	// empty page while still reporting the total match count.
	Skip int
	Take int

	// At is the evaluation instant for the active-date windows. The zero
	// value means "now"; tests supply a fixed instant for determinism.
	At time.Time
}

// Validate rejects structurally invalid queries.
func (q Query) Validate() error {
	if q.StoreID == "" {
		return fmt.Errorf("%w: store id is required", ErrInvalidQuery)
	}
	if len(q.ProductIDs) == 0 {
		return fmt.Errorf("%w: at least one anchor product is required", ErrInvalidQuery)
	}
	if q.Skip < 0 {
		return fmt.Errorf("%w: skip cannot be negative", ErrInvalidQuery)
	}
	if q.Take < 0 {
		return fmt.Errorf("%w: take cannot be negative", ErrInvalidQuery)
	}
	return nil
}

// EvaluationTime resolves the instant activeness is checked against.
func (q Query) EvaluationTime() time.Time {
	if q.At.IsZero() {
		return time.Now().UTC()
	}
	return q.At
}

// Match is one association whose rule held for the query, stripped down to
// what the query surface returns.
type Match struct {
	// AssociationID identifies the matched record.
	AssociationID string `json:"association_id"`

	// Group is the matched record's group tag.
	Group string `json:"group"`

	// Priority is the matched record's rank (lower wins).
	Priority int `json:"priority"`

	// ProductIDs is the record's ordered list of target products.
	ProductIDs []string `json:"product_ids"`
}

// Result is one page of matches plus the total matched count (computed
// before pagination, for caller-side paging UIs).
type Result struct {
	TotalCount int     `json:"total_count"`
	Matches    []Match `json:"matches"`
}

// Searcher is the search contract. The engine implements it directly; the
// cached decorator wraps any implementation.
type Searcher interface {
	Search(ctx context.Context, q Query) (*Result, error)
}
