// Package association defines the association record: one merchandiser-
// authored rule binding a condition tree and an active-date window to a
// ranked list of target products. It also owns the store contract and the
// change events the rest of the system consumes.
package association

import (
	"time"

	"github.com/freyrlabs/freyr/internal/condition"
)

// Association is a single stored rule. The evaluation path treats records as
// read-only; only the lifecycle service mutates them.
type Association struct {
	// ID is the record identifier, assigned on first save.
	ID string

	// StoreID scopes the rule to one store.
	StoreID string

	// Group is a free-form tag partitioning rules into independent sets
	// (e.g. "up-sell" vs "cross-sell").
	Group string

	// Name is the human-readable label merchandisers see.
	Name string

	// Description provides optional context about the rule's purpose.
	Description string

	// Priority orders matched rules; lower value wins. Ties are broken by ID
	// so the total order is deterministic.
	Priority int

	// Enabled is the master switch. A disabled record is never active.
	Enabled bool

	// StartDate and EndDate bound the active window. A nil bound is open.
	// Both bounds are inclusive.
	StartDate *time.Time
	EndDate   *time.Time

	// Condition is the root of the rule's condition tree.
	Condition condition.Node

	// TargetProductIDs is the ordered list of products to return when the
	// rule matches.
	TargetProductIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActiveAt reports whether the record is active at the given instant:
// enabled, started (or open-started), and not yet ended (or open-ended).
func (a *Association) ActiveAt(t time.Time) bool {
	if !a.Enabled {
		return false
	}
	if a.StartDate != nil && t.Before(*a.StartDate) {
		return false
	}
	if a.EndDate != nil && t.After(*a.EndDate) {
		return false
	}
	return true
}
