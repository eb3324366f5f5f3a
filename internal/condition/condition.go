// Package condition implements the boolean expression trees that merchandisers
// author to decide when a product association applies. A tree is a closed,
// tag-discriminated sum type: an AND block owning child nodes, a category
// membership test, and a property value test. New kinds can be registered at
// startup through the Registry without touching the built-in evaluators.
package condition

// Discriminator tags for the built-in node kinds. The tag is stable and is
// used only when (de)serializing trees, never for identity.
const (
	KindBlock           = "block"
	KindProductCategory = "product-category"
	KindPropertyValues  = "property-values"
)

// Context is the capability surface a tree is evaluated against.
// It abstracts "what do we know about the anchor products" so the evaluator
// never touches storage or search-index specifics directly.
type Context interface {
	// InAnyCategory reports whether any anchor product belongs to any of the
	// given categories.
	InAnyCategory(categoryIDs []string) bool

	// HasPropertyValues reports whether, for every property name in the map,
	// at least one anchor product carries a value from the allowed set.
	// Property names are matched case-insensitively.
	HasPropertyValues(properties map[string][]string) bool
}

// Node is one unit of a condition tree.
//
// Matches must be a pure function of the node's own data and the context:
// no side effects, no mutation. Trees are finite and acyclic by construction
// (the Registry builds strict trees), so evaluation always terminates.
type Node interface {
	// Kind returns the discriminator tag for this node variant.
	Kind() string

	// Matches reports whether the condition holds for the given context.
	Matches(ctx Context) bool
}
